// ABOUTME: Output host construction for the CLI
// ABOUTME: Maps the backend flag to a concrete output.Host
package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/resonate-sink/internal/config"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output/malgo"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output/oto"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/output/portaudio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/sink"
)

func newHost(cfg *config.Config, logger *zerolog.Logger) (output.Host, error) {
	switch cfg.Backend {
	case "malgo":
		host, err := malgo.NewHost(logger)
		if err != nil {
			return nil, err
		}
		return host, nil
	case "oto":
		host, err := oto.NewHost(audio.CanonicalRate, audio.FormatS16, logger)
		if err != nil {
			return nil, err
		}
		return host, nil
	case "portaudio":
		host, err := portaudio.NewHost(logger)
		if err != nil {
			return nil, err
		}
		return host, nil
	case "file":
		return output.NewFileHost(cfg.WavOut, audio.CanonicalRate), nil
	case "null":
		return output.NewNullHost(cfg.NullRate), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// listDevices prints every output device, default first
func listDevices(w io.Writer, host output.Host) error {
	devices, err := sink.NewLocator(host).ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Available output devices (%s):\n", host.Name())
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}

	ordered := make([]sink.DeviceInfo, 0, len(devices))
	for _, d := range devices {
		if d.Default {
			ordered = append(ordered, d)
		}
	}
	for _, d := range devices {
		if !d.Default {
			ordered = append(ordered, d)
		}
	}

	for _, d := range ordered {
		name := d.Name
		if d.Default {
			name += " (default)"
		}
		fmt.Fprintf(w, "- %s\n", name)
		for _, f := range d.Formats {
			fmt.Fprintf(w, "    %s\n", f)
		}
	}
	return nil
}
