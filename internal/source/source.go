// ABOUTME: Local audio sources feeding the sink
// ABOUTME: Decodes files and generates tones, always yielding 44.1kHz stereo s16
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rs/zerolog/log"

	"github.com/Resonate-Protocol/resonate-sink/pkg/audio"
	"github.com/Resonate-Protocol/resonate-sink/pkg/audio/resample"
)

// maxEmptyReads bounds consecutive decoder reads that yield nothing
const maxEmptyReads = 100

// ErrUnsupportedFormat is returned for files no decoder understands
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Source yields canonical interleaved stereo samples
type Source interface {
	// Read fills samples and returns how many were written, always a whole
	// number of frames. io.EOF marks the end.
	Read(samples []int16) (int, error)
	Title() string
	Close() error
}

// Writer consumes canonical samples; *sink.Sink satisfies it
type Writer interface {
	Write(samples []int16) error
}

// decoder is a native-format PCM reader
type decoder interface {
	Read(samples []int16) (int, error)
	SampleRate() int
	Channels() int
	Close() error
}

// Open picks a decoder from the file extension
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}

	title := readTitle(f)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var dec decoder
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		dec, err = newMP3Decoder(f)
	case ".wav":
		dec, err = newWAVDecoder(f)
	case ".flac":
		dec, err = newFLACDecoder(f)
	case ".ogg", ".oga":
		dec, err = newOggDecoder(f)
	default:
		err = fmt.Errorf("%w: %s (supported: .mp3, .wav, .flac, .ogg)", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	log.Info().
		Str("title", title).
		Int("rate", dec.SampleRate()).
		Int("channels", dec.Channels()).
		Msg("audio file loaded")

	return newCanonical(dec, title)
}

// readTitle returns "Artist - Title" from embedded tags and rewinds f
func readTitle(f *os.File) string {
	defer f.Seek(0, io.SeekStart)

	m, err := tag.ReadFrom(f)
	if err != nil || m.Title() == "" {
		return ""
	}
	if m.Artist() != "" {
		return m.Artist() + " - " + m.Title()
	}
	return m.Title()
}

// canonical adapts a native decoder to 44.1kHz stereo
type canonical struct {
	dec       decoder
	title     string
	channels  int
	resampler *resample.Resampler

	native  []int16
	stereo  []int16
	out     []int16
	pending []int16
	empty   int
	err     error
}

func newCanonical(dec decoder, title string) (*canonical, error) {
	if dec.Channels() < 1 {
		dec.Close()
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, dec.Channels())
	}

	c := &canonical{
		dec:      dec,
		title:    title,
		channels: dec.Channels(),
	}
	if dec.SampleRate() != audio.CanonicalRate {
		c.resampler = resample.New(dec.SampleRate(), audio.CanonicalRate)
	}
	return c, nil
}

func (c *canonical) Read(samples []int16) (int, error) {
	samples = samples[:len(samples)&^1]
	if len(samples) == 0 {
		return 0, nil
	}

	for len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		c.fill(len(samples) / 2)
	}

	n := copy(samples, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// fill decodes about frames frames into pending
func (c *canonical) fill(frames int) {
	want := frames * c.channels
	if cap(c.native) < want {
		c.native = make([]int16, want)
	}

	n, err := c.dec.Read(c.native[:want])
	if err != nil {
		c.err = err
	}
	n -= n % c.channels
	if n == 0 {
		c.empty++
		if c.err == nil && c.empty >= maxEmptyReads {
			c.err = io.ErrNoProgress
		}
		return
	}
	c.empty = 0

	c.stereo = audio.ToStereo(c.stereo[:0], c.native[:n], c.channels)

	if c.resampler == nil {
		c.pending = c.stereo
		return
	}

	out, rerr := c.resampler.AdaptInto(c.out[:0], c.stereo)
	if rerr != nil {
		c.err = rerr
		return
	}
	c.out = out
	c.pending = c.out
}

func (c *canonical) Title() string { return c.title }

func (c *canonical) Close() error { return c.dec.Close() }

// Pump copies src into w in chunks of chunkFrames until EOF or ctx is done
func Pump(ctx context.Context, src Source, w Writer, chunkFrames int) error {
	if chunkFrames <= 0 {
		chunkFrames = audio.CanonicalRate / 10
	}
	buf := make([]int16, chunkFrames*audio.CanonicalChannels)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := src.Read(buf)
		if n > 0 {
			if werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write to sink: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", src.Title(), err)
		}
	}
}
