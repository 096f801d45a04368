// ABOUTME: Command-line and environment configuration for resonate-sink
// ABOUTME: Merges flags, RESONATE_SINK_* variables, .env and an optional config file
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides
const EnvPrefix = "RESONATE_SINK"

// ListAlias is accepted as a device name meaning "list devices"
const ListAlias = "?"

// Backends the CLI knows how to build
var Backends = []string{"malgo", "oto", "portaudio", "file", "null"}

// ErrHelp is returned when -h or --help was requested
var ErrHelp = pflag.ErrHelp

type Config struct {
	List        bool          `mapstructure:"list"`
	Device      string        `mapstructure:"device"`
	Backend     string        `mapstructure:"backend"`
	BufferMs    int           `mapstructure:"buffer-ms"`
	PushTimeout time.Duration `mapstructure:"push-timeout"`

	File     string        `mapstructure:"file"`
	Tone     float64       `mapstructure:"tone"`
	Duration time.Duration `mapstructure:"duration"`

	Listen    string `mapstructure:"listen"`
	Advertise bool   `mapstructure:"advertise"`
	Name      string `mapstructure:"name"`

	WavOut   string `mapstructure:"wav-out"`
	NullRate int    `mapstructure:"null-rate"`

	LogLevel string `mapstructure:"log-level"`
	LogFile  string `mapstructure:"log-file"`
	NoTUI    bool   `mapstructure:"no-tui"`
}

// Flags builds the flag set the CLI parses
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("resonate-sink", pflag.ContinueOnError)

	fs.Bool("list", false, "List output devices and exit")
	fs.String("device", "", `Output device name ("default" or empty for the system default, "?" to list)`)
	fs.String("backend", "malgo", "Audio backend: "+strings.Join(Backends, ", "))
	fs.Int("buffer-ms", 100, "Transfer buffer size in milliseconds")
	fs.Duration("push-timeout", 0, "Give up on a blocked write after this long (0 waits forever)")

	fs.String("file", "", "Play an mp3, wav or ogg file")
	fs.Float64("tone", 0, "Play a sine tone at this frequency in Hz")
	fs.Duration("duration", 0, "Stop playback after this long (0 plays to the end)")

	fs.String("listen", "", "Serve the websocket PCM ingest on this address")
	fs.Bool("advertise", false, "Advertise the ingest endpoint via mDNS")
	fs.String("name", "", "mDNS service name (default: hostname-resonate-sink)")

	fs.String("wav-out", "resonate-sink.wav", "Capture path for the file backend")
	fs.Int("null-rate", 48000, "Device rate for the null backend")

	fs.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	fs.String("log-file", "resonate-sink.log", "Log file path (empty disables file logging)")
	fs.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	fs.String("config", "", "Optional YAML/TOML/JSON config file")

	return fs
}

// Load parses args and layers environment, .env and config file values
// underneath them. Explicit flags win over everything else.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Device == ListAlias {
		cfg.List = true
		cfg.Device = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	known := false
	for _, b := range Backends {
		if c.Backend == b {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(Backends, ", "))
	}

	if c.BufferMs <= 0 {
		return fmt.Errorf("buffer-ms must be positive, got %d", c.BufferMs)
	}
	if c.PushTimeout < 0 || c.Duration < 0 {
		return errors.New("durations must not be negative")
	}
	if c.File != "" && c.Tone > 0 {
		return errors.New("file and tone are mutually exclusive")
	}
	if c.Tone < 0 {
		return fmt.Errorf("tone frequency must be positive, got %g", c.Tone)
	}
	if c.Backend == "null" && c.NullRate <= 0 {
		return fmt.Errorf("null-rate must be positive, got %d", c.NullRate)
	}
	if c.Backend == "file" && c.WavOut == "" {
		return errors.New("file backend needs wav-out")
	}
	return nil
}

// UseTUI reports whether the status view should own the terminal
func (c *Config) UseTUI() bool {
	return !c.NoTUI && !c.List
}

// HasSource reports whether something local will feed the sink
func (c *Config) HasSource() bool {
	return c.File != "" || c.Tone > 0
}

// ServiceName returns the mDNS instance name
func (c *Config) ServiceName() string {
	if c.Name != "" {
		return c.Name
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-resonate-sink", hostname)
}
