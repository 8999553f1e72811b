package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration. Absent keys keep their
// defaults, so a config file only needs to name what it changes.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
}

// ServerConfig configures the render feed server.
type ServerConfig struct {
	Name             string   `json:"name" yaml:"name"`
	WebSocketAddr    string   `json:"websocket_addr,omitempty" yaml:"websocket_addr,omitempty"`
	QUICAddr         string   `json:"quic_addr,omitempty" yaml:"quic_addr,omitempty"`
	MaxViewers       int      `json:"max_viewers" yaml:"max_viewers"`
	FrameRate        int      `json:"frame_rate" yaml:"frame_rate"`
	KeyframeInterval uint64   `json:"keyframe_interval" yaml:"keyframe_interval"`
	WriteTimeout     Duration `json:"write_timeout" yaml:"write_timeout"`
	ReadTimeout      Duration `json:"read_timeout" yaml:"read_timeout"`
}

// SimulationConfig configures the game loop.
type SimulationConfig struct {
	TickRate  int     `json:"tick_rate" yaml:"tick_rate"`
	MoveSpeed float64 `json:"move_speed" yaml:"move_speed"`
	Templates string  `json:"templates,omitempty" yaml:"templates,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:             "openrts",
			WebSocketAddr:    "127.0.0.1:8080",
			QUICAddr:         "",
			MaxViewers:       1024,
			FrameRate:        30,
			KeyframeInterval: 300,
			WriteTimeout:     Duration(5 * time.Second),
			ReadTimeout:      Duration(time.Minute),
		},
		Simulation: SimulationConfig{
			TickRate:  20,
			MoveSpeed: 4,
			Templates: "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for values no component can run with.
func (c Config) Validate() error {
	if c.Server.FrameRate <= 0 {
		return fmt.Errorf("server: frame rate must be positive, got %d", c.Server.FrameRate)
	}
	if c.Server.MaxViewers <= 0 {
		return fmt.Errorf("server: max viewers must be positive, got %d", c.Server.MaxViewers)
	}
	if c.Server.WebSocketAddr == "" && c.Server.QUICAddr == "" {
		return errors.New("server: at least one listen address is required")
	}
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("simulation: tick rate must be positive, got %d", c.Simulation.TickRate)
	}
	if c.Simulation.MoveSpeed <= 0 {
		return fmt.Errorf("simulation: move speed must be positive, got %g", c.Simulation.MoveSpeed)
	}
	return nil
}

// Load reads a YAML configuration over the defaults. An empty reader
// yields the defaults unchanged.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML configuration file. A missing file is not an
// error; the defaults apply.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Load(file)
}

// Duration wraps time.Duration so config files can say "5s" or "250ms".
type Duration time.Duration

// Std returns the wrapped standard duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
