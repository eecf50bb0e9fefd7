package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gregLibert/sim-bootstrap/pkg/atmodem"
	"github.com/gregLibert/sim-bootstrap/pkg/csim"
)

const (
	transportPCSC   = "pcsc"
	transportSerial = "serial"
)

// Config is the YAML configuration file. Every field is optional.
type Config struct {
	Transport   string       `yaml:"transport"`
	Reader      string       `yaml:"reader"`
	Serial      SerialConfig `yaml:"serial"`
	BufferSize  int          `yaml:"buffer_size"`
	Listen      string       `yaml:"listen"`
	MetricsFile string       `yaml:"metrics_file"`
	LogFormat   string       `yaml:"log_format"`
	LogLevel    string       `yaml:"log_level"`
}

type SerialConfig struct {
	Port    string `yaml:"port"`
	Baud    int    `yaml:"baud"`
	Timeout string `yaml:"timeout"`

	timeout time.Duration
}

// LoadConfig reads path, or returns an empty config when path is empty.
// Defaults are applied by normalize, once command line overrides are in.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := decodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeConfig(r io.Reader) (*Config, error) {
	cfg := &Config{}

	d := yaml.NewDecoder(r)
	d.KnownFields(true)
	if err := d.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// normalize fills defaults and checks values.
func (c *Config) normalize() error {
	if c.Transport == "" {
		c.Transport = transportPCSC
	}
	switch c.Transport {
	case transportPCSC:
	case transportSerial:
		if c.Serial.Port == "" {
			return fmt.Errorf("serial transport needs serial.port")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, transportPCSC, transportSerial)
	}

	if c.Serial.Baud == 0 {
		c.Serial.Baud = atmodem.DefaultBaudRate
	}
	if c.Serial.Timeout == "" {
		c.Serial.timeout = atmodem.DefaultTimeout
	} else {
		d, err := time.ParseDuration(c.Serial.Timeout)
		if err != nil {
			return fmt.Errorf("could not parse serial timeout: %s", err)
		}
		c.Serial.timeout = d
	}

	if c.BufferSize == 0 {
		c.BufferSize = csim.RecordBufferMax
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("buffer_size %d is negative", c.BufferSize)
	}

	if c.Listen == "" {
		c.Listen = ":8001"
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want text or json)", c.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("unknown log_level %q", s)
	}
	return level, nil
}

// newLogger builds the process logger. verbose forces debug level.
func newLogger(c *Config, w io.Writer, verbose bool) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
