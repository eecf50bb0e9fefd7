package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	cfg, err := decodeConfig(strings.NewReader(`
transport: serial
serial:
  port: /dev/ttyUSB2
  baud: 921600
  timeout: 2s
buffer_size: 261
listen: 127.0.0.1:9100
metrics_file: /var/lib/node_exporter/sim_bootstrap.prom
log_format: json
log_level: debug
`))
	require.NoError(t, err)
	require.NoError(t, cfg.normalize())

	assert.Equal(t, transportSerial, cfg.Transport)
	assert.Equal(t, "/dev/ttyUSB2", cfg.Serial.Port)
	assert.Equal(t, 921600, cfg.Serial.Baud)
	assert.Equal(t, 2*time.Second, cfg.Serial.timeout)
	assert.Equal(t, 261, cfg.BufferSize)
	assert.Equal(t, "127.0.0.1:9100", cfg.Listen)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestDecodeConfig_Defaults(t *testing.T) {
	cfg, err := decodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.NoError(t, cfg.normalize())

	assert.Equal(t, transportPCSC, cfg.Transport)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, 5*time.Second, cfg.Serial.timeout)
	assert.Equal(t, 517, cfg.BufferSize)
	assert.Equal(t, ":8001", cfg.Listen)
}

func TestDecodeConfig_UnknownField(t *testing.T) {
	_, err := decodeConfig(strings.NewReader("transport: pcsc\nbaud: 9600\n"))
	assert.ErrorContains(t, err, "baud")
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"Unknown transport", Config{Transport: "usb"}, "unknown transport"},
		{"Serial without port", Config{Transport: transportSerial}, "serial.port"},
		{"Bad timeout", Config{Serial: SerialConfig{Timeout: "soon"}}, "serial timeout"},
		{"Negative buffer", Config{BufferSize: -1}, "buffer_size"},
		{"Bad level", Config{LogLevel: "loud"}, "log_level"},
		{"Bad format", Config{LogFormat: "xml"}, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.ErrorContains(t, cfg.normalize(), tt.want)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reader: ACS ACR39U\n"), 0o600))

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ACS ACR39U", cfg.Reader)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf, false)
	logger.Info("hidden")
	logger.Warn("shown", "sw", "6A82")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"sw":"6A82"`)

	buf.Reset()
	logger = newLogger(&Config{LogLevel: "warn"}, &buf, true)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	logger.Debug("trace", "cmd", "0070000001")
	assert.Contains(t, buf.String(), "cmd=0070000001")
}
