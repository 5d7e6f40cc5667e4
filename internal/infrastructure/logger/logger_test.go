package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigs(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)

	prod := ProductionConfig()
	assert.Equal(t, "json", prod.Format)
	assert.NotEmpty(t, prod.TimeFormat)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "default config", cfg: DefaultConfig()},
		{name: "production config", cfg: ProductionConfig()},
		{name: "nil config", cfg: nil},
		{name: "stderr", cfg: &Config{Level: "debug", Format: "json", Output: "stderr"}},
		{name: "unknown level", cfg: &Config{Level: "verbose"}, wantErr: true},
		{name: "unwritable file", cfg: &Config{Output: "/nonexistent/dir/app.log"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNew_FileOutputWithService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconcile.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path, Service: "quota-reconciler"})
	require.NoError(t, err)

	l.Info("started")
	Sync(l)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "started", entry["msg"])
	assert.Equal(t, "quota-reconciler", entry["service"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_TeesExtraCores(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l, err := New(&Config{
		Level:   "info",
		Format:  "json",
		Output:  filepath.Join(t.TempDir(), "reconcile.log"),
		Service: "quota-reconciler",
		Cores:   []zapcore.Core{core},
	})
	require.NoError(t, err)

	l.Info("reconciled")
	l.Warn("quota missing")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "quota missing", entry.Message)
	assert.Equal(t, "quota-reconciler", entry.ContextMap()["service"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for input, want := range tests {
		got, err := parseLevel(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, input)
	}
}

func TestNewForEnvironment(t *testing.T) {
	l, err := NewForEnvironment("production")
	require.NoError(t, err)
	assert.NotNil(t, l)
}
