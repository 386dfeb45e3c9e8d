package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bhandras/delaydeck/internal/obsws"
)

// isolate points HOME and XDG_CONFIG_HOME at empty temp dirs and clears
// every override.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, k := range []string{
		"DELAYDECK_HOST", "DELAYDECK_PORT", "DELAYDECK_PASSWORD", "OBS_WEBSOCKET_PASSWORD",
		"DELAYDECK_ENCODING", "DELAYDECK_CALL_TIMEOUT", "DELAYDECK_DATA_DIR",
		"DELAYDECK_PANEL_ADDR", "DELAYDECK_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	return home
}

func writeConfig(t *testing.T, home, body string) string {
	t.Helper()
	dir := filepath.Join(home, ".config", "delaydeck")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "localhost", cfg.Host)
	require.Equal(t, 4455, cfg.Port)
	require.Equal(t, obsws.EncodingJSON, cfg.Encoding)
	require.Equal(t, 10*time.Second, cfg.CallTimeout)
	require.Equal(t, filepath.Join(home, ".delaydeck"), cfg.DataDir)
	require.Equal(t, "127.0.0.1:4460", cfg.PanelAddr)
	require.Equal(t, "info", cfg.LogLevel)
	require.Empty(t, cfg.Path)
}

func TestLoadFromFile(t *testing.T) {
	home := isolate(t)
	path := writeConfig(t, home, `
host = "studio.local"
port = 4456
password = "from-file"
encoding = "msgpack"
call_timeout = "3s"
data_dir = "~/deck"
panel_addr = "0.0.0.0:8080"
log_level = "debug"
`)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, path, cfg.Path)
	require.Equal(t, "studio.local", cfg.Host)
	require.Equal(t, 4456, cfg.Port)
	require.Equal(t, "from-file", cfg.Password)
	require.Equal(t, obsws.EncodingMsgPack, cfg.Encoding)
	require.Equal(t, 3*time.Second, cfg.CallTimeout)
	require.Equal(t, filepath.Join(home, "deck"), cfg.DataDir)
	require.Equal(t, "0.0.0.0:8080", cfg.PanelAddr)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestEnvOverridesFile(t *testing.T) {
	home := isolate(t)
	writeConfig(t, home, `
port = 4456
password = "from-file"
`)
	t.Setenv("DELAYDECK_PORT", "4457")
	t.Setenv("OBS_WEBSOCKET_PASSWORD", "from-env")
	t.Setenv("DELAYDECK_ENCODING", "MsgPack")
	t.Setenv("DELAYDECK_CALL_TIMEOUT", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 4457, cfg.Port)
	require.Equal(t, "from-env", cfg.Password)
	require.Equal(t, obsws.EncodingMsgPack, cfg.Encoding)
	require.Equal(t, 250*time.Millisecond, cfg.CallTimeout)

	t.Setenv("DELAYDECK_PASSWORD", "primary")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "primary", cfg.Password)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "port not a number", env: map[string]string{"DELAYDECK_PORT": "abc"}},
		{name: "port out of range", env: map[string]string{"DELAYDECK_PORT": "70000"}},
		{name: "encoding", env: map[string]string{"DELAYDECK_ENCODING": "protobuf"}},
		{name: "timeout", env: map[string]string{"DELAYDECK_CALL_TIMEOUT": "soon"}},
		{name: "negative timeout", env: map[string]string{"DELAYDECK_CALL_TIMEOUT": "-1s"}},
		{name: "log level", env: map[string]string{"DELAYDECK_LOG_LEVEL": "loud"}},
		{name: "malformed file", file: "port = [1, 2"},
		{name: "file timeout", file: `call_timeout = "forever"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := isolate(t)
			if tc.file != "" {
				writeConfig(t, home, tc.file)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestLoadFileExplicitPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(path, []byte(`host = "10.0.0.2"`), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.2", cfg.Host)
	require.Equal(t, path, cfg.Path)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
