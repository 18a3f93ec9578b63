package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
listen: 0.0.0.0:8443
pkcs12: identity.p12
password: hunter2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Finalize())

	require.Equal(t, "0.0.0.0:8443", cfg.Listen)
	require.Equal(t, "identity.p12", cfg.PKCS12)
	require.Equal(t, "hunter2", cfg.Password)
	require.Equal(t, ".*", cfg.DestinationPattern)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "console", cfg.LogFormat)
}

func TestLoadAllFields(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
listen: 127.0.0.1:443
cert: cert.pem
key: key.pem
self_signed: true
self_signed_hosts: [gateway.internal]
destination_pattern: '.*\.internal:\d+'
log_level: debug
log_format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Finalize())
	require.True(t, cfg.SelfSigned)
	require.Equal(t, []string{"gateway.internal"}, cfg.SelfSignedHosts)
	require.Equal(t, `.*\.internal:\d+`, cfg.DestinationPattern)
	require.Equal(t, "json", cfg.LogFormat)
}

func TestLoadEmptyFile(t *testing.T) {
	t.Parallel()
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	require.Empty(t, cfg.Listen)
	// Defaults are left to Finalize so flags can still override.
	require.Empty(t, cfg.DestinationPattern)
	require.Empty(t, cfg.LogLevel)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := Load(writeConfig(t, "listen: :443\ntimeout: 30s\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestFinalizeValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{name: "PKCS12", cfg: Config{Listen: ":443", PKCS12: "id.p12"}, ok: true},
		{name: "PEM", cfg: Config{Listen: ":443", CertFile: "c", KeyFile: "k"}, ok: true},
		{name: "NoListen", cfg: Config{PKCS12: "id.p12"}},
		{name: "ListenWithoutPort", cfg: Config{Listen: "localhost", PKCS12: "id.p12"}},
		{name: "NoIdentity", cfg: Config{Listen: ":443"}},
		{name: "BothIdentities", cfg: Config{Listen: ":443", PKCS12: "id.p12", CertFile: "c", KeyFile: "k"}},
		{name: "CertWithoutKey", cfg: Config{Listen: ":443", CertFile: "c"}},
		{name: "SelfSignedPKCS12", cfg: Config{Listen: ":443", PKCS12: "id.p12", SelfSigned: true}},
		{name: "BadPattern", cfg: Config{Listen: ":443", PKCS12: "id.p12", DestinationPattern: "("}},
		{name: "BadLogFormat", cfg: Config{Listen: ":443", PKCS12: "id.p12", LogFormat: "xml"}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := tc.cfg
			err := cfg.Finalize()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := Default()
	require.Equal(t, ".*", cfg.DestinationPattern)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestConfigDirHonoursXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := GetConfigDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, AppName), got)
	require.Empty(t, DefaultPath())

	require.NoError(t, os.MkdirAll(got, 0o755))
	path := filepath.Join(got, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: :443\n"), 0o644))
	require.Equal(t, path, DefaultPath())
}
