package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMemFs(t *testing.T) afero.Fs {
	t.Helper()
	orig := AppFs
	fs := afero.NewMemMapFs()
	AppFs = fs
	t.Cleanup(func() { AppFs = orig })
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	withMemFs(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "litesql.db", cfg.Database)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.CheckoutTimeout)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.EngineOptions())
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	fs := withMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/litesql/config.yaml", []byte(`
database: /var/lib/app.db
pool_size: 8
checkout_timeout: 250ms
busy_timeout_ms: 1500
`), 0o644))
	t.Setenv("LITESQL_POOL_SIZE", "2")

	cfg, err := Load("/etc/litesql/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/app.db", cfg.Database)
	assert.Equal(t, 2, cfg.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.CheckoutTimeout)
	assert.Equal(t, "/etc/litesql/config.yaml", cfg.File)

	opts, err := ParseOptions(cfg.EngineOptions())
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, opts.BusyTimeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	withMemFs(t)
	_, err := Load("/nope.yaml")
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	fs := withMemFs(t)
	require.NoError(t, afero.WriteFile(fs, ".env", []byte("LITESQL_LOG_LEVEL=debug\nLITESQL_RETRY_ATTEMPTS=9\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, ".env.local", []byte("LITESQL_RETRY_ATTEMPTS=3\n"), 0o644))
	t.Setenv("LITESQL_LOG_LEVEL", "error")
	t.Setenv("LITESQL_RETRY_ATTEMPTS", "")
	os.Unsetenv("LITESQL_RETRY_ATTEMPTS")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 3, cfg.RetryAttempts)
}

func TestSave(t *testing.T) {
	fs := withMemFs(t)

	path, err := Save(&Config{Database: "app.db", PoolSize: 3, CheckoutTimeout: time.Second, LogLevel: "info", AuthToken: "secret"})
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "database: app.db")
	assert.NotContains(t, string(data), "secret")
}
