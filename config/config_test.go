package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TICKET_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Empty(t, cfg.Events.URL)
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A YAML file and an environment override for the DSN
	// THEN: The file sets what the environment doesn't

	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "ticketing.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
  shutdown_timeout: 5s
  allowed_origins: ["https://ops.example.com"]
database:
  driver: mysql
  dsn: "user:pw@tcp(db:3306)/tickets"
events:
  exchange: fair.events
`), 0o600))
	t.Setenv("TICKET_DB_DSN", "user:pw@tcp(other:3306)/tickets")
	t.Setenv("AMQP_URL", "amqp://guest:guest@mq:5672/")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, []string{"https://ops.example.com"}, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "user:pw@tcp(other:3306)/tickets", cfg.Database.DSN)
	assert.Equal(t, "fair.events", cfg.Events.Exchange)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.Events.URL)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("TICKET_CONFIG", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TICKET_HTTP_ADDR=:7070\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TICKET_HTTP_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
}

func TestLoad_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TICKET_CONFIG", "")

	_, err := Load("does-not-exist.yaml")
	assert.Error(t, err, "an explicitly named file must exist")

	t.Setenv("TICKET_DB_DRIVER", "postgres")
	_, err = Load("")
	assert.ErrorContains(t, err, "unsupported database driver")
}
