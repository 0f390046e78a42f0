package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.True(t, cfg.IMAP.Start)
	assert.False(t, cfg.SMTP.Start)
	assert.Equal(t, "INBOX", cfg.IMAP.Mailbox)

	window, err := cfg.Retention.GetWindow()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, window)

	interval, err := cfg.Retention.GetWakeInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, interval)

	delay, err := cfg.IMAP.GetReconnectDelay()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, delay)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[imap]
host = "mail.example.com"
user = "tampung@catty.my.id"
password = "secret"

[ingest]
domains = ["catty.my.id", "cattyprems.top"]
excluded_sender = "tampung@catty.my.id"

[retention]
window = "7d"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := NewDefaultConfig()
	require.NoError(t, Load(path, &cfg))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mail.example.com", cfg.IMAP.Host)
	assert.Equal(t, "mail.example.com:993", cfg.IMAP.Address())
	assert.Equal(t, []string{"catty.my.id", "cattyprems.top"}, cfg.Ingest.Domains)

	window, err := cfg.Retention.GetWindow()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, window)

	// Defaults survive for fields the file does not mention.
	assert.Equal(t, ":3001", cfg.HTTP.Addr)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, Load(filepath.Join(t.TempDir(), "absent.toml"), &cfg))
	assert.Equal(t, ":3001", cfg.HTTP.Addr)
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.IMAP.Host = "mail.example.com"
	cfg.IMAP.User = "tampung@catty.my.id"
	cfg.Ingest.Domains = []string{"catty.my.id"}
	require.NoError(t, cfg.Validate())

	t.Run("imap host required", func(t *testing.T) {
		bad := cfg
		bad.IMAP.Host = ""
		assert.Error(t, bad.Validate())
	})

	t.Run("domains required for ingestion", func(t *testing.T) {
		bad := cfg
		bad.Ingest.Domains = nil
		assert.Error(t, bad.Validate())
	})

	t.Run("bad duration rejected", func(t *testing.T) {
		bad := cfg
		bad.Retention.Window = "yesterday"
		assert.Error(t, bad.Validate())
	})

	t.Run("imap disabled skips host check", func(t *testing.T) {
		ok := cfg
		ok.IMAP.Start = false
		ok.IMAP.Host = ""
		assert.NoError(t, ok.Validate())
	})
}

func TestDatabaseGetPort(t *testing.T) {
	d := DatabaseConfig{Port: int64(5433)}
	port, err := d.GetPort()
	require.NoError(t, err)
	assert.Equal(t, "5433", port)

	d = DatabaseConfig{}
	port, err = d.GetPort()
	require.NoError(t, err)
	assert.Equal(t, "5432", port)

	d = DatabaseConfig{Port: "abc"}
	_, err = d.GetPort()
	assert.Error(t, err)
}
