package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	three := 3

	cfg := DefaultConfig()
	cfg.BackendURL = "https://api.example.com"
	cfg.Email = "anna@example.com"
	cfg.Password = "secret"
	cfg.TimezoneHours = &three
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	cfg.GoogleCalendar.Enabled = true
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: http://localhost:8000\nlog_level: loud\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, defaultRefresh, cfg.RefreshCron)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "primary", cfg.GoogleCalendar.CalendarID)
	assert.Nil(t, cfg.TimezoneHours)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		c.BackendURL = "https://api.example.com"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"missing backend": func(c *Config) { c.BackendURL = "" },
		"bad scheme":      func(c *Config) { c.BackendURL = "ftp://api.example.com" },
		"bad cron":        func(c *Config) { c.RefreshCron = "every so often" },
		"offset too far":  func(c *Config) { h := 15; c.TimezoneHours = &h },
		"half basic auth": func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "u"} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("MEDCAL_EMAIL=file@example.com\nMEDCAL_PASSWORD=from-file\n"), 0o600))

	t.Setenv("MEDCAL_BACKEND_URL", "http://backend:8000")
	t.Setenv("MEDCAL_PASSWORD", "from-env")
	t.Setenv("MEDCAL_TIMEZONE_HOURS", "-5")
	// godotenv sets these from the file; make sure they are restored.
	t.Setenv("MEDCAL_EMAIL", "")
	os.Unsetenv("MEDCAL_EMAIL")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(envFile))

	assert.Equal(t, "http://backend:8000", cfg.BackendURL)
	assert.Equal(t, "file@example.com", cfg.Email)
	assert.Equal(t, "from-env", cfg.Password)
	require.NotNil(t, cfg.TimezoneHours)
	assert.Equal(t, -5, *cfg.TimezoneHours)
}

func TestApplyEnvMissingFileIsFine(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.ApplyEnv(filepath.Join(t.TempDir(), "absent.env")))
}
