package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	appLog "medcal/internal/log"
	"medcal/internal/tz"
)

const (
	defaultListen  = "127.0.0.1:8080"
	defaultRefresh = "*/15 * * * *"
	defaultTimeout = 15
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the local API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// GoogleCalendarConfig enables pushing events into a Google calendar.
type GoogleCalendarConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// CredentialsFile is the OAuth client secret downloaded from the
	// Google Cloud console.
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
	TokenFile       string `yaml:"token_file" json:"token_file"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local API.
	Listen string `yaml:"listen" json:"listen"`

	// BackendURL is the base URL of the medication backend.
	BackendURL string `yaml:"backend_url" json:"backend_url"`

	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"-"`

	// TimezoneHours overrides the UTC offset from the user's profile.
	TimezoneHours *int `yaml:"timezone_hours,omitempty" json:"timezone_hours,omitempty"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") for
	// re-fetching courses.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" json:"request_timeout_seconds"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CalendarName is the title of the exported ICS feed.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	GoogleCalendar GoogleCalendarConfig `yaml:"google_calendar" json:"google_calendar"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                defaultListen,
		RefreshCron:           defaultRefresh,
		RequestTimeoutSeconds: defaultTimeout,
		LogLevel:              "info",
		CalendarName:          "Лекарства",
		GoogleCalendar: GoogleCalendarConfig{
			CalendarID:      "primary",
			CredentialsFile: "credentials.json",
			TokenFile:       "token.json",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = defaultTimeout
	}
	if _, ok := appLog.ParseLevel(c.LogLevel); !ok {
		c.LogLevel = "info"
	}
	if c.CalendarName == "" {
		c.CalendarName = "Лекарства"
	}
	if c.GoogleCalendar.CalendarID == "" {
		c.GoogleCalendar.CalendarID = "primary"
	}
	if c.GoogleCalendar.CredentialsFile == "" {
		c.GoogleCalendar.CredentialsFile = "credentials.json"
	}
	if c.GoogleCalendar.TokenFile == "" {
		c.GoogleCalendar.TokenFile = "token.json"
	}
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("backend_url is required")
	}
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("backend_url %q is not an http(s) URL", c.BackendURL)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("refresh %q: %w", c.RefreshCron, err)
	}
	if c.TimezoneHours != nil && !tz.ValidOffsetHours(*c.TimezoneHours) {
		return fmt.Errorf("timezone_hours %d is outside [%d, %d]", *c.TimezoneHours, tz.MinOffsetHours, tz.MaxOffsetHours)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		return errors.New("basic_auth needs both username and password")
	}
	return nil
}

// RequestTimeout is RequestTimeoutSeconds as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ApplyEnv loads envFile (if it exists) into the process environment and
// lets MEDCAL_* variables override file settings. Variables already set
// in the environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv("MEDCAL_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("MEDCAL_EMAIL"); v != "" {
		c.Email = v
	}
	if v := os.Getenv("MEDCAL_PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("MEDCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("MEDCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MEDCAL_TIMEZONE_HOURS"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MEDCAL_TIMEZONE_HOURS=%q: %w", v, err)
		}
		c.TimezoneHours = &h
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path. On first run (no
// file) a default config is written with 0600 permissions and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".medcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
