package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"medcal/internal/backend"
	"medcal/internal/calendar"
	"medcal/internal/config"
	appLog "medcal/internal/log"
	"medcal/internal/tz"
)

var (
	configPath string
	envFile    string
)

var rootCmd = &cobra.Command{
	Use:           "medcal",
	Short:         "Medication schedule calendar client",
	Long:          `medcal logs in to the medication backend, turns courses into calendar events and serves them locally, as an ICS feed, or pushes them to Google Calendar.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "medcal.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional .env file with MEDCAL_* variables")
}

// loadConfig reads the config file and environment and applies the log
// level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ApplyEnv(envFile); err != nil {
		return nil, err
	}
	if lvl, ok := appLog.ParseLevel(cfg.LogLevel); ok {
		appLog.SetLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

func newBackend(cfg *config.Config) (*backend.Client, error) {
	return backend.New(cfg.BackendURL, backend.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}))
}

// app is everything a logged-in command needs.
type app struct {
	cfg    *config.Config
	client *backend.Client
	sess   *backend.Session
	store  *calendar.Store
}

func login(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, errors.New("email and password are required (config or MEDCAL_EMAIL / MEDCAL_PASSWORD)")
	}

	client, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	sess, err := client.Login(ctx, cfg.Email, cfg.Password)
	if err != nil {
		return nil, err
	}

	hours := sess.User.Timezone
	if cfg.TimezoneHours != nil {
		hours = cfg.TimezoneHours
	}
	offset := tz.OffsetMinutes(hours)

	appLog.Info("effective config",
		"backend_url", cfg.BackendURL,
		"user_id", sess.User.ID,
		"offset_minutes", offset,
		"refresh", cfg.RefreshCron,
		"superuser", sess.User.IsSuperuser,
	)

	return &app{
		cfg:    cfg,
		client: client,
		sess:   sess,
		store:  calendar.NewStore(client, sess.User.ID, offset),
	}, nil
}
