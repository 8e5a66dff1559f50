package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"medcal/internal/model"
	"medcal/internal/tz"
)

var registerInput model.UserCreate

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a backend account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		u := registerInput
		if u.Email == "" {
			u.Email = cfg.Email
		}
		if u.Password == "" {
			u.Password = cfg.Password
		}
		if u.Email == "" || u.Password == "" {
			return errors.New("--email and --password are required")
		}
		if !cmd.Flags().Changed("timezone-hours") && cfg.TimezoneHours != nil {
			u.TimeZone = *cfg.TimezoneHours
		}
		if !tz.ValidOffsetHours(u.TimeZone) {
			return fmt.Errorf("--timezone-hours %d is outside [%d, %d]", u.TimeZone, tz.MinOffsetHours, tz.MaxOffsetHours)
		}
		u.IsActive = true

		client, err := newBackend(cfg)
		if err != nil {
			return err
		}
		created, err := client.Register(cmd.Context(), u)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered user %s (%s)\n", created.ID, created.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(registerCmd)
	f := registerCmd.Flags()
	f.StringVar(&registerInput.Email, "email", "", "Account email (defaults to config email)")
	f.StringVar(&registerInput.Password, "password", "", "Account password (defaults to config password)")
	f.StringVar(&registerInput.Username, "username", "", "Display name")
	f.IntVar(&registerInput.Age, "age", 0, "Age")
	f.BoolVar(&registerInput.Gender, "gender", false, "Gender flag as stored by the backend")
	f.Int64Var(&registerInput.TgID, "tg-id", 0, "Telegram user id")
	f.IntVar(&registerInput.TimeZone, "timezone-hours", 0, "UTC offset in whole hours")
}
