package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCalendarID string

var syncGoogleCmd = &cobra.Command{
	Use:   "sync-google",
	Short: "Push the current events into Google Calendar",
	Long: `Fetches courses, materializes them and upserts every event into a Google calendar.
Events medcal wrote earlier that are no longer scheduled are deleted.
On first use the consent link is printed and the authorization code is read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := login(ctx)
		if err != nil {
			return err
		}
		if syncCalendarID != "" {
			a.cfg.GoogleCalendar.CalendarID = syncCalendarID
		}
		if err := a.store.Refresh(ctx); err != nil {
			return err
		}

		syncer, err := newSyncer(ctx, a)
		if err != nil {
			return err
		}
		rep, err := syncer.Sync(ctx, a.store.Snapshot().Events)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created %d, updated %d, deleted %d, failed %d\n", rep.Created, rep.Updated, rep.Deleted, len(rep.Failed))
		for _, f := range rep.Failed {
			fmt.Fprintf(out, "  %v\n", f)
		}
		if rep.PruneErr != nil {
			fmt.Fprintf(out, "  stale events not removed: %v\n", rep.PruneErr)
		}
		if len(rep.Failed) > 0 {
			return fmt.Errorf("%d events failed to sync", len(rep.Failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncGoogleCmd)
	syncGoogleCmd.Flags().StringVarP(&syncCalendarID, "calendar-id", "c", "", "Google calendar id (overrides config)")
}
