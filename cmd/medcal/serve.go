package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"medcal/internal/calendar"
	"medcal/internal/gcal"
	appLog "medcal/internal/log"
	"medcal/internal/web"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the calendar over HTTP and refresh it on schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		appLog.Info("medcal starting", "version", version)

		a, err := login(ctx)
		if err != nil {
			return err
		}
		if serveListen != "" {
			a.cfg.Listen = serveListen
		}

		if a.cfg.GoogleCalendar.Enabled {
			syncer, err := newSyncer(ctx, a)
			if err != nil {
				return err
			}
			go runGoogleSync(ctx, a.store, syncer)
		}

		// A failed first fetch is not fatal: the scheduler retries and
		// the API reports the error.
		if err := a.store.Refresh(ctx); err != nil {
			appLog.Warn("initial refresh failed", "err", err)
		}

		sched, err := calendar.NewScheduler(a.cfg.RefreshCron, a.store, a.cfg.RequestTimeout())
		if err != nil {
			return err
		}
		sched.Start(ctx)

		srv := &http.Server{
			Addr:              a.cfg.Listen,
			Handler:           web.NewServer(a.cfg, a.store, a.client, a.client).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			appLog.Info("starting HTTP server", "listen", "http://"+a.cfg.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			appLog.Info("signal received, shutting down")
		case err := <-errCh:
			if err != nil {
				sched.Stop(context.Background())
				return err
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("http shutdown failed", err)
		}
		sched.Stop(shutdownCtx)
		a.client.Logout()

		appLog.Info("medcal exiting")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "HTTP listen address (overrides config if set)")
}

func newSyncer(ctx context.Context, a *app) (*gcal.Syncer, error) {
	gc := a.cfg.GoogleCalendar
	hc, err := gcal.ClientFromFiles(ctx, gc.CredentialsFile, gc.TokenFile, os.Stdin, os.Stdout)
	if err != nil {
		return nil, err
	}
	return gcal.New(ctx, hc, gc.CalendarID)
}

// runGoogleSync pushes the event set to Google after each applied
// refresh. Refreshes arriving during a sync collapse into one more run.
func runGoogleSync(ctx context.Context, store *calendar.Store, syncer *gcal.Syncer) {
	pending := make(chan struct{}, 1)
	unsubscribe := store.Subscribe(func(snap calendar.Snapshot) {
		if snap.Err != nil {
			return
		}
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pending:
			snap := store.Snapshot()
			if _, err := syncer.Sync(ctx, snap.Events); err != nil {
				appLog.Warn("google sync interrupted", "err", err)
			}
		}
	}
}
