package gcal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	appLog "medcal/internal/log"
	"medcal/internal/model"
)

// Syncer pushes materialized events into one Google calendar.
type Syncer struct {
	svc        *calendar.Service
	calendarID string
}

// EventError is a per-event failure. The sync keeps going after one.
// For stale events that could not be deleted, EventID is the Google id.
type EventError struct {
	EventID string
	Err     error
}

func (e *EventError) Error() string {
	return fmt.Sprintf("event %s: %v", e.EventID, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

type Report struct {
	Created int
	Updated int
	Deleted int
	Failed  []*EventError
	// PruneErr is set when stale events could not be listed.
	PruneErr error
}

// Events written by medcal carry this private extended property so that
// pruning never touches anything else in the calendar.
const (
	ownerKey   = "medcal"
	ownerValue = "1"
)

// New builds a Syncer on an authorized client. Extra options are passed
// to the API client (tests use option.WithEndpoint).
func New(ctx context.Context, hc *http.Client, calendarID string, opts ...option.ClientOption) (*Syncer, error) {
	if calendarID == "" {
		calendarID = "primary"
	}
	opts = append([]option.ClientOption{option.WithHTTPClient(hc)}, opts...)
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	return &Syncer{svc: svc, calendarID: calendarID}, nil
}

// EventID maps an event id to a Google event id. Google only accepts
// base32hex characters, so the id is hashed; the mapping is stable, which
// makes repeated syncs update instead of duplicating.
func EventID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

// Sync inserts every event, updating those that already exist, then
// deletes medcal events that are no longer in the set. It returns an error
// only when ctx ends; individual failures are in the report.
func (s *Syncer) Sync(ctx context.Context, events []model.Event) (Report, error) {
	var rep Report
	want := make(map[string]struct{}, len(events))
	for _, ev := range events {
		want[EventID(ev.ID)] = struct{}{}
	}

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		ge := toGoogle(ev)
		_, err := s.svc.Events.Insert(s.calendarID, ge).Context(ctx).Do()
		if err == nil {
			rep.Created++
			continue
		}

		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
			_, err = s.svc.Events.Update(s.calendarID, ge.Id, ge).Context(ctx).Do()
			if err == nil {
				rep.Updated++
				continue
			}
		}

		appLog.Warn("gcal: event sync failed", "event_id", ev.ID, "err", err)
		rep.Failed = append(rep.Failed, &EventError{EventID: ev.ID, Err: err})
	}

	if err := s.prune(ctx, want, &rep); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return rep, ctxErr
		}
		appLog.Warn("gcal: listing stale events failed", "err", err)
		rep.PruneErr = err
	}

	appLog.Info("gcal: sync finished", "calendar", s.calendarID,
		"created", rep.Created, "updated", rep.Updated, "deleted", rep.Deleted, "failed", len(rep.Failed))
	return rep, nil
}

func (s *Syncer) prune(ctx context.Context, want map[string]struct{}, rep *Report) error {
	var stale []string
	err := s.svc.Events.List(s.calendarID).
		PrivateExtendedProperty(ownerKey+"="+ownerValue).
		ShowDeleted(false).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				if _, ok := want[item.Id]; !ok {
					stale = append(stale, item.Id)
				}
			}
			return nil
		})
	if err != nil {
		return err
	}

	for _, id := range stale {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.svc.Events.Delete(s.calendarID, id).Context(ctx).Do()
		var gerr *googleapi.Error
		if err != nil && !(errors.As(err, &gerr) && gerr.Code == http.StatusGone) {
			appLog.Warn("gcal: stale event delete failed", "google_id", id, "err", err)
			rep.Failed = append(rep.Failed, &EventError{EventID: id, Err: err})
			continue
		}
		rep.Deleted++
	}
	return nil
}

func toGoogle(ev model.Event) *calendar.Event {
	return &calendar.Event{
		Id:          EventID(ev.ID),
		Summary:     ev.Title,
		Description: fmt.Sprintf("medcal %s (course %s)", ev.ID, ev.CourseID),
		Start: &calendar.EventDateTime{
			DateTime: ev.StartDate.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: ev.EndDate.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{ownerKey: ownerValue},
		},
	}
}
