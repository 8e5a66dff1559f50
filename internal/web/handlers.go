package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medcal/internal/backend"
	"medcal/internal/course"
	"medcal/internal/ics"
	appLog "medcal/internal/log"
	"medcal/internal/model"
	"medcal/internal/tz"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents returns the current event set.
//
// GET /api/events?from=2024-01-01&to=2024-01-31
//   - from, to: optional dates in the user's offset; events overlapping
//     [from 00:00, to+1 00:00) are returned.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.cal.Snapshot()
	offset := s.cal.OffsetMinutes()
	zone := tz.Zone(offset)

	q := r.URL.Query()
	from, err := parseDayBound(q.Get("from"), offset, 0)
	if err != nil {
		writeFieldError(w, "from", err.Error())
		return
	}
	to, err := parseDayBound(q.Get("to"), offset, 1)
	if err != nil {
		writeFieldError(w, "to", err.Error())
		return
	}

	dtos := make([]eventDTO, 0, len(snap.Events))
	for _, ev := range snap.Events {
		if !from.IsZero() && !ev.EndDate.After(from) {
			continue
		}
		if !to.IsZero() && !ev.StartDate.Before(to) {
			continue
		}
		dtos = append(dtos, eventDTO{
			Event:      ev,
			StartLocal: ev.StartDate.In(zone).Format(localLayout),
			EndLocal:   ev.EndDate.In(zone).Format(localLayout),
		})
	}

	resp := eventsResponse{
		Events:          dtos,
		Version:         snap.Version,
		DisplayTimeZone: zone.String(),
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt.UTC()
		resp.UpdatedAt = &t
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	for _, sk := range snap.Skipped {
		resp.Skipped = append(resp.Skipped, skippedDTO{
			CourseID: sk.CourseID,
			Field:    sk.Field,
			Error:    sk.Err.Error(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// parseDayBound turns a YYYY-MM-DD in the user's offset into the UTC
// instant of that day's midnight, plus addDays.
func parseDayBound(v string, offsetMinutes, addDays int) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a date (want YYYY-MM-DD)", v)
	}
	return tz.ToCanonicalUTC(d.AddDate(0, 0, addDays), offsetMinutes), nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.cal.Refresh(r.Context()); err != nil {
		writeBackendError(w, err)
		return
	}
	snap := s.cal.Snapshot()
	writeJSON(w, http.StatusOK, refreshResponse{
		Version: snap.Version,
		Events:  len(snap.Events),
		Skipped: len(snap.Skipped),
	})
}

// handleCreateCourse validates and submits a new course.
//
// Dates are wall-clock values in the user's offset ("2024-01-01T08:00").
// With drug_id set, unset fields are taken from that catalog entry.
func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	var req createCourseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse JSON")
		return
	}

	sub := course.Submission{IsActive: true}
	if req.DrugID != "" {
		d, err := s.findDrug(r, req.DrugID)
		if err != nil {
			writeBackendError(w, err)
			return
		}
		if d == nil {
			writeFieldError(w, "drug_id", "no such drug")
			return
		}
		sub = course.FromDrug(*d)
	}

	if req.NameDrug != "" {
		sub.NameDrug = req.NameDrug
	}
	if req.Dosage != nil {
		sub.Dosage = *req.Dosage
	}
	if req.Frequency != nil {
		sub.Frequency = *req.Frequency
	}
	if req.Interval != nil {
		sub.Interval = *req.Interval
	}
	if req.Description != "" {
		sub.Description = req.Description
	}
	if req.IsActive != nil {
		sub.IsActive = *req.IsActive
	}
	sub.StartSchedule = req.StartSchedule

	var err error
	if req.StartDatetime != "" {
		if sub.StartDatetime, err = tz.ParseLocal(req.StartDatetime); err != nil {
			writeFieldError(w, "start_datetime", err.Error())
			return
		}
	}
	if req.EndDatetime != "" {
		if sub.EndDatetime, err = tz.ParseLocal(req.EndDatetime); err != nil {
			writeFieldError(w, "end_datetime", err.Error())
			return
		}
	}

	rec, err := s.cal.Submit(r.Context(), sub)
	if err != nil {
		var ve *course.ValidationError
		if errors.As(err, &ve) {
			writeFieldError(w, ve.Field, ve.Error())
			return
		}
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) findDrug(r *http.Request, id model.ID) (*model.Drug, error) {
	drugs, err := s.drugs.Drugs(r.Context())
	if err != nil {
		return nil, err
	}
	for i := range drugs {
		if drugs[i].ID == id {
			return &drugs[i], nil
		}
	}
	return nil, nil
}

func (s *Server) handleListDrugs(w http.ResponseWriter, r *http.Request) {
	drugs, err := s.drugs.Drugs(r.Context())
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drugs)
}

func (s *Server) handleCreateDrug(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeDrugInput(w, r)
	if !ok {
		return
	}
	d, err := s.drugs.CreateDrug(r.Context(), in)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDrug(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeDrugInput(w, r)
	if !ok {
		return
	}
	d, err := s.drugs.UpdateDrug(r.Context(), model.ID(chi.URLParam(r, "id")), in)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDrug(w http.ResponseWriter, r *http.Request) {
	if err := s.drugs.DeleteDrug(r.Context(), model.ID(chi.URLParam(r, "id"))); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeDrugInput(w http.ResponseWriter, r *http.Request) (model.DrugInput, bool) {
	var in model.DrugInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse JSON")
		return in, false
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		writeFieldError(w, "name", "must not be empty")
	case !(in.Dosage > 0):
		writeFieldError(w, "dosage", "must be greater than 0")
	case in.Frequency < 1:
		writeFieldError(w, "frequency", "must be at least 1")
	case !(in.Interval > 0):
		writeFieldError(w, "interval", "must be greater than 0 hours")
	default:
		return in, true
	}
	return in, false
}

// handleICS serves the event set as an iCalendar feed. The snapshot
// version doubles as the ETag.
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	snap := s.cal.Snapshot()
	etag := fmt.Sprintf(`"v%d"`, snap.Version)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, snap.Events, ics.Options{Name: s.cfg.CalendarName, Stamp: snap.UpdatedAt}); err != nil {
		appLog.Error("ics encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// writeBackendError maps backend failures onto API statuses.
func writeBackendError(w http.ResponseWriter, err error) {
	var (
		se *backend.SubmissionError
		fe *backend.FetchError
	)
	switch {
	case errors.Is(err, backend.ErrNotAuthenticated), errors.Is(err, backend.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &se):
		if se.Status == http.StatusForbidden {
			writeError(w, http.StatusForbidden, se.Error())
			return
		}
		writeError(w, http.StatusBadGateway, se.Error())
	case errors.As(err, &fe):
		writeError(w, http.StatusBadGateway, fe.Error())
	default:
		appLog.Error("unexpected API error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
