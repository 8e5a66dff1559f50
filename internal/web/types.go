package web

import (
	"time"

	"medcal/internal/model"
)

const localLayout = "2006-01-02T15:04"

// eventDTO adds the user's wall-clock times to an event.
type eventDTO struct {
	model.Event
	StartLocal string `json:"start_local"`
	EndLocal   string `json:"end_local"`
}

type skippedDTO struct {
	CourseID model.ID `json:"course_id"`
	Field    string   `json:"field"`
	Error    string   `json:"error"`
}

// eventsResponse is the JSON response shape for /api/events.
type eventsResponse struct {
	Events          []eventDTO   `json:"events"`
	Skipped         []skippedDTO `json:"skipped,omitempty"`
	UpdatedAt       *time.Time   `json:"updated_at,omitempty"`
	Version         uint64       `json:"version"`
	DisplayTimeZone string       `json:"display_timezone"`
	// Error is set when the latest refresh failed; Events are then the
	// last good set.
	Error string `json:"error,omitempty"`
}

type refreshResponse struct {
	Version uint64 `json:"version"`
	Events  int    `json:"events"`
	Skipped int    `json:"skipped"`
}

// createCourseRequest is the body of POST /api/courses. Pointers tell an
// explicit zero apart from "take it from the drug".
type createCourseRequest struct {
	DrugID        model.ID `json:"drug_id"`
	NameDrug      string   `json:"name_drug"`
	Dosage        *float64 `json:"dosage"`
	Frequency     *int     `json:"frequency"`
	Interval      *float64 `json:"interval"`
	Description   string   `json:"description"`
	StartDatetime string   `json:"start_datetime"`
	EndDatetime   string   `json:"end_datetime"`
	StartSchedule string   `json:"start_schedule"`
	IsActive      *bool    `json:"is_active"`
}
