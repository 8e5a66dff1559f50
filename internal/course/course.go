package course

import (
	"fmt"
	"strings"
	"time"

	"medcal/internal/model"
	"medcal/internal/tz"
)

// Submission is a new course as entered by the user. StartDatetime and
// EndDatetime are wall-clock values in the user's offset.
type Submission struct {
	NameDrug      string    `json:"name_drug"`
	Dosage        float64   `json:"dosage"`
	Frequency     int       `json:"frequency"`
	Interval      float64   `json:"interval"`
	Description   string    `json:"description"`
	StartDatetime time.Time `json:"start_datetime"`
	EndDatetime   time.Time `json:"end_datetime"`
	StartSchedule string    `json:"start_schedule"`
	IsActive      bool      `json:"is_active"`
}

// ValidationError names the first submission field that failed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// FromDrug pre-fills a submission from a catalog entry, like picking a
// drug from the list instead of typing one.
func FromDrug(d model.Drug) Submission {
	return Submission{
		NameDrug:    d.Name,
		Dosage:      d.Dosage,
		Frequency:   d.Frequency,
		Interval:    d.Interval,
		Description: d.Description,
		IsActive:    true,
	}
}

// Prepare validates sub and converts it into the payload sent to
// POST /schedules. The offset is applied here and nowhere else.
func Prepare(sub Submission, userID model.ID, offsetMinutes int) (model.CoursePayload, error) {
	name := strings.TrimSpace(sub.NameDrug)
	if name == "" {
		return model.CoursePayload{}, &ValidationError{Field: "name_drug", Message: "must not be empty"}
	}
	if !(sub.Dosage > 0) {
		return model.CoursePayload{}, &ValidationError{Field: "dosage", Message: "must be greater than 0"}
	}
	if sub.Frequency < 1 {
		return model.CoursePayload{}, &ValidationError{Field: "frequency", Message: "must be at least 1"}
	}
	if !(sub.Interval > 0) {
		return model.CoursePayload{}, &ValidationError{Field: "interval", Message: "must be greater than 0 hours"}
	}
	if sub.StartDatetime.IsZero() {
		return model.CoursePayload{}, &ValidationError{Field: "start_datetime", Message: "is required"}
	}
	if sub.EndDatetime.IsZero() {
		return model.CoursePayload{}, &ValidationError{Field: "end_datetime", Message: "is required"}
	}

	start := tz.ToCanonicalUTC(sub.StartDatetime, offsetMinutes)
	end := tz.ToCanonicalUTC(sub.EndDatetime, offsetMinutes)
	if end.Before(start) {
		return model.CoursePayload{}, &ValidationError{Field: "end_datetime", Message: "must not be before start_datetime"}
	}

	if sub.StartSchedule != "" {
		if _, err := time.Parse("15:04", sub.StartSchedule); err != nil {
			return model.CoursePayload{}, &ValidationError{Field: "start_schedule", Message: "must be HH:MM"}
		}
	}

	return model.CoursePayload{
		UserID:        userID,
		NameDrug:      name,
		Dosage:        sub.Dosage,
		Frequency:     sub.Frequency,
		Interval:      sub.Interval,
		Description:   sub.Description,
		StartDatetime: start,
		EndDatetime:   end,
		StartSchedule: sub.StartSchedule,
		IsActive:      sub.IsActive,
	}, nil
}
