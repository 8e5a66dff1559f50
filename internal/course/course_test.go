package course

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcal/internal/model"
)

func validSubmission() Submission {
	return Submission{
		NameDrug:      "Ибупрофен",
		Dosage:        200,
		Frequency:     3,
		Interval:      8,
		StartDatetime: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		EndDatetime:   time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		StartSchedule: "09:00",
		IsActive:      true,
	}
}

func TestPrepareConvertsToUTCOnce(t *testing.T) {
	p, err := Prepare(validSubmission(), "u1", 180)
	require.NoError(t, err)

	assert.Equal(t, model.ID("u1"), p.UserID)
	assert.Equal(t, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC), p.StartDatetime)
	assert.Equal(t, time.Date(2024, 1, 5, 6, 0, 0, 0, time.UTC), p.EndDatetime)
}

func TestPrepareRejects(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*Submission)
		field string
	}{
		{"blank name", func(s *Submission) { s.NameDrug = "  " }, "name_drug"},
		{"zero dosage", func(s *Submission) { s.Dosage = 0 }, "dosage"},
		{"negative dosage", func(s *Submission) { s.Dosage = -1 }, "dosage"},
		{"zero frequency", func(s *Submission) { s.Frequency = 0 }, "frequency"},
		{"zero interval", func(s *Submission) { s.Interval = 0 }, "interval"},
		{"missing start", func(s *Submission) { s.StartDatetime = time.Time{} }, "start_datetime"},
		{"end before start", func(s *Submission) {
			s.EndDatetime = s.StartDatetime.Add(-time.Minute)
		}, "end_datetime"},
		{"bad schedule", func(s *Submission) { s.StartSchedule = "9 am" }, "start_schedule"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.edit(&sub)

			_, err := Prepare(sub, "u1", 0)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestPrepareReportsFirstFailingField(t *testing.T) {
	sub := validSubmission()
	sub.NameDrug = ""
	sub.Dosage = 0

	_, err := Prepare(sub, "u1", 0)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name_drug", verr.Field)
}

func TestPrepareSameInstantIsAllowed(t *testing.T) {
	sub := validSubmission()
	sub.EndDatetime = sub.StartDatetime
	_, err := Prepare(sub, "u1", 0)
	assert.NoError(t, err)
}

func TestFromDrug(t *testing.T) {
	sub := FromDrug(model.Drug{ID: "2", Name: "Парацетамол", Dosage: 500, Frequency: 2, Interval: 12})
	assert.Equal(t, "Парацетамол", sub.NameDrug)
	assert.Equal(t, 12.0, sub.Interval)
	assert.True(t, sub.IsActive)
}
