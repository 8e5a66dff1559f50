package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcal/internal/model"
)

func TestEncodeRoundTrip(t *testing.T) {
	events := []model.Event{
		{
			ID:        "5_course",
			CourseID:  "5",
			Kind:      model.KindCourse,
			Title:     "Курс: Aspirin",
			StartDate: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC),
		},
		{
			ID:        "5_2024-01-01_0",
			CourseID:  "5",
			Kind:      model.KindDose,
			Title:     "Приём: Aspirin",
			StartDate: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, events, Options{
		Name:  "Лекарства",
		Stamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))
	assert.NotContains(t, buf.String(), "RRULE")

	cal, err := ical.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)

	got := cal.Events()
	require.Len(t, got, 2)

	assert.Equal(t, "5_course@medcal", got[0].Id())
	start, err := got[0].GetStartAt()
	require.NoError(t, err)
	assert.True(t, start.Equal(events[0].StartDate))
	end, err := got[0].GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(events[0].EndDate))
	assert.Equal(t, "Курс: Aspirin", got[0].GetProperty(ical.ComponentPropertySummary).Value)

	assert.Equal(t, "5_2024-01-01_0@medcal", got[1].Id())
	assert.Equal(t, "dose", got[1].GetProperty(ical.ComponentPropertyCategories).Value)
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil, Options{}))
	assert.Contains(t, buf.String(), "BEGIN:VCALENDAR")
	assert.NotContains(t, buf.String(), "BEGIN:VEVENT")
}
