package schedule

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcal/internal/model"
)

func aspirin() model.CourseRecord {
	return model.CourseRecord{
		ID:            "5",
		NameDrug:      "Aspirin",
		StartDatetime: "2024-01-01T08:00:00Z",
		EndDatetime:   "2024-01-03T08:00:00Z",
		ScheduleTimes: []model.DaySchedule{{
			Date: "2024-01-01",
			Appointments: []model.Appointment{
				{Start: "2024-01-01T08:00:00Z", End: "2024-01-01T08:30:00Z"},
			},
		}},
	}
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestAspirinExample(t *testing.T) {
	res := Materialize([]model.CourseRecord{aspirin()})
	require.Empty(t, res.Skipped)
	require.Len(t, res.Events, 2)

	course := res.Events[0]
	assert.Equal(t, "5_course", course.ID)
	assert.Equal(t, "Курс: Aspirin", course.Title)
	assert.Equal(t, model.KindCourse, course.Kind)
	assert.Equal(t, utc("2024-01-01T08:00:00Z"), course.StartDate)
	assert.Equal(t, utc("2024-01-03T08:00:00Z"), course.EndDate)

	dose := res.Events[1]
	assert.Equal(t, "5_2024-01-01_0", dose.ID)
	assert.Equal(t, "Приём: Aspirin", dose.Title)
	assert.Equal(t, model.KindDose, dose.Kind)
	assert.Equal(t, model.ID("5"), dose.CourseID)
	assert.Equal(t, utc("2024-01-01T08:00:00Z"), dose.StartDate)
	assert.Equal(t, utc("2024-01-01T08:30:00Z"), dose.EndDate)
}

func TestSingleDoseBelowOneDay(t *testing.T) {
	rec := model.CourseRecord{
		ID:            "7",
		NameDrug:      "Ибупрофен",
		StartDatetime: "2024-03-10T09:00:00Z",
		EndDatetime:   "2024-03-11T08:59:59Z",
		// Ignored for single doses.
		ScheduleTimes: aspirin().ScheduleTimes,
	}
	res := Materialize([]model.CourseRecord{rec})
	require.Len(t, res.Events, 1)
	assert.Equal(t, "7_single", res.Events[0].ID)
	assert.Equal(t, "Приём: Ибупрофен", res.Events[0].Title)
	assert.Equal(t, model.KindSingle, res.Events[0].Kind)
}

func TestExactlyOneDayIsCourse(t *testing.T) {
	rec := model.CourseRecord{
		ID:            "8",
		NameDrug:      "X",
		StartDatetime: "2024-03-10T09:00:00Z",
		EndDatetime:   "2024-03-11T09:00:00Z",
	}
	res := Materialize([]model.CourseRecord{rec})
	require.Len(t, res.Events, 1)
	assert.Equal(t, "8_course", res.Events[0].ID)
}

func TestCourseWithoutScheduleTimes(t *testing.T) {
	rec := aspirin()
	rec.ScheduleTimes = nil
	res := Materialize([]model.CourseRecord{rec})
	require.Len(t, res.Events, 1)
	assert.Equal(t, "5_course", res.Events[0].ID)
}

func TestDedupAcrossDays(t *testing.T) {
	rec := aspirin()
	rec.ScheduleTimes = append(rec.ScheduleTimes, model.DaySchedule{
		Date: "2024-01-02",
		Appointments: []model.Appointment{
			{Start: "2024-01-01T08:00:00Z", End: "2024-01-01T08:30:00Z"},
			{Start: "2024-01-02T08:00:00Z", End: "2024-01-02T08:30:00Z"},
		},
	})

	res := Materialize([]model.CourseRecord{rec})
	ids := eventIDs(res.Events)
	assert.Equal(t, []string{"5_course", "5_2024-01-01_0", "5_2024-01-02_1"}, ids)
}

func TestRepeatedDateKeepsIDsUnique(t *testing.T) {
	rec := aspirin()
	rec.ScheduleTimes = append(rec.ScheduleTimes, model.DaySchedule{
		Date: "2024-01-01",
		Appointments: []model.Appointment{
			{Start: "2024-01-01T20:00:00Z", End: "2024-01-01T20:30:00Z"},
		},
	})

	res := Materialize([]model.CourseRecord{rec})
	require.Empty(t, res.Skipped)
	assert.Equal(t, []string{"5_course", "5_2024-01-01_0", "5_2024-01-01_1"}, eventIDs(res.Events))
	assert.Equal(t, utc("2024-01-01T20:00:00Z"), res.Events[2].StartDate)
}

func TestDedupComparesInstants(t *testing.T) {
	rec := aspirin()
	rec.ScheduleTimes = append(rec.ScheduleTimes, model.DaySchedule{
		Date: "2024-01-02",
		Appointments: []model.Appointment{
			{Start: "2024-01-01T08:00:00.000Z", End: "2024-01-01T08:30:00Z"},
			{Start: "2024-01-01T11:00:00+03:00", End: "2024-01-01T11:30:00+03:00"},
			{Start: "2024-01-01T08:00:00", End: "2024-01-01T08:30:00"},
		},
	})

	res := Materialize([]model.CourseRecord{rec})
	require.Empty(t, res.Skipped)
	assert.Equal(t, []string{"5_course", "5_2024-01-01_0"}, eventIDs(res.Events))
}

func TestSameStartDifferentCoursesIsNotDuplicate(t *testing.T) {
	a := aspirin()
	b := aspirin()
	b.ID = "6"

	res := Materialize([]model.CourseRecord{a, b})
	assert.Equal(t, []string{"5_course", "5_2024-01-01_0", "6_course", "6_2024-01-01_0"}, eventIDs(res.Events))
}

func TestMalformedCourseIsIsolated(t *testing.T) {
	bad := aspirin()
	bad.ID = "9"
	bad.EndDatetime = "not-a-date"

	missing := aspirin()
	missing.ID = "10"
	missing.StartDatetime = ""

	reversed := aspirin()
	reversed.ID = "11"
	reversed.StartDatetime, reversed.EndDatetime = reversed.EndDatetime, reversed.StartDatetime

	noID := aspirin()
	noID.ID = ""

	res := Materialize([]model.CourseRecord{bad, aspirin(), missing, reversed, noID})

	assert.Equal(t, []string{"5_course", "5_2024-01-01_0"}, eventIDs(res.Events))
	require.Len(t, res.Skipped, 4)

	assert.Equal(t, model.ID("9"), res.Skipped[0].CourseID)
	assert.Equal(t, 0, res.Skipped[0].Index)
	assert.Equal(t, "end_datetime", res.Skipped[0].Field)

	assert.Equal(t, "start_datetime", res.Skipped[1].Field)
	assert.True(t, errors.Is(res.Skipped[1], errMissing))

	assert.Equal(t, "end_datetime", res.Skipped[2].Field)
	assert.ErrorIs(t, res.Skipped[2], errEndBeforeStart)

	assert.Equal(t, "id", res.Skipped[3].Field)
	assert.Equal(t, 4, res.Skipped[3].Index)
}

func TestMalformedAppointmentKeepsCourse(t *testing.T) {
	rec := aspirin()
	rec.ScheduleTimes[0].Appointments = append(rec.ScheduleTimes[0].Appointments,
		model.Appointment{Start: "2024-01-01T20:00:00Z", End: "garbage"},
		model.Appointment{Start: "2024-01-02T08:00:00Z", End: "2024-01-02T08:30:00Z"},
	)

	res := Materialize([]model.CourseRecord{rec})
	assert.Equal(t, []string{"5_course", "5_2024-01-01_0", "5_2024-01-01_2"}, eventIDs(res.Events))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "schedule_times[0].appointments[1].end", res.Skipped[0].Field)
}

func TestNaiveTimestampsAreUTC(t *testing.T) {
	rec := model.CourseRecord{
		ID:            "12",
		NameDrug:      "Амоксициллин",
		StartDatetime: "2024-05-01T06:00:00.123456",
		EndDatetime:   "2024-05-01 07:00:00",
	}
	res := Materialize([]model.CourseRecord{rec})
	require.Len(t, res.Events, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 6, 0, 0, 123456000, time.UTC), res.Events[0].StartDate)
	assert.Equal(t, time.UTC, res.Events[0].EndDate.Location())
}

func TestOffsetTimestampsNormalizeToUTC(t *testing.T) {
	got, err := ParseInstant("2024-01-01T11:00:00+03:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), got)
}

func TestEmptyInput(t *testing.T) {
	res := Materialize(nil)
	assert.NotNil(t, res.Events)
	assert.Empty(t, res.Events)
	assert.Empty(t, res.Skipped)
}

type eventKey struct {
	id         string
	start, end time.Time
}

func TestMaterializeIsIdempotent(t *testing.T) {
	f := gofakeit.New(42)
	records := make([]model.CourseRecord, 0, 40)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 40; i++ {
		start := base.Add(time.Duration(f.Number(0, 24*60)) * time.Hour)
		end := start.Add(time.Duration(f.Number(1, 24*14)) * time.Hour)
		rec := model.CourseRecord{
			ID:            model.ID(f.UUID()),
			NameDrug:      f.Word(),
			StartDatetime: start.Format(time.RFC3339),
			EndDatetime:   end.Format(time.RFC3339),
		}
		days := f.Number(0, 4)
		for d := 0; d < days; d++ {
			// Some groups reuse an earlier date.
			day := start.AddDate(0, 0, d-f.Number(0, 1))
			if d == 0 {
				day = start
			}
			var appts []model.Appointment
			n := f.Number(1, 3)
			for a := 0; a < n; a++ {
				// A narrow hour range makes repeated starts likely.
				at := day.Add(time.Duration(f.Number(0, 3)) * time.Hour)
				appts = append(appts, model.Appointment{
					Start: at.Format(time.RFC3339),
					End:   at.Add(15 * time.Minute).Format(time.RFC3339),
				})
			}
			rec.ScheduleTimes = append(rec.ScheduleTimes, model.DaySchedule{
				Date:         day.Format("2006-01-02"),
				Appointments: appts,
			})
		}
		records = append(records, rec)
	}

	first := Materialize(records)
	second := Materialize(records)

	assert.ElementsMatch(t, keys(first.Events), keys(second.Events))

	// Event ids and the (start, course) pair of dose events are unique.
	ids := make(map[string]bool)
	pairs := make(map[string]bool)
	for _, ev := range first.Events {
		assert.False(t, ids[ev.ID], "duplicate id %s", ev.ID)
		ids[ev.ID] = true
		if ev.Kind != model.KindDose {
			continue
		}
		k := fmt.Sprintf("%s|%s", ev.StartDate.Format(time.RFC3339), ev.CourseID)
		assert.False(t, pairs[k], "duplicate dose %s", k)
		pairs[k] = true
	}
}

func keys(events []model.Event) []eventKey {
	out := make([]eventKey, 0, len(events))
	for _, ev := range events {
		out = append(out, eventKey{ev.ID, ev.StartDate, ev.EndDate})
	}
	return out
}

func eventIDs(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.ID)
	}
	return out
}
