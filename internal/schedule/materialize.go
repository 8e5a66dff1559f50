package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	appLog "medcal/internal/log"
	"medcal/internal/model"
)

const (
	singleTitlePrefix = "Приём: "
	courseTitlePrefix = "Курс: "

	// Courses shorter than this are a single intake, not a course.
	courseThreshold = 24 * time.Hour
)

// MalformedRecordError describes a course (or one of its appointments)
// that could not be materialized. The rest of the batch is unaffected.
type MalformedRecordError struct {
	CourseID model.ID
	// Index is the position of the course in the input batch.
	Index int
	// Field names the offending value, e.g. "end_datetime" or
	// "schedule_times[1].appointments[0].start".
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("course %q (#%d): %s: %v", e.CourseID, e.Index, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

var (
	errMissing        = errors.New("missing value")
	errEndBeforeStart = errors.New("end is before start")
)

// Result is the outcome of one materialization pass.
type Result struct {
	Events  []model.Event
	Skipped []*MalformedRecordError
}

// Materialize expands course records into calendar events.
//
// A course spanning less than 24h becomes one "<id>_single" event. Longer
// courses yield a "<id>_course" summary followed by one event per
// scheduled appointment, "<id>_<date>_<index>", where index counts every
// appointment listed for that date. Appointments repeating an earlier
// (start instant, course id) pair are dropped. Events are returned in
// input order; nothing is sorted.
func Materialize(records []model.CourseRecord) Result {
	var res Result
	res.Events = make([]model.Event, 0, len(records))

	// Keys are the parsed appointment start + "-" + course id, scoped to
	// this call.
	seen := make(map[string]struct{})

	for i, rec := range records {
		start, end, mre := courseWindow(rec)
		if mre != nil {
			mre.Index = i
			res.Skipped = append(res.Skipped, mre)
			appLog.Warn("schedule: skipping malformed course", "course_id", rec.ID, "index", i, "field", mre.Field, "err", mre.Err)
			continue
		}

		if end.Sub(start) < courseThreshold {
			res.Events = append(res.Events, model.Event{
				ID:        string(rec.ID) + "_single",
				CourseID:  rec.ID,
				Kind:      model.KindSingle,
				Title:     singleTitlePrefix + rec.NameDrug,
				StartDate: start,
				EndDate:   end,
			})
			continue
		}

		res.Events = append(res.Events, model.Event{
			ID:        string(rec.ID) + "_course",
			CourseID:  rec.ID,
			Kind:      model.KindCourse,
			Title:     courseTitlePrefix + rec.NameDrug,
			StartDate: start,
			EndDate:   end,
		})

		// Groups repeating a date continue that date's numbering.
		nextIndex := make(map[string]int)

		for d, day := range rec.ScheduleTimes {
			base := nextIndex[day.Date]
			nextIndex[day.Date] = base + len(day.Appointments)

			for j, appt := range day.Appointments {
				aStart, aEnd, field, err := appointmentWindow(appt)
				if err != nil {
					mre := &MalformedRecordError{
						CourseID: rec.ID,
						Index:    i,
						Field:    "schedule_times[" + strconv.Itoa(d) + "].appointments[" + strconv.Itoa(j) + "]." + field,
						Err:      err,
					}
					res.Skipped = append(res.Skipped, mre)
					appLog.Warn("schedule: skipping malformed appointment", "course_id", rec.ID, "field", mre.Field, "err", err)
					continue
				}

				key := aStart.Format(time.RFC3339Nano) + "-" + string(rec.ID)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}

				res.Events = append(res.Events, model.Event{
					ID:        string(rec.ID) + "_" + day.Date + "_" + strconv.Itoa(base+j),
					CourseID:  rec.ID,
					Kind:      model.KindDose,
					Title:     singleTitlePrefix + rec.NameDrug,
					StartDate: aStart,
					EndDate:   aEnd,
				})
			}
		}
	}

	return res
}

func courseWindow(rec model.CourseRecord) (time.Time, time.Time, *MalformedRecordError) {
	if rec.ID == "" {
		return time.Time{}, time.Time{}, &MalformedRecordError{Field: "id", Err: errMissing}
	}
	start, err := ParseInstant(rec.StartDatetime)
	if err != nil {
		return time.Time{}, time.Time{}, &MalformedRecordError{CourseID: rec.ID, Field: "start_datetime", Err: err}
	}
	end, err := ParseInstant(rec.EndDatetime)
	if err != nil {
		return time.Time{}, time.Time{}, &MalformedRecordError{CourseID: rec.ID, Field: "end_datetime", Err: err}
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, &MalformedRecordError{CourseID: rec.ID, Field: "end_datetime", Err: errEndBeforeStart}
	}
	return start, end, nil
}

func appointmentWindow(a model.Appointment) (time.Time, time.Time, string, error) {
	start, err := ParseInstant(a.Start)
	if err != nil {
		return time.Time{}, time.Time{}, "start", err
	}
	end, err := ParseInstant(a.End)
	if err != nil {
		return time.Time{}, time.Time{}, "end", err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, "end", errEndBeforeStart
	}
	return start, end, "", nil
}
