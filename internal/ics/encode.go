package ics

import (
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"medcal/internal/model"
)

const productID = "-//medcal//medication schedule//RU"

// UIDDomain is appended to event ids to form VEVENT UIDs.
const UIDDomain = "medcal"

// Options control the calendar-level properties of an export.
type Options struct {
	// Name is shown by clients as the calendar title.
	Name string
	// Stamp is written as DTSTAMP on every event. Using the snapshot time
	// keeps the output stable between refreshes.
	Stamp time.Time
}

// Encode writes events as an iCalendar feed. Every event becomes one
// VEVENT with UTC start and end; nothing is expressed as a recurrence.
func Encode(w io.Writer, events []model.Event, opts Options) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	stamp := opts.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	for _, ev := range events {
		ve := cal.AddEvent(ev.ID + "@" + UIDDomain)
		ve.SetDtStampTime(stamp.UTC())
		ve.SetStartAt(ev.StartDate.UTC())
		ve.SetEndAt(ev.EndDate.UTC())
		ve.SetSummary(ev.Title)
		ve.SetProperty(ical.ComponentPropertyCategories, string(ev.Kind))
		if ev.CourseID != "" {
			ve.SetDescription("course " + string(ev.CourseID))
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
