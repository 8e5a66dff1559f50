package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID is an opaque backend identifier. The backend has sent both JSON
// strings and numbers over time; both decode to the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", data)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Appointment is one scheduled intake within a day of a course. Timestamps
// are kept as sent by the backend; the materializer parses them.
type Appointment struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule groups the appointments of one calendar day.
type DaySchedule struct {
	Date         string        `json:"date"`
	Appointments []Appointment `json:"appointments"`
}

// CourseRecord is a medication course as returned by
// GET /schedules/user/{user_id}.
type CourseRecord struct {
	ID            ID            `json:"id"`
	UserID        ID            `json:"user_id,omitempty"`
	NameDrug      string        `json:"name_drug"`
	Dosage        float64       `json:"dosage,omitempty"`
	Frequency     int           `json:"frequency,omitempty"`
	Interval      float64       `json:"interval,omitempty"`
	Description   string        `json:"description,omitempty"`
	StartDatetime string        `json:"start_datetime"`
	EndDatetime   string        `json:"end_datetime"`
	StartSchedule string        `json:"start_schedule,omitempty"`
	IsActive      bool          `json:"is_active"`
	ScheduleTimes []DaySchedule `json:"schedule_times,omitempty"`
}

// CoursePayload is the body of POST /schedules. Instants are canonical UTC.
type CoursePayload struct {
	UserID        ID        `json:"user_id"`
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

type EventKind string

const (
	KindSingle EventKind = "single"
	KindCourse EventKind = "course"
	KindDose   EventKind = "dose"
)

// Event is a single calendar entry derived from a CourseRecord. Events are
// never mutated after materialization.
type Event struct {
	ID        string    `json:"id"`
	CourseID  ID        `json:"course_id"`
	Kind      EventKind `json:"kind"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// Drug is a catalog entry (DrugRead on the backend).
type Drug struct {
	ID          ID      `json:"id"`
	Name        string  `json:"name"`
	Dosage      float64 `json:"dosage"`
	Frequency   int     `json:"frequency"`
	Interval    float64 `json:"interval"`
	Description string  `json:"description"`
}

// DrugInput is the body of POST /drugs and PUT /drugs/{id}.
type DrugInput struct {
	Name        string  `json:"name"`
	Dosage      float64 `json:"dosage"`
	Frequency   int     `json:"frequency"`
	Interval    float64 `json:"interval"`
	Description string  `json:"description"`
}

// User is the profile returned by GET /users/me.
type User struct {
	ID          ID     `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Gender      bool   `json:"gender"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
	Age         int    `json:"age"`
	TgID        int64  `json:"tg_id"`
	// Timezone is the user's UTC offset in whole hours. Older profiles
	// omit it, hence the pointer.
	Timezone *int `json:"timezone,omitempty"`
}

// UserCreate is the body of POST /auth/register.
type UserCreate struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Gender      bool   `json:"gender"`
	Age         int    `json:"age"`
	TgID        int64  `json:"tg_id"`
	TimeZone    int    `json:"time_zone"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
}
