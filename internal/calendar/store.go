package calendar

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"medcal/internal/course"
	appLog "medcal/internal/log"
	"medcal/internal/model"
	"medcal/internal/schedule"
)

// Source is the part of the backend the store needs.
type Source interface {
	Courses(ctx context.Context, userID model.ID) ([]model.CourseRecord, error)
	CreateCourse(ctx context.Context, p model.CoursePayload) (*model.CourseRecord, error)
}

// Snapshot is an immutable view of the current event set. Slices are
// shared between readers and must not be modified.
type Snapshot struct {
	Events    []model.Event
	Skipped   []*schedule.MalformedRecordError
	UpdatedAt time.Time
	// Err is the error of the latest refresh, if it failed. Events then
	// still hold the last good set.
	Err error
	// Version increases every time Events is replaced.
	Version uint64
}

// Store holds the current event set of one user. Refresh is the single
// writer; any number of goroutines may read snapshots.
type Store struct {
	src           Source
	userID        model.ID
	offsetMinutes int
	now           func() time.Time

	gen atomic.Uint64

	mu      sync.RWMutex
	snap    Snapshot
	applied uint64
	subs    map[int]func(Snapshot)
	nextSub int

	// notifyMu keeps subscriber callbacks in apply order.
	notifyMu sync.Mutex
}

func NewStore(src Source, userID model.ID, offsetMinutes int) *Store {
	return &Store{
		src:           src,
		userID:        userID,
		offsetMinutes: offsetMinutes,
		now:           time.Now,
		snap:          Snapshot{Events: []model.Event{}},
		subs:          make(map[int]func(Snapshot)),
	}
}

// OffsetMinutes is the user's UTC offset used for submissions.
func (s *Store) OffsetMinutes() int { return s.offsetMinutes }

func (s *Store) UserID() model.ID { return s.userID }

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Subscribe registers fn to be called after every applied refresh. fn runs
// on the refreshing goroutine and must not call Refresh or Submit. The
// returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Refresh fetches the user's courses and replaces the event set. On a
// fetch error the previous events are kept and the error is recorded in
// the snapshot. If a newer refresh has already been applied by the time
// this one completes, its result is discarded.
func (s *Store) Refresh(ctx context.Context) error {
	gen := s.gen.Add(1)

	recs, err := s.src.Courses(ctx, s.userID)
	var res schedule.Result
	if err == nil {
		res = schedule.Materialize(recs)
	}

	s.mu.Lock()
	if gen <= s.applied {
		s.mu.Unlock()
		appLog.Debug("calendar: discarding superseded refresh", "generation", gen)
		return err
	}
	s.applied = gen

	if err != nil {
		s.snap.Err = err
		appLog.Error("calendar: refresh failed, keeping previous events", err, "events", len(s.snap.Events))
	} else {
		s.snap = Snapshot{
			Events:    res.Events,
			Skipped:   res.Skipped,
			UpdatedAt: s.now(),
			Version:   s.snap.Version + 1,
		}
		appLog.Info("calendar: refreshed", "courses", len(recs), "events", len(res.Events), "skipped", len(res.Skipped))
	}
	snap := s.snap
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	s.notifyMu.Unlock()

	return err
}

// Submit validates sub, creates the course on the backend and refreshes.
// Nothing is sent when validation fails. A failed refresh after a
// successful create is only recorded in the snapshot.
func (s *Store) Submit(ctx context.Context, sub course.Submission) (*model.CourseRecord, error) {
	payload, err := course.Prepare(sub, s.userID, s.offsetMinutes)
	if err != nil {
		return nil, err
	}

	rec, err := s.src.CreateCourse(ctx, payload)
	if err != nil {
		return nil, err
	}
	appLog.Info("calendar: course created", "course_id", rec.ID, "name_drug", payload.NameDrug)

	_ = s.Refresh(ctx)
	return rec, nil
}
