package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rakapradipta/blood-donor-registration/internal/model"
)

// MemoryStore is an in-memory implementation of the event and registrant
// stores with the same contract as the Postgres repositories, including
// the all-or-nothing quota admission. A single mutex stands in for the
// row lock. It backs STORE=memory demo deployments and the concurrency
// test harness.
type MemoryStore struct {
	mu          sync.Mutex
	events      map[string]*model.Event
	registrants map[string]*model.Registrant
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:      make(map[string]*model.Event),
		registrants: make(map[string]*model.Registrant),
	}
}

// Create inserts a new event with a zeroed counter.
func (s *MemoryStore) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &model.Event{
		ID:        uuid.New().String(),
		Location:  req.Location,
		Date:      req.Date,
		MaxQuota:  req.MaxQuota,
		CreatedAt: time.Now().UTC(),
	}
	s.events[e.ID] = e
	cp := *e
	return &cp, nil
}

// List returns copies of all events ordered by date ascending.
func (s *MemoryStore) List(ctx context.Context) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]model.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, *e)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date != events[j].Date {
			return events[i].Date < events[j].Date
		}
		return events[i].Location < events[j].Location
	})
	return events, nil
}

// GetByID returns a copy of a single event or ErrEventNotFound.
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *e
	return &cp, nil
}

// SetCapacity changes an event's quota, uncoupled from the current
// counter just like the Postgres implementation.
func (s *MemoryStore) SetCapacity(ctx context.Context, id string, maxQuota int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ErrEventNotFound
	}
	e.MaxQuota = maxQuota
	return nil
}

// ResetAll zeroes every counter and drops all registrants.
func (s *MemoryStore) ResetAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		e.CurrentRegistrations = 0
	}
	s.registrants = make(map[string]*model.Registrant)
	return nil
}

// Seed inserts the given defaults, skipping existing IDs.
func (s *MemoryStore) Seed(ctx context.Context, defaults []model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range defaults {
		if _, ok := s.events[e.ID]; ok {
			continue
		}
		cp := e
		cp.CreatedAt = time.Now().UTC()
		s.events[cp.ID] = &cp
		inserted++
	}
	return inserted, nil
}

// Register performs the check-increment-insert atomically under the
// store mutex. The admission decision always uses the live counter, so
// racing callers admit at most the remaining quota.
func (s *MemoryStore) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registrant, *model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[eventID]
	if !ok {
		return nil, nil, ErrEventNotFound
	}
	if e.CurrentRegistrations >= e.MaxQuota {
		return nil, nil, ErrQuotaExceeded
	}

	reg := &model.Registrant{
		ID:            uuid.New().String(),
		FullName:      req.FullName,
		NationalID:    req.NationalID,
		ContactNumber: req.ContactNumber,
		EventID:       eventID,
		SubmittedAt:   req.SubmittedAt,
		RegisteredAt:  time.Now().UTC(),
	}
	e.CurrentRegistrations++
	s.registrants[reg.ID] = reg

	regCp := *reg
	eCp := *e
	return &regCp, &eCp, nil
}

// ListByEvent returns all registrants for one event, oldest first.
func (s *MemoryStore) ListByEvent(ctx context.Context, eventID string) ([]model.Registrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var regs []model.Registrant
	for _, r := range s.registrants {
		if r.EventID == eventID {
			regs = append(regs, *r)
		}
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
	})
	return regs, nil
}

// ListAll returns every registrant joined with its event, newest first.
func (s *MemoryStore) ListAll(ctx context.Context) ([]model.ExportRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []model.ExportRow
	for _, r := range s.registrants {
		row := model.ExportRow{Registrant: *r}
		if e, ok := s.events[r.EventID]; ok {
			row.Location = e.Location
			row.Date = e.Date
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].RegisteredAt.After(rows[j].RegisteredAt)
	})
	return rows, nil
}
