// Package repository implements persistence for events and registrants.
// It uses pgx directly (no ORM); all quota accounting goes through a
// single serialised transaction in RegistrantRepository.Register.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rakapradipta/blood-donor-registration/internal/model"
)

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrQuotaExceeded is returned when an event has no remaining quota.
var ErrQuotaExceeded = errors.New("event quota exceeded")

// ErrStoreUnavailable marks transient store failures; the operation left
// no partial state and is safe to retry.
var ErrStoreUnavailable = errors.New("store unavailable")

// EventRepository handles persistence for donation events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, location, to_char(date, 'YYYY-MM-DD'), max_quota, current_registrations, created_at`

func scanEvent(row pgx.Row, e *model.Event) error {
	return row.Scan(&e.ID, &e.Location, &e.Date, &e.MaxQuota, &e.CurrentRegistrations, &e.CreatedAt)
}

// Create inserts a new event with a zeroed counter.
func (r *EventRepository) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event := &model.Event{
		ID:        uuid.New().String(),
		Location:  req.Location,
		Date:      req.Date,
		MaxQuota:  req.MaxQuota,
		CreatedAt: time.Now().UTC(),
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, location, date, max_quota, current_registrations, created_at)
		 VALUES ($1, $2, $3, $4, 0, $5)`,
		event.ID, event.Location, event.Date, event.MaxQuota, event.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return event, nil
}

// List returns all events ordered by date ascending.
func (r *EventRepository) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY date ASC, location ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		if err := scanEvent(rows, &e); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetByID returns a single event or ErrEventNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &e, nil
}

// SetCapacity changes an event's quota. The new quota is deliberately not
// coupled to the current counter: an admin may shrink a slot below its
// current registration count, leaving it over-full but closed to further
// registrations.
func (r *EventRepository) SetCapacity(ctx context.Context, id string, maxQuota int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET max_quota = $2 WHERE id = $1`, id, maxQuota,
	)
	if err != nil {
		return fmt.Errorf("set capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ResetAll zeroes every event counter and deletes all registrants in one
// transaction so the two stay consistent with each other. It is NOT
// serialised against in-flight registrations; run it only during
// maintenance windows.
func (r *EventRepository) ResetAll(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM registrants`); err != nil {
		return fmt.Errorf("delete registrants: %w", err)
	}
	if _, err = tx.Exec(ctx, `UPDATE events SET current_registrations = 0`); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// Seed inserts the default donation slots, skipping any that already
// exist. It returns the number of events actually inserted.
func (r *EventRepository) Seed(ctx context.Context, defaults []model.Event) (int, error) {
	inserted := 0
	for _, e := range defaults {
		tag, err := r.db.Exec(ctx,
			`INSERT INTO events (id, location, date, max_quota, current_registrations, created_at)
			 VALUES ($1, $2, $3, $4, 0, $5)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, e.Location, e.Date, e.MaxQuota, time.Now().UTC(),
		)
		if err != nil {
			return inserted, fmt.Errorf("seed event %s: %w", e.ID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// txErr classifies a failure inside the registration transaction.
// Errors the server reported (SQL-level) keep a plain wrap; anything
// else is a driver or network failure. Either way the transaction has
// rolled back, but only the latter is the transient retry-later class.
func txErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %s", ErrStoreUnavailable, op, err)
}

// RegistrantRepository handles persistence for registrants.
type RegistrantRepository struct {
	db *pgxpool.Pool
}

// NewRegistrantRepository constructs a RegistrantRepository.
func NewRegistrantRepository(db *pgxpool.Pool) *RegistrantRepository {
	return &RegistrantRepository{db: db}
}

// Register performs the quota-bounded registration inside a serialised
// transaction and is the only write path for the event counter.
//
// A naive read-then-write is broken under concurrency: two transactions
// read the same counter snapshot before either writes back, both see a
// free slot, and the event overbooks. SELECT ... FOR UPDATE takes a
// row-level exclusive lock on the event the moment the read executes, so
// racing registrations queue up behind one another and each one re-reads
// fresh state once it acquires the lock. N callers racing for the last K
// slots therefore admit exactly K and reject N-K with ErrQuotaExceeded.
//
// On any error the transaction rolls back: the counter is unchanged and
// no registrant row exists. On success it returns the persisted
// registrant together with a snapshot of the event taken under the lock,
// so callers can compose the confirmation message without a second read.
func (r *RegistrantRepository) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registrant, *model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: begin: %s", ErrStoreUnavailable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the event row. Concurrent Register calls for the same event
	// block here until this transaction commits or rolls back.
	var e model.Event
	err = scanEvent(tx.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, eventID,
	), &e)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrEventNotFound
		}
		return nil, nil, txErr("lock event row", err)
	}

	// The admission check uses the freshly locked counter, never a value
	// a caller read earlier.
	if e.CurrentRegistrations >= e.MaxQuota {
		err = ErrQuotaExceeded
		return nil, nil, err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE events SET current_registrations = current_registrations + 1 WHERE id = $1`,
		eventID,
	); err != nil {
		return nil, nil, txErr("increment counter", err)
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
	if _, err = tx.Exec(ctx,
		`INSERT INTO registrants (id, full_name, national_id, contact_number, event_id, submitted_at, registered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		reg.ID, reg.FullName, reg.NationalID, reg.ContactNumber, reg.EventID, reg.SubmittedAt, reg.RegisteredAt,
	); err != nil {
		return nil, nil, txErr("insert registrant", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: commit: %s", ErrStoreUnavailable, err)
	}

	e.CurrentRegistrations++
	return reg, &e, nil
}

// ListByEvent returns all registrants for one event, oldest first.
func (r *RegistrantRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registrant, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, full_name, national_id, contact_number, event_id, submitted_at, registered_at
		 FROM registrants
		 WHERE event_id = $1
		 ORDER BY registered_at ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrants: %w", err)
	}
	defer rows.Close()
	return collectRegistrants(rows)
}

// ListAll returns every registrant joined with its event's location and
// date, newest registration first. This backs the admin dashboard and
// the delimited export.
func (r *RegistrantRepository) ListAll(ctx context.Context) ([]model.ExportRow, error) {
	rows, err := r.db.Query(ctx,
		`SELECT r.id, r.full_name, r.national_id, r.contact_number, r.event_id,
		        r.submitted_at, r.registered_at,
		        e.location, to_char(e.date, 'YYYY-MM-DD')
		 FROM registrants r
		 JOIN events e ON e.id = r.event_id
		 ORDER BY r.registered_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all registrants: %w", err)
	}
	defer rows.Close()

	var out []model.ExportRow
	for rows.Next() {
		var row model.ExportRow
		if err := rows.Scan(
			&row.ID, &row.FullName, &row.NationalID, &row.ContactNumber, &row.EventID,
			&row.SubmittedAt, &row.RegisteredAt,
			&row.Location, &row.Date,
		); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func collectRegistrants(rows pgx.Rows) ([]model.Registrant, error) {
	var regs []model.Registrant
	for rows.Next() {
		var reg model.Registrant
		if err := rows.Scan(
			&reg.ID, &reg.FullName, &reg.NationalID, &reg.ContactNumber,
			&reg.EventID, &reg.SubmittedAt, &reg.RegisteredAt,
		); err != nil {
			return nil, fmt.Errorf("scan registrant: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}
