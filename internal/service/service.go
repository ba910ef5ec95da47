// Package service implements business logic, validation, and
// orchestration between HTTP handlers and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rakapradipta/blood-donor-registration/internal/model"
	"github.com/rakapradipta/blood-donor-registration/internal/notify"
	"github.com/rakapradipta/blood-donor-registration/internal/repository"
)

// ErrValidation marks malformed input rejected before any store
// interaction.
var ErrValidation = errors.New("validation failed")

// validate is the package-wide validator instance as recommended by
// go-playground/validator.
var validate = validator.New()

// EventStore is the persistence surface for events.
type EventStore interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	GetByID(ctx context.Context, id string) (*model.Event, error)
	SetCapacity(ctx context.Context, id string, maxQuota int) error
	ResetAll(ctx context.Context) error
	Seed(ctx context.Context, defaults []model.Event) (int, error)
}

// RegistrantStore is the persistence surface for registrants. Register
// must be atomic: either the counter increments and the registrant row
// exists, or neither.
type RegistrantStore interface {
	Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.Registrant, *model.Event, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registrant, error)
	ListAll(ctx context.Context) ([]model.ExportRow, error)
}

// Dispatcher delivers a composed confirmation to a donor's number.
type Dispatcher interface {
	Send(ctx context.Context, number, text string) error
}

// RegistrationService orchestrates donor registration and event
// administration.
type RegistrationService struct {
	events      EventStore
	registrants RegistrantStore
	generator   notify.Generator
	dispatcher  Dispatcher
	log         *slog.Logger
}

// NewRegistrationService constructs a RegistrationService with its
// dependencies.
func NewRegistrationService(
	events EventStore,
	registrants RegistrantStore,
	generator notify.Generator,
	dispatcher Dispatcher,
	log *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		events:      events,
		registrants: registrants,
		generator:   generator,
		dispatcher:  dispatcher,
		log:         log,
	}
}

// ListEvents returns all events ordered by date.
func (s *RegistrationService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.events.List(ctx)
}

// GetEvent returns a single event by ID.
func (s *RegistrationService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	return s.events.GetByID(ctx, id)
}

// CreateEvent validates the request and delegates to the store.
func (s *RegistrationService) CreateEvent(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	req.Location = strings.TrimSpace(req.Location)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return s.events.Create(ctx, req)
}

// Register validates the donor details, runs the atomic registration,
// and then dispatches the confirmation as a decoupled best-effort step.
//
// Field validation happens before any store interaction: a malformed
// request never opens a transaction. Notification failures never fail
// the registration; the response always carries a confirmation text,
// falling back to the deterministic template when the configured
// generator errors out.
func (s *RegistrationService) Register(ctx context.Context, eventID string, req model.RegisterRequest) (*model.RegisterResponse, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	if eventID == "" {
		return nil, fmt.Errorf("%w: event id is required", ErrValidation)
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}

	reg, event, err := s.registrants.Register(ctx, eventID, req)
	if err != nil {
		// Surface domain errors directly so handlers can set the
		// correct HTTP status.
		if errors.Is(err, repository.ErrEventNotFound) ||
			errors.Is(err, repository.ErrQuotaExceeded) ||
			errors.Is(err, repository.ErrStoreUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("register donor: %w", err)
	}

	// Post-commit side effects only from here on.
	text, genErr := s.generator.Compose(ctx, reg.FullName, event.LocationAndDate())
	if genErr != nil {
		s.log.Warn("message generator failed, using template",
			"registrant_id", reg.ID, "error", genErr)
		text = notify.Message(reg.FullName, event.LocationAndDate())
	}

	delivered := false
	if err := s.dispatcher.Send(ctx, reg.ContactNumber, text); err != nil {
		s.log.Warn("confirmation dispatch failed",
			"registrant_id", reg.ID, "error", err)
	} else {
		delivered = true
	}

	return &model.RegisterResponse{
		Registrant: reg,
		Message:    text,
		Delivered:  delivered,
	}, nil
}

// ListEventRegistrants returns all registrants for an event.
func (s *RegistrationService) ListEventRegistrants(ctx context.Context, eventID string) ([]model.Registrant, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.registrants.ListByEvent(ctx, eventID)
}

// ListRegistrants returns every registrant with event details, for the
// admin dashboard and export.
func (s *RegistrationService) ListRegistrants(ctx context.Context) ([]model.ExportRow, error) {
	return s.registrants.ListAll(ctx)
}

// SetCapacity changes an event's quota.
func (s *RegistrationService) SetCapacity(ctx context.Context, eventID string, req model.SetCapacityRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return s.events.SetCapacity(ctx, eventID, req.MaxQuota)
}

// ResetAll zeroes every counter and deletes all registrants. Not safe
// against concurrent registrations; intended for maintenance windows.
func (s *RegistrationService) ResetAll(ctx context.Context) error {
	return s.events.ResetAll(ctx)
}

// SeedDefaults inserts the default donation slots, returning how many
// were newly created.
func (s *RegistrationService) SeedDefaults(ctx context.Context) (int, error) {
	return s.events.Seed(ctx, repository.DefaultEvents())
}
