// Package model defines the core domain types for the blood donor
// registration system.
package model

import "time"

// Event represents a single donation slot: a location and date with a
// fixed registrant quota.
type Event struct {
	ID                   string    `json:"id"`
	Location             string    `json:"location"`
	Date                 string    `json:"date"` // ISO calendar date, e.g. "2026-03-30"
	MaxQuota             int       `json:"max_quota"`
	CurrentRegistrations int       `json:"current_registrations"`
	CreatedAt            time.Time `json:"created_at"`
}

// Remaining returns the number of open slots.
func (e *Event) Remaining() int {
	return e.MaxQuota - e.CurrentRegistrations
}

// IsFull returns true when no slots remain.
func (e *Event) IsFull() bool {
	return e.CurrentRegistrations >= e.MaxQuota
}

// LocationAndDate renders the event the way confirmation messages refer
// to it, e.g. "Stasiun Juanda pada 2026-03-30".
func (e *Event) LocationAndDate() string {
	return e.Location + " pada " + e.Date
}

// Registrant represents a donor who completed registration for an Event.
// Records are immutable after creation; only the admin bulk reset removes
// them.
type Registrant struct {
	ID            string     `json:"id"`
	FullName      string     `json:"full_name"`
	NationalID    string     `json:"national_id"`
	ContactNumber string     `json:"contact_number"`
	EventID       string     `json:"event_id"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"` // client-observed, advisory
	RegisteredAt  time.Time  `json:"registered_at"`          // server-assigned, authoritative
}

// RegisterRequest is the payload for registering a donor against an event.
//
// national_id is the 16-digit KTP number; contact_number is an Indonesian
// mobile number in local format (leading "08").
type RegisterRequest struct {
	FullName      string     `json:"full_name" validate:"required,min=3"`
	NationalID    string     `json:"national_id" validate:"required,len=16,number"`
	ContactNumber string     `json:"contact_number" validate:"required,number,startswith=08,min=10,max=15"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

// RegisterResponse is returned on a successful registration. Delivered
// reports whether the confirmation was handed to the messaging gateway;
// Message is always populated regardless.
type RegisterResponse struct {
	Registrant *Registrant `json:"registrant"`
	Message    string      `json:"message"`
	Delivered  bool        `json:"delivered"`
}

// CreateEventRequest is the admin payload for adding a donation slot.
type CreateEventRequest struct {
	Location string `json:"location" validate:"required,min=3"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	MaxQuota int    `json:"max_quota" validate:"required,gt=0"`
}

// SetCapacityRequest is the admin payload for changing an event's quota.
type SetCapacityRequest struct {
	MaxQuota int `json:"max_quota" validate:"required,gt=0"`
}

// ExportRow is one line of the admin registrant export: the registrant
// joined with its event's location and date.
type ExportRow struct {
	Registrant
	Location string `json:"location"`
	Date     string `json:"date"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
