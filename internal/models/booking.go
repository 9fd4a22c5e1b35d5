package models

import (
	"fmt"
	"time"
)

// BookingStatus enumerates the booking lifecycle states.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// bookingTransitions is the only source of truth for legal lifecycle moves.
// completed and cancelled are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Booking represents a requested or held tutoring session between one
// student and one tutor. Times are naive HH:MM on Date (YYYY-MM-DD).
type Booking struct {
	ID              string        `db:"id" json:"id"`
	TutorID         string        `db:"tutor_id" json:"tutor_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	Subject         string        `db:"subject" json:"subject"`
	Date            string        `db:"date" json:"date"`
	StartTime       string        `db:"start_time" json:"start_time"`
	EndTime         string        `db:"end_time" json:"end_time"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Cost            float64       `db:"cost" json:"cost"`
	Status          BookingStatus `db:"status" json:"status"`
	Location        string        `db:"location" json:"location"`
	Notes           string        `db:"notes" json:"notes"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	TutorID   string
	StudentID string
	Status    BookingStatus
	DateFrom  string
	DateTo    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CreateBookingRequest is the payload for requesting a session.
type CreateBookingRequest struct {
	TutorID   string `json:"tutor_id" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Location  string `json:"location" validate:"max=255"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// UpdateBookingStatusRequest moves a booking through its lifecycle.
type UpdateBookingStatusRequest struct {
	Status BookingStatus `json:"status" validate:"required"`
}

// BookingConflict describes an existing booking that blocks a candidate slot.
type BookingConflict struct {
	BookingID string        `json:"booking_id"`
	TutorID   string        `json:"tutor_id"`
	Date      string        `json:"date"`
	StartTime string        `json:"start_time"`
	EndTime   string        `json:"end_time"`
	Status    BookingStatus `json:"status"`
}

// BookingConflictError is returned when a candidate slot collides with an
// existing non-cancelled booking on the tutor's calendar.
type BookingConflictError struct {
	Message  string          `json:"message"`
	Conflict BookingConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// MinuteOfDay parses an HH:MM wall-clock string into minutes since midnight.
func MinuteOfDay(raw string) (int, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(raw, "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("malformed time %q: %w", raw, err)
	}
	if len(raw) != 5 || raw[2] != ':' {
		return 0, fmt.Errorf("malformed time %q: want HH:MM", raw)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time %q out of range", raw)
	}
	return hour*60 + minute, nil
}

// Overlaps reports whether the half-open intervals [s1,e1) and [s2,e2)
// intersect. Back-to-back slots (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 int) bool {
	return s1 < e2 && s2 < e1
}

// OverlapsBooking reports whether the candidate minute interval collides with
// an existing booking. Cancelled bookings never block a slot; malformed times
// on stored rows are treated as blocking to stay on the safe side.
func OverlapsBooking(startMinute, endMinute int, existing *Booking) bool {
	if existing.Status == BookingCancelled {
		return false
	}
	s, err := MinuteOfDay(existing.StartTime)
	if err != nil {
		return true
	}
	e, err := MinuteOfDay(existing.EndTime)
	if err != nil {
		return true
	}
	return Overlaps(startMinute, endMinute, s, e)
}

// ParseDate validates a YYYY-MM-DD date string.
func ParseDate(raw string) (time.Time, error) {
	return time.Parse("2006-01-02", raw)
}
