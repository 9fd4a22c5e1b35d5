package models

import "time"

// Attendance is a read-only record of whether a student showed up for a
// session. The booking core never mutates it.
type Attendance struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	BookingID string    `db:"booking_id" json:"booking_id"`
	Present   bool      `db:"present" json:"present"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
