package models

import "time"

// Review is a rating a student attaches to exactly one completed booking.
// At most one live review exists per (student, tutor, booking) triple; edits
// mutate rating and comment but never the identity.
type Review struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TutorID   string    `db:"tutor_id" json:"tutor_id"`
	BookingID string    `db:"booking_id" json:"booking_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubmitReviewRequest is the payload for creating or editing a review.
type SubmitReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// ReviewFilter captures listing criteria for reviews.
type ReviewFilter struct {
	TutorID   string
	StudentID string
	Page      int
	PageSize  int
}
