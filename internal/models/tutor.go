package models

import (
	"time"

	"github.com/lib/pq"
)

// TutorProfile holds the marketplace-facing profile of a tutor user.
// Rating and TotalReviews are denormalised read models; they are only ever
// recomputed from the reviews table, never incremented in place.
type TutorProfile struct {
	ID           string         `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"user_id"`
	Subjects     pq.StringArray `db:"subjects" json:"subjects"`
	HourlyRate   float64        `db:"hourly_rate" json:"hourly_rate"`
	Location     string         `db:"location" json:"location"`
	Bio          string         `db:"bio" json:"bio"`
	Education    string         `db:"education" json:"education"`
	Experience   string         `db:"experience" json:"experience"`
	Rating       float64        `db:"rating" json:"rating"`
	TotalReviews int            `db:"total_reviews" json:"total_reviews"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Teaches reports whether the tutor offers the given subject.
func (t *TutorProfile) Teaches(subject string) bool {
	for _, s := range t.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// UpsertTutorProfileRequest creates or updates the caller's tutor profile.
type UpsertTutorProfileRequest struct {
	Subjects   []string `json:"subjects" validate:"required,min=1,dive,required"`
	HourlyRate float64  `json:"hourly_rate" validate:"gte=0"`
	Location   string   `json:"location" validate:"max=255"`
	Bio        string   `json:"bio" validate:"max=2000"`
	Education  string   `json:"education" validate:"max=500"`
	Experience string   `json:"experience" validate:"max=2000"`
}

// TutorFilter captures directory search criteria.
type TutorFilter struct {
	Subject   string
	Location  string
	MaxRate   float64
	MinRating float64
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
