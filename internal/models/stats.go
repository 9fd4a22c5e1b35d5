package models

import "time"

// TutorStats summarises a tutor's sessions, earnings and reviews. All fields
// are recomputed on demand from the store, never patched incrementally.
// OrphanBookings counts rows whose student no longer exists; they are
// excluded from the other figures.
type TutorStats struct {
	TutorID           string    `db:"-" json:"tutor_id"`
	TotalSessions     int       `db:"total_sessions" json:"total_sessions"`
	CompletedSessions int       `db:"completed_sessions" json:"completed_sessions"`
	PendingSessions   int       `db:"pending_sessions" json:"pending_sessions"`
	DistinctStudents  int       `db:"distinct_students" json:"distinct_students"`
	Earnings          float64   `db:"earnings" json:"earnings"`
	Rating            float64   `db:"-" json:"rating"`
	TotalReviews      int       `db:"-" json:"total_reviews"`
	OrphanBookings    int       `db:"-" json:"orphan_bookings,omitempty"`
	GeneratedAt       time.Time `db:"-" json:"generated_at"`
}

// StudentStats summarises a student's bookings and reviews.
type StudentStats struct {
	StudentID         string    `db:"-" json:"student_id"`
	TotalSessions     int       `db:"total_sessions" json:"total_sessions"`
	CompletedSessions int       `db:"completed_sessions" json:"completed_sessions"`
	UpcomingSessions  int       `db:"upcoming_sessions" json:"upcoming_sessions"`
	TotalReviews      int       `db:"-" json:"total_reviews"`
	GeneratedAt       time.Time `db:"-" json:"generated_at"`
}

// AdminStats summarises platform-wide counters for the admin dashboard.
type AdminStats struct {
	TotalUsers    int       `db:"total_users" json:"total_users"`
	TotalTutors   int       `db:"total_tutors" json:"total_tutors"`
	TotalStudents int       `db:"total_students" json:"total_students"`
	TotalBookings int       `db:"total_bookings" json:"total_bookings"`
	GeneratedAt   time.Time `db:"-" json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of runtime instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
