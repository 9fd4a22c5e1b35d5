package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
)

type attendanceRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Attendance, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Attendance, error)
}

// AttendanceService exposes read-only attendance history. Records are written
// by an external check-in flow, never by this API.
type AttendanceService struct {
	repo   attendanceRepository
	logger *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, logger: logger}
}

// ByStudent returns the student's attendance records. Students may only read
// their own history.
func (s *AttendanceService) ByStudent(ctx context.Context, studentID string, actor *models.JWTClaims) ([]models.Attendance, error) {
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "attendance belongs to another student")
	}
	records, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.FromStorage(err, "failed to list attendance")
	}
	return records, nil
}

// ByBooking returns attendance entries recorded for a booking.
func (s *AttendanceService) ByBooking(ctx context.Context, bookingID string) ([]models.Attendance, error) {
	records, err := s.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, appErrors.FromStorage(err, "failed to list attendance")
	}
	return records, nil
}
