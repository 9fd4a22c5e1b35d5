package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tutorlink/tutorlink-api/internal/models"
	appErrors "github.com/tutorlink/tutorlink-api/pkg/errors"
	"github.com/tutorlink/tutorlink-api/pkg/export"
)

type earningsRepository interface {
	TutorEarningsRows(ctx context.Context, tutorID, dateFrom, dateTo string) ([]models.Booking, error)
}

type exportTutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.TutorProfile, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFormat enumerates supported earnings report encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered report ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders tutor earnings reports from completed sessions.
type ExportService struct {
	earnings earningsRepository
	tutors   exportTutorRepository
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(earnings earningsRepository, tutors exportTutorRepository, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{earnings: earnings, tutors: tutors, csv: csv, pdf: pdf, logger: logger}
}

// TutorEarnings builds and renders the earnings report for a tutor's
// completed sessions in the optional date window.
func (s *ExportService) TutorEarnings(ctx context.Context, tutorID string, format ExportFormat, dateFrom, dateTo string) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q, want csv or pdf", format))
	}
	for _, d := range []string{dateFrom, dateTo} {
		if d == "" {
			continue
		}
		if _, err := models.ParseDate(d); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", d))
		}
	}

	if _, err := s.tutors.FindByID(ctx, tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
		}
		return nil, appErrors.FromStorage(err, "failed to load tutor")
	}

	bookings, err := s.earnings.TutorEarningsRows(ctx, tutorID, dateFrom, dateTo)
	if err != nil {
		return nil, appErrors.FromStorage(err, "failed to load earnings rows")
	}

	dataset := buildEarningsDataset(bookings)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Earnings Report %s", tutorID))
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render earnings report")
	}

	filename := fmt.Sprintf("earnings_%s_%s.%s", tutorID, time.Now().UTC().Format("20060102_150405"), format)
	return &ExportResult{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

func buildEarningsDataset(bookings []models.Booking) export.Dataset {
	rows := make([]map[string]string, 0, len(bookings)+1)
	var total float64
	for _, b := range bookings {
		total += b.Cost
		rows = append(rows, map[string]string{
			"Date":       b.Date,
			"Start":      b.StartTime,
			"End":        b.EndTime,
			"Subject":    b.Subject,
			"Student ID": b.StudentID,
			"Duration":   fmt.Sprintf("%d min", b.DurationMinutes),
			"Earned":     fmt.Sprintf("%.2f", b.Cost),
		})
	}
	rows = append(rows, map[string]string{
		"Date":   "TOTAL",
		"Earned": fmt.Sprintf("%.2f", total),
	})
	return export.Dataset{
		Headers: []string{"Date", "Start", "End", "Subject", "Student ID", "Duration", "Earned"},
		Rows:    rows,
	}
}
