package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

type scheduleViewReader interface {
	ListActiveView(ctx context.Context, semesterID string) ([]models.ScheduleView, error)
}

type semesterLookup interface {
	FindByID(ctx context.Context, id string) (*models.Semester, error)
}

type renderer interface {
	ContentType() string
	Extension() string
	Render(data export.Dataset) ([]byte, error)
}

type exportStore interface {
	Save(relPath string, data []byte) (string, error)
	Read(relPath string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type linkSigner interface {
	Generate(owner, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (string, string, time.Time, error)
	TTL() time.Duration
}

// ExportFile is a rendered timetable document.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

var timetableHeaders = []string{"Day", "Start", "End", "Section", "Subject", "Kind", "Instructor", "Room", "Overtime"}

// ExportService renders a semester's active timetable.
type ExportService struct {
	schedules scheduleViewReader
	semesters semesterLookup
	renderers map[string]renderer
	store     exportStore
	signer    linkSigner
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(schedules scheduleViewReader, semesters semesterLookup, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		schedules: schedules,
		semesters: semesters,
		renderers: map[string]renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Export renders the active timetable of a semester. Format defaults to csv.
func (s *ExportService) Export(ctx context.Context, query dto.ExportQuery) (*ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format := lo.Ternary(query.Format == "", "csv", strings.ToLower(query.Format))
	r, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", query.Format))
	}

	semester, err := s.semesters.FindByID(ctx, query.SemesterID)
	if err != nil {
		return nil, err
	}
	rows, err := s.schedules.ListActiveView(ctx, semester.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	dataset := BuildTimetableDataset(semester, rows)
	payload, err := r.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("timetable exported",
		zap.String("semester_id", semester.ID),
		zap.String("format", format),
		zap.Int("rows", len(rows)))

	return &ExportFile{
		Filename:    fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(semester.Name), s.now().UTC().Format("20060102_150405"), r.Extension()),
		ContentType: r.ContentType(),
		Payload:     payload,
	}, nil
}

// EnableLinks turns on stored exports served through signed tokens.
func (s *ExportService) EnableLinks(store exportStore, signer linkSigner) *ExportService {
	s.store = store
	s.signer = signer
	return s
}

// Publish renders the export, stores it and returns a signed download token.
func (s *ExportService) Publish(ctx context.Context, query dto.ExportQuery) (*dto.ExportLink, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "export links are not configured")
	}
	file, err := s.Export(ctx, query)
	if err != nil {
		return nil, err
	}
	relPath, err := s.store.Save(path.Join(query.SemesterID, file.Filename), file.Payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(query.SemesterID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}
	return &dto.ExportLink{
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Token:       token,
		ExpiresAt:   expiresAt.UTC(),
	}, nil
}

// Download resolves a signed token to the stored export.
func (s *ExportService) Download(_ context.Context, token string) (*ExportFile, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceDisabled, "export links are not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid export link")
	}
	payload, err := s.store.Read(relPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export")
	}
	filename := path.Base(relPath)
	contentType := "application/octet-stream"
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if r, ok := s.renderers[ext]; ok {
		contentType = r.ContentType()
	}
	return &ExportFile{Filename: filename, ContentType: contentType, Payload: payload}, nil
}

// PruneExpired deletes stored exports older than the link lifetime.
func (s *ExportService) PruneExpired() (int, error) {
	if s.store == nil || s.signer == nil {
		return 0, nil
	}
	deleted, err := s.store.CleanupOlderThan(s.signer.TTL())
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

// RunCleanup prunes expired exports every interval until ctx ends.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.PruneExpired(); err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
			}
		}
	}
}

// BuildTimetableDataset orders rows by weekday then start time.
func BuildTimetableDataset(semester *models.Semester, rows []models.ScheduleView) export.Dataset {
	sorted := append([]models.ScheduleView(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := timetable.DayIndex(sorted[i].DayOfWeek), timetable.DayIndex(sorted[j].DayOfWeek)
		if di != dj {
			return di < dj
		}
		if sorted[i].StartTime != sorted[j].StartTime {
			return sorted[i].StartTime < sorted[j].StartTime
		}
		return sorted[i].SectionCode < sorted[j].SectionCode
	})

	return export.Dataset{
		Title:   fmt.Sprintf("Timetable %s %s", semester.Name, semester.AcademicYear),
		Headers: timetableHeaders,
		Rows: lo.Map(sorted, func(row models.ScheduleView, _ int) map[string]string {
			return map[string]string{
				"Day":        row.DayOfWeek,
				"Start":      row.StartTime,
				"End":        row.EndTime,
				"Section":    row.SectionCode,
				"Subject":    row.SubjectCode,
				"Kind":       row.TaskKind,
				"Instructor": row.InstructorName,
				"Room":       lo.FromPtrOr(row.RoomName, "TBA"),
				"Overtime":   lo.Ternary(row.IsOvertime, "yes", ""),
			}
		}),
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
