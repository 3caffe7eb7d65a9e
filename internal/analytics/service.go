package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidEvent indicates a tracking event is missing a required field.
	ErrInvalidEvent = errors.New("analytics: invalid event")

	errMissingDatabase = errors.New("analytics: database handle is required")
)

// ServiceConfig describes the dependencies of the analytics service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service records telemetry events and answers aggregate questions
// about them. Increment paths are single atomic upserts so concurrent
// events for the same key never lose updates.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the analytics service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

// TrackPageView increments the counter for one (page_type, page_name)
// pair, creating the row on first sight. Insert-or-increment runs as
// one statement.
func (s *Service) TrackPageView(ctx context.Context, pageType, pageName string) error {
	pageType = strings.TrimSpace(pageType)
	pageName = strings.TrimSpace(pageName)
	if pageType == "" || pageName == "" {
		return fmt.Errorf("%w: page_type and page_name are required", ErrInvalidEvent)
	}

	now := s.clock().UTC()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "page_type"}, {Name: "page_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"views":      gorm.Expr("views + 1"),
			"updated_at": now,
		}),
	}).Create(&PageViewCounter{
		PageType:  pageType,
		PageName:  pageName,
		Views:     1,
		UpdatedAt: now,
	}).Error
}

// TrackProjectClick increments the click counter for a project,
// creating the row on first sight and refreshing last_clicked.
func (s *Service) TrackProjectClick(ctx context.Context, projectName, projectURL string) error {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return fmt.Errorf("%w: project_name is required", ErrInvalidEvent)
	}

	now := s.clock().UTC()
	assignments := map[string]interface{}{
		"clicks":       gorm.Expr("clicks + 1"),
		"last_clicked": now,
	}
	if url := strings.TrimSpace(projectURL); url != "" {
		assignments["project_url"] = url
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_name"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&ProjectAnalytic{
		ProjectName: projectName,
		ProjectURL:  strings.TrimSpace(projectURL),
		Clicks:      1,
		LastClicked: now,
	}).Error
}

// TrackProjectView increments the view counter for a project.
func (s *Service) TrackProjectView(ctx context.Context, projectName string) error {
	projectName = strings.TrimSpace(projectName)
	if projectName == "" {
		return fmt.Errorf("%w: project_name is required", ErrInvalidEvent)
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"views": gorm.Expr("views + 1"),
		}),
	}).Create(&ProjectAnalytic{
		ProjectName: projectName,
		Views:       1,
	}).Error
}

// RecordVisit appends a visit session derived from request metadata.
func (s *Service) RecordVisit(ctx context.Context, pageName, remoteAddr, userAgent string) error {
	visit := VisitSession{
		VisitorKey: VisitorKey(remoteAddr, userAgent),
		PageName:   strings.TrimSpace(pageName),
		CreatedAt:  s.clock().UTC(),
	}
	return s.db.WithContext(ctx).Create(&visit).Error
}

// RecordCVDownload appends a download record with the device bucket
// derived from the User-Agent header.
func (s *Service) RecordCVDownload(ctx context.Context, fileName, remoteAddr, userAgent string) error {
	record := CVDownload{
		FileName:     strings.TrimSpace(fileName),
		IPAddress:    strings.TrimSpace(remoteAddr),
		UserAgent:    userAgent,
		Device:       DeviceFromUserAgent(userAgent),
		DownloadedAt: s.clock().UTC(),
	}
	if record.FileName == "" {
		return fmt.Errorf("%w: file_name is required", ErrInvalidEvent)
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// VisitorKey derives a stable pseudonymous key from request metadata.
func VisitorKey(remoteAddr, userAgent string) string {
	sum := sha256.Sum256([]byte(remoteAddr + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}

// PageViews lists all page counters, most viewed first.
func (s *Service) PageViews(ctx context.Context) ([]PageViewCounter, error) {
	var counters []PageViewCounter
	err := s.db.WithContext(ctx).Model(&PageViewCounter{}).
		Order("views DESC, page_name ASC").
		Find(&counters).Error
	if err != nil {
		return nil, err
	}
	return counters, nil
}

// TotalPageViews sums every page counter.
func (s *Service) TotalPageViews(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&PageViewCounter{}).
		Select("COALESCE(SUM(views), 0)").
		Scan(&total).Error
	return total, err
}

// ProjectAnalytics lists all project counters, most clicked first.
func (s *Service) ProjectAnalytics(ctx context.Context) ([]ProjectAnalytic, error) {
	var rows []ProjectAnalytic
	err := s.db.WithContext(ctx).Model(&ProjectAnalytic{}).
		Order("clicks DESC, project_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// TotalProjectClicks sums clicks across all projects.
func (s *Service) TotalProjectClicks(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&ProjectAnalytic{}).
		Select("COALESCE(SUM(clicks), 0)").
		Scan(&total).Error
	return total, err
}

// TopProject returns the most clicked project.
func (s *Service) TopProject(ctx context.Context) (ProjectAnalytic, error) {
	var row ProjectAnalytic
	err := s.db.WithContext(ctx).Model(&ProjectAnalytic{}).
		Order("clicks DESC, project_name ASC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProjectAnalytic{}, nil
	}
	if err != nil {
		return ProjectAnalytic{}, err
	}
	return row, nil
}

// CVDownloadCount returns the all-time download count.
func (s *Service) CVDownloadCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CVDownload{}).Count(&count).Error
	return count, err
}

// CVDownloadsToday counts downloads since UTC midnight.
func (s *Service) CVDownloadsToday(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&CVDownload{}).
		Where("downloaded_at >= ?", startOfDayUTC(s.clock)).
		Count(&count).Error
	return count, err
}

// RecentCVDownloads lists the most recent downloads, capped at limit.
func (s *Service) RecentCVDownloads(ctx context.Context, limit int) ([]CVDownload, error) {
	if limit <= 0 {
		limit = 10
	}
	var records []CVDownload
	err := s.db.WithContext(ctx).Model(&CVDownload{}).
		Order("downloaded_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeviceBreakdown groups all-time downloads by device bucket.
func (s *Service) DeviceBreakdown(ctx context.Context) (map[string]int64, error) {
	type bucket struct {
		Device string
		Total  int64
	}
	var buckets []bucket
	err := s.db.WithContext(ctx).Model(&CVDownload{}).
		Select("device, COUNT(*) AS total").
		Group("device").
		Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	breakdown := make(map[string]int64, len(buckets))
	for _, b := range buckets {
		breakdown[b.Device] = b.Total
	}
	return breakdown, nil
}

// TotalVisits counts all recorded visit sessions.
func (s *Service) TotalVisits(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VisitSession{}).Count(&count).Error
	return count, err
}

// VisitsToday counts visit sessions since UTC midnight.
func (s *Service) VisitsToday(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VisitSession{}).
		Where("created_at >= ?", startOfDayUTC(s.clock)).
		Count(&count).Error
	return count, err
}

// UniqueVisitorsToday counts distinct visitor keys since UTC midnight.
func (s *Service) UniqueVisitorsToday(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VisitSession{}).
		Where("created_at >= ?", startOfDayUTC(s.clock)).
		Distinct("visitor_key").
		Count(&count).Error
	return count, err
}

func startOfDayUTC(clock func() time.Time) time.Time {
	now := clock().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
