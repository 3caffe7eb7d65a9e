package feedback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidSubmission indicates a required submission field is missing.
	ErrInvalidSubmission = errors.New("feedback: invalid submission")

	errMissingDatabase = errors.New("feedback: database handle is required")
)

// ServiceConfig describes the dependencies of the feedback service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service persists feedback form submissions.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the feedback service.
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

// SubmitRequest carries the fields accepted from the public feedback form.
type SubmitRequest struct {
	Name  string
	Email string
	Body  string
	Kind  string
}

// Submit validates and stores a feedback entry.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Entry, error) {
	name := strings.TrimSpace(req.Name)
	body := strings.TrimSpace(req.Body)
	if name == "" {
		return Entry{}, fmt.Errorf("%w: name is required", ErrInvalidSubmission)
	}
	if body == "" {
		return Entry{}, fmt.Errorf("%w: feedback is required", ErrInvalidSubmission)
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}

	entry := Entry{
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Body:      body,
		Kind:      kind,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return Entry{}, err
	}
	s.logger.Info("feedback received",
		zap.Int64("feedback_id", entry.ID),
		zap.String("kind", string(entry.Kind)))
	return entry, nil
}

// ListOptions filters and paginates admin feedback listings.
type ListOptions struct {
	Kind   Kind
	Limit  int
	Offset int
}

// List returns feedback entries newest first, optionally filtered by kind.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := s.db.WithContext(ctx).Model(&Entry{}).Order("created_at DESC, id DESC")
	if opts.Kind != "" {
		query = query.Where("kind = ?", opts.Kind)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	var entries []Entry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CountAll returns the total number of feedback entries.
func (s *Service) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Entry{}).Count(&count).Error
	return count, err
}

// MarkAllRead flips the read flag on every unread entry.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Entry{}).
		Where("is_read = ?", false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
