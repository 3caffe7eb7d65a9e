package contact

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
	// ErrNotFound indicates the addressed contact message does not exist.
	ErrNotFound = errors.New("contact: message not found")
	// ErrInvalidSubmission indicates a required submission field is missing.
	ErrInvalidSubmission = errors.New("contact: invalid submission")

	errMissingDatabase = errors.New("contact: database handle is required")
)

const maxBodyLength = 10000

// ServiceConfig describes the dependencies of the contact service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service persists and manages contact form submissions.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the contact service.
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

// SubmitRequest carries the fields accepted from the public contact form.
type SubmitRequest struct {
	Name    string
	Email   string
	Subject string
	Body    string
}

// Submit validates and stores a contact form submission.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Message, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	body := strings.TrimSpace(req.Body)
	if name == "" {
		return Message{}, fmt.Errorf("%w: name is required", ErrInvalidSubmission)
	}
	if email == "" {
		return Message{}, fmt.Errorf("%w: email is required", ErrInvalidSubmission)
	}
	if body == "" {
		return Message{}, fmt.Errorf("%w: message is required", ErrInvalidSubmission)
	}
	if len([]rune(body)) > maxBodyLength {
		return Message{}, fmt.Errorf("%w: message exceeds %d characters", ErrInvalidSubmission, maxBodyLength)
	}

	message := Message{
		Name:      name,
		Email:     email,
		Subject:   strings.TrimSpace(req.Subject),
		Body:      body,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return Message{}, err
	}
	s.logger.Info("contact message received",
		zap.Int64("contact_id", message.ID),
		zap.String("email", message.Email))
	return message, nil
}

// ListOptions carries pagination and filtering for admin listings.
type ListOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

// List returns contact messages newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Message, error) {
	query := s.db.WithContext(ctx).Model(&Message{}).Order("created_at DESC, id DESC")
	if opts.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}
	var messages []Message
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// ListUnread returns the most recent unread messages, capped at limit.
func (s *Service) ListUnread(ctx context.Context, limit int) ([]Message, error) {
	return s.List(ctx, ListOptions{Limit: limit, UnreadOnly: true})
}

// CountAll returns the total number of contact messages.
func (s *Service) CountAll(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Message{}).Count(&count).Error
	return count, err
}

// CountUnread returns the number of unread contact messages.
func (s *Service) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Message{}).Where("is_read = ?", false).Count(&count).Error
	return count, err
}

// Get returns a single message by id.
func (s *Service) Get(ctx context.Context, id int64) (Message, error) {
	var message Message
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

// MarkRead flips the read flag for one message.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Model(&Message{}).
		Where("id = ?", id).
		Update("is_read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead flips the read flag on every unread message and reports
// how many rows changed.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&Message{}).
		Where("is_read = ?", false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// Delete removes a message and any replies attached to it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&Message{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("contact_id = ?", id).Delete(&Reply{}).Error
	})
}

// Reply stores an admin reply and marks the message as replied and read.
func (s *Service) Reply(ctx context.Context, id int64, body string) (Reply, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return Reply{}, fmt.Errorf("%w: reply body is required", ErrInvalidSubmission)
	}

	reply := Reply{ContactID: id, Body: trimmed, CreatedAt: s.clock().UTC()}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Message{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"has_reply": true, "is_read": true})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(&reply).Error
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}
