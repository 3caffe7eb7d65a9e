package feedback

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a feedback submission.
type Kind string

const (
	KindSuggestion Kind = "suggestion"
	KindBug        Kind = "bug"
	KindCompliment Kind = "compliment"
	KindQuestion   Kind = "question"
)

// ErrInvalidKind indicates an unrecognized feedback kind.
var ErrInvalidKind = errors.New("feedback: invalid kind")

// ParseKind validates raw input and returns a Kind. Empty input maps to
// KindQuestion, the catch-all bucket.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSuggestion:
		return KindSuggestion, nil
	case KindBug:
		return KindBug, nil
	case KindCompliment:
		return KindCompliment, nil
	case KindQuestion, "":
		return KindQuestion, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, raw)
	}
}

// Entry models a feedback form submission.
type Entry struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;size:190;not null"`
	Email     string    `gorm:"column:email;size:320"`
	Body      string    `gorm:"column:feedback;type:text;not null"`
	Kind      Kind      `gorm:"column:kind;size:32;not null;index"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index"`
}

// TableName provides the explicit table binding for GORM.
func (Entry) TableName() string {
	return "feedback_entries"
}
