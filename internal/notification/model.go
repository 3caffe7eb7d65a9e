package notification

import "time"

// Kind classifies the event source a notification was derived from.
type Kind string

const (
	KindContact      Kind = "contact"
	KindDownload     Kind = "download"
	KindProjectClick Kind = "project_click"
	KindVisit        Kind = "visit"
	KindSystem       Kind = "system"
)

// Priority orders notifications by urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// DefaultPriority returns the fixed priority a source kind maps to.
func DefaultPriority(kind Kind) Priority {
	switch kind {
	case KindContact:
		return PriorityMedium
	case KindVisit:
		return PriorityHigh
	case KindSystem:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Notification is the common shape every feed entry is mapped to,
// whether synthesized from a source table or read from a persisted row.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Kind      Kind      `json:"type"`
	Priority  Priority  `json:"priority"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
	RelatedID string    `json:"relatedId,omitempty"`
	ActionURL string    `json:"actionUrl,omitempty"`
}

// Feed is a snapshot of the notification list, newest first.
type Feed struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unreadCount"`
}

// Record is a persisted notification row created by the auto-generate
// pass. The (rule_key, rule_day) pair makes generation idempotent per
// rule per day.
type Record struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	Title     string    `gorm:"column:title;size:190;not null"`
	Message   string    `gorm:"column:message;type:text;not null"`
	Kind      Kind      `gorm:"column:kind;size:32;not null"`
	Priority  Priority  `gorm:"column:priority;size:16;not null"`
	IsRead    bool      `gorm:"column:is_read;not null;default:false"`
	RelatedID string    `gorm:"column:related_id;size:190"`
	ActionURL string    `gorm:"column:action_url;size:512"`
	RuleKey   string    `gorm:"column:rule_key;size:64;not null;uniqueIndex:idx_rule_per_day,priority:1"`
	RuleDay   string    `gorm:"column:rule_day;size:10;not null;uniqueIndex:idx_rule_per_day,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "notifications"
}

func (r Record) toNotification() Notification {
	return Notification{
		ID:        r.ID,
		Title:     r.Title,
		Message:   r.Message,
		Kind:      r.Kind,
		Priority:  r.Priority,
		IsRead:    r.IsRead,
		CreatedAt: r.CreatedAt,
		RelatedID: r.RelatedID,
		ActionURL: r.ActionURL,
	}
}
