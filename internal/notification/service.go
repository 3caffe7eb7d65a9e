package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/folioworks/folio/backend/internal/analytics"
	"github.com/folioworks/folio/backend/internal/contact"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultUnreadContactLimit   = 10
	defaultHighTrafficThreshold = 2

	dayLayout = "2006-01-02"
)

var (
	// ErrNotFound indicates the addressed notification does not exist.
	ErrNotFound = errors.New("notification: not found")

	errMissingDatabase  = errors.New("notification: database handle is required")
	errMissingContacts  = errors.New("notification: contact service is required")
	errMissingAnalytics = errors.New("notification: analytics service is required")
)

// ServiceConfig describes the dependencies of the notification service.
type ServiceConfig struct {
	Database  *gorm.DB
	Contacts  *contact.Service
	Analytics *analytics.Service
	Clock     func() time.Time
	IDs       IDProvider
	Logger    *zap.Logger

	// UnreadContactLimit caps how many unread contacts are surfaced
	// as individual feed entries.
	UnreadContactLimit int
	// HighTrafficThreshold is the unique-visitor count above which the
	// high-traffic signal fires.
	HighTrafficThreshold int64
}

// Service synthesizes the notification feed from live source tables
// and manages the persisted rows created by the auto-generate pass.
type Service struct {
	db        *gorm.DB
	contacts  *contact.Service
	analytics *analytics.Service
	clock     func() time.Time
	ids       IDProvider
	logger    *zap.Logger

	unreadContactLimit   int
	highTrafficThreshold int64
}

// NewService constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Contacts == nil {
		return nil, errMissingContacts
	}
	if cfg.Analytics == nil {
		return nil, errMissingAnalytics
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ids := cfg.IDs
	if ids == nil {
		ids = NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := cfg.UnreadContactLimit
	if limit <= 0 {
		limit = defaultUnreadContactLimit
	}
	threshold := cfg.HighTrafficThreshold
	if threshold <= 0 {
		threshold = defaultHighTrafficThreshold
	}
	return &Service{
		db:                   cfg.Database,
		contacts:             cfg.Contacts,
		analytics:            cfg.Analytics,
		clock:                clock,
		ids:                  ids,
		logger:               logger,
		unreadContactLimit:   limit,
		highTrafficThreshold: threshold,
	}, nil
}

// FeedOptions paginates the persisted portion of the feed. Synthesized
// signals are always included in full.
type FeedOptions struct {
	Limit      int
	Offset     int
	UnreadOnly bool
}

type feedSource func(ctx context.Context) ([]Notification, error)

// Feed assembles the notification list. Every source is a pure read of
// current state; sources run in parallel and the result is observable
// only once all of them have resolved. A failing source contributes
// nothing rather than failing the feed.
func (s *Service) Feed(ctx context.Context, opts FeedOptions) Feed {
	sources := []struct {
		name string
		run  feedSource
	}{
		{name: "unread_contacts", run: s.unreadContactSignals},
		{name: "downloads_today", run: s.downloadSignal},
		{name: "high_traffic", run: s.highTrafficSignal},
		{name: "persisted", run: s.persistedSource(opts)},
	}

	collected := make([][]Notification, len(sources))
	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, name string, run feedSource) {
			defer wg.Done()
			entries, err := run(ctx)
			if err != nil {
				s.logger.Warn("notification source failed",
					zap.String("source", name),
					zap.Error(err))
				return
			}
			collected[i] = entries
		}(i, source.name, source.run)
	}
	wg.Wait()

	// Concatenate in fixed source order so the later stable sort has a
	// deterministic tie-break.
	var merged []Notification
	for _, entries := range collected {
		merged = append(merged, entries...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	feed := Feed{Notifications: make([]Notification, 0, len(merged))}
	for _, entry := range merged {
		if opts.UnreadOnly && entry.IsRead {
			continue
		}
		feed.Notifications = append(feed.Notifications, entry)
		if !entry.IsRead {
			feed.UnreadCount++
		}
	}
	return feed
}

func (s *Service) unreadContactSignals(ctx context.Context) ([]Notification, error) {
	messages, err := s.contacts.ListUnread(ctx, s.unreadContactLimit)
	if err != nil {
		return nil, err
	}
	entries := make([]Notification, 0, len(messages))
	for _, message := range messages {
		title := "New contact message"
		body := fmt.Sprintf("%s <%s>", message.Name, message.Email)
		if message.Subject != "" {
			body = fmt.Sprintf("%s: %s", message.Name, message.Subject)
		}
		entries = append(entries, Notification{
			ID:        SynthesizedID(KindContact, message.ID),
			Title:     title,
			Message:   body,
			Kind:      KindContact,
			Priority:  DefaultPriority(KindContact),
			IsRead:    false,
			CreatedAt: message.CreatedAt,
			RelatedID: strconv.FormatInt(message.ID, 10),
			ActionURL: "/admin/contacts",
		})
	}
	return entries, nil
}

func (s *Service) downloadSignal(ctx context.Context) ([]Notification, error) {
	count, err := s.analytics.CVDownloadsToday(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	// Count-based signal: no natural source timestamp, so "now".
	return []Notification{{
		ID:        "download-today",
		Title:     "CV downloads today",
		Message:   fmt.Sprintf("The CV was downloaded %d time(s) today", count),
		Kind:      KindDownload,
		Priority:  DefaultPriority(KindDownload),
		IsRead:    false,
		CreatedAt: s.clock().UTC(),
		ActionURL: "/admin/analytics",
	}}, nil
}

func (s *Service) highTrafficSignal(ctx context.Context) ([]Notification, error) {
	visitors, err := s.analytics.UniqueVisitorsToday(ctx)
	if err != nil {
		return nil, err
	}
	if visitors <= s.highTrafficThreshold {
		return nil, nil
	}
	return []Notification{{
		ID:        "visit-today",
		Title:     "High traffic",
		Message:   fmt.Sprintf("%d unique visitors today", visitors),
		Kind:      KindVisit,
		Priority:  DefaultPriority(KindVisit),
		IsRead:    false,
		CreatedAt: s.clock().UTC(),
		ActionURL: "/admin/analytics",
	}}, nil
}

func (s *Service) persistedSource(opts FeedOptions) feedSource {
	return func(ctx context.Context) ([]Notification, error) {
		query := s.db.WithContext(ctx).Model(&Record{}).Order("created_at DESC, id DESC")
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		if opts.Offset > 0 {
			query = query.Offset(opts.Offset)
		}
		var records []Record
		if err := query.Find(&records).Error; err != nil {
			return nil, err
		}
		entries := make([]Notification, 0, len(records))
		for _, record := range records {
			entries = append(entries, record.toNotification())
		}
		return entries, nil
	}
}

// MarkRead marks one notification as read, dispatching on the id
// variant: a synthesized ref mutates the underlying source record, a
// persisted ref updates the notifications row.
func (s *Service) MarkRead(ctx context.Context, rawID string) error {
	ref, err := ParseRef(rawID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	switch ref := ref.(type) {
	case SynthesizedRef:
		if ref.Source != KindContact {
			return ErrNotFound
		}
		if err := s.contacts.MarkRead(ctx, ref.SourceID); err != nil {
			if errors.Is(err, contact.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}
		return nil
	case PersistedRef:
		result := s.db.WithContext(ctx).Model(&Record{}).
			Where("id = ?", ref.ID).
			Update("is_read", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	default:
		return ErrNotFound
	}
}

// MarkAllRead marks every unread contact and persisted notification as
// read, reporting how many entries changed.
func (s *Service) MarkAllRead(ctx context.Context) (int64, error) {
	contactsChanged, err := s.contacts.MarkAllRead(ctx)
	if err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Model(&Record{}).
		Where("is_read = ?", false).
		Update("is_read", true)
	if result.Error != nil {
		return contactsChanged, result.Error
	}
	return contactsChanged + result.RowsAffected, nil
}

type generationRule struct {
	key      string
	evaluate func(ctx context.Context) (*Record, error)
}

// Generate evaluates the threshold rules against current data and
// persists one row per triggered rule. The (rule_key, rule_day) unique
// index makes repeated invocations within a day idempotent.
func (s *Service) Generate(ctx context.Context) (int, error) {
	day := s.clock().UTC().Format(dayLayout)
	rules := []generationRule{
		{key: "unread_contacts", evaluate: s.unreadContactsRule},
		{key: "cv_downloads", evaluate: s.downloadsRule},
		{key: "high_traffic", evaluate: s.highTrafficRule},
	}

	created := 0
	for _, rule := range rules {
		record, err := rule.evaluate(ctx)
		if err != nil {
			s.logger.Warn("notification rule evaluation failed",
				zap.String("rule", rule.key),
				zap.Error(err))
			continue
		}
		if record == nil {
			continue
		}
		id, err := s.ids.NewID()
		if err != nil {
			return created, err
		}
		record.ID = id
		record.RuleKey = rule.key
		record.RuleDay = day
		record.CreatedAt = s.clock().UTC()

		result := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(record)
		if result.Error != nil {
			return created, result.Error
		}
		if result.RowsAffected > 0 {
			created++
			s.logger.Info("notification generated",
				zap.String("rule", rule.key),
				zap.String("notification_id", record.ID))
		}
	}
	return created, nil
}

func (s *Service) unreadContactsRule(ctx context.Context) (*Record, error) {
	count, err := s.contacts.CountUnread(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return &Record{
		Title:     "Unread contact messages",
		Message:   fmt.Sprintf("You have %d unread contact message(s)", count),
		Kind:      KindContact,
		Priority:  DefaultPriority(KindContact),
		ActionURL: "/admin/contacts",
	}, nil
}

func (s *Service) downloadsRule(ctx context.Context) (*Record, error) {
	count, err := s.analytics.CVDownloadsToday(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return &Record{
		Title:     "CV downloads today",
		Message:   fmt.Sprintf("The CV was downloaded %d time(s) today", count),
		Kind:      KindDownload,
		Priority:  DefaultPriority(KindDownload),
		ActionURL: "/admin/analytics",
	}, nil
}

func (s *Service) highTrafficRule(ctx context.Context) (*Record, error) {
	visitors, err := s.analytics.UniqueVisitorsToday(ctx)
	if err != nil {
		return nil, err
	}
	if visitors <= s.highTrafficThreshold {
		return nil, nil
	}
	return &Record{
		Title:     "High traffic",
		Message:   fmt.Sprintf("%d unique visitors today", visitors),
		Kind:      KindVisit,
		Priority:  DefaultPriority(KindVisit),
		ActionURL: "/admin/analytics",
	}, nil
}
