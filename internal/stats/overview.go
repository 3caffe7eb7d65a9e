package stats

import (
	"context"
	"time"

	"github.com/folioworks/folio/backend/internal/analytics"
	"github.com/folioworks/folio/backend/internal/contact"
	"github.com/folioworks/folio/backend/internal/feedback"
	"go.uber.org/zap"
)

const defaultRecentContacts = 5

// OverviewServiceConfig wires the domain services whose numbers feed
// the admin dashboards.
type OverviewServiceConfig struct {
	Contacts     *contact.Service
	Feedback     *feedback.Service
	Analytics    *analytics.Service
	RecentLimit  int
	QueryTimeout time.Duration
	Logger       *zap.Logger
}

// OverviewService assembles the admin stats and analytics overview
// aggregates from independent per-key sources.
type OverviewService struct {
	contacts    *contact.Service
	feedback    *feedback.Service
	analytics   *analytics.Service
	composer    *Composer
	recentLimit int
}

// NewOverviewService constructs the overview service.
func NewOverviewService(cfg OverviewServiceConfig) *OverviewService {
	recentLimit := cfg.RecentLimit
	if recentLimit <= 0 {
		recentLimit = defaultRecentContacts
	}
	return &OverviewService{
		contacts:    cfg.Contacts,
		feedback:    cfg.Feedback,
		analytics:   cfg.Analytics,
		composer:    NewComposer(ComposerConfig{Timeout: cfg.QueryTimeout, Logger: cfg.Logger}),
		recentLimit: recentLimit,
	}
}

// AdminStats returns the dashboard numbers. Every key is always
// present; keys whose query failed hold their safe default.
func (s *OverviewService) AdminStats(ctx context.Context) map[string]interface{} {
	return s.composer.Compose(ctx, map[string]Source{
		"totalContacts":    count(s.contacts.CountAll),
		"unreadContacts":   count(s.contacts.CountUnread),
		"totalFeedback":    count(s.feedback.CountAll),
		"totalPageViews":   count(s.analytics.TotalPageViews),
		"totalClicks":      count(s.analytics.TotalProjectClicks),
		"totalDownloads":   count(s.analytics.CVDownloadCount),
		"todayDownloads":   count(s.analytics.CVDownloadsToday),
		"todayVisits":      count(s.analytics.VisitsToday),
		"todayVisitors":    count(s.analytics.UniqueVisitorsToday),
		"popularProject":   s.popularProjectSource(),
		"recentContacts":   s.recentContactsSource(),
	})
}

// AnalyticsOverview returns the full analytics breakdown used by the
// admin analytics page, with the same per-key defaulting policy.
func (s *OverviewService) AnalyticsOverview(ctx context.Context) map[string]interface{} {
	return s.composer.Compose(ctx, map[string]Source{
		"pageViews": {
			Run: func(ctx context.Context) (interface{}, error) {
				return s.analytics.PageViews(ctx)
			},
			Default: []analytics.PageViewCounter{},
		},
		"projects": {
			Run: func(ctx context.Context) (interface{}, error) {
				return s.analytics.ProjectAnalytics(ctx)
			},
			Default: []analytics.ProjectAnalytic{},
		},
		"totalPageViews": count(s.analytics.TotalPageViews),
		"totalClicks":    count(s.analytics.TotalProjectClicks),
		"downloads": {
			Run: func(ctx context.Context) (interface{}, error) {
				total, err := s.analytics.CVDownloadCount(ctx)
				if err != nil {
					return nil, err
				}
				today, err := s.analytics.CVDownloadsToday(ctx)
				if err != nil {
					return nil, err
				}
				devices, err := s.analytics.DeviceBreakdown(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"total": total, "today": today, "devices": devices}, nil
			},
			Default: map[string]interface{}{"total": int64(0), "today": int64(0), "devices": map[string]int64{}},
		},
		"visits": {
			Run: func(ctx context.Context) (interface{}, error) {
				total, err := s.analytics.TotalVisits(ctx)
				if err != nil {
					return nil, err
				}
				today, err := s.analytics.VisitsToday(ctx)
				if err != nil {
					return nil, err
				}
				unique, err := s.analytics.UniqueVisitorsToday(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"total": total, "today": today, "uniqueToday": unique}, nil
			},
			Default: map[string]interface{}{"total": int64(0), "today": int64(0), "uniqueToday": int64(0)},
		},
	})
}

func (s *OverviewService) popularProjectSource() Source {
	return Source{
		Run: func(ctx context.Context) (interface{}, error) {
			top, err := s.analytics.TopProject(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"projectName": top.ProjectName, "clicks": top.Clicks}, nil
		},
		Default: map[string]interface{}{"projectName": "", "clicks": int64(0)},
	}
}

func (s *OverviewService) recentContactsSource() Source {
	return Source{
		Run: func(ctx context.Context) (interface{}, error) {
			return s.contacts.List(ctx, contact.ListOptions{Limit: s.recentLimit})
		},
		Default: []contact.Message{},
	}
}

func count(fn func(context.Context) (int64, error)) Source {
	return Source{
		Run: func(ctx context.Context) (interface{}, error) {
			return fn(ctx)
		},
		Default: int64(0),
	}
}
