package analytics

import "time"

// PageViewCounter holds the running view count for one tracked page.
// One row per (page_type, page_name); views only ever increase.
type PageViewCounter struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PageType  string    `gorm:"column:page_type;size:64;not null;uniqueIndex:idx_page_type_name,priority:1"`
	PageName  string    `gorm:"column:page_name;size:190;not null;uniqueIndex:idx_page_type_name,priority:2"`
	Views     int64     `gorm:"column:views;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PageViewCounter) TableName() string {
	return "page_view_counters"
}

// ProjectAnalytic holds click and view counts for one showcased project.
type ProjectAnalytic struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ProjectName string    `gorm:"column:project_name;size:190;not null;uniqueIndex"`
	ProjectURL  string    `gorm:"column:project_url;size:512"`
	Clicks      int64     `gorm:"column:clicks;not null;default:0"`
	Views       int64     `gorm:"column:views;not null;default:0"`
	LastClicked time.Time `gorm:"column:last_clicked"`
}

// TableName provides the explicit table binding for GORM.
func (ProjectAnalytic) TableName() string {
	return "project_analytics"
}

// CVDownload is an append-only record of one CV download.
type CVDownload struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	FileName     string    `gorm:"column:file_name;size:190;not null"`
	IPAddress    string    `gorm:"column:ip_address;size:64"`
	UserAgent    string    `gorm:"column:user_agent;size:512"`
	Device       string    `gorm:"column:device;size:32;not null"`
	DownloadedAt time.Time `gorm:"column:downloaded_at;not null;index"`
}

// TableName provides the explicit table binding for GORM.
func (CVDownload) TableName() string {
	return "cv_downloads"
}

// VisitSession is an append-only record of one page visit. VisitorKey
// is a stable hash of the caller's address and user agent, used for
// same-day unique-visitor counts.
type VisitSession struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	VisitorKey string    `gorm:"column:visitor_key;size:64;not null;index:idx_visit_key_created,priority:1"`
	PageName   string    `gorm:"column:page_name;size:190"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;index:idx_visit_key_created,priority:2"`
}

// TableName provides the explicit table binding for GORM.
func (VisitSession) TableName() string {
	return "visit_sessions"
}
