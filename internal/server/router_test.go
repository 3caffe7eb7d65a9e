package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/folioworks/folio/backend/internal/analytics"
	"github.com/folioworks/folio/backend/internal/auth"
	"github.com/folioworks/folio/backend/internal/contact"
	"github.com/folioworks/folio/backend/internal/feedback"
	"github.com/folioworks/folio/backend/internal/notification"
	"github.com/folioworks/folio/backend/internal/stats"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testAdminToken = "test-admin-token"

type serverFixture struct {
	handler  http.Handler
	database *gorm.DB
	events   *EventDispatcher
	now      time.Time
	cvPath   string
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	err = db.AutoMigrate(
		&contact.Message{}, &contact.Reply{},
		&feedback.Entry{},
		&analytics.PageViewCounter{}, &analytics.ProjectAnalytic{},
		&analytics.CVDownload{}, &analytics.VisitSession{},
		&notification.Record{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

func newServerFixture(t *testing.T) serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := openTestDatabase(t)

	contacts, err := contact.NewService(contact.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected contact service error: %v", err)
	}
	feedbackService, err := feedback.NewService(feedback.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected feedback service error: %v", err)
	}
	analyticsService, err := analytics.NewService(analytics.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("unexpected analytics service error: %v", err)
	}
	overview := stats.NewOverviewService(stats.OverviewServiceConfig{
		Contacts:  contacts,
		Feedback:  feedbackService,
		Analytics: analyticsService,
	})
	notifications, err := notification.NewService(notification.ServiceConfig{
		Database:  db,
		Contacts:  contacts,
		Analytics: analyticsService,
	})
	if err != nil {
		t.Fatalf("unexpected notification service error: %v", err)
	}

	cvPath := filepath.Join(t.TempDir(), "resume.pdf")
	if err := os.WriteFile(cvPath, []byte("%PDF-1.4 test resume"), 0o600); err != nil {
		t.Fatalf("failed to write cv fixture: %v", err)
	}

	events := NewEventDispatcher()
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	handler, err := NewHTTPHandler(Dependencies{
		Credentials:   auth.Credentials{Username: "admin", Password: "correct-horse"},
		TokenIssuer:   auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte("server-test-secret")}),
		Verifier:      auth.NewStaticVerifier(map[string]string{testAdminToken: "admin"}),
		Contacts:      contacts,
		Feedback:      feedbackService,
		Analytics:     analyticsService,
		Overview:      overview,
		Notifications: notifications,
		Events:        events,
		Clock:         func() time.Time { return now },
		CVFilePath:    cvPath,
		CVFileName:    "resume.pdf",
	})
	if err != nil {
		t.Fatalf("unexpected handler construction error: %v", err)
	}
	return serverFixture{handler: handler, database: db, events: events, now: now, cvPath: cvPath}
}

func performJSON(t *testing.T, handler http.Handler, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, target, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func TestLoginIssuesBearerToken(t *testing.T) {
	fixture := newServerFixture(t)

	recorder := performJSON(t, fixture.handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "admin", "password": "correct-horse"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	payload := decodeBody(t, recorder)
	if payload["token_type"] != "Bearer" {
		t.Fatalf("expected bearer token type, got %v", payload["token_type"])
	}
	if token, _ := payload["access_token"].(string); token == "" {
		t.Fatalf("expected non-empty access token")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	fixture := newServerFixture(t)

	recorder := performJSON(t, fixture.handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"username": "admin", "password": "wrong"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestAdminRoutesRequireBearerToken(t *testing.T) {
	fixture := newServerFixture(t)

	missing := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/contacts", "", nil)
	if missing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", missing.Code)
	}

	invalid := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/contacts", "not-a-real-token", nil)
	if invalid.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown token, got %d", invalid.Code)
	}

	valid := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/contacts", testAdminToken, nil)
	if valid.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d: %s", valid.Code, valid.Body.String())
	}
}

func TestContactLifecycleThroughAPI(t *testing.T) {
	fixture := newServerFixture(t)

	submitted := performJSON(t, fixture.handler, http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Ana", "email": "ana@example.com", "subject": "Hello", "message": "I liked the robotics project."})
	if submitted.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", submitted.Code, submitted.Body.String())
	}

	listed := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/contacts", testAdminToken, nil)
	if listed.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", listed.Code)
	}
	var listPayload struct {
		Contacts []contactPayload `json:"contacts"`
	}
	if err := json.Unmarshal(listed.Body.Bytes(), &listPayload); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(listPayload.Contacts) != 1 {
		t.Fatalf("expected one contact, got %d", len(listPayload.Contacts))
	}
	if listPayload.Contacts[0].IsRead {
		t.Fatalf("expected fresh contact to be unread")
	}

	target := fmt.Sprintf("/api/admin/contacts/%d/read", listPayload.Contacts[0].ID)
	marked := performJSON(t, fixture.handler, http.MethodPatch, target, testAdminToken, nil)
	if marked.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", marked.Code, marked.Body.String())
	}

	relisted := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/contacts", testAdminToken, nil)
	if err := json.Unmarshal(relisted.Body.Bytes(), &listPayload); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if !listPayload.Contacts[0].IsRead {
		t.Fatalf("expected contact to be read after PATCH")
	}
}

func TestContactSubmitRejectsMissingFields(t *testing.T) {
	fixture := newServerFixture(t)

	recorder := performJSON(t, fixture.handler, http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Ana"})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestMarkUnknownContactReadReturnsNotFound(t *testing.T) {
	fixture := newServerFixture(t)

	recorder := performJSON(t, fixture.handler, http.MethodPatch, "/api/admin/contacts/999/read", testAdminToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}

func TestTrackingEndpointsAlwaysReturnOK(t *testing.T) {
	fixture := newServerFixture(t)

	valid := performJSON(t, fixture.handler, http.MethodPost, "/api/track/page-view", "",
		map[string]string{"page_type": "page", "page_name": "home"})
	if valid.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid event, got %d", valid.Code)
	}
	if decodeBody(t, valid)["success"] != true {
		t.Fatalf("expected success=true for valid event")
	}

	invalid := performJSON(t, fixture.handler, http.MethodPost, "/api/track/page-view", "",
		map[string]string{"page_type": "page"})
	if invalid.Code != http.StatusOK {
		t.Fatalf("expected 200 for invalid event, got %d", invalid.Code)
	}
	if decodeBody(t, invalid)["success"] != false {
		t.Fatalf("expected success=false for invalid event")
	}

	// A broken analytics store must not surface as an error either.
	if err := fixture.database.Migrator().DropTable(&analytics.PageViewCounter{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}
	broken := performJSON(t, fixture.handler, http.MethodPost, "/api/track/page-view", "",
		map[string]string{"page_type": "page", "page_name": "home"})
	if broken.Code != http.StatusOK {
		t.Fatalf("expected 200 with broken store, got %d", broken.Code)
	}
	if decodeBody(t, broken)["success"] != false {
		t.Fatalf("expected success=false with broken store")
	}
}

func TestCVDownloadServesFileDespiteBrokenTracking(t *testing.T) {
	fixture := newServerFixture(t)

	if err := fixture.database.Migrator().DropTable(&analytics.CVDownload{}); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	recorder := performJSON(t, fixture.handler, http.MethodGet, "/api/download/cv", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !bytes.Contains(recorder.Body.Bytes(), []byte("%PDF-1.4")) {
		t.Fatalf("expected pdf payload, got %q", recorder.Body.String())
	}
	if disposition := recorder.Header().Get("Content-Disposition"); disposition == "" {
		t.Fatalf("expected content-disposition header")
	}
}

func TestCVDownloadRecordsDeviceBucket(t *testing.T) {
	fixture := newServerFixture(t)

	request := httptest.NewRequest(http.MethodGet, "/api/download/cv", nil)
	request.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)")
	recorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var downloads []analytics.CVDownload
	if err := fixture.database.Find(&downloads).Error; err != nil {
		t.Fatalf("failed to load downloads: %v", err)
	}
	if len(downloads) != 1 {
		t.Fatalf("expected one download row, got %d", len(downloads))
	}
	if downloads[0].Device != analytics.DeviceMobile {
		t.Fatalf("expected mobile device bucket, got %q", downloads[0].Device)
	}
}

func TestCVDownloadEventCarriesConfiguredClock(t *testing.T) {
	fixture := newServerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, cleanup := fixture.events.Subscribe(ctx)
	defer cleanup()

	recorder := performJSON(t, fixture.handler, http.MethodGet, "/api/download/cv", "", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	select {
	case event := <-stream:
		if event.Type != EventCVDownloaded {
			t.Fatalf("expected %q event, got %q", EventCVDownloaded, event.Type)
		}
		if !event.At.Equal(fixture.now) {
			t.Fatalf("expected event at %v, got %v", fixture.now, event.At)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a download event")
	}
}

func TestFeedbackSubmitAndAdminFilter(t *testing.T) {
	fixture := newServerFixture(t)

	bug := performJSON(t, fixture.handler, http.MethodPost, "/api/feedback", "",
		map[string]string{"name": "Ben", "feedback": "The theme toggle is broken.", "type": "bug"})
	if bug.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", bug.Code, bug.Body.String())
	}
	praise := performJSON(t, fixture.handler, http.MethodPost, "/api/feedback", "",
		map[string]string{"name": "Cara", "feedback": "Great portfolio!", "type": "compliment"})
	if praise.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", praise.Code)
	}

	filtered := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/feedback?type=bug", testAdminToken, nil)
	if filtered.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", filtered.Code)
	}
	var payload struct {
		Feedback []feedbackPayload `json:"feedback"`
	}
	if err := json.Unmarshal(filtered.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode feedback list: %v", err)
	}
	if len(payload.Feedback) != 1 || payload.Feedback[0].Type != "bug" {
		t.Fatalf("expected single bug entry, got %+v", payload.Feedback)
	}
}

func TestAdminStatsExposesAggregateKeys(t *testing.T) {
	fixture := newServerFixture(t)

	if code := performJSON(t, fixture.handler, http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Ana", "email": "a@b.com", "message": "Hi"}).Code; code != http.StatusCreated {
		t.Fatalf("expected seeded contact, got %d", code)
	}

	recorder := performJSON(t, fixture.handler, http.MethodGet, "/api/admin/stats", testAdminToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	for _, key := range []string{"totalContacts", "unreadContacts", "totalFeedback", "totalPageViews", "popularProject", "recentContacts"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("expected stats key %q, payload %v", key, payload)
		}
	}
	if payload["totalContacts"] != float64(1) {
		t.Fatalf("expected one contact in stats, got %v", payload["totalContacts"])
	}
}

func TestNotificationFeedAndMarkReadThroughAPI(t *testing.T) {
	fixture := newServerFixture(t)

	if code := performJSON(t, fixture.handler, http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Ana", "email": "a@b.com", "message": "Hi"}).Code; code != http.StatusCreated {
		t.Fatalf("expected seeded contact, got %d", code)
	}

	feed := performJSON(t, fixture.handler, http.MethodGet, "/api/notifications/unread", testAdminToken, nil)
	if feed.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", feed.Code)
	}
	var feedPayload notification.Feed
	if err := json.Unmarshal(feed.Body.Bytes(), &feedPayload); err != nil {
		t.Fatalf("failed to decode feed: %v", err)
	}
	if feedPayload.UnreadCount == 0 || len(feedPayload.Notifications) == 0 {
		t.Fatalf("expected unread notifications, got %+v", feedPayload)
	}

	marked := performJSON(t, fixture.handler, http.MethodPatch, "/api/notifications/contact-1/read", testAdminToken, nil)
	if marked.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", marked.Code, marked.Body.String())
	}

	missing := performJSON(t, fixture.handler, http.MethodPatch, "/api/notifications/garbage/read", testAdminToken, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for malformed id, got %d", missing.Code)
	}
}

func TestNotificationGenerateEndpointIsIdempotent(t *testing.T) {
	fixture := newServerFixture(t)

	if code := performJSON(t, fixture.handler, http.MethodPost, "/api/contact", "",
		map[string]string{"name": "Ana", "email": "a@b.com", "message": "Hi"}).Code; code != http.StatusCreated {
		t.Fatalf("expected seeded contact, got %d", code)
	}

	first := performJSON(t, fixture.handler, http.MethodPost, "/api/notifications/generate", testAdminToken, nil)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", first.Code, first.Body.String())
	}
	if decodeBody(t, first)["created"].(float64) == 0 {
		t.Fatalf("expected at least one generated notification")
	}

	second := performJSON(t, fixture.handler, http.MethodPost, "/api/notifications/generate", testAdminToken, nil)
	if second.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", second.Code)
	}
	if decodeBody(t, second)["created"].(float64) != 0 {
		t.Fatalf("expected second generate pass to create nothing")
	}
}

func TestAnalyticsOverviewShape(t *testing.T) {
	fixture := newServerFixture(t)

	if code := performJSON(t, fixture.handler, http.MethodPost, "/api/track/page-view", "",
		map[string]string{"page_type": "page", "page_name": "home"}).Code; code != http.StatusOK {
		t.Fatalf("expected tracked page view, got %d", code)
	}

	recorder := performJSON(t, fixture.handler, http.MethodGet, "/api/analytics/overview", testAdminToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	payload := decodeBody(t, recorder)
	if payload["totalPageViews"] != float64(1) {
		t.Fatalf("expected one page view, got %v", payload["totalPageViews"])
	}
	if _, ok := payload["downloads"].(map[string]interface{}); !ok {
		t.Fatalf("expected nested downloads object, got %v", payload["downloads"])
	}
}
