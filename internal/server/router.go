package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/folioworks/folio/backend/internal/analytics"
	"github.com/folioworks/folio/backend/internal/auth"
	"github.com/folioworks/folio/backend/internal/contact"
	"github.com/folioworks/folio/backend/internal/feedback"
	"github.com/folioworks/folio/backend/internal/notification"
	"github.com/folioworks/folio/backend/internal/stats"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const adminSubjectContextKey = "folio_admin_subject"

var (
	errMissingVerifier      = errors.New("token verifier dependency required")
	errMissingIssuer        = errors.New("token issuer dependency required")
	errMissingContacts      = errors.New("contact service dependency required")
	errMissingFeedback      = errors.New("feedback service dependency required")
	errMissingAnalytics     = errors.New("analytics service dependency required")
	errMissingOverview      = errors.New("overview service dependency required")
	errMissingNotifications = errors.New("notification service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// Dependencies wires the services behind the HTTP surface.
type Dependencies struct {
	Credentials   auth.Credentials
	TokenIssuer   *auth.TokenIssuer
	Verifier      auth.TokenVerifier
	Contacts      *contact.Service
	Feedback      *feedback.Service
	Analytics     *analytics.Service
	Overview      *stats.OverviewService
	Notifications *notification.Service
	Events        *EventDispatcher
	Clock         func() time.Time
	CVFilePath    string
	CVFileName    string
	Logger        *zap.Logger
}

// NewHTTPHandler assembles the gin router for the portfolio API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Verifier == nil {
		return nil, errMissingVerifier
	}
	if deps.TokenIssuer == nil {
		return nil, errMissingIssuer
	}
	if deps.Contacts == nil {
		return nil, errMissingContacts
	}
	if deps.Feedback == nil {
		return nil, errMissingFeedback
	}
	if deps.Analytics == nil {
		return nil, errMissingAnalytics
	}
	if deps.Overview == nil {
		return nil, errMissingOverview
	}
	if deps.Notifications == nil {
		return nil, errMissingNotifications
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := deps.Events
	if events == nil {
		events = NewEventDispatcher()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		credentials:   deps.Credentials,
		issuer:        deps.TokenIssuer,
		verifier:      deps.Verifier,
		contacts:      deps.Contacts,
		feedback:      deps.Feedback,
		analytics:     deps.Analytics,
		overview:      deps.Overview,
		notifications: deps.Notifications,
		events:        events,
		clock:         clock,
		cvFilePath:    deps.CVFilePath,
		cvFileName:    deps.CVFileName,
		logger:        logger,
	}

	router.POST("/api/auth/login", handler.handleLogin)
	router.POST("/api/contact", handler.handleContactSubmit)
	router.POST("/api/feedback", handler.handleFeedbackSubmit)
	router.POST("/api/track/page-view", handler.handleTrackPageView)
	router.POST("/api/track/project-click", handler.handleTrackProjectClick)
	router.POST("/api/track/visit", handler.handleTrackVisit)
	router.GET("/api/download/cv", handler.handleCVDownload)

	protected := router.Group("/api")
	protected.Use(handler.authorizeRequest)
	protected.GET("/admin/contacts", handler.handleAdminListContacts)
	protected.PATCH("/admin/contacts/:id/read", handler.handleAdminMarkContactRead)
	protected.DELETE("/admin/contacts/:id", handler.handleAdminDeleteContact)
	protected.POST("/admin/contacts/:id/reply", handler.handleAdminReplyContact)
	protected.GET("/admin/feedback", handler.handleAdminListFeedback)
	protected.GET("/admin/stats", handler.handleAdminStats)
	protected.GET("/admin/analytics", handler.handleAnalyticsOverview)
	protected.GET("/analytics/overview", handler.handleAnalyticsOverview)
	protected.GET("/admin/events", handler.handleAdminEvents)
	protected.GET("/notifications", handler.handleNotificationsFeed)
	protected.GET("/notifications/unread", handler.handleNotificationsUnread)
	protected.PATCH("/notifications/read-all", handler.handleNotificationsReadAll)
	protected.PATCH("/notifications/:id/read", handler.handleNotificationMarkRead)
	protected.POST("/notifications/generate", handler.handleNotificationsGenerate)

	return router, nil
}

type httpHandler struct {
	credentials   auth.Credentials
	issuer        *auth.TokenIssuer
	verifier      auth.TokenVerifier
	contacts      *contact.Service
	feedback      *feedback.Service
	analytics     *analytics.Service
	overview      *stats.OverviewService
	notifications *notification.Service
	events        *EventDispatcher
	clock         func() time.Time
	cvFilePath    string
	cvFileName    string
	logger        *zap.Logger
}

type loginRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	if !h.credentials.Match(request.Username, request.Password) {
		h.logger.Warn("admin login rejected", zap.String("username", request.Username))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
		return
	}

	token, expiresIn, err := h.issuer.IssueAdminToken(c.Request.Context(), request.Username)
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.verifier.VerifyToken(token)
	if err != nil {
		h.logger.Warn("token verification failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Set(adminSubjectContextKey, subject)
	c.Next()
}

type contactSubmitPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (h *httpHandler) handleContactSubmit(c *gin.Context) {
	var request contactSubmitPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	message, err := h.contacts.Submit(c.Request.Context(), contact.SubmitRequest{
		Name:    request.Name,
		Email:   request.Email,
		Subject: request.Subject,
		Body:    request.Message,
	})
	if errors.Is(err, contact.ErrInvalidSubmission) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to store contact message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission_failed"})
		return
	}

	h.events.Publish(Event{
		Type:    EventContactReceived,
		Title:   "New contact message",
		Message: message.Name,
		At:      message.CreatedAt,
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Message received", "id": message.ID})
}

type feedbackSubmitPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Feedback string `json:"feedback"`
	Type     string `json:"type"`
}

func (h *httpHandler) handleFeedbackSubmit(c *gin.Context) {
	var request feedbackSubmitPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	entry, err := h.feedback.Submit(c.Request.Context(), feedback.SubmitRequest{
		Name:  request.Name,
		Email: request.Email,
		Body:  request.Feedback,
		Kind:  request.Type,
	})
	if errors.Is(err, feedback.ErrInvalidSubmission) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to store feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission_failed"})
		return
	}

	h.events.Publish(Event{
		Type:    EventFeedbackReceived,
		Title:   "New feedback",
		Message: string(entry.Kind),
		At:      entry.CreatedAt,
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Feedback received", "id": entry.ID})
}

type pageViewPayload struct {
	PageType string `json:"page_type"`
	PageName string `json:"page_name"`
}

// Tracking endpoints are best effort: a failed write is logged and the
// caller still gets a success-shaped 200 so telemetry never blocks a
// user-visible action.
func (h *httpHandler) handleTrackPageView(c *gin.Context) {
	var request pageViewPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if err := h.analytics.TrackPageView(c.Request.Context(), request.PageType, request.PageName); err != nil {
		h.logger.Warn("page view tracking failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type projectClickPayload struct {
	ProjectName string `json:"project_name"`
	ProjectURL  string `json:"project_url"`
}

func (h *httpHandler) handleTrackProjectClick(c *gin.Context) {
	var request projectClickPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	if err := h.analytics.TrackProjectClick(c.Request.Context(), request.ProjectName, request.ProjectURL); err != nil {
		h.logger.Warn("project click tracking failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type visitPayload struct {
	PageName string `json:"page_name"`
}

func (h *httpHandler) handleTrackVisit(c *gin.Context) {
	var request visitPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	err := h.analytics.RecordVisit(c.Request.Context(), request.PageName, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.logger.Warn("visit tracking failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleCVDownload streams the CV file. The download log is best
// effort: the file is served even when the insert fails.
func (h *httpHandler) handleCVDownload(c *gin.Context) {
	err := h.analytics.RecordCVDownload(c.Request.Context(), h.cvFileName, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.logger.Warn("cv download tracking failed", zap.Error(err))
	} else {
		h.events.Publish(Event{
			Type:  EventCVDownloaded,
			Title: "CV downloaded",
			At:    h.clock().UTC(),
		})
	}
	c.FileAttachment(h.cvFilePath, h.cvFileName)
}

type contactPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"isRead"`
	HasReply  bool      `json:"hasReply"`
	CreatedAt time.Time `json:"createdAt"`
}

func toContactPayload(message contact.Message) contactPayload {
	return contactPayload{
		ID:        message.ID,
		Name:      message.Name,
		Email:     message.Email,
		Subject:   message.Subject,
		Message:   message.Body,
		IsRead:    message.IsRead,
		HasReply:  message.HasReply,
		CreatedAt: message.CreatedAt,
	}
}

func (h *httpHandler) handleAdminListContacts(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	messages, err := h.contacts.List(c.Request.Context(), contact.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		h.logger.Error("failed to list contacts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	payload := make([]contactPayload, 0, len(messages))
	for _, message := range messages {
		payload = append(payload, toContactPayload(message))
	}
	c.JSON(http.StatusOK, gin.H{"contacts": payload})
}

func (h *httpHandler) handleAdminMarkContactRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.contacts.MarkRead(c.Request.Context(), id)
	if errors.Is(err, contact.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to mark contact read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *httpHandler) handleAdminDeleteContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	err := h.contacts.Delete(c.Request.Context(), id)
	if errors.Is(err, contact.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to delete contact", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type replyPayload struct {
	Body string `json:"body"`
}

func (h *httpHandler) handleAdminReplyContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var request replyPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	reply, err := h.contacts.Reply(c.Request.Context(), id, request.Body)
	if errors.Is(err, contact.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, contact.ErrInvalidSubmission) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("failed to store reply", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reply_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "reply stored", "id": reply.ID})
}

type feedbackPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Feedback  string    `json:"feedback"`
	Type      string    `json:"type"`
	IsRead    bool      `json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *httpHandler) handleAdminListFeedback(c *gin.Context) {
	kind, err := feedback.ParseKind(c.Query("type"))
	if c.Query("type") != "" && err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_type"})
		return
	}
	opts := feedback.ListOptions{
		Limit:  queryInt(c, "limit", 50),
		Offset: queryInt(c, "offset", 0),
	}
	if c.Query("type") != "" {
		opts.Kind = kind
	}

	entries, err := h.feedback.List(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list feedback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	payload := make([]feedbackPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, feedbackPayload{
			ID:        entry.ID,
			Name:      entry.Name,
			Email:     entry.Email,
			Feedback:  entry.Body,
			Type:      string(entry.Kind),
			IsRead:    entry.IsRead,
			CreatedAt: entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"feedback": payload})
}

func (h *httpHandler) handleAdminStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.overview.AdminStats(c.Request.Context()))
}

func (h *httpHandler) handleAnalyticsOverview(c *gin.Context) {
	c.JSON(http.StatusOK, h.overview.AnalyticsOverview(c.Request.Context()))
}

func (h *httpHandler) handleNotificationsFeed(c *gin.Context) {
	feed := h.notifications.Feed(c.Request.Context(), notification.FeedOptions{
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	})
	c.JSON(http.StatusOK, feed)
}

func (h *httpHandler) handleNotificationsUnread(c *gin.Context) {
	feed := h.notifications.Feed(c.Request.Context(), notification.FeedOptions{
		Limit:      queryInt(c, "limit", 0),
		Offset:     queryInt(c, "offset", 0),
		UnreadOnly: true,
	})
	c.JSON(http.StatusOK, feed)
}

func (h *httpHandler) handleNotificationMarkRead(c *gin.Context) {
	err := h.notifications.MarkRead(c.Request.Context(), c.Param("id"))
	if errors.Is(err, notification.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to mark notification read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked as read"})
}

func (h *httpHandler) handleNotificationsReadAll(c *gin.Context) {
	updated, err := h.notifications.MarkAllRead(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to mark notifications read", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleNotificationsGenerate(c *gin.Context) {
	created, err := h.notifications.Generate(c.Request.Context())
	if err != nil {
		h.logger.Error("notification generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate_failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": created})
}

func (h *httpHandler) handleAdminEvents(c *gin.Context) {
	stream, cleanup := h.events.Subscribe(c.Request.Context())
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case event, ok := <-stream:
			if !ok {
				return
			}
			c.SSEvent("notification", event)
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().UTC())
			c.Writer.Flush()
		}
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}
