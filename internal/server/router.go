package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eryxon3d/eryxon-sync/internal/events"
	"github.com/eryxon3d/eryxon-sync/internal/syncengine"
	"github.com/eryxon3d/eryxon-sync/internal/tenant"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	tenantIDContextKey = "eryxon_tenant_id"
	eventHeartbeat     = "heartbeat"
	heartbeatInterval  = 30 * time.Second
)

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingTenantResolver = errors.New("tenant resolver dependency required")
	errMissingSyncService    = errors.New("sync service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// TokenValidator checks a bearer credential and returns the tenant subject.
type TokenValidator interface {
	ValidateToken(token string) (string, error)
}

// TenantResolver maps a token subject to an active tenant.
type TenantResolver interface {
	Resolve(ctx context.Context, tenantID string) (tenant.Tenant, error)
	TouchLastSync(ctx context.Context, tenantID string)
}

// EventSource exposes one tenant's completion-event stream.
type EventSource interface {
	Subscribe(ctx context.Context, tenantID string) (<-chan events.Message, func())
}

// Dependencies wires the HTTP surface to its collaborators. Events is
// optional; without it the /events stream is not registered.
type Dependencies struct {
	TokenValidator TokenValidator
	Tenants        TenantResolver
	SyncService    *syncengine.Service
	Events         EventSource
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin router serving the sync API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenValidator == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Tenants == nil {
		return nil, errMissingTenantResolver
	}
	if deps.SyncService == nil {
		return nil, errMissingSyncService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"success": false, "error": "method_not_allowed"})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown_route"})
	})

	handler := &httpHandler{
		tokens:      deps.TokenValidator,
		tenants:     deps.Tenants,
		syncService: deps.SyncService,
		events:      deps.Events,
		logger:      logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/diff", handler.handleDiff)
	protected.POST("/sync", handler.handleSync)
	protected.GET("/status", handler.handleStatus)
	if deps.Events != nil {
		protected.GET("/events", handler.handleEvents)
	}

	return router, nil
}

type httpHandler struct {
	tokens      TokenValidator
	tenants     TenantResolver
	syncService *syncengine.Service
	events      EventSource
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type syncOptionsPayload struct {
	SkipUnchanged   *bool `json:"skip_unchanged"`
	BatchSize       *int  `json:"batch_size"`
	ContinueOnError *bool `json:"continue_on_error"`
	RecordHistory   *bool `json:"record_history"`
}

type syncRequestPayload struct {
	Jobs      []syncengine.RecordPayload `json:"jobs"`
	Parts     []syncengine.RecordPayload `json:"parts"`
	Resources []syncengine.RecordPayload `json:"resources"`
	Source    string                     `json:"source"`
	Options   *syncOptionsPayload        `json:"options"`
}

func (p syncRequestPayload) toRequest() syncengine.Request {
	request := syncengine.Request{
		Source:   strings.TrimSpace(p.Source),
		Entities: map[syncengine.EntityType][]syncengine.RecordPayload{},
		Options:  syncengine.DefaultSyncOptions(),
	}
	if p.Jobs != nil {
		request.Entities[syncengine.EntityTypeJobs] = p.Jobs
	}
	if p.Parts != nil {
		request.Entities[syncengine.EntityTypeParts] = p.Parts
	}
	if p.Resources != nil {
		request.Entities[syncengine.EntityTypeResources] = p.Resources
	}
	if p.Options != nil {
		if p.Options.SkipUnchanged != nil {
			request.Options.SkipUnchanged = *p.Options.SkipUnchanged
		}
		if p.Options.BatchSize != nil && *p.Options.BatchSize > 0 {
			request.Options.BatchSize = *p.Options.BatchSize
		}
		if p.Options.ContinueOnError != nil {
			request.Options.ContinueOnError = *p.Options.ContinueOnError
		}
		if p.Options.RecordHistory != nil {
			request.Options.RecordSyncHistory = *p.Options.RecordHistory
		}
	}
	return request
}

func (h *httpHandler) handleDiff(c *gin.Context) {
	tenantID, ok := h.tenantFromContext(c)
	if !ok {
		return
	}

	var payload syncRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}

	report, err := h.syncService.Diff(c.Request.Context(), tenantID, payload.toRequest())
	if err != nil {
		h.logger.Error("diff failed", zap.Error(err), zap.String("tenant_id", tenantID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "diff_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

func (h *httpHandler) handleSync(c *gin.Context) {
	tenantID, ok := h.tenantFromContext(c)
	if !ok {
		return
	}

	var payload syncRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request"})
		return
	}

	report, err := h.syncService.Sync(c.Request.Context(), tenantID, payload.toRequest())
	if err != nil {
		h.logger.Error("sync failed", zap.Error(err), zap.String("tenant_id", tenantID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "sync_failed"})
		return
	}

	if report.Summary.Created+report.Summary.Updated > 0 {
		h.tenants.TouchLastSync(c.Request.Context(), tenantID.String())
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": report})
}

func (h *httpHandler) handleStatus(c *gin.Context) {
	tenantID, ok := h.tenantFromContext(c)
	if !ok {
		return
	}

	query := syncengine.StatusQuery{
		EntityType: strings.TrimSpace(c.Query("entity_type")),
		Source:     strings.TrimSpace(c.Query("source")),
	}
	if rawLimit := c.Query("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_limit"})
			return
		}
		query.Limit = limit
	}

	report, err := h.syncService.Status(c.Request.Context(), tenantID, query)
	if err != nil {
		h.logger.Error("status query failed", zap.Error(err), zap.String("tenant_id", tenantID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "status_failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleEvents streams sync completion events for the caller's tenant as
// server-sent events, with periodic heartbeats so proxies keep the
// connection open.
func (h *httpHandler) handleEvents(c *gin.Context) {
	tenantID, ok := h.tenantFromContext(c)
	if !ok {
		return
	}

	stream, cancel := h.events.Subscribe(c.Request.Context(), tenantID.String())
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Content-Type", "text/event-stream")
	// Flush headers now so the subscription is live before the client
	// sees the response.
	c.Status(http.StatusOK)
	c.Writer.Flush()
	c.Stream(func(io.Writer) bool {
		select {
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, gin.H{
				"payload":   message.Payload,
				"timestamp": message.Timestamp.UTC().Format(time.RFC3339),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(eventHeartbeat, gin.H{})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *httpHandler) tenantFromContext(c *gin.Context) (syncengine.TenantID, bool) {
	raw := c.GetString(tenantIDContextKey)
	tenantID, err := syncengine.NewTenantID(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return "", false
	}
	return tenantID, true
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": errInvalidAuthorization.Error()})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	resolved, err := h.tenants.Resolve(c.Request.Context(), subject)
	if err != nil {
		h.logger.Warn("tenant resolution failed", zap.Error(err), zap.String("subject", subject))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
		return
	}
	c.Set(tenantIDContextKey, resolved.ID)
	c.Next()
}

// bearerToken reads the credential from the Authorization header, falling
// back to the access_token query parameter for EventSource clients that
// cannot set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}
