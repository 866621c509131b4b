package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cubiclauncher/kepler/internal/domain/app"
	"github.com/cubiclauncher/kepler/internal/infrastructure/monitoring"
	"github.com/cubiclauncher/kepler/internal/shared/paths"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ServiceInfo is reported by the root endpoint
type ServiceInfo struct {
	Name    string `json:"service"`
	Version string `json:"version"`
}

// Options configures the handler set
type Options struct {
	Info    ServiceInfo
	Layout  paths.Layout
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
	// Timeout bounds every state change, including the presence call
	Timeout time.Duration
}

// Handlers contains all HTTP handlers
type Handlers struct {
	manager *app.Manager
	metrics *monitoring.Metrics
	layout  paths.Layout
	info    ServiceInfo
	timeout time.Duration
	log     *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(manager *app.Manager, opts Options) *Handlers {
	h := &Handlers{
		manager: manager,
		metrics: opts.Metrics,
		layout:  opts.Layout,
		info:    opts.Info,
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
	if h.timeout <= 0 {
		h.timeout = 5 * time.Second
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h
}

// Register mounts the handlers on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/state", h.GetState)
	router.POST("/state/playing", h.SetPlaying)
	router.POST("/state/idle", h.SetIdle)

	router.POST("/presence/disconnect", h.DisconnectPresence)

	router.GET("/paths", h.GetPaths)
	router.GET("/metrics/json", h.MetricsJSON)
	router.POST("/logs", h.StreamLogs)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": h.info.Name,
		"version": h.info.Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status": "healthy",
		"state":  h.manager.Snapshot(),
		"presence": gin.H{
			"attached": h.manager.HasPresenceClient(),
		},
	}
	if err := h.manager.Validate(); err != nil {
		resp["status"] = "degraded"
		resp["error"] = err.Error()
	}
	if h.metrics != nil {
		resp["metrics"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, resp)
}

// GetState returns the current activity snapshot
func (h *Handlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

// PlayingRequest is the body of POST /state/playing
type PlayingRequest struct {
	Version string `json:"version"`
}

// SetPlaying switches the launcher to playing a game version
func (h *Handlers) SetPlaying(c *gin.Context) {
	var req PlayingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.manager.TransitionToPlaying(ctx, req.Version); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

// SetIdle switches the launcher to idle
func (h *Handlers) SetIdle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.manager.TransitionToIdle(ctx); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

// DisconnectPresence detaches and disconnects the presence client.
// Later transitions are tracked locally only.
func (h *Handlers) DisconnectPresence(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if err := h.manager.DisconnectPresenceClient(ctx); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

// GetPaths returns the launcher directory layout
func (h *Handlers) GetPaths(c *gin.Context) {
	c.JSON(http.StatusOK, h.layout)
}

// MetricsJSON returns the metrics snapshot for the launcher UI
func (h *Handlers) MetricsJSON(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled", "code": "not_found"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}
