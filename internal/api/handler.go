package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/service"
	"registration-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Cookie names
const (
	SessionCookie      = "session"
	AdminSessionCookie = "admin_session"
)

const (
	ctxSession = "buyer_session"
	ctxAdminID = "admin_id"
)

// Pinger is a dependency checked by /ready.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	registration  *service.RegistrationService
	admin         *service.AdminService
	deps          map[string]Pinger
	secureCookies bool
	logger        *zap.Logger
}

// NewHandler creates a new HTTP handler. deps are checked by /ready.
func NewHandler(registration *service.RegistrationService, admin *service.AdminService, deps map[string]Pinger, secureCookies bool) *Handler {
	return &Handler{
		registration:  registration,
		admin:         admin,
		deps:          deps,
		secureCookies: secureCookies,
		logger:        util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/auth/login", h.login)
		api.POST("/auth/logout", h.logout)

		buyer := api.Group("", h.requireBuyer())
		buyer.GET("/orders", h.listBuyerOrders)
		buyer.GET("/participants/:orderId", h.getParticipants)
		buyer.PUT("/participants/:orderId", h.saveParticipant)
	}

	admin := router.Group("/api/admin")
	{
		admin.POST("/auth/login", h.adminLogin)
		admin.POST("/auth/logout", h.adminLogout)

		authed := admin.Group("", h.requireAdmin())
		authed.GET("/stats", h.adminStats)
		authed.GET("/orders", h.adminListOrders)
		authed.GET("/orders/export", h.adminExport)
		authed.POST("/orders/cancel", h.adminCancelOrders)
		authed.GET("/orders/:id", h.adminGetOrder)
		authed.PUT("/orders/:id", h.adminUpdateOrder)
		authed.PUT("/participants/:id", h.adminUpdateParticipant)
		authed.GET("/audit", h.adminAuditLog)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	status := http.StatusOK
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "up"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().Unix(),
	})
}

// login handles buyer login
func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.registration.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setCookie(c, SessionCookie, resp.Session.ID, service.SessionTTL)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) logout(c *gin.Context) {
	token, _ := c.Cookie(SessionCookie)
	if err := h.registration.Logout(c.Request.Context(), token); err != nil {
		h.writeError(c, err)
		return
	}
	h.setCookie(c, SessionCookie, "", -1)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (h *Handler) listBuyerOrders(c *gin.Context) {
	overview, err := h.registration.Overview(c.Request.Context(), buyerSession(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (h *Handler) getParticipants(c *gin.Context) {
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	order, err := h.registration.OrderParticipants(c.Request.Context(), buyerSession(c), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) saveParticipant(c *gin.Context) {
	orderID, ok := pathID(c, "orderId")
	if !ok {
		return
	}
	var req service.ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	p, err := h.registration.SaveParticipant(c.Request.Context(), buyerSession(c), orderID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// requireBuyer resolves the session cookie or aborts with 401.
func (h *Handler) requireBuyer() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(SessionCookie)
		sess, err := h.registration.Session(c.Request.Context(), token)
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(ctxSession, sess)
		c.Next()
	}
}

func buyerSession(c *gin.Context) *models.Session {
	return c.MustGet(ctxSession).(*models.Session)
}

func (h *Handler) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	maxAge := -1
	if ttl > 0 {
		maxAge = int(ttl.Seconds())
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secureCookies, true)
}

// writeError maps service errors to status codes. Internal details are only
// logged.
func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrTooManyTries):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts"})
	default:
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
