package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"wcp-bridge/server/internal/app"
	"wcp-bridge/server/internal/metrics"
	"wcp-bridge/server/internal/platform/logging"
	"wcp-bridge/server/internal/session"
)

type Handler struct {
	Svc     *app.Service
	Session *session.Session
	Metrics *metrics.Metrics
	// WS serves the websocket transport; nil leaves /ws unrouted.
	WS http.Handler
}

func NewHandler(svc *app.Service, sess *session.Session, m *metrics.Metrics, ws http.Handler) *Handler {
	return &Handler{Svc: svc, Session: sess, Metrics: m, WS: ws}
}

// NewEngine returns a gin engine with the routes installed.
func (h *Handler) NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	h.SetupRoutes(r)
	return r
}

func (h *Handler) SetupRoutes(r *gin.Engine) {
	if h.WS != nil {
		r.GET("/ws", gin.WrapH(h.WS))
	}
	r.GET("/healthz", h.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	apiGroup := r.Group("/api")
	apiGroup.GET("/session", h.GetSession)
	apiGroup.POST("/events/goto_declaration", h.GotoDeclaration)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"client_attached": h.Svc.Attached(),
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Snapshot())
}

type gotoDeclarationRequest struct {
	Variable string `json:"variable" binding:"required"`
}

// GotoDeclaration lets an editor integration push a goto_declaration event to the client.
func (h *Handler) GotoDeclaration(c *gin.Context) {
	var req gotoDeclarationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.Svc.Attached() {
		c.JSON(http.StatusConflict, gin.H{"error": "no client attached"})
		return
	}
	if err := h.Svc.NotifyGotoDeclaration(req.Variable); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logging.Component("http").WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"status": c.Writer.Status(),
		}).Debug("request")
	}
}
