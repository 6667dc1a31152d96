// Package controlapi exposes the small set of idempotent control-plane
// operations: alert-rule CRUD, pricing-table reload, a health probe,
// Prometheus scraping, and a WebSocket front-end for the realtime bus.
// This sits outside the ingestion core itself, but every process needs
// some way to drive the CRUD and health surfaces the core defines, so
// this package wires gin over *controller.Controller.
package controlapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beaconhq/pulse/pkg/bus"
	"github.com/beaconhq/pulse/pkg/controller"
	"github.com/beaconhq/pulse/pkg/span"
	"github.com/beaconhq/pulse/pkg/version"
)

// wsWriteTimeout bounds each outgoing WebSocket frame, matching the
// per-commit/per-rule timeout discipline the design applies elsewhere.
const wsWriteTimeout = 5 * time.Second

// Server is the control-plane HTTP surface. It holds no pipeline state of
// its own — every handler delegates to the Controller it was built over.
type Server struct {
	ctrl   *controller.Controller
	router *gin.Engine
}

// New builds a gin.Engine exposing the routes below. mode is passed
// through to gin.SetMode (e.g. "debug", "release"), driven by the
// process's GIN_MODE environment variable at startup.
func New(ctrl *controller.Controller, mode string) *Server {
	gin.SetMode(mode)
	r := gin.Default()

	s := &Server{ctrl: ctrl, router: r}
	s.registerRoutes()
	return s
}

// Router returns the underlying gin.Engine for ListenAndServe or testing.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.ctrl.Metrics().Registry(), promhttp.HandlerOpts{})))

	rules := s.router.Group("/api/v1/rules")
	rules.GET("", s.listRules)
	rules.POST("", s.createRule)
	rules.GET("/:id", s.getRule)
	rules.PUT("/:id", s.updateRule)
	rules.DELETE("/:id", s.deleteRule)
	rules.POST("/:id/enable", s.setRuleEnabled(true))
	rules.POST("/:id/disable", s.setRuleEnabled(false))

	s.router.POST("/api/v1/events/:id/ack", s.acknowledgeEvent)

	s.router.POST("/api/v1/pricing/reload", s.reloadPricing)

	s.router.GET("/ws", s.handleWebSocket)
}

// handleHealth reports the pipeline's degraded/healthy state and
// per-stage lag counters.
func (s *Server) handleHealth(c *gin.Context) {
	health := s.ctrl.Health()
	status := http.StatusOK
	if health.Degraded {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status":  healthStatusString(health.Healthy),
		"version": version.Full(),
		"health":  health,
	})
}

func healthStatusString(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "degraded"
}

// handleWebSocket fronts the realtime bus for dashboard clients.
func (s *Server) handleWebSocket(c *gin.Context) {
	bus.NewWSHandler(s.ctrl.Bus(), wsWriteTimeout).ServeHTTP(c.Writer, c.Request)
}

// ruleRequest is the JSON shape alert-rule CRUD requests and responses
// use. Runtime fields (LastEvaluated, ConsecutiveTrips, State, ...) are
// omitted on write and populated on read, mirroring the rule table's own
// Upsert behavior of preserving runtime state across edits.
type ruleRequest struct {
	Name  string          `json:"name" binding:"required"`
	Scope span.ScopeFilter `json:"scope"`

	ConditionKind string  `json:"condition_kind" binding:"required"`
	Metric        string  `json:"metric" binding:"required"`
	Operator      string  `json:"operator" binding:"required"`
	Threshold     float64 `json:"threshold"`

	WindowSeconds        int `json:"window_seconds"`
	EvaluationCadenceSec int `json:"evaluation_cadence_seconds"`
	ConsecutiveRequired  int `json:"consecutive_required"`

	Severity string `json:"severity" binding:"required"`
	Enabled  bool   `json:"enabled"`
}

func (s *Server) listRules(c *gin.Context) {
	snap := s.ctrl.Rules().Snapshot()
	out := make([]span.AlertRule, 0, len(snap))
	for _, r := range snap {
		out = append(out, r)
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (s *Server) getRule(c *gin.Context) {
	id := span.ID(c.Param("id"))
	rule, ok := s.ctrl.Rules().Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) createRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := req.toRule(span.NewID())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, s.ctrl.Rules().Upsert(rule))
}

func (s *Server) updateRule(c *gin.Context) {
	id := span.ID(c.Param("id"))
	if _, ok := s.ctrl.Rules().Get(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := req.toRule(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s.ctrl.Rules().Upsert(rule))
}

func (s *Server) deleteRule(c *gin.Context) {
	id := span.ID(c.Param("id"))
	s.ctrl.Rules().Delete(id)
	c.Status(http.StatusNoContent)
}

func (s *Server) setRuleEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := span.ID(c.Param("id"))
		if !s.ctrl.Rules().SetEnabled(id, enabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": "rule not found"})
			return
		}
		rule, _ := s.ctrl.Rules().Get(id)
		c.JSON(http.StatusOK, rule)
	}
}

func (s *Server) acknowledgeEvent(c *gin.Context) {
	id := span.ID(c.Param("id"))
	if !s.ctrl.AlertEngine().AcknowledgeEvent(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open event with that id"})
		return
	}
	c.Status(http.StatusNoContent)
}

// pricingReloadRequest is the request body for the pricing reload
// endpoint — a flat list of rows, replacing the table wholesale. There is
// no partial-reload operation: the design treats pricing rows as
// immutable and loaded as a set, not mutated in place.
type pricingReloadRequest struct {
	Rows []span.PricingRow `json:"rows" binding:"required"`
}

func (s *Server) reloadPricing(c *gin.Context) {
	var req pricingReloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ctrl.CostCalculator().Reload(req.Rows)
	c.JSON(http.StatusOK, gin.H{"rows_loaded": len(req.Rows)})
}
