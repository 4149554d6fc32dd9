// Package adminapi is the orchestrator's operability surface (§12.4):
// health, Prometheus metrics, and debug introspection endpoints, plus one
// write route that invalidates a tenant's cached configuration.
// It is not the customer-facing API the spec places out of scope; every
// route here is for operators, not CRM end users. Adapted from the
// teacher's cmd/tarsy/main.go gin.Default()+router.GET("/health", ...)
// pattern, split out into its own package and widened with /metrics and
// the /debug tree.
package adminapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeready-toolchain/care-orchestrator/pkg/database"
	"github.com/codeready-toolchain/care-orchestrator/pkg/version"
)

// TriggerStatus reports the trigger worker's lease state for
// /debug/triggers, satisfied by *trigger.InProcessLocker.
type TriggerStatus interface {
	OrphanedLeases() []uuid.UUID
}

// Server builds the gin router for the admin HTTP surface. DB may be nil
// when the store is the in-memory development implementation, in which
// case /healthz reports database as "not_configured" rather than probing.
type Server struct {
	DB          *sql.DB
	Registry    TenantStatusSource
	Triggers    TriggerStatus
	Gatherer    prometheus.Gatherer
	Invalidator TenantInvalidator

	router *gin.Engine
}

// TenantStatusSource is the narrow tenantconfig.Cache surface /debug/tenants
// needs: looking up one tenant's resolved config by ID.
type TenantStatusSource interface {
	Lookup(ctx context.Context, tenantID uuid.UUID) (map[string]any, bool, error)
}

// TenantInvalidator is the narrow tenantconfig.RedisInvalidator surface
// /debug/tenants/:id/invalidate needs: evicting tenantID locally and
// publishing the eviction to every other replica.
type TenantInvalidator interface {
	Publish(ctx context.Context, tenantID uuid.UUID) error
}

// NewServer builds the admin router. ginMode is passed straight to
// gin.SetMode (e.g. "release" in production, "debug" in development),
// matching the teacher's GIN_MODE environment toggle. gatherer is served at
// /metrics; a nil gatherer falls back to prometheus.DefaultGatherer, which
// stays empty of CARE-specific series unless the caller wires a dedicated
// *prometheus.Registry through to every component that reports metrics.
// invalidator may be nil when Redis cross-replica invalidation isn't
// configured; /debug/tenants/:id/invalidate reports 503 in that case.
func NewServer(db *sql.DB, registry TenantStatusSource, triggers TriggerStatus, ginMode string, gatherer prometheus.Gatherer, invalidator TenantInvalidator) *Server {
	if ginMode != "" {
		gin.SetMode(ginMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{DB: db, Registry: registry, Triggers: triggers, Gatherer: gatherer, Invalidator: invalidator}
	s.router = gin.Default()
	s.routes()
	return s
}

// Router returns the underlying *gin.Engine, for ListenAndServe or testing.
func (s *Server) Router() *gin.Engine { return s.router }

func (s *Server) routes() {
	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})))
	s.router.GET("/debug/tenants/:id/config", s.handleTenantConfig)
	s.router.POST("/debug/tenants/:id/invalidate", s.handleInvalidateTenant)
	s.router.GET("/debug/triggers/status", s.handleTriggerStatus)
}

func (s *Server) handleHealthz(c *gin.Context) {
	if s.DB == nil {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": "not_configured", "version": version.Full()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(ctx, s.DB)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": dbHealth,
			"error":    err.Error(),
			"version":  version.Full(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy", "database": dbHealth, "version": version.Full()})
}

func (s *Server) handleTenantConfig(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}

	if s.Registry == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tenant config resolver not configured"})
		return
	}

	cfg, found, err := s.Registry.Lookup(c.Request.Context(), tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant config not found"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleInvalidateTenant(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}

	if s.Invalidator == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cross-replica invalidation not configured"})
		return
	}

	if err := s.Invalidator.Publish(c.Request.Context(), tenantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": tenantID})
}

func (s *Server) handleTriggerStatus(c *gin.Context) {
	if s.Triggers == nil {
		c.JSON(http.StatusOK, gin.H{"orphaned_leases": []uuid.UUID{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orphaned_leases": s.Triggers.OrphanedLeases()})
}
