// Package app wires the service graph from configuration
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/trustplane/trustplane/config"
	"github.com/trustplane/trustplane/handlers"
	"github.com/trustplane/trustplane/middleware"
	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/repositories"
	filestore "github.com/trustplane/trustplane/repositories/file"
	"github.com/trustplane/trustplane/repositories/postgres"
	"github.com/trustplane/trustplane/services/audit"
	"github.com/trustplane/trustplane/services/decision"
	"github.com/trustplane/trustplane/services/metrics"
	"github.com/trustplane/trustplane/services/policyreport"
	"github.com/trustplane/trustplane/services/policystore"
	"github.com/trustplane/trustplane/services/ratelimit"
	"go.uber.org/zap"
)

// Dependencies holds all initialized application components
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	PolicyStore   *policystore.Store
	PolicyWatcher *policystore.Watcher
	Limiter       *ratelimit.Limiter
	AuditService  *audit.Service
	Metrics       *metrics.Service
	Engine        *decision.Engine
	Reporter      *policyreport.Service

	DecisionHandler *handlers.DecisionHandler
	PolicyHandler   *handlers.PolicyHandler
	AuditHandler    *handlers.AuditHandler
	MetricsHandler  *handlers.MetricsHandler
	HealthHandler   *handlers.HealthHandler
	AuthMiddleware  *middleware.AuthMiddleware

	db *postgres.DB
}

// NewDependencies initializes the full service graph
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Policy store, seeded from file when configured
	var policy *models.TrustPolicy
	if cfg.Policy.FilePath != "" {
		loaded, err := policystore.LoadFile(cfg.Policy.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load policy file: %w", err)
		}
		policy = loaded
	}

	store, err := policystore.NewStore(policy, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize policy store: %w", err)
	}
	deps.PolicyStore = store

	if cfg.Policy.FilePath != "" && cfg.Policy.WatchFile {
		watcher, err := policystore.NewWatcher(store, cfg.Policy.FilePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to watch policy file: %w", err)
		}
		deps.PolicyWatcher = watcher
	}

	// Audit backend
	auditStore, db, err := newAuditStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.db = db

	auditService, err := audit.NewService(ctx, auditStore, logger)
	if err != nil {
		return nil, err
	}
	deps.AuditService = auditService

	// Metrics, rebuilt from the audit trail so counters survive restarts
	metricsService := metrics.NewService(metrics.Config{
		BufferSize:       cfg.Metrics.BufferSize,
		FastThresholdMs:  cfg.Metrics.FastThresholdMs,
		SlowThresholdMs:  cfg.Metrics.SlowThresholdMs,
		RollingWindow:    cfg.Metrics.RollingWindow,
		AlertThresholdMs: cfg.Metrics.AlertThresholdMs,
		Retention:        cfg.Metrics.Retention,
	}, logger)
	deps.Metrics = metricsService

	if cfg.Metrics.Retention > 0 {
		since := time.Now().Add(-cfg.Metrics.Retention)
		records, err := auditService.Query(ctx, since, time.Now())
		if err != nil {
			logger.Warn("failed to rebuild metrics from audit trail", zap.Error(err))
		} else if len(records) > 0 {
			metricsService.ReplayAudit(records)
		}
	}

	deps.Limiter = ratelimit.NewLimiter(logger)
	deps.Engine = decision.NewEngine(store, deps.Limiter, auditService, metricsService, logger)
	deps.Reporter = policyreport.NewService(logger)

	// HTTP layer
	deps.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, logger)
	deps.DecisionHandler = handlers.NewDecisionHandler(deps.Engine, logger)
	deps.PolicyHandler = handlers.NewPolicyHandler(store, deps.Reporter, logger)
	deps.AuditHandler = handlers.NewAuditHandler(auditService, logger)
	deps.MetricsHandler = handlers.NewMetricsHandler(metricsService, logger)

	checkers := make(map[string]handlers.HealthChecker)
	if db != nil {
		checkers["database"] = db
	}
	deps.HealthHandler = handlers.NewHealthHandler(checkers, logger)

	return deps, nil
}

// Start launches the background workers
func (d *Dependencies) Start(ctx context.Context) {
	if d.PolicyWatcher != nil {
		if err := d.PolicyWatcher.Start(ctx); err != nil {
			d.Logger.Error("failed to start policy watcher", zap.Error(err))
		}
	}
	d.AuditService.StartRetention(ctx, d.Config.Audit.Retention, d.Config.Audit.PurgeInterval)
	d.Metrics.StartRetention(ctx, d.Config.Metrics.PurgeInterval)
}

// Close releases all resources in reverse dependency order
func (d *Dependencies) Close() {
	if d.PolicyWatcher != nil {
		if err := d.PolicyWatcher.Close(); err != nil {
			d.Logger.Error("failed to close policy watcher", zap.Error(err))
		}
	}
	if d.Metrics != nil {
		d.Metrics.Close()
	}
	if d.AuditService != nil {
		if err := d.AuditService.Close(); err != nil {
			d.Logger.Error("failed to close audit service", zap.Error(err))
		}
	}
}

// newAuditStore builds the configured audit backend
func newAuditStore(cfg *config.Config, logger *zap.Logger) (repositories.AuditStore, *postgres.DB, error) {
	switch cfg.Audit.Backend {
	case "postgres":
		db, err := postgres.NewDB(cfg.Audit.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.InitSchema(ctx); err != nil {
			return nil, nil, err
		}
		return postgres.NewAuditStore(db, logger), db, nil
	default:
		store, err := filestore.NewAuditStore(cfg.Audit.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}
}
