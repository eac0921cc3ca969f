// Package leads provides the lead intake bounded context module.
// This file wires classification, scoring, routing and lifecycle behind the HTTP routes.
package leads

import (
	"time"

	"realty_leads_backend/internal/crm"
	"realty_leads_backend/internal/events"
	apphttp "realty_leads_backend/internal/http"
	"realty_leads_backend/internal/imports"
	"realty_leads_backend/internal/leads/domain"
	"realty_leads_backend/internal/leads/handler"
	"realty_leads_backend/internal/leads/ports"
	"realty_leads_backend/internal/leads/repository"
	"realty_leads_backend/internal/leads/routing"
	"realty_leads_backend/internal/leads/scoring"
	"realty_leads_backend/internal/leads/service"
	"realty_leads_backend/platform/config"
	"realty_leads_backend/platform/logger"
	"realty_leads_backend/platform/metrics"
	"realty_leads_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const submitDedupWindow = 60 * time.Second

// Config is the subset of settings the leads module reads.
type Config interface {
	config.RoutingConfig
	config.CRMConfig
	config.RelayConfig
}

// Deps groups the module's collaborators. Properties, RetryQueue, Redis and Metrics may be nil.
type Deps struct {
	Pool       *pgxpool.Pool
	Config     Config
	Weights    scoring.Weights
	Properties service.PropertyMetrics
	RetryQueue ports.RelayRetryQueue
	Redis      *redis.Client
	EventBus   events.Bus
	Metrics    *metrics.Registry
	Validator  *validator.Validator
	Log        *logger.Logger
}

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	router  *routing.Router
	repo    *repository.Repository
	tracker *imports.Tracker
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(d Deps) *Module {
	repo := repository.New(d.Pool)
	router := NewRouter(d.Config, repo, d.RetryQueue, d.Metrics, d.Log)
	tracker := imports.NewTracker(imports.NewRepository(d.Pool), d.Log)

	var guard service.DuplicateGuard
	if d.Redis != nil {
		guard = service.NewRedisGuard(d.Redis, submitDedupWindow)
	}

	svc := service.New(service.Deps{
		Repo:       repo,
		Router:     router,
		Classifier: domain.NewClassifier(d.Config.GetBuyerSiteDomains(), d.Config.GetAgentSiteDomain()),
		Weights:    d.Weights,
		Properties: d.Properties,
		Guard:      guard,
		Attempts:   tracker,
		EventBus:   d.EventBus,
		Metrics:    d.Metrics,
		Log:        d.Log,
	})

	return &Module{
		handler: handler.New(svc, tracker, d.Validator),
		service: svc,
		router:  router,
		repo:    repo,
		tracker: tracker,
	}
}

// NewRouter builds the delivery router from configuration. The CRM and the
// webhook relay are optional; retries may be nil.
func NewRouter(cfg Config, store ports.LeadStore, retries ports.RelayRetryQueue, reg *metrics.Registry, log *logger.Logger) *routing.Router {
	opts := []routing.Option{routing.WithMetrics(reg)}
	if cfg.IsRelayEnabled() {
		opts = append(opts, routing.WithRelayer(routing.NewWebhookRelay(cfg.GetRelayWebhookURL(), cfg.GetRelayTimeout())))
	}
	if retries != nil {
		opts = append(opts, routing.WithRetryQueue(retries))
	}

	var crmPort ports.CRM
	if client := crm.NewClient(cfg, log); client != nil {
		crmPort = client
	} else {
		log.Warn("crm not configured, leads will take the fallback path")
	}

	return routing.New(routing.Config{
		AgentPipelineID: cfg.GetAgentPipelineID(),
		AgentStageID:    cfg.GetAgentStageID(),
		BuyerPipelineID: cfg.GetBuyerPipelineID(),
		BuyerStageID:    cfg.GetBuyerStageID(),
		RelayTimeout:    cfg.GetRelayTimeout(),
	}, crmPort, store, log, opts...)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the lead lifecycle service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the lead store for read-side consumers such as analytics.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Router returns the delivery router; the worker uses it for relay retries.
func (m *Module) Router() *routing.Router {
	return m.router
}

// Tracker returns the import attempt tracker.
func (m *Module) Tracker() *imports.Tracker {
	return m.tracker
}

// Shutdown waits for detached relays to finish.
func (m *Module) Shutdown() {
	m.router.Wait()
}

// RegisterRoutes mounts leads and imports routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.V1.Group("/leads")
	if ctx.SubmitLimiter != nil {
		leadsGroup.POST("/submit", ctx.SubmitLimiter.RateLimit(), m.handler.Submit)
	} else {
		leadsGroup.POST("/submit", m.handler.Submit)
	}
	leadsGroup.GET("/:id", m.handler.Get)
	leadsGroup.PATCH("/:id/status", m.handler.UpdateStatus)
	leadsGroup.POST("/:id/purchase", m.handler.Purchase)
	leadsGroup.POST("/:id/rescore", m.handler.Rescore)

	importsGroup := ctx.V1.Group("/imports")
	importsGroup.POST("", m.handler.Import)
	importsGroup.GET("", m.handler.ListImports)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
