package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/hmsinsure/internal/apikey"
	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	"github.com/smallbiznis/hmsinsure/internal/audit"
	auditdomain "github.com/smallbiznis/hmsinsure/internal/audit/domain"
	"github.com/smallbiznis/hmsinsure/internal/authorization"
	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/claim"
	"github.com/smallbiznis/hmsinsure/internal/claimmetrics"
	claimdomain "github.com/smallbiznis/hmsinsure/internal/claim/domain"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/coverage"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	"github.com/smallbiznis/hmsinsure/internal/deliverynote"
	deliverynotedomain "github.com/smallbiznis/hmsinsure/internal/deliverynote/domain"
	"github.com/smallbiznis/hmsinsure/internal/itemprice"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	"github.com/smallbiznis/hmsinsure/internal/observability"
	obsmiddleware "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	obstracing "github.com/smallbiznis/hmsinsure/internal/observability/tracing"
	"github.com/smallbiznis/hmsinsure/internal/pricepackage"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	"github.com/smallbiznis/hmsinsure/internal/provider"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/internal/provider/httpclient"
	"github.com/smallbiznis/hmsinsure/internal/providers/pdf"
	"github.com/smallbiznis/hmsinsure/internal/responselog"
	logdomain "github.com/smallbiznis/hmsinsure/internal/responselog/domain"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// domainModules wires the services behind the HTTP routes.
var domainModules = fx.Options(
	cache.Module,
	provider.Module,
	responselog.Module,
	pricepackage.Module,
	coverage.Module,
	itemprice.Module,
	pdf.Module,
	claim.Module,
	deliverynote.Module,
	jobqueue.Module,
	syncjob.Module,
	claimmetrics.Module,
)

var Module = fx.Module("http.server",
	domainModules,
	authorization.Module,
	apikey.Module,
	audit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// cardRegistry resolves the providers that can verify membership cards.
type cardRegistry interface {
	CardVerifier(provider providerdomain.Provider) (providerdomain.CardVerifier, error)
}

// syncQueue enqueues provider sync jobs.
type syncQueue interface {
	EnqueueSync(ctx context.Context, args syncjob.Args) (*jobqueue.Job, error)
	EnqueueProcess(ctx context.Context, args syncjob.Args) ([]*jobqueue.Job, error)
}

// jobReader reads job state by id.
type jobReader interface {
	Get(ctx context.Context, id string) (*jobqueue.Job, error)
}

type Server struct {
	engine *gin.Engine
	log    *zap.Logger

	apiKeySvc   apikeydomain.Service
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	claimSvc    claimdomain.Service
	noteSvc     deliverynotedomain.Service
	coverageSvc coveragedomain.Service
	packageSvc  pricepackagedomain.Service
	priceSvc    itempricedomain.Service
	logSvc      logdomain.Service
	cards       cardRegistry
	syncs       syncQueue
	jobs        jobReader
}

type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Log *zap.Logger

	APIKeySvc   apikeydomain.Service
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	ClaimSvc    claimdomain.Service
	NoteSvc     deliverynotedomain.Service
	CoverageSvc coveragedomain.Service
	PackageSvc  pricepackagedomain.Service
	PriceSvc    itempricedomain.Service
	LogSvc      logdomain.Service
	Registry    *httpclient.Registry
	Syncs       *syncjob.Handlers
	Dispatcher  *jobqueue.Dispatcher
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:      p.Gin,
		log:         p.Log.Named("http.server"),
		apiKeySvc:   p.APIKeySvc,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		claimSvc:    p.ClaimSvc,
		noteSvc:     p.NoteSvc,
		coverageSvc: p.CoverageSvc,
		packageSvc:  p.PackageSvc,
		priceSvc:    p.PriceSvc,
		logSvc:      p.LogSvc,
		cards:       p.Registry,
		syncs:       p.Syncs,
		jobs:        p.Dispatcher,
	}

	s.registerAPIRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")
	api.Use(s.APIKeyRequired())

	providers := api.Group("/providers/:provider/companies/:company")
	providers.Use(s.CompanyScope())
	{
		providers.POST("/sync", s.authorize(authorization.ObjectProviderSync, authorization.ActionProviderSyncRun), s.EnqueueProviderSync)
		providers.POST("/process", s.authorize(authorization.ObjectProviderSync, authorization.ActionProviderSyncRun), s.EnqueueProviderProcess)
		providers.GET("/price-packages", s.authorize(authorization.ObjectPricePackage, authorization.ActionView), s.ListPricePackages)
		providers.GET("/excluded-services", s.authorize(authorization.ObjectPricePackage, authorization.ActionView), s.ListExcludedServices)
		providers.GET("/updates", s.authorize(authorization.ObjectPricePackage, authorization.ActionView), s.ListPackageUpdates)
		providers.GET("/diff", s.authorize(authorization.ObjectPricePackage, authorization.ActionView), s.PreviewPackageDiff)
		providers.GET("/logs", s.authorize(authorization.ObjectResponseLog, authorization.ActionView), s.ListResponseLogs)
		providers.GET("/cards/:card_no", s.authorize(authorization.ObjectCard, authorization.ActionView), s.GetCardDetails)
	}

	api.POST("/coverage-plans", s.authorize(authorization.ObjectCoverage, authorization.ActionCreate), s.CreateCoveragePlan)
	api.GET("/coverage-plans/:plan/coverages", s.authorize(authorization.ObjectCoverage, authorization.ActionView), s.ListCoverages)
	api.POST("/coverages", s.authorize(authorization.ObjectCoverage, authorization.ActionCreate), s.CreateCoverage)
	api.POST("/service-templates", s.authorize(authorization.ObjectCoverage, authorization.ActionCreate), s.RegisterServiceTemplate)
	api.POST("/item-references", s.authorize(authorization.ObjectCoverage, authorization.ActionCreate), s.RegisterItemReference)
	api.GET("/price-lists/:price_list/item-prices", s.authorize(authorization.ObjectItemPrice, authorization.ActionView), s.ListItemPrices)

	api.POST("/appointments", s.authorize(authorization.ObjectAppointment, authorization.ActionCreate), s.RegisterAppointment)

	claims := api.Group("/claims")
	{
		claims.POST("", s.authorize(authorization.ObjectClaim, authorization.ActionCreate), s.CreateClaim)
		claims.GET("/:id", s.authorize(authorization.ObjectClaim, authorization.ActionView), s.GetClaim)
		claims.POST("/:id/items", s.authorize(authorization.ObjectClaim, authorization.ActionUpdate), s.AddClaimItems)
		claims.POST("/:id/validate", s.authorize(authorization.ObjectClaim, authorization.ActionClaimValidate), s.ValidateClaim)
		claims.POST("/:id/submit", s.authorize(authorization.ObjectClaim, authorization.ActionClaimSubmit), s.SubmitClaim)
		claims.POST("/:id/reconcile", s.authorize(authorization.ObjectClaim, authorization.ActionClaimReconcile), s.ReconcileClaimItems)
	}

	notes := api.Group("/delivery-notes")
	{
		notes.POST("", s.authorize(authorization.ObjectDeliveryNote, authorization.ActionCreate), s.CreateDeliveryNote)
		notes.GET("/:id", s.authorize(authorization.ObjectDeliveryNote, authorization.ActionView), s.GetDeliveryNote)
		notes.POST("/:id/validate", s.authorize(authorization.ObjectDeliveryNote, authorization.ActionDeliveryNoteValidate), s.ValidateDeliveryNote)
		notes.POST("/:id/items/:original_id/in-stock", s.authorize(authorization.ObjectDeliveryNote, authorization.ActionUpdate), s.ConvertDeliveryNoteItem)
		notes.POST("/:id/submit", s.authorize(authorization.ObjectDeliveryNote, authorization.ActionDeliveryNoteSubmit), s.SubmitDeliveryNote)
	}

	api.GET("/jobs/:id", s.authorize(authorization.ObjectJob, authorization.ActionView), s.GetJob)

	keys := api.Group("/api-keys")
	{
		keys.GET("", s.authorize(authorization.ObjectAPIKey, authorization.ActionView), s.ListAPIKeys)
		keys.POST("", s.authorize(authorization.ObjectAPIKey, authorization.ActionCreate), s.CreateAPIKey)
		keys.POST("/:key_id/rotate", s.authorize(authorization.ObjectAPIKey, authorization.ActionAPIKeyRotate), s.RotateAPIKey)
		keys.POST("/:key_id/revoke", s.authorize(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)
	}

	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}
