package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/metrics"
	"github.com/MM25Zamanian/prismate/internal/reference"
	"github.com/MM25Zamanian/prismate/internal/service"
)

type Options struct {
	// JWTSecret enables bearer auth on /api and /admin when non-empty.
	JWTSecret string
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	// HTTP records request metrics when set.
	HTTP   *metrics.HTTP
	Logger *zap.Logger
}

// NewRouter wires the model routes for svc.
func NewRouter(svc *service.Service, catalog *reference.Catalog, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	if catalog == nil {
		catalog = reference.NewCatalog(svc.Registry().Enums(), nil)
	}
	h := &handlers{svc: svc, catalog: catalog, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(logger))
	if opts.HTTP != nil {
		r.Use(Instrument(opts.HTTP))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "models": len(svc.GetAvailableModels())})
	})
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	apiGroup := r.Group("/api")
	adminGroup := r.Group("/admin")
	if opts.JWTSecret != "" {
		auth := RequireAuth([]byte(opts.JWTSecret), logger)
		apiGroup.Use(auth)
		adminGroup.Use(auth)
	}

	// static routes first
	apiGroup.GET("/meta", h.metaList)
	apiGroup.GET("/meta/enums/:name", h.metaEnum)
	apiGroup.GET("/meta/:model", h.metaModel)
	apiGroup.GET("/:model/count", h.count)
	apiGroup.POST("/:model/_aggregate", h.aggregate)

	apiGroup.GET("/:model", h.list)
	apiGroup.POST("/:model", h.create)
	apiGroup.GET("/:model/:id", h.get)
	apiGroup.PUT("/:model/:id", h.update)
	apiGroup.PATCH("/:model/:id", h.update)
	apiGroup.DELETE("/:model/:id", h.remove)

	adminGroup.GET("/cache", h.cacheStats)
	adminGroup.PATCH("/cache", h.cacheConfig)
	adminGroup.DELETE("/cache", h.cacheClear)
	adminGroup.GET("/schema", h.schemaExport)
	adminGroup.GET("/schema.prisma", h.schemaText)
	adminGroup.GET("/models/:model/config", h.modelConfig)
	adminGroup.PUT("/models/:model/fields/:field", h.setFieldMapping)

	return r
}

// RunServer serves handler on addr until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func RunServer(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
