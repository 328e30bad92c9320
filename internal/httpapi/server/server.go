package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xzinc/IPL/internal/httpapi/handlers"
	"github.com/xzinc/IPL/internal/httpapi/middleware"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/store"
)

const shutdownTimeout = 10 * time.Second

type APIServer struct {
	config   *config.APIServerConfig
	router   *gin.Engine
	handlers *handlers.Handlers
	server   *http.Server
}

// NewAPIServer builds the admin API over the data store. directory is only
// needed when the auth mode is ldap.
func NewAPIServer(cfg *config.AppConfig, dataStore store.Interface, directory middleware.DirectoryAuthenticator) (*APIServer, error) {
	if cfg.App.Environment == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	apiCfg := cfg.APIServer
	auth, err := middleware.Authentication(&apiCfg, directory)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(&apiCfg))

	s := &APIServer{
		config:   &apiCfg,
		router:   router,
		handlers: handlers.NewHandlers(dataStore),
	}
	s.setupRoutes(auth)
	return s, nil
}

func (s *APIServer) setupRoutes(auth gin.HandlerFunc) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "iplstore-api", "status": "running"})
	})

	v1 := s.router.Group("/api/v1")
	v1.Use(auth)

	v1.GET("/status", s.handlers.GetStatus)

	v1.GET("/backends", s.handlers.GetBackends)
	v1.POST("/backends/check", s.handlers.CheckBackends)
	v1.POST("/backends/:name/activate", s.handlers.ActivateBackend)

	v1.POST("/references/:type/refresh", s.handlers.RefreshReference)
	v1.DELETE("/references/:type", s.handlers.InvalidateReference)

	v1.POST("/interactions", s.handlers.RecordInteraction)
	v1.POST("/interactions/prune", s.handlers.PruneInteractions)
	v1.GET("/interactions/:user", s.handlers.GetInteractions)

	v1.GET("/entities/:type/:key", s.handlers.GetEntity)
	v1.PUT("/entities/:type/:key", s.handlers.PutEntity)

	v1.GET("/config", s.handlers.GetConfig)
	v1.PATCH("/config", s.handlers.PatchConfig)
}

// Handler exposes the router, mainly for tests
func (s *APIServer) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully
func (s *APIServer) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := logger.Logger(ctx).WithField("address", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting http API server")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to start http API server: %w", err)
	case <-ctx.Done():
	}

	log.Info("turning down http API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http API server shutdown: %w", err)
	}
	log.Info("http API server stopped")
	return nil
}
