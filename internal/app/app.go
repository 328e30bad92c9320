// Package app assembles the data layer and its background services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	periodic "github.com/xzinc/IPL/internal/controller"
	"github.com/xzinc/IPL/internal/httpapi/middleware"
	"github.com/xzinc/IPL/internal/httpapi/server"
	"github.com/xzinc/IPL/internal/scheduler"
	"github.com/xzinc/IPL/pkg/backend"
	"github.com/xzinc/IPL/pkg/cache"
	"github.com/xzinc/IPL/pkg/clients/github"
	"github.com/xzinc/IPL/pkg/clients/kaggle"
	"github.com/xzinc/IPL/pkg/clients/ldap"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/datasets"
	"github.com/xzinc/IPL/pkg/failover"
	"github.com/xzinc/IPL/pkg/freshness"
	"github.com/xzinc/IPL/pkg/interactions"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/request/httpclient"
	"github.com/xzinc/IPL/pkg/store"
	"github.com/xzinc/IPL/pkg/telemetry"
	"github.com/xzinc/IPL/pkg/types"
)

const stopTimeout = 15 * time.Second

// App is a fully wired data layer
type App struct {
	Store *store.Store

	controller *failover.Controller
	refCache   cache.Cache
	log        *interactions.Log
	runner     *periodic.PeriodicTasksRunner
	scheduler  *scheduler.Scheduler
	api        *server.APIServer
}

// Build connects every usable backend, runs the startup health check and
// assembles the store. Backends that cannot be constructed are skipped as long
// as at least one remains.
func Build(ctx context.Context, cfg *config.AppConfig) (_ *App, err error) {
	log := logger.Logger(ctx).WithField("component", "app")

	if err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Insecure:       cfg.Telemetry.Insecure,
		Enabled:        cfg.Telemetry.Enabled,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := telemetry.InitDatastoreMetrics(telemetry.Meter()); err != nil {
		return nil, fmt.Errorf("failed to initialize datastore metrics: %w", err)
	}

	adapters, err := buildAdapters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ctrl, err := failover.New(adapters, failover.SettingsFrom(cfg))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = ctrl.Close(context.WithoutCancel(ctx))
		}
	}()
	if err := ctrl.Start(ctx); err != nil {
		return nil, err
	}
	if err := telemetry.ObserveBackendUsage(telemetry.Meter(), ctrl.UsageObservations); err != nil {
		log.WithError(err).Warn("backend usage gauge not registered")
	}

	refCache, err := cache.New(&cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	refs := freshness.New(refCache, cfg.Freshness.TTL)

	holder := config.NewHolder(cfg)
	interactionLog := interactions.New(ctrl, holder)
	dataStore := store.New(ctrl, refs, interactionLog, holder)

	a := &App{
		Store:      dataStore,
		controller: ctrl,
		refCache:   refCache,
		log:        interactionLog,
	}

	if cfg.Datasets.Enabled {
		puller, err := buildPuller(ctx, cfg.Datasets)
		if err != nil {
			return nil, err
		}
		for _, t := range types.ReferenceTypes {
			refs.Register(t, puller.Fetch)
		}
		if a.scheduler, err = scheduler.New(dataStore, cfg.Datasets.RefreshSchedule, cfg.Datasets.Timeout); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(adapters))
	for _, ad := range adapters {
		names = append(names, ad.Name())
	}
	if a.runner, err = periodic.NewPeriodicTasksRunner(ctrl, names, interactionLog, cfg); err != nil {
		return nil, err
	}

	if cfg.APIServer.Enabled {
		var directory middleware.DirectoryAuthenticator
		if cfg.APIServer.Auth.Enabled && cfg.APIServer.Auth.Mode == middleware.AuthModeLDAP {
			auth, err := ldap.NewAuthenticator(cfg.LDAP)
			if err != nil {
				return nil, err
			}
			directory = auth
		}
		if a.api, err = server.NewAPIServer(cfg, dataStore, directory); err != nil {
			return nil, err
		}
	}

	log.WithFields(logrus.Fields{
		"backends": names,
		"active":   ctrl.Active().Name,
		"datasets": cfg.Datasets.Enabled,
		"api":      cfg.APIServer.Enabled,
	}).Info("data layer ready")
	return a, nil
}

func buildAdapters(ctx context.Context, cfg *config.AppConfig) ([]backend.Adapter, error) {
	log := logger.Logger(ctx).WithField("component", "app")

	usable, skipped := cfg.UsableBackends()
	for _, name := range skipped {
		log.WithField("backend", name).Warn("backend enabled without connection info, skipping")
	}

	opts := backend.Options{
		HealthCheckTimeout: cfg.Failover.HealthCheckTimeout,
		BucketLimit:        cfg.LearningProfile().MaxPerUser,
	}
	adapters := make([]backend.Adapter, 0, len(usable))
	var errs []error
	for _, b := range usable {
		a, err := backend.New(ctx, b, opts)
		if err != nil {
			log.WithField("backend", b.Name).WithError(err).Error("failed to create backend, skipping")
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
			continue
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("%w: no backend could be created: %v", types.ErrConfiguration, utilerrors.NewAggregate(errs))
	}
	return adapters, nil
}

func buildPuller(ctx context.Context, cfg config.Datasets) (*datasets.Puller, error) {
	log := logger.Logger(ctx).WithField("component", "datasets")
	poolCfg, resCfg := httpclient.DefaultConnectionPoolConfig(), httpclient.DefaultResiliencyConfig()
	if cfg.Timeout > 0 {
		poolCfg.Timeout = int(cfg.Timeout / time.Millisecond)
	}

	var sources []datasets.Source
	if cfg.GitHub.URL != "" {
		c, err := github.NewClient(github.Config{URL: cfg.GitHub.URL, Token: cfg.GitHub.Token}, poolCfg, resCfg)
		if err != nil {
			return nil, fmt.Errorf("%w: github dataset: %v", types.ErrConfiguration, err)
		}
		sources = append(sources, datasets.GitHubSource(c))
	}
	if cfg.Kaggle.Username != "" && cfg.Kaggle.Key != "" {
		c, err := kaggle.NewClient(kaggle.Config{
			BaseURL:  cfg.Kaggle.BaseURL,
			Dataset:  cfg.Kaggle.Dataset,
			File:     cfg.Kaggle.File,
			Username: cfg.Kaggle.Username,
			Key:      cfg.Kaggle.Key,
		}, poolCfg, resCfg)
		if err != nil {
			return nil, fmt.Errorf("%w: kaggle dataset: %v", types.ErrConfiguration, err)
		}
		sources = append(sources, datasets.KaggleSource(c))
	} else {
		log.Info("kaggle credentials not configured, using github dataset only")
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: datasets enabled without any source", types.ErrConfiguration)
	}
	return datasets.NewPuller(datasets.DefaultReuseWindow, sources...), nil
}

// Run starts the interaction log and every background service and blocks
// until ctx is done or one of them fails. The log is drained before returning.
func (a *App) Run(ctx context.Context) error {
	// the log outlives ctx so that Close can drain it
	a.log.Start(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.runner.Start(gctx) })
	if a.scheduler != nil {
		g.Go(func() error { return a.scheduler.Run(gctx) })
	}
	if a.api != nil {
		g.Go(func() error { return a.api.Start(gctx) })
	}
	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return errors.Join(runErr, a.Close(stopCtx))
}

// Close drains the interaction log and releases every backend and the cache
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.log.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("interaction log: %w", err))
	}
	if err := a.controller.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("backends: %w", err))
	}
	if c, ok := a.refCache.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("reference cache: %w", err))
		}
	}
	if err := telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return utilerrors.NewAggregate(errs)
}
