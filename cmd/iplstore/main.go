package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xzinc/IPL/internal/app"
	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "iplstore:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var env, configDir string

	root := &cobra.Command{
		Use:           "iplstore",
		Short:         "Data layer of the IPL assistant: backends with failover, reference cache and interaction log",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if env != "" {
				if err := os.Setenv("APP_ENV", env); err != nil {
					return err
				}
			}
			if configDir != "" {
				return os.Setenv("CONFIG_DIR", configDir)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&env, "env", "", "config environment, read from appconfig/<env>.yaml (default $APP_ENV or default)")
	root.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding the config files (default $CONFIG_DIR or appconfig)")

	root.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refresh every reference dataset once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return refreshOnce(cmd.Context())
		},
	})
	return root
}

func load(ctx context.Context) (*app.App, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Logging)
	logger.Logger(ctx).WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     cfg.App.Version,
	}).Info("starting iplstore")

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Logger(ctx).WithError(err).Error("failed to build data layer")
		return nil, err
	}
	return a, nil
}

func serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := load(ctx)
	if err != nil {
		return err
	}
	if err := a.Run(ctx); err != nil {
		logger.Logger(ctx).WithError(err).Error("iplstore stopped with error")
		return err
	}
	logger.Logger(ctx).Info("iplstore stopped")
	return nil
}

func refreshOnce(ctx context.Context) error {
	a, err := load(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.WithoutCancel(ctx)) }()

	for _, t := range types.ReferenceTypes {
		n, err := a.Store.RefreshReference(ctx, t)
		if err != nil {
			logger.Logger(ctx).WithField("entity_type", t).WithError(err).Error("refresh failed")
			return err
		}
		fmt.Printf("%-8s %d entities\n", t, n)
	}
	return nil
}
