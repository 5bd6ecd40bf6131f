// Command chanmux runs the channel integration API server and its database
// migrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	migrations "github.com/chanmux/chanmux/db"
	"github.com/chanmux/chanmux/internal/boot"
	"github.com/chanmux/chanmux/internal/channels"
	"github.com/chanmux/chanmux/internal/claims"
	"github.com/chanmux/chanmux/internal/config"
	"github.com/chanmux/chanmux/internal/db"
	"github.com/chanmux/chanmux/internal/handlers"
	"github.com/chanmux/chanmux/internal/logger"
	"github.com/chanmux/chanmux/internal/provider"
	"github.com/chanmux/chanmux/internal/provider/adapters/facebook"
	"github.com/chanmux/chanmux/internal/provider/adapters/instagram"
	"github.com/chanmux/chanmux/internal/provider/adapters/rocketchat"
	slackadapter "github.com/chanmux/chanmux/internal/provider/adapters/slack"
	"github.com/chanmux/chanmux/internal/provider/adapters/teams"
	"github.com/chanmux/chanmux/internal/provider/adapters/twilioflex"
	"github.com/chanmux/chanmux/internal/provider/adapters/whatsapp"
	"github.com/chanmux/chanmux/internal/server"
	"github.com/chanmux/chanmux/internal/templates"
	"github.com/chanmux/chanmux/internal/version"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:     "chanmux",
		Short:   "Multi-provider messaging channel integration service",
		Version: version.GetInfo(),
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serveCommand())
	root.AddCommand(migrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server, template sync scheduler, and claim reaper",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.Provide(
					provideConfig,
					provideLogger,
					boot.ProvideRuntimeConfig,
					providePool,
					provideRegistry,
					provideVault,
					channels.NewStore,
					channels.NewService,
					channels.NewRefresher,
					claims.NewStore,
					provideClaimService,
					templates.NewStore,
					provideScheduler,
					provideHandlers,
					provideServer,
				),
				fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
					return &fxevent.SlogLogger{Logger: log}
				}),
				fx.Invoke(startServer, startBackground),
			)
			app.Run()
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|version|force N]",
		Short: "Apply or roll back database migrations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := provideConfig()
			if err != nil {
				return err
			}
			log := provideLogger(cfg)
			migrationsFS, err := fs.Sub(migrations.MigrationsFS, "migrations")
			if err != nil {
				return fmt.Errorf("migrations filesystem: %w", err)
			}
			return db.RunMigrate(log, cfg.Postgres, migrationsFS, args[0], args[1:])
		},
	}
}

func provideConfig() (config.Config, error) {
	return config.Load(configPath)
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.Init(cfg.Log.Level, cfg.Log.Format)
}

func providePool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideRegistry(log *slog.Logger, cfg config.Config) *provider.Registry {
	registry := provider.NewRegistry()
	registry.MustRegister(whatsapp.New(log, whatsapp.Options{
		AppID:        cfg.Meta.AppID,
		AppSecret:    cfg.Meta.AppSecret,
		GraphVersion: cfg.Meta.GraphVersion,
	}))
	registry.MustRegister(facebook.New(log, facebook.Options{
		AppID:        cfg.Meta.AppID,
		AppSecret:    cfg.Meta.AppSecret,
		GraphVersion: cfg.Meta.GraphVersion,
	}))
	registry.MustRegister(instagram.New(log, instagram.Options{
		AppID:        cfg.Meta.AppID,
		AppSecret:    cfg.Meta.AppSecret,
		GraphVersion: cfg.Meta.GraphVersion,
	}))
	registry.MustRegister(slackadapter.New(log, slackadapter.Options{
		ClientID:     cfg.Slack.ClientID,
		ClientSecret: cfg.Slack.ClientSecret,
	}))
	registry.MustRegister(twilioflex.New(log, twilioflex.Options{}))
	registry.MustRegister(rocketchat.New(log))
	registry.MustRegister(teams.New(log, teams.Options{}))
	return registry
}

func provideVault(runtime *boot.RuntimeConfig) *channels.Vault {
	return channels.NewVault(runtime.CredentialKey)
}

func provideClaimService(log *slog.Logger, store *claims.Store, registry *provider.Registry, channelSvc *channels.Service, vault *channels.Vault, runtime *boot.RuntimeConfig) *claims.Service {
	return claims.NewService(log, store, registry, channelSvc, vault, claims.Options{
		BaseURL:        runtime.BaseURL,
		SessionTTL:     runtime.ClaimTTL,
		ReaperInterval: runtime.ReaperInterval,
	})
}

func provideScheduler(log *slog.Logger, store *templates.Store, channelSvc *channels.Service, registry *provider.Registry, runtime *boot.RuntimeConfig) *templates.Scheduler {
	return templates.NewScheduler(log, store, channelSvc, registry, templates.Options{
		CronSpec: runtime.SyncCron,
		Workers:  runtime.SyncWorkers,
	})
}

func provideHandlers(
	runtime *boot.RuntimeConfig,
	registry *provider.Registry,
	channelSvc *channels.Service,
	claimSvc *claims.Service,
	templateStore *templates.Store,
	scheduler *templates.Scheduler,
) []handlers.Handler {
	return []handlers.Handler{
		handlers.NewPingHandler(),
		handlers.NewAuthHandler(runtime),
		handlers.NewProvidersHandler(registry),
		handlers.NewClaimsHandler(claimSvc),
		handlers.NewChannelsHandler(channelSvc),
		handlers.NewTemplatesHandler(templateStore, scheduler),
	}
}

func provideServer(log *slog.Logger, runtime *boot.RuntimeConfig, hs []handlers.Handler) *echo.Echo {
	return server.New(log, runtime, hs)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, runtime *boot.RuntimeConfig, e *echo.Echo) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", slog.String("addr", runtime.ServerAddr))
				if err := e.Start(runtime.ServerAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", slog.String("error", err.Error()))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func startBackground(lc fx.Lifecycle, scheduler *templates.Scheduler, claimSvc *claims.Service, refresher *channels.Refresher) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := scheduler.Start(ctx); err != nil {
				cancel()
				return err
			}
			go claimSvc.RunReaper(ctx)
			go refresher.Run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			scheduler.Stop()
			return nil
		},
	})
}
