package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zignal/zignalapi/cmd/cmdutil"
	"github.com/zignal/zignalapi/internal/auth"
	"github.com/zignal/zignalapi/internal/jobs"
	"github.com/zignal/zignalapi/internal/migrations"
	"github.com/zignal/zignalapi/internal/repository"
	"github.com/zignal/zignalapi/internal/server"
	"github.com/zignal/zignalapi/internal/services/market"
	"github.com/zignal/zignalapi/internal/services/payment"
	"github.com/zignal/zignalapi/internal/telemetry"
	"github.com/zignal/zignalapi/internal/validation"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Zignal API server",
	Long:  `Starts the HTTP server with the JSON API, health and metrics endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := telemetry.Init(ctx, cfg.Telemetry, Version)
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(tctx); err != nil {
				slog.Warn("tracer shutdown failed", "error", err)
			}
		}()

		bundle, err := cmdutil.NewIAMServiceBundle(ctx, cfg)
		if err != nil {
			return err
		}
		defer bundle.Close()
		db := bundle.DB
		slog.Info("connected to database", "session_sources", bundle.Service.SourceNames(), "session_store", cfg.Session.Store)

		if autoMigrate {
			group, err := migrations.Apply(ctx, db)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if group.ID != 0 {
				slog.Info("applied migrations", "group", group.ID)
			}
		}

		validator, err := validation.NewSchemaValidator(32)
		if err != nil {
			return fmt.Errorf("failed to load request schemas: %w", err)
		}

		secure := strings.HasPrefix(cfg.SiteURL, "https://")
		var relyingParty *auth.RelyingParty
		if cfg.Provider.Enabled() && cfg.Features.ProviderLogin {
			relyingParty, err = auth.NewRelyingParty(ctx, cfg.Provider, cfg.Session.CookiePassword, secure)
			if err != nil {
				return fmt.Errorf("failed to create relying party: %w", err)
			}
		}

		janitor, err := jobs.NewJanitor(bundle.Sessions, cfg.JanitorSchedule, slog.Default())
		if err != nil {
			return err
		}
		if err := janitor.Start(ctx); err != nil {
			return err
		}
		defer janitor.Stop()

		router := server.NewRouter(server.RouterOptions{
			Cfg:        cfg,
			IAMService: bundle.Service,
			Payments:   payment.NewService(repository.NewBunPaymentRepository(db), cfg.SiteURL),
			Market:     market.NewClient(cfg.Market),
			Repos: server.Repositories{
				Notifications: repository.NewBunNotificationRepository(db),
				News:          repository.NewBunNewsRepository(db),
				Transactions:  repository.NewBunTransactionRepository(db),
				Signals:       repository.NewBunSignalRepository(db),
				Trades:        repository.NewBunTradeRepository(db),
				Packages:      repository.NewBunPackageRepository(db),
			},
			RateLimiter:  bundle.Limiter,
			Validator:    validator,
			RelyingParty: relyingParty,
			DB:           db,
			Logger:       slog.Default(),
			Version:      Version,
		})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			slog.Info("starting server", "addr", cfg.ServerAddr, "site_url", cfg.SiteURL, "version", Version)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			slog.Info("shutting down gracefully")

			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(sctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			slog.Info("server stopped")
			return nil
		}
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
