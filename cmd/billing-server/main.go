package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emsops/emsops/internal/config"
	"github.com/emsops/emsops/internal/domain/charge"
	"github.com/emsops/emsops/internal/domain/collections"
	"github.com/emsops/emsops/internal/domain/paymentplan"
	"github.com/emsops/emsops/internal/domain/rates"
	"github.com/emsops/emsops/internal/domain/revenue"
	"github.com/emsops/emsops/internal/platform/auth"
	"github.com/emsops/emsops/internal/platform/db"
	"github.com/emsops/emsops/internal/platform/middleware"
	"github.com/emsops/emsops/internal/platform/notification"
	"github.com/emsops/emsops/internal/platform/sweep"
	"github.com/emsops/emsops/internal/platform/validation"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "billing-server",
		Short: "EMS transport billing and collections API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the billing API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Manage the collections escalation sweeper",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the escalation sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			collectionsSvc, _ := buildCollectionsService(pool, logger)
			runner := sweep.NewRunner(collectionsSvc, cfg.SweepInterval, cfg.SweepWorkers, logger)

			if once {
				res, err := runner.RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Examined %d account(s): %d transitioned, %d skipped, %d failed.\n",
					res.Examined, res.Transitioned, res.Skipped, res.Failed)
				return nil
			}

			err = runner.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
	runCmd.Flags().Bool("once", false, "Run a single sweep pass and exit")
	cmd.AddCommand(runCmd)

	return cmd
}

// buildCollectionsService wires the collections service with its postgres
// repositories, the org rate source, and the notification dispatcher. It is
// shared between serve and the standalone sweeper.
func buildCollectionsService(pool *pgxpool.Pool, logger zerolog.Logger) (*collections.Service, *notification.Dispatcher) {
	dispatcher := notification.NewDispatcher(
		&notification.LogEmailSender{Logger: logger},
		&notification.LogSMSSender{Logger: logger},
		notification.NewTemplateEngine(),
		logger,
	)

	rateSvc := rates.NewService(rates.NewRepoPG(pool))
	runTx := func(ctx context.Context, fn func(context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}

	svc := collections.NewService(
		collections.NewAccountRepoPG(pool),
		collections.NewPolicyRepoPG(pool),
		collections.NewWriteOffRepoPG(pool),
		rateSvc,
		dispatcher,
		runTx,
		logger,
	)
	return svc, dispatcher
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	switch cfg.ResolvedAuthMode() {
	case "development":
		e.Use(auth.DevAuthMiddleware(cfg.DefaultOrgID))
	case "hmac":
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthHMACSecret),
		}))
	default:
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})

	// -- Register domain handlers --

	rateSvc := rates.NewService(rates.NewRepoPG(pool))
	rates.NewHandler(rateSvc).RegisterRoutes(apiV1)

	chargeSvc := charge.NewService(charge.NewRepoPG(pool), rateSvc, logger)
	charge.NewHandler(chargeSvc).RegisterRoutes(apiV1)

	collectionsSvc, _ := buildCollectionsService(pool, logger)
	collections.NewHandler(collectionsSvc).RegisterRoutes(apiV1)

	planSvc := paymentplan.NewService(paymentplan.NewRepoPG(pool), rateSvc, logger)
	planSvc.SetAccountBrancher(collectionsSvc)
	paymentplan.NewHandler(planSvc).RegisterRoutes(apiV1)

	revenueSvc := revenue.NewService(revenue.NewRepoPG(pool), logger)
	revenue.NewHandler(revenueSvc).RegisterRoutes(apiV1)

	// In-process escalation sweeper
	sweepCtx, sweepCancel := context.WithCancel(ctx)
	defer sweepCancel()
	runner := sweep.NewRunner(collectionsSvc, cfg.SweepInterval, cfg.SweepWorkers, logger)
	go func() {
		if err := runner.Run(sweepCtx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("sweeper exited")
		}
	}()

	// Start server with graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("billing server started")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
