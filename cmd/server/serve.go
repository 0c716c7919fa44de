package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	otelecho "go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/sgfractal/eigen-workflow/internal/api"
	"github.com/sgfractal/eigen-workflow/internal/auth"
	"github.com/sgfractal/eigen-workflow/internal/collaborators"
	"github.com/sgfractal/eigen-workflow/internal/config"
	"github.com/sgfractal/eigen-workflow/internal/engine"
	"github.com/sgfractal/eigen-workflow/internal/logging"
	"github.com/sgfractal/eigen-workflow/internal/mcpserver"
	"github.com/sgfractal/eigen-workflow/internal/repository"
	"github.com/sgfractal/eigen-workflow/internal/telemetry"
	"github.com/sgfractal/eigen-workflow/internal/tls"
	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// reapInterval is how often the serve command walks active executions
// looking for timed-out phases.
const reapInterval = 15 * time.Second

func newServeCommand(logger *logging.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow orchestration HTTP and MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(logger)
		},
	}
}

func runServe(logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return err
	}
	logger.Info("configuration loaded",
		"environment", cfg.Environment,
		"auth_issuer", cfg.Auth.IssuerURL,
		"dev_mode_bypass", cfg.Auth.DevModeBypass,
	)

	telemetryProviders, err := telemetry.New(ctx, telemetry.Config{
		ServiceName:      "eigen-workflow",
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EnablePrometheus: true,
	})
	if err != nil {
		logger.Error("failed to initialize telemetry", "error", err)
		return err
	}
	defer telemetryProviders.Shutdown(context.Background())

	dbPool, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		return err
	}
	defer dbPool.Close()
	logger.Info("database connected")

	if err := repository.Migrate(ctx, dbPool); err != nil {
		logger.Error("failed to migrate schema", "error", err)
		return err
	}

	store := repository.New(dbPool)

	admin, err := models.ParsePrincipal(cfg.Admin.Principal)
	if err != nil {
		logger.Error("invalid admin principal", "error", err)
		return err
	}

	var mailbox engine.TaskMailbox
	if cfg.Collaborators.TaskMailboxURL != "" {
		mailbox = collaborators.NewHTTPTaskMailbox(cfg.Collaborators.TaskMailboxURL)
	}

	var operators engine.OperatorRegistry
	if cfg.Collaborators.OperatorRegistryURL != "" {
		operators = collaborators.NewHTTPOperatorRegistry(cfg.Collaborators.OperatorRegistryURL)
	}

	feeSink := collaborators.NewPostgresFeeSink(dbPool)

	eng := engine.New(engine.Config{
		Mailbox:        mailbox,
		Operators:      operators,
		Fees:           feeSink,
		Persister:      store,
		Events:         logging.NewEventLogger(logger),
		Logger:         logger,
		FeeAmounts:     engine.Fees{CreationFee: cfg.Fees.CreationFee, ExecutionFee: cfg.Fees.ExecutionFee},
		AdminPrincipal: admin,
	})

	if err := restoreState(ctx, eng, store, logger); err != nil {
		logger.Error("failed to restore state from repository", "error", err)
		return err
	}

	authz, err := auth.New(ctx, auth.Config{
		IssuerURL:     cfg.Auth.IssuerURL,
		ClientID:      cfg.Auth.ClientID,
		DevModeBypass: cfg.Auth.DevModeBypass,
		DevPrincipal:  admin,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize auth", "error", err)
		return err
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("eigen-workflow"))

	apiServer := api.NewServer(eng)
	apiServer.RegisterRoutes(e, echo.WrapMiddleware(authz.RequireAuth))
	logger.Info("REST API handlers mounted")

	mcpSrv := mcpserver.NewServer(eng)
	mcpMux := http.NewServeMux()
	mcpserver.MountHTTPHandlers(mcpMux, mcpSrv.GetMCPServer())
	e.Any("/mcp/*", echo.WrapHandler(mcpMux))
	logger.Info("MCP protocol handlers mounted")

	addr := cfg.Server.Addr
	if cfg.TLS.Enable {
		addr = ":8443"
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	reaperCtx, stopReaper := context.WithCancel(context.Background())
	go engine.RunReaper(reaperCtx, eng, reapInterval, logger)
	defer stopReaper()

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
				logger.Error("tls enabled but cert/key file not provided")
				serverErrors <- httpServer.ListenAndServe()
				return
			}
			if _, statErr := os.Stat(cfg.TLS.CertFile); os.IsNotExist(statErr) && len(cfg.TLS.Hostnames) > 0 {
				if err := tls.GenerateSelfSignedCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames); err != nil {
					logger.Error("failed to generate self-signed cert", "error", err)
				}
			}
			serverErrors <- httpServer.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErrors <- httpServer.ListenAndServe()
		}
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			if closeErr := httpServer.Close(); closeErr != nil {
				logger.Error("server close error", "error", closeErr)
			}
		}
		logger.Info("server stopped gracefully")
	}

	return nil
}

// restoreState rehydrates active workflows and incomplete executions from
// the repository into a freshly constructed Engine, so a restart doesn't
// orphan work the reaper and submission handlers still need to see.
func restoreState(ctx context.Context, eng *engine.Engine, store *repository.Store, logger *logging.Logger) error {
	workflows, err := store.LoadActiveWorkflows(ctx)
	if err != nil {
		return err
	}
	executions, err := store.LoadIncompleteExecutions(ctx)
	if err != nil {
		return err
	}
	eng.Restore(workflows, executions)
	logger.Info("restored state from repository",
		"workflows", len(workflows),
		"executions", len(executions),
	)
	return nil
}
