package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/campussync/campussync/internal/analytics"
	"github.com/campussync/campussync/internal/app"
	"github.com/campussync/campussync/internal/audit"
	"github.com/campussync/campussync/internal/auth"
	"github.com/campussync/campussync/internal/certificates"
	"github.com/campussync/campussync/internal/credentials"
	"github.com/campussync/campussync/internal/extraction"
	"github.com/campussync/campussync/internal/facultyapprovals"
	"github.com/campussync/campussync/internal/observability"
	"github.com/campussync/campussync/internal/organizations"
	"github.com/campussync/campussync/internal/platform/cache"
	"github.com/campussync/campussync/internal/platform/db"
	"github.com/campussync/campussync/internal/platform/storage"
	"github.com/campussync/campussync/internal/rbac"
	"github.com/campussync/campussync/internal/rolerequests"
	"github.com/campussync/campussync/internal/roles"
	"github.com/campussync/campussync/internal/shared"
	"github.com/campussync/campussync/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.DBOptions())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	objectStore, err := storage.NewMinioStore(ctx, storage.MinioOptions{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Error("connect object store", slog.Any("error", err))
		os.Exit(1)
	}

	seed, err := cfg.SigningSeed()
	if err != nil {
		logger.Error("signing seed", slog.Any("error", err))
		os.Exit(1)
	}
	signer, err := credentials.NewSigner(seed, cfg.CredentialIssuerDID)
	if err != nil {
		logger.Error("init signer", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	redisOpts := cfg.RedisOptions().Asynq()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	actionLock := shared.NewActionLock(redisClient, 30*time.Second)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	analyticsCache := analytics.NewCache(redisClient, 10*time.Minute)
	analyticsService := analytics.NewService(analytics.NewRepository(dbpool), analyticsCache, logger)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token issuer", slog.Any("error", err))
		os.Exit(1)
	}
	authService := auth.NewService(auth.NewRepository(dbpool), tokens, cfg.RequireEmailConfirmation)
	authn := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, authn)

	rolesService := roles.NewService(roles.NewRepository(dbpool), roles.NewRedisTicketStore(redisClient), analyticsService, logger)
	roleRequestService := rolerequests.NewService(rolerequests.NewRepository(dbpool), actionLock, analyticsService, jobClient, logger)
	facultyService := facultyapprovals.NewService(facultyapprovals.NewRepository(dbpool), actionLock, analyticsService, jobClient, logger)
	orgService := organizations.NewService(organizations.NewRepository(dbpool), auditLogger, analyticsService, logger)

	credentialService := credentials.NewService(credentials.NewRepository(dbpool), signer, logger)

	extractors := []extraction.Extractor{extraction.NewPDFExtractor()}
	if cfg.GeminiAPIKey != "" {
		gemini, err := extraction.NewGeminiExtractor(cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Error("init gemini extractor", slog.Any("error", err))
			os.Exit(1)
		}
		extractors = append(extractors, gemini)
	} else {
		logger.Warn("gemini extractor disabled, GEMINI_API_KEY not set")
	}

	certificateService := certificates.NewService(certificates.Dependencies{
		Repo:        certificates.NewRepository(dbpool),
		Drafts:      certificates.NewRedisDraftStore(redisClient),
		Store:       objectStore,
		Extractors:  extractors,
		Issuer:      credentialService,
		Locks:       actionLock,
		Idempotency: idempotencyStore,
		Cache:       analyticsService,
		Notifier:    jobClient,
		Metrics:     metrics,
		Logger:      logger,
	}, certificates.Options{
		MaxUploadBytes:       cfg.UploadMaxBytes,
		AutoApproveThreshold: cfg.AutoApproveThreshold,
		FileURLTTL:           cfg.FileURLTTL,
	})

	auditService := audit.NewService(audit.NewRepository(dbpool), approvalRecorder)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Metrics:        metrics,
		Authn:          authn,
		RBACMiddleware: rbacMiddleware,
		HealthChecks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		AuthHandler:            authHandler,
		RolesHandler:           roles.NewHandler(logger, rolesService),
		RoleRequestsHandler:    rolerequests.NewHandler(logger, roleRequestService),
		FacultyApprovalHandler: facultyapprovals.NewHandler(logger, facultyService),
		OrganizationsHandler:   organizations.NewHandler(logger, orgService, rbacMiddleware),
		CertificatesHandler:    certificates.NewHandler(logger, certificateService, rbacMiddleware),
		CredentialsHandler:     credentials.NewHandler(logger, credentialService),
		AnalyticsHandler:       analytics.NewHandler(logger, analyticsService),
		AuditHandler:           audit.NewHandler(logger, auditService),
		JobHandler:             jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
