package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bootboard/bootboard/internal/app"
	"github.com/bootboard/bootboard/internal/attachments"
	"github.com/bootboard/bootboard/internal/auth"
	"github.com/bootboard/bootboard/internal/boards"
	"github.com/bootboard/bootboard/internal/comments"
	"github.com/bootboard/bootboard/internal/observability"
	"github.com/bootboard/bootboard/internal/platform/cache"
	"github.com/bootboard/bootboard/internal/platform/db"
	"github.com/bootboard/bootboard/internal/rbac"
	"github.com/bootboard/bootboard/internal/users"
	"github.com/bootboard/bootboard/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.DBMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	var resolverOpts []auth.ResolverOption
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, identity cache disabled", slog.Any("error", err))
	} else {
		resolverOpts = append(resolverOpts, auth.WithCache(redisClient, cfg.IdentityCacheTTL))
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	tokens, err := auth.NewTokenCodec([]byte(cfg.JWTSecret), cfg.JWTTTL)
	if err != nil {
		logger.Error("init token codec", slog.Any("error", err))
		os.Exit(1)
	}
	authRepo := auth.NewRepository(dbpool)
	resolver := auth.NewIdentityResolver(authRepo, logger, resolverOpts...)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(logger, authService, cfg.LoginRateLimit)

	gate := rbac.NewGate(rbac.GateConfig{
		Tokens:   tokens,
		Identity: resolver,
		Logger:   logger,
		Recorder: metrics,
	})

	usersService := users.NewService(authRepo, resolver, logger)
	usersHandler := users.NewHandler(logger, usersService)

	storage, err := app.NewStorage(ctx, cfg)
	if err != nil {
		logger.Error("init attachment storage", slog.Any("error", err))
		os.Exit(1)
	}
	boardRepo := boards.NewRepository(dbpool)
	store := app.NewAttachmentStore(cfg, app.AttachmentDeps{
		Storage:    storage,
		Repository: attachments.NewRepository(dbpool),
		Owners:     boardRepo,
		Recorder:   metrics,
		Logger:     logger,
	})
	reconciler := attachments.NewReconciler(store, store.EditorDir(), logger, metrics)
	filesHandler := attachments.NewHandler(logger, store, cfg.UploadMaxBytes)

	commentService := comments.NewService(comments.NewRepository(dbpool), logger)
	commentsHandler := comments.NewHandler(logger, commentService)

	boardService := boards.NewService(boardRepo, store, reconciler, commentService, logger)
	boardsHandler := boards.NewHandler(logger, boardService, cfg.UploadMaxBytes)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Gate:            gate,
		AuthHandler:     authHandler,
		BoardsHandler:   boardsHandler,
		CommentsHandler: commentsHandler,
		FilesHandler:    filesHandler,
		UsersHandler:    usersHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
