package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/d60-Lab/feedpulse/config"
	_ "github.com/d60-Lab/feedpulse/docs"
	"github.com/d60-Lab/feedpulse/internal/api"
	"github.com/d60-Lab/feedpulse/internal/api/handler"
	"github.com/d60-Lab/feedpulse/internal/cache"
	"github.com/d60-Lab/feedpulse/internal/realtime"
	"github.com/d60-Lab/feedpulse/internal/repository"
	"github.com/d60-Lab/feedpulse/internal/service"
	"github.com/d60-Lab/feedpulse/pkg/database"
	"github.com/d60-Lab/feedpulse/pkg/logger"
)

// @title feedpulse API
// @version 1.0
// @description Redis-backed timeline and engagement cache engine with realtime fan-out.
// @BasePath /api/v1
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Server.Mode); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}
	shutdownTracing := initTracing(cfg)
	defer shutdownTracing()

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}

	rdb := cache.NewClient(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if !cache.Ready(ctx, rdb) {
		logger.Error("redis not reachable", zap.String("addr", cfg.Redis.Addr))
		os.Exit(1)
	}

	// cache layer
	scorer := cache.NewScorer(cfg.Ranking)
	feedCache := cache.NewFeedCache(rdb, scorer, cfg.Timeline)
	followCache := cache.NewFollowCache(rdb)
	profileCache := cache.NewProfileCache(rdb)
	chatCache := cache.NewChatCache(rdb)
	statsCache := cache.NewStatsCache(rdb)
	tokenCache := cache.NewTokenCache(rdb)
	bus := cache.NewBus(rdb)
	rebuilder := cache.NewRebuilder(db, rdb)

	// repositories
	userRepo := repository.NewUserRepository(db)
	feedRepo := repository.NewFeedRepository(db)
	chatRepo := repository.NewChatRepository(db)
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)

	// async durable write-back
	writeback := service.NewWriteback(feedRepo, chatRepo, 10000)
	stopWriteback := writeback.Start(4)
	replicator := service.NewFanReplicator(fanRepo, 10000)
	stopReplicator := replicator.Start(2)

	// services
	userService := service.NewUserService(userRepo, tokenCache, profileCache, rebuilder, cfg.JWT.Secret)
	relService := service.NewRelationshipService(followRepo, fanRepo, replicator, followCache)
	feedService := service.NewFeedService(feedCache, followCache, chatCache, statsCache, bus, rebuilder, writeback)
	chatService := service.NewChatService(chatCache, chatRepo, bus, writeback)

	hub := realtime.NewHub()
	h := handler.NewHandler(userService, relService, feedService, chatService, statsCache, bus, hub, cfg.Realtime)
	router := api.NewRouter(cfg, h)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// 先停写回队列，尽量排空再退出
	_ = stopWriteback(shutdownCtx)
	_ = stopReplicator(shutdownCtx)
}

func initTracing(cfg *config.Config) func() {
	if cfg.Telemetry.OTLPEndpoint == "" {
		return func() {}
	}
	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(cfg.Telemetry.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("otlp exporter init failed", zap.Error(err))
		return func() {}
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}
}
