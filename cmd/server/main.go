package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-compass/internal/advisor"
	"coin-compass/internal/analysis"
	"coin-compass/internal/bot"
	"coin-compass/internal/cache"
	"coin-compass/internal/config"
	"coin-compass/internal/db"
	"coin-compass/internal/handler"
	"coin-compass/internal/marketdata"
	"coin-compass/internal/provider"
	"coin-compass/internal/repository"
	"coin-compass/internal/scheduler"
	"coin-compass/internal/service"
	"coin-compass/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "coin-compass/docs"
)

var (
	loadEnvFunc       = godotenv.Load
	loadConfigFunc    = config.Load
	initPostgresFunc  = db.InitPostgres
	initRedisFunc     = cache.InitRedis
	initTracerFunc    = tracing.InitTracer
	runMigrationsFunc = repository.RunMigrations
	newMarketDataFunc = func(tracer trace.Tracer, cfg *config.Config) *marketdata.Aggregator {
		return marketdata.NewAggregator(
			tracer,
			provider.NewBinanceClient(cfg.BinanceAPIURL, tracer),
			provider.NewCoinGeckoClient(cfg.CoinGeckoAPIURL, tracer),
		)
	}
	newPriceServiceFunc    = service.NewPriceService
	newAnalysisServiceFunc = service.NewAnalysisService
	newSchedulerFunc       = scheduler.New
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Coin Compass API
// @version         1.0
// @description     Crypto market data, technical indicators and LLM-backed trading recommendations.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	if db.Pool != nil {
		if err := runMigrationsFunc(ctx, db.Pool); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Repositories
	assetRepo := repository.NewAssetRepository(db.Pool, tracer)
	priceRepo := repository.NewPriceRepository(db.Pool, tracer)
	analysisRepo := repository.NewAnalysisRepository(db.Pool, tracer)
	settingsRepo := repository.NewSettingsRepository(db.Pool, tracer)

	// Providers and services
	market := newMarketDataFunc(tracer, cfg)
	priceService := newPriceServiceFunc(tracer, market, assetRepo, priceRepo, cache.Client)
	analysisService := newAnalysisServiceFunc(
		tracer, market, assetRepo, analysisRepo, settingsRepo,
		analysis.NewEngine(tracer), advisor.NewEngine(tracer),
	)

	// Background loops
	sched := newSchedulerFunc(tracer, settingsRepo, priceService, analysisService)
	sched.Start(ctx)
	defer sched.Stop()

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(priceService, analysisService)

	// Create handlers and routes
	h := newHandlerFunc(tracer, priceService, analysisService, assetRepo, settingsRepo, sched)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("coin-compass"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
