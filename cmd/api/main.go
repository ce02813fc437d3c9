package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/api"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/api/handler"
	custommiddleware "github.com/sanosuguru/go-vehicle-cart-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/application"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/config"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/domain/sale"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/infrastructure/postgres"
	redisinfra "github.com/sanosuguru/go-vehicle-cart-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-vehicle-cart-reservation/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer logger.Sync()

	m := metrics.Init()
	clk := clock.NewSystem()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 予約ストア（設定に応じて memory / postgres を選択）
	var store reservation.Store
	var saleRepo sale.Repository
	switch cfg.Reservation.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			logger.Fatal("データベース接続に失敗", zap.Error(err))
		}
		defer db.Close()
		if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
			if err := postgres.RunMigrations(db.DB, path); err != nil {
				logger.Fatal("マイグレーション実行に失敗", zap.Error(err))
			}
		}
		store = postgres.NewReservationStore(db)
		saleRepo = postgres.NewSaleRepository(db)
	default:
		store = memory.NewReservationStore()
	}

	// Redis（分散ロック・キャッシュ・売却イベント発行、無効時は nil のまま）
	var lockManager *redisinfra.LockManager
	var availabilityCache *redisinfra.AvailabilityCache
	var soldPublisher *redisinfra.SoldEventPublisher
	if cfg.Redis.Enabled {
		redisClient := redisinfra.NewClient(&cfg.Redis)
		defer redisClient.Close()
		if err := redisinfra.Ping(ctx, redisClient); err != nil {
			logger.Fatal("Redis接続に失敗", zap.Error(err))
		}
		lockManager = redisinfra.NewLockManager(redisClient)
		availabilityCache = redisinfra.NewAvailabilityCache(redisClient)
		soldPublisher = redisinfra.NewSoldEventPublisher(redisClient)
	}

	// アプリケーションサービス
	guard := application.NewAvailabilityGuard(store, clk, cfg.Reservation.TTL, m)
	cartService := application.NewCartService(guard, lockManager, availabilityCache, m)
	checkoutService := application.NewCheckoutService(guard, saleRepo, soldPublisher, availabilityCache, clk, m)

	// 期限切れ予約スイーパー
	sweeper := worker.NewExpirySweeper(cartService, cfg.Reservation.SweepInterval)
	go sweeper.Start(ctx)

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	custommiddleware.SetupMiddleware(e)
	e.Use(custommiddleware.PrometheusMiddleware(m))

	cartHandler := handler.NewCartHandler(cartService)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService)
	vehicleHandler := handler.NewVehicleHandler(cartService)
	healthHandler := handler.NewHealthHandler()

	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.GET("/cart", cartHandler.List)
	v1.POST("/cart/items", cartHandler.Add)
	v1.DELETE("/cart/items/:vehicleId", cartHandler.Remove)
	v1.POST("/checkout", checkoutHandler.Checkout)
	v1.GET("/vehicles/:id/availability", vehicleHandler.Availability)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommiddleware.MetricsBasicAuth())

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("サーバー起動",
			zap.String("addr", addr),
			zap.String("store_driver", cfg.Reservation.StoreDriver),
			zap.Duration("reservation_ttl", cfg.Reservation.TTL),
			zap.Duration("sweep_interval", cfg.Reservation.SweepInterval),
		)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// スイーパー停止 → HTTPサーバー停止の順で畳む
	cancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
