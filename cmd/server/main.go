package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/restaurant-ordering/internal/config"
	"github.com/iliyamo/restaurant-ordering/internal/database"
	"github.com/iliyamo/restaurant-ordering/internal/fiscal"
	"github.com/iliyamo/restaurant-ordering/internal/handler"
	"github.com/iliyamo/restaurant-ordering/internal/metrics"
	"github.com/iliyamo/restaurant-ordering/internal/middleware"
	"github.com/iliyamo/restaurant-ordering/internal/payments"
	"github.com/iliyamo/restaurant-ordering/internal/queue"
	"github.com/iliyamo/restaurant-ordering/internal/repository"
	"github.com/iliyamo/restaurant-ordering/internal/router"
	"github.com/iliyamo/restaurant-ordering/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load() // Load environment config

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","file":"${short_file}","line":"${line}"}`)
	if cfg.Env == "dev" {
		e.Logger.SetLevel(glog.DEBUG)
	} else {
		e.Logger.SetLevel(glog.INFO)
	}
	e.Validator = handler.NewValidator()

	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infoj(glog.JSON{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			return nil
		},
	}))
	e.Use(metrics.Middleware())

	// ---- Datastore ----
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if cfg.AutoMigrate {
		mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := database.EnsureSchema(mctx, db)
		cancel()
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// ---- Redis (rate limit + stats cache) ----
	rdb := config.NewRedisClient()
	if rdb == nil {
		e.Logger.Warn("redis unavailable: rate limiting and stats cache disabled")
	} else {
		defer rdb.Close()
	}

	// ---- Broker ----
	var events service.EventPublisher = service.NopPublisher{}
	if cfg.AMQPURL != "" {
		pub, err := queue.NewPublisher(cfg.AMQPURL)
		if err != nil {
			e.Logger.Warnf("broker unavailable, events disabled: %v", err)
		} else {
			events = pub
			defer pub.Close()
		}
		if cfg.KitchenConsumer {
			go func() {
				if err := queue.NewKitchenConsumer(cfg.AMQPURL).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					e.Logger.Errorf("kitchen consumer stopped: %v", err)
				}
			}()
		}
	}

	// ---- Collaborators ----
	opts := service.OrderOptions{
		Location:    cfg.Timezone,
		PageSize:    cfg.OrderPageSize,
		MaxPageSize: cfg.OrderPageSizeMax,
		Currency:    cfg.Currency,
		BaseURL:     cfg.PublicBaseURL,
		Events:      events,
		Fiscal:      fiscal.NewMockProvider(cfg.FiscalMockDir),
		Logger:      e.Logger,
	}
	if sp := payments.NewStripeProvider(cfg.StripeSecretKey); sp != nil {
		opts.Payments = sp
	} else {
		e.Logger.Info("STRIPE_SECRET_KEY not set: online payments disabled")
	}

	// ---- Services ----
	orderRepo := repository.NewOrderRepo(db)
	orders := service.NewOrderService(orderRepo, opts)
	tables := service.NewTableService(repository.NewTableRepo(db), repository.NewReservationRepo(db), events, e.Logger)
	settings := service.NewSettingsService(repository.NewSettingsRepo(db))
	stats := service.NewStatsService(orderRepo, cfg.Timezone)
	auth := service.NewAuthService(settings, cfg.StaffPIN, cfg.JWTSecret, cfg.AccessTTLMin)

	router.RegisterRoutes(e, router.Deps{
		Orders:        handler.NewOrderHandler(orders),
		Tables:        handler.NewTableHandler(tables),
		Settings:      handler.NewSettingsHandler(settings),
		Stats:         handler.NewStatsHandler(stats),
		Auth:          handler.NewAuthHandler(auth),
		DB:            db,
		JWTSecret:     cfg.JWTSecret,
		AdminPassword: cfg.AdminPassword,
		Redis:         rdb,
		CheckoutLimit: config.LoadRateLimitConfig("checkout"),
		PINLimit:      config.LoadRateLimitConfig("pin"),
		StatsCache:    config.LoadCacheConfig(),
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, tz=%s)", addr, cfg.Env, cfg.Timezone)

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Print("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
