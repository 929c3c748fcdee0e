package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
	"github.com/Krisa786/glob-mart-sub001/internal/catalog"
	"github.com/Krisa786/glob-mart-sub001/internal/checkout"
	"github.com/Krisa786/glob-mart-sub001/internal/config"
	"github.com/Krisa786/glob-mart-sub001/internal/httpx"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
	kafkax "github.com/Krisa786/glob-mart-sub001/internal/kafka"
	"github.com/Krisa786/glob-mart-sub001/internal/logger"
	"github.com/Krisa786/glob-mart-sub001/internal/postgres"
	"github.com/Krisa786/glob-mart-sub001/internal/redisx"
	"github.com/Krisa786/glob-mart-sub001/internal/shipping"
	"github.com/Krisa786/glob-mart-sub001/internal/tax"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Dev())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per outbound topic
	pReserved := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockReserved, 1024)
	pReserved.Start(ctx)
	pReleased := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockReleased, 1024)
	pReleased.Start(ctx)
	pCompleted := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutCompleted, 1024)
	pCompleted.Start(ctx)
	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutExpired, 1024)
	pExpired.Start(ctx)

	// Services
	invSvc := &inventory.Service{
		Store: &inventory.PGStore{DB: db},
		Cache: redisx.Cache{RDB: rdb},
		Log:   log,
	}
	cartSvc := &cart.Service{
		Store:     &cart.PGStore{DB: db},
		Catalog:   &catalog.PGCatalog{DB: db},
		Inventory: invSvc.Store,
		Log:       log,
	}
	checkoutSvc := &checkout.Service{
		Store:    &checkout.PGStore{DB: db},
		Carts:    cartSvc,
		Tax:      &tax.RateTable{BasisPoints: map[string]int64{"US": 825, "CA": 1300, "GB": 2000, "DE": 1900, "FR": 2000}},
		Shipping: shipping.DefaultRates(),

		ProducerReserved:  pReserved,
		ProducerReleased:  pReleased,
		ProducerCompleted: pCompleted,
		ProducerExpired:   pExpired,

		Log:         log,
		ServiceName: cfg.ServiceName,
		TTL:         cfg.CheckoutTTL,
	}

	// Router & handlers
	rl := &redisx.RateLimiter{RDB: rdb, Limit: cfg.RateLimit, Window: cfg.RateLimitWindow}
	router := httpx.NewRouter(rl)
	(&httpx.CartHandler{Svc: cartSvc}).Register(router)
	(&httpx.CheckoutHandler{Svc: checkoutSvc, Redis: rdb}).Register(router)
	(&httpx.InventoryHandler{Svc: invSvc}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	for _, p := range []*kafkax.Producer{pReserved, pReleased, pCompleted, pExpired} {
		p.Close() // close inbox -> flush & close writer
	}
	cancel()
	for _, p := range []*kafkax.Producer{pReserved, pReleased, pCompleted, pExpired} {
		p.WaitClosed()
	}
}
