package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-engine/internal/api/handlers"
	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/kafka"
	"auction-engine/internal/infrastructure/leader"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/internal/infrastructure/metrics"
	"auction-engine/internal/infrastructure/mysql"
	"auction-engine/internal/infrastructure/redis"
	"auction-engine/internal/infrastructure/websocket"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

type storage struct {
	store    domain.AuctionStore
	identity domain.IdentityDirectory
	close    func() error
}

func openStorage(cfg *config.Config, log logger.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		identity := memory.NewIdentityDirectory()
		for _, seed := range cfg.Identity.Actors {
			identity.Put(domain.Actor{ID: seed.ID, Role: domain.Role(seed.Role), VerifiedBuyer: seed.Verified})
		}
		log.Warn("Using in-memory auction store, state is lost on restart", "actors", len(cfg.Identity.Actors))
		return &storage{store: memory.NewAuctionStore(), identity: identity, close: func() error { return nil }}, nil
	}

	db, err := mysql.Open(cfg.MySQL)
	if err != nil {
		return nil, err
	}
	if cfg.MySQL.Migrate {
		if err := mysql.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("MySQL migrations applied")
	}
	log.Info("Connected to MySQL")

	return &storage{
		store:    mysql.NewAuctionStore(db),
		identity: mysql.NewIdentityDirectory(db),
		close:    db.Close,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("Auction engine stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	log.Info("Starting auction engine", "config", cfg.GetConfigString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	incrementPercent, err := decimal.NewFromString(cfg.Bidding.IncrementPercent)
	if err != nil {
		return fmt.Errorf("bidding.increment_percent: %w", err)
	}

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = rdb.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	st, err := openStorage(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Error("Failed to close storage", "error", err)
		}
	}()

	biddingRuleDao := services.NewBiddingRuleDao(rdb, incrementPercent)
	if err := biddingRuleDao.LoadRules(ctx); err != nil {
		return fmt.Errorf("load bidding rules: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auctionMetrics := metrics.NewAuctionMetrics(registry)

	snapshotCache := redis.NewRedisSnapshotCache(rdb, cfg.Redis.SnapshotTTL)
	publishers := []domain.EventPublisher{redis.NewEventPublisher(rdb, cfg.Fanout.Channel)}

	var orders domain.PurchaseOrderRequester = memory.NewPurchaseOrderBook()
	if len(cfg.Kafka.Brokers) > 0 {
		stream := kafka.NewEventStream(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic, auctionMetrics, log)
		defer stream.Close()
		publishers = append(publishers, stream)

		requester := kafka.NewPurchaseOrderRequester(cfg.Kafka.Brokers, cfg.Kafka.PurchaseOrdersTopic)
		defer requester.Close()
		orders = requester
		log.Info("Kafka enabled", "brokers", cfg.Kafka.Brokers)
	} else {
		log.Warn("No Kafka brokers configured, purchase orders are kept in memory")
	}

	sm := services.NewStateMachine(st.store, snapshotCache, auctionMetrics, nil, log)
	dispatcher := services.NewDispatcher(publishers, cfg.Fanout.PublishTimeout, auctionMetrics, nil, log)
	validator := services.NewBidValidator(st.identity, biddingRuleDao)
	bidService := services.NewBidService(sm, st.store, validator, biddingRuleDao, dispatcher, auctionMetrics,
		services.BidServiceConfig{MaxRetries: cfg.Bidding.MaxRetries, RecordRejected: cfg.Bidding.RecordRejected}, log)
	approvalService := services.NewApprovalService(sm, st.store, orders, dispatcher, log)
	auctionManager := services.NewAuctionManager(sm, st.store, snapshotCache, dispatcher, log)

	leaderElection := leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL, log)
	sweeper := services.NewExpirySweeper(st.store, auctionManager, leaderElection, cfg.Instance.ID,
		cfg.Sweeper.Spec, cfg.Sweeper.BatchSize, log)

	connManager := websocket.NewConnectionManager(log)
	notifier := websocket.NewWebSocketNotifier(connManager, log)
	listener := services.NewEventListener(notifier, cfg.Fanout.GapTimeout, auctionMetrics, nil, log)
	subscriber := redis.NewRedisEventSubscriber(rdb, cfg.Fanout.Channel, log)

	e := newServer(cfg, log)
	handlers.NewAuctionHandler(auctionManager, bidService, approvalService, st.identity, log).Register(e)

	wsRouter := mux.NewRouter()
	websocket.NewWebSocketHandler(bidService, auctionManager, st.identity, connManager, log).Register(wsRouter)
	e.GET("/ws/*", echo.WrapHandler(wsRouter))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		leaderElection.Campaign(gctx, cfg.Instance.ID, cfg.Leader.TTL/2)
		return nil
	})

	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		<-gctx.Done()
		return sweeper.Stop()
	})

	g.Go(func() error {
		err := listener.Start(gctx, subscriber)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Info("Starting HTTP server", "address", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down auction engine")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := leaderElection.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
			log.Error("Failed to release leadership", "error", err)
		}
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Auction engine stopped")
	return nil
}

func newServer(cfg *config.Config, log logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}","bytes_in":${bytes_in},"bytes_out":${bytes_out}}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			handlers.HeaderActorID,
			handlers.HeaderActorRole,
		},
		MaxAge: 86400,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "auction-engine",
			"instance_id": cfg.Instance.ID,
			"timestamp":   time.Now().Format(time.RFC3339),
		})
	})

	log.Debug("HTTP server configured")
	return e
}
