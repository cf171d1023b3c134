package server

import (
	"log"
	"net/http"
	"time"

	"coin-ledger/internal/config"
	"coin-ledger/internal/fraud"
	hrest "coin-ledger/internal/handler/rest"
	"coin-ledger/internal/integrity"
	"coin-ledger/internal/pub"
	"coin-ledger/internal/repository"
	"coin-ledger/internal/usecase"
	"coin-ledger/internal/worker"
	"coin-ledger/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
)

// NewLedgerServer wires the full pipeline and blocks serving HTTP.
func NewLedgerServer(cfg config.AppConfig) {
	// --- DB connection ---
	dbpool, err := config.ConnectDB()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer dbpool.Close()

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zlog.Sync()

	restLog := logrus.New()
	restLog.SetFormatter(&logrus.JSONFormatter{})

	ids := utils.NewIDGenerator()

	// --- Redis client ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})

	// --- Event publishers ---
	kafkaPub := pub.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, zlog)
	defer kafkaPub.Close()
	notifier := pub.Multi{
		pub.NewRedisPublisher(rdb, zlog),
		kafkaPub,
	}

	// --- Geo resolution (optional) ---
	var geo fraud.GeoResolver
	if cfg.GeoIPPath != "" {
		resolver, err := fraud.NewMaxMindResolver(cfg.GeoIPPath)
		if err != nil {
			log.Fatalf("failed to open geoip database: %v", err)
		}
		defer resolver.Close()
		geo = resolver
	}

	// --- Repositories ---
	walletRepo := repository.NewWalletRepo(dbpool)
	txRepo := repository.NewTransactionRepo(dbpool)
	reviews := repository.NewRedisReviewQueue(rdb)

	// --- Fraud analyzer ---
	analyzer := fraud.NewAnalyzer(
		txRepo,
		nil, // default heuristic scorer
		fraud.NewPatternCache(),
		fraud.NewSuspiciousSet(),
		geo,
		fraud.Config{
			VelocityHourly:    cfg.VelocityHourly,
			LargeAmount:       cfg.LargeAmount,
			HighRiskCountries: cfg.HighRiskCountries,
		},
		zlog,
	)

	// --- Usecases ---
	chain := integrity.NewChain(txRepo)
	ledger := usecase.NewWalletLedger(usecase.StaticEconomy{C: cfg.Economy})
	escalation := usecase.NewRiskEscalation(walletRepo, reviews, notifier, ids, zlog)
	txUC := usecase.NewTransactionUsecase(walletRepo, txRepo, chain, analyzer, ledger, escalation, notifier, ids, zlog)
	batchUC := usecase.NewBatchCoordinator(txUC, notifier, zlog)

	// --- Background monitor ---
	monitor := worker.NewMonitor(txRepo, walletRepo, analyzer, notifier, worker.MonitorConfig{}, zlog)
	monitor.Start()
	defer monitor.Stop()

	// --- REST handler ---
	handler := hrest.NewLedgerRestHandler(txUC, batchUC, restLog)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	handler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	log.Printf("Ledger REST server listening on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}
