package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"YieldHarbor/internal/api"
	"YieldHarbor/internal/collector"
	"YieldHarbor/internal/config"
	"YieldHarbor/internal/fund"
	"YieldHarbor/internal/live"
	"YieldHarbor/internal/metrics"
	"YieldHarbor/internal/notifier"
	"YieldHarbor/internal/scheduler"
	"YieldHarbor/internal/session"
	"YieldHarbor/internal/store"
	"YieldHarbor/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] YieldHarbor vault engine starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Init storage
	kv, err := openKV(cfg)
	if err != nil {
		log.Fatalf("[FATAL] init %s storage: %v", cfg.Storage.Driver, err)
	}
	defer kv.Close()
	repo := store.NewKVRepository(kv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init strategy catalog
	var fetcher collector.Fetcher
	if cfg.Strategies.SourceURL != "" {
		fetcher = collector.NewHTTPFetcher(cfg.Strategies.SourceURL, cfg.Strategies.APIKey, cfg.Proxy)
	} else {
		fetcher = &collector.StaticFetcher{Strategies: strategy.Defaults()}
	}
	log.Printf("[INFO] strategy source: %s", fetcher.Name())
	catalog, err := strategy.LoadCatalog(ctx, fetcher, repo)
	if err != nil {
		log.Fatalf("[FATAL] load strategy catalog: %v", err)
	}

	// Init metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ind := metrics.NewPromIndicators(reg, "yieldharbor")

	// Init ledger and live vault
	ledger := fund.NewLedger(repo, catalog,
		fund.WithInitialGrant(decimal.NewFromFloat(cfg.Vault.InitialGrant)),
		fund.WithAcceleration(cfg.Vault.Acceleration),
		fund.WithObserver(ind),
	)
	provider := live.NewMemoryProvider(decimal.NewFromFloat(cfg.Live.SeedBalance), decimal.NewFromFloat(cfg.Live.PricePerShare))

	// Init push hub and refresher
	hub := notifier.NewHub(cfg.Server.CORSOrigins)
	defer hub.Close()
	refresher := scheduler.NewRefresher(ctx, ledger, hub, cfg.Vault.RefreshInterval)
	refresher.Counter = ind
	refresher.Start()
	defer refresher.Stop()

	sessions := session.NewManager(ledger, live.NewVault(provider), catalog)
	sessions.Refresher = refresher
	sessions.Publisher = hub
	sessions.Tracker = ind

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(api.NewHandler(sessions, catalog, hub), reg, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[FATAL] http server: %v", err)
		}
	}()
	log.Printf("[INFO] YieldHarbor listening on %s", cfg.Server.Addr)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[WARN] http shutdown: %v", err)
	}
	cancel()
	log.Println("[INFO] YieldHarbor stopped")
}

// openKV opens the configured backend. Memory is only used when configured.
func openKV(cfg *config.Config) (store.KV, error) {
	var (
		kv  store.KV
		err error
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		kv = store.NewMemoryKV()
	case config.DriverFile:
		kv, err = store.NewFileKV(cfg.Storage.FilePath)
	case config.DriverSQLite:
		kv, err = store.NewSQLiteKV(cfg.Storage.SQLitePath)
	case config.DriverRedis:
		kv, err = store.NewRedisKV(cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] storage: %s", cfg.Storage.Driver)
	return kv, nil
}
