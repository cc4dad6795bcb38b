package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/courierhq/courier/pkg/api"
	"github.com/courierhq/courier/pkg/cache"
	"github.com/courierhq/courier/pkg/config"
	"github.com/courierhq/courier/pkg/engine"
	"github.com/courierhq/courier/pkg/middleware"
	"github.com/courierhq/courier/pkg/storage"
)

func main() {
	// 1. Load Config with hot reload
	cfgStore, err := config.LoadAndWatch()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := cfgStore.Get()
	if cfg == nil {
		log.Fatal("Config could not be read")
	}

	// 2. Open the record store
	var (
		store storage.Store
		rdb   *cache.Client
	)
	switch cfg.Storage.Driver {
	case "redis":
		rdb, err = cache.NewRedis(cfg.Storage.Address, cfg.Storage.Password, cfg.Storage.DB)
		if err != nil {
			log.Fatalf("Could not connect to Redis: %v", err)
		}
		retention := time.Duration(cfg.Storage.RetentionDays) * 24 * time.Hour
		store = storage.NewRedisStore(rdb, retention)
		fmt.Println("✅ Redis record store connected")
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := storage.NewPostgresStore(ctx, cfg.Storage.DSN)
		cancel()
		if err != nil {
			log.Fatalf("Could not connect to Postgres: %v", err)
		}
		store = pg
		fmt.Println("✅ Postgres record store connected")
	case "memory", "":
		store = storage.NewMemoryStore()
		fmt.Println("✅ In-memory record store (history is lost on restart)")
	default:
		log.Fatalf("Unknown storage driver %q", cfg.Storage.Driver)
	}

	// Fail fast when the backend dies instead of stalling every exchange.
	store = storage.NewBreakerStore(store)

	// 3. Build the execution engine
	eng := engine.New(&http.Client{}, engine.DefaultTimeout)

	// 4. Mount routes and middleware
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)
	router.Use(middleware.Metrics)
	router.Use(middleware.NewRateLimiter(rdb, cfgStore))
	if cfg.RateLimit.Enabled {
		fmt.Printf("✅ Rate limiting: %.1f req/s (burst: %d)\n",
			cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	courierAPI := api.New(eng, store)
	courierAPI.RegisterRoutes(router)

	// 5. Start Server
	fmt.Println("\n🚀 Courier up:")
	fmt.Println("   - Execute:   POST http://localhost" + cfg.Server.Port + "/api/request")
	fmt.Println("   - History:   GET  http://localhost" + cfg.Server.Port + "/api/history")
	fmt.Println("   - Health:    GET  http://localhost" + cfg.Server.Port + "/api/health")
	fmt.Println("   - Metrics:   http://localhost" + cfg.Server.Port + "/metrics")
	fmt.Println("\n📊 Configuration can be hot-reloaded by editing configs/config.yaml")
	fmt.Printf("\n🎯 Server listening on %s\n", cfg.Server.Port)

	if err := http.ListenAndServe(cfg.Server.Port, router); err != nil {
		log.Fatal("Server failed:", err)
	}
}
