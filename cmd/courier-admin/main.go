package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/courierhq/courier/pkg/cache"
	"github.com/courierhq/courier/pkg/config"
	"github.com/courierhq/courier/pkg/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		n := fs.Int("n", 20, "Number of records to print")
		asJSON := fs.Bool("json", false, "Print raw JSON records")
		if err := fs.Parse(os.Args[2:]); err != nil {
			log.Fatalf("failed to parse flags: %v", err)
		}
		store, closeStore := mustStore()
		defer closeStore()
		handleHistory(store, *n, *asJSON)
	case "purge":
		store, closeStore := mustStore()
		defer closeStore()
		handlePurge(store)
	case "ping":
		store, closeStore := mustStore()
		defer closeStore()
		handlePing(store)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("courier-admin commands:")
	fmt.Println("  history              Print recent exchanges")
	fmt.Println("     flags: -n -json")
	fmt.Println("  purge                Delete every stored exchange")
	fmt.Println("  ping                 Check record store connectivity")
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// mustStore opens the configured backend and returns it with its cleanup.
// The memory driver has no state outside a running server, so there is
// nothing to administer.
func mustStore() (storage.Store, func()) {
	cfg := mustLoadConfig()
	switch cfg.Storage.Driver {
	case "redis":
		rdb, err := cache.NewRedis(cfg.Storage.Address, cfg.Storage.Password, cfg.Storage.DB)
		if err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		store := storage.NewRedisStore(rdb, time.Duration(cfg.Storage.RetentionDays)*24*time.Hour)
		return store, func() {}
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pg, err := storage.NewPostgresStore(ctx, cfg.Storage.DSN)
		if err != nil {
			log.Fatalf("failed to connect postgres: %v", err)
		}
		return pg, pg.Close
	default:
		log.Fatalf("storage driver %q has no server-side state to administer", cfg.Storage.Driver)
		return nil, nil
	}
}

func handleHistory(store storage.Store, n int, asJSON bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	history, err := store.ListRecent(ctx, n)
	if err != nil {
		log.Fatalf("failed to list history: %v", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(history); err != nil {
			log.Fatalf("failed to encode history: %v", err)
		}
		return
	}

	for _, ex := range history {
		fmt.Printf("%s  %-7s %-40s -> %d (%dms)  %s\n",
			ex.CreatedAt.Format(time.RFC3339), ex.Method, ex.URL,
			ex.Response.Status, ex.Response.Time, ex.ID)
	}
	fmt.Printf("%d record(s)\n", len(history))
}

func handlePurge(store storage.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.DeleteAll(ctx); err != nil {
		log.Fatalf("failed to purge history: %v", err)
	}
	fmt.Println("history purged")
}

func handlePing(store storage.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		log.Fatalf("store unreachable: %v", err)
	}
	fmt.Println("store ok")
}
