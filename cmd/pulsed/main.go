// pulsed is the ingestion-and-evaluation engine's process entrypoint: it
// loads configuration, connects the durable store, wires the Controller
// (C9) that owns the full validate→enrich→cost→aggregate→persist→fan-out
// pipeline and the alert engine, mounts the control-plane HTTP API, and
// drives graceful shutdown on signal.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/beaconhq/pulse/pkg/config"
	"github.com/beaconhq/pulse/pkg/controlapi"
	"github.com/beaconhq/pulse/pkg/controller"
	"github.com/beaconhq/pulse/pkg/database"
	"github.com/beaconhq/pulse/pkg/store"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	ginMode := getEnv("GIN_MODE", "debug")
	controlAddr := getEnv("CONTROL_ADDR", "")

	log.Printf("Starting pulsed")
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}
	if controlAddr != "" {
		cfg.System.ControlAddr = controlAddr
	}

	st := newStore(ctx)

	ctrl := controller.New(cfg, st)
	ctrl.Start(ctx)
	log.Println("✓ Pipeline started")

	api := controlapi.New(ctrl, ginMode)
	srv := &httpServer{addr: cfg.System.ControlAddr, router: api.Router()}
	go srv.run()
	log.Printf("Control API listening on %s", cfg.System.ControlAddr)

	<-ctx.Done()
	log.Println("Shutdown signal received, draining pipeline...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 35*time.Second)
	defer cancel()
	ctrl.Shutdown(shutdownCtx)

	if err := srv.close(shutdownCtx); err != nil {
		slog.Warn("pulsed: control API shutdown error", "error", err)
	}

	log.Println("Shutdown complete")
}

// newStore picks the durable sink: PostgreSQL when PULSE_DB_PASSWORD (and
// friends) are set, an in-memory store otherwise — the same local-first
// default the design describes ("loss-tolerant under crash is
// acceptable"). A production deployment always sets the Postgres
// environment; the in-memory fallback exists for local development and
// the test harness, not as a supported persistence mode.
func newStore(ctx context.Context) store.Store {
	if os.Getenv("PULSE_DB_PASSWORD") == "" {
		log.Println("PULSE_DB_PASSWORD not set, using in-memory store (local-first mode)")
		return store.NewMemStore()
	}

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load database config: %v", err)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✓ Connected to PostgreSQL database")

	return store.NewPGStore(dbClient)
}
