package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/vocdoni/zkvote-node/census"
	"github.com/vocdoni/zkvote-node/db/metadb"
	"github.com/vocdoni/zkvote-node/log"
	"github.com/vocdoni/zkvote-node/service"
	"github.com/vocdoni/zkvote-node/storage"
	"github.com/vocdoni/zkvote-node/types"
	"github.com/vocdoni/zkvote-node/verifier"
	"github.com/vocdoni/zkvote-node/voting"
)

// Services holds all the running services
type Services struct {
	Storage *storage.Storage
	Engine  *voting.Engine
	Roots   *verifier.RootSet
	API     *service.APIService
	Stats   *service.StatsMonitor
}

func main() {
	// Load configuration
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting zkvote-node", "version", Version)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup services
	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupVerifier loads the membership verifying key and builds the proof
// verification chain: accepted roots, bounded workers, verdict cache and
// groth16 verification.
func setupVerifier(cfg *Config) (*verifier.RootSet, error) {
	vk, err := verifier.LoadVerifyingKey(cfg.Verifier.Keys)
	if err != nil {
		if !cfg.Dev || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load verifying key: %w", err)
		}
		log.Warnw("development mode, generating membership circuit keys", "dir", cfg.Verifier.Keys)
		keys, err := verifier.Setup()
		if err != nil {
			return nil, err
		}
		if err := keys.Write(cfg.Verifier.Keys); err != nil {
			return nil, err
		}
		vk = keys.VK
	}

	scope := census.Scope(cfg.Verifier.Scope)
	var v verifier.Verifier = verifier.NewGroth16(vk, scope)
	if cfg.Verifier.Cache > 0 {
		if v, err = verifier.NewCached(v, cfg.Verifier.Cache); err != nil {
			return nil, err
		}
	}
	v = verifier.NewPool(v, cfg.Verifier.Workers)

	roots, err := parseRoots(cfg.Census.Roots)
	if err != nil {
		return nil, err
	}
	log.Infow("proof verifier ready",
		"election", cfg.Verifier.Scope,
		"scope", scope.String(),
		"roots", types.SliceOf(roots, types.CensusRoot.Hex),
		"workers", cfg.Verifier.Workers,
		"cache", cfg.Verifier.Cache)
	return verifier.NewRootSet(v, roots...), nil
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	// Initialize storage database
	dbDir := filepath.Join(cfg.Datadir, "db")
	log.Infow("initializing storage", "datadir", dbDir, "type", cfg.DB.Type)
	storagedb, err := metadb.New(cfg.DB.Type, dbDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	// Initialize proof verifier
	services.Roots, err = setupVerifier(cfg)
	if err != nil {
		services.Storage.Close()
		return nil, fmt.Errorf("failed to initialize proof verifier: %w", err)
	}

	// Initialize voting engine
	services.Engine, err = voting.New(services.Storage, services.Roots)
	if err != nil {
		services.Storage.Close()
		return nil, fmt.Errorf("failed to initialize voting engine: %w", err)
	}
	voting.RegisterMetrics()

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Engine, cfg.API.Host, cfg.API.Port, false)
	services.API.SetAdminToken(cfg.API.AdminToken)
	services.API.SetElection(cfg.Verifier.Scope, census.Scope(cfg.Verifier.Scope), services.Roots)
	if err := services.API.Start(ctx); err != nil {
		services.Storage.Close()
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	if cfg.Log.StatsInterval > 0 {
		services.Stats = service.NewStatsMonitor(services.Engine, cfg.Log.StatsInterval)
		if err := services.Stats.Start(ctx); err != nil {
			services.API.Stop()
			services.Storage.Close()
			return nil, fmt.Errorf("failed to start stats monitor: %w", err)
		}
	}

	log.Info("zkvote-node is running, ready to accept votes!")
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}
	if services.Stats != nil {
		services.Stats.Stop()
	}
	if services.API != nil {
		services.API.Stop()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
