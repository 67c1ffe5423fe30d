package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"sharebook/audit"
	"sharebook/cmd/internal/passphrase"
	"sharebook/config"
	"sharebook/core/events"
	"sharebook/crypto"
	"sharebook/native/registrar"
	"sharebook/native/registry"
	"sharebook/observability/logging"
	"sharebook/rpc"
	"sharebook/storage"
)

const (
	ownerPassEnv = "SHAREBOOK_OWNER_PASS"
	rpcTokenEnv  = "SHAREBOOK_RPC_TOKEN"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	env := strings.TrimSpace(cfg.Environment)
	var logger *slog.Logger
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.SetupWithRotation("sharebookd", env, cfg.LogFile)
	} else {
		logger = logging.Setup("sharebookd", env)
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	token := strings.TrimSpace(os.Getenv(rpcTokenEnv))
	if token == "" {
		logger.Error("RPC bearer token not configured", slog.String("env", rpcTokenEnv))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DatabasePath())
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	journal, err := audit.NewJournal(db, logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to open audit journal: %v", err))
	}
	snapshots := storage.NewSnapshotStore(db)

	controller, ledger, err := restoreOrBootstrap(cfg, snapshots, logger)
	if err != nil {
		logger.Error("Failed to initialise register", slog.Any("error", err))
		os.Exit(1)
	}
	controller.SetEmitter(events.NewMultiEmitter(journal))

	server, err := rpc.NewServer(rpc.Options{
		Controller: controller,
		Ledger:     ledger,
		Journal:    journal,
		Snapshots:  snapshots,
		Logger:     logger,
		AuthToken:  token,
		RatePerMin: cfg.RateLimitPerMin,
		Burst:      cfg.RateLimitBurst,
	})
	if err != nil {
		logger.Error("Failed to build RPC server", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("share register ready",
		slog.String("listen", cfg.ListenAddress),
		slog.Bool("deployed", controller.Deployed()),
		slog.Bool("migrated", controller.Migrated()),
		slog.Bool("closed", controller.Closed()),
	)
	if err := server.Serve(cfg.ListenAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// restoreOrBootstrap loads the persisted controller and ledger, or derives a
// fresh controller from the owner keystore on first start. The ledger handle is
// returned separately so queries keep working after closeForMigration drops the
// controller's own handle.
func restoreOrBootstrap(cfg *config.Config, snapshots *storage.SnapshotStore, logger *slog.Logger) (*registrar.Controller, *registry.Ledger, error) {
	ctrlState, err := snapshots.LoadController()
	if err != nil {
		return nil, nil, fmt.Errorf("load controller snapshot: %w", err)
	}

	if ctrlState == nil {
		pass := passphrase.NewSource(ownerPassEnv)
		secret, err := pass.Get()
		if err != nil {
			return nil, nil, err
		}
		key, err := crypto.LoadOwnerKey(cfg.OwnerKeystore, secret)
		if err != nil {
			return nil, nil, fmt.Errorf("load owner keystore: %w", err)
		}
		owner := key.PubKey().Address().Raw()
		controller, err := registrar.NewController(owner)
		if err != nil {
			return nil, nil, err
		}
		if err := snapshots.SaveController(controller.Snapshot()); err != nil {
			return nil, nil, fmt.Errorf("persist controller snapshot: %w", err)
		}
		logger.Info("bootstrapped controller",
			slog.String("owner", key.PubKey().Address().String()),
			slog.String("identity", crypto.MustNewAddress(controller.Identity()).String()),
		)
		return controller, nil, nil
	}

	ledgerState, err := snapshots.LoadLedger()
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger snapshot: %w", err)
	}
	var ledger *registry.Ledger
	if ledgerState != nil {
		ledger, err = registry.NewLedgerFromState(ledgerState)
		if err != nil {
			return nil, nil, fmt.Errorf("restore ledger: %w", err)
		}
	}

	// Closed controllers drop their ledger handle; the restored ledger is
	// still handed to the RPC layer for read-only queries.
	ctrlLedger := ledger
	if ctrlState.Closed {
		ctrlLedger = nil
	}
	controller, err := registrar.NewControllerFromState(ctrlState, ctrlLedger)
	if err != nil {
		return nil, nil, fmt.Errorf("restore controller: %w", err)
	}
	logger.Info("restored register state",
		slog.Bool("deployed", ctrlState.Deployed),
		slog.Bool("closed", ctrlState.Closed),
	)
	return controller, ledger, nil
}
