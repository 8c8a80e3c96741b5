package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Allenwang2004/Alltrader/internal/execution"
	"github.com/Allenwang2004/Alltrader/internal/infra"
	"github.com/Allenwang2004/Alltrader/internal/infra/okx"
	"github.com/Allenwang2004/Alltrader/internal/storage"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, sets up logging, runtime directories, the
// single-instance lock, and the SQLite store.
func (b *Bootstrap) Initialize() error {
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("bootstrapping",
		"app", cfg.App.Name,
		"version", cfg.App.Version,
		"mode", cfg.Trading.Mode)

	// Data isolation per mode: _workspace/data/{mode}/trader.db
	mode := strings.ToLower(cfg.Trading.Mode)
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", mode)
	logDir := filepath.Join(workDir, "logs", mode)

	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := infra.EnsureDir(logDir); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	// Block a second process from writing the same WAL database.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	dbPath := filepath.Join(dataDir, "trader.db")
	store, err := storage.NewStore(dbPath)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("store initialized (WAL-mode)", "path", dbPath, "mode", mode)

	return nil
}

// ExecutionPort builds the order backend for the configured trading mode.
// Real-money trading keeps a safety latch: it refuses to start without an
// explicit CONFIRM_REAL_MONEY=true in the environment.
func (b *Bootstrap) ExecutionPort() (execution.Port, error) {
	mode := strings.ToLower(b.Config.Trading.Mode)
	switch mode {
	case "sim":
		sim := execution.NewSimExecution()
		return sim, nil

	case "real":
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			return nil, fmt.Errorf("real trading requires CONFIRM_REAL_MONEY=true in the environment")
		}
		slog.Warn("connecting to OKX with REAL MONEY",
			"symbol", b.Config.Trading.Symbol)
		return okx.NewClient(b.Config), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %q", b.Config.Trading.Mode)
	}
}

// Shutdown releases the instance lock and closes the store.
func (b *Bootstrap) Shutdown() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Error("closing store", "error", err)
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
