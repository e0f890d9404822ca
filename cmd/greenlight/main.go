package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/freightpilot/greenlight/internal/api"
	"github.com/freightpilot/greenlight/internal/lockfile"
	"github.com/freightpilot/greenlight/internal/store"
	"github.com/freightpilot/greenlight/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for greenlight state data.
	DefaultStateDir = "/var/lib/greenlight"
	// DefaultRecoveryWindowSec is the default auto-finalize freshness window.
	DefaultRecoveryWindowSec = 12
	// DefaultRetentionMin is how long finalized coordination records are
	// kept for idempotent echoes before eviction, in minutes.
	DefaultRetentionMin = 60
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	storeOpts := buildStoreOptions(flags)
	apiOpts := buildAPIOptions(flags)

	// One instance per state directory: a second coordinator would grant a
	// second press for the same episode.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err, "state_dir", *flags.stateDir)
		os.Exit(1)
	}
	defer lock.Release()

	slog.Info("Bootstrapping greenlight service")
	slog.Debug("Final configuration",
		"api_addr", *flags.apiAddr, "dsn_set", *flags.inventoryDSN != "",
		"recovery_window_sec", *flags.recoveryWindowSec, "retention_min", *flags.retentionMin)
	if err := api.Run(storeOpts, apiOpts); err != nil {
		slog.Error("Greenlight service failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Greenlight service exited successfully")
}

// Config holds environment configuration
type Config struct {
	APIAddr           string
	InventoryDSN      string
	AddLoadURL        string
	StateDir          string
	RecoveryWindowSec int
	RetentionMin      int
	Debug             bool
}

// Flags holds command line flag values
type Flags struct {
	apiAddr           *string
	inventoryDSN      *string
	addLoadURL        *string
	stateDir          *string
	recoveryWindowSec *int
	retentionMin      *int
}

// initializeLogger sets up structured logging; GREENLIGHT_DEBUG raises the
// level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("GREENLIGHT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		APIAddr:           os.Getenv("GREENLIGHT_API_ADDR"),
		InventoryDSN:      os.Getenv("GREENLIGHT_INVENTORY_DSN"),
		AddLoadURL:        os.Getenv("GREENLIGHT_ADDLOAD_URL"),
		StateDir:          os.Getenv("GREENLIGHT_STATE_DIR"),
		RecoveryWindowSec: util.ParseIntEnv("GREENLIGHT_RECOVERY_WINDOW_SEC", DefaultRecoveryWindowSec),
		RetentionMin:      util.ParseIntEnv("GREENLIGHT_RETENTION_MIN", DefaultRetentionMin),
	}

	// Fall back to DATABASE_URL when no dedicated inventory DSN is set.
	if config.InventoryDSN == "" {
		config.InventoryDSN = os.Getenv("DATABASE_URL")
		if config.InventoryDSN != "" {
			slog.Debug("Using DATABASE_URL as GREENLIGHT_INVENTORY_DSN", "dsn_set", true)
		}
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	if config.AddLoadURL == "" {
		config.AddLoadURL = api.DefaultAddLoadURL
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
	}

	return config
}

// parseCommandLineFlags parses command line flags, using environment values
// as defaults so flags win over the environment.
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		apiAddr:           flag.String("addr", config.APIAddr, "API listen address"),
		inventoryDSN:      flag.String("inventory-dsn", config.InventoryDSN, "inventory store DSN (postgres:// URL, SQLite file path, or empty for in-memory)"),
		addLoadURL:        flag.String("addload-url", config.AddLoadURL, "exchange add-load page URL"),
		stateDir:          flag.String("state-dir", config.StateDir, "state directory for the instance lock (overrides $GREENLIGHT_STATE_DIR)"),
		recoveryWindowSec: flag.Int("recovery-window-sec", config.RecoveryWindowSec, "auto-finalize freshness window in seconds"),
		retentionMin:      flag.Int("retention-min", config.RetentionMin, "finalized record retention in minutes"),
	}
	flag.Parse()
	return flags
}

// buildStoreOptions assembles inventory store options from flags.
func buildStoreOptions(flags Flags) []store.Option {
	var opts []store.Option
	if *flags.inventoryDSN != "" {
		opts = append(opts, store.WithDSN(*flags.inventoryDSN))
	}
	return opts
}

// buildAPIOptions assembles API server options from flags.
func buildAPIOptions(flags Flags) []api.Option {
	opts := []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithAddLoadURL(*flags.addLoadURL),
	}
	if *flags.recoveryWindowSec > 0 {
		opts = append(opts, api.WithRecoveryWindow(time.Duration(*flags.recoveryWindowSec)*time.Second))
	}
	if *flags.retentionMin > 0 {
		opts = append(opts, api.WithRetentionHorizon(time.Duration(*flags.retentionMin)*time.Minute))
	}
	return opts
}
