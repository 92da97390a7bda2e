package config

import (
	"fmt"
	"time"

	"github.com/csvflow/ingestd/internal/db"
	"github.com/spf13/viper"
)

// Settings collects everything the daemon needs at startup.
type Settings struct {
	DB db.Config

	// WatchDir is the directory observed for newly delivered data files.
	WatchDir string

	// WorkerCount is the number of parallel range workers per file.
	WorkerCount int

	// BatchSize bounds how many parsed rows are committed per bulk write.
	BatchSize int

	// MaxConcurrentWorkers caps running workers across all in-flight files.
	MaxConcurrentWorkers int64

	// WorkerTimeout bounds how long the coordinator waits for a file's
	// workers before counting the missing ones as failed.
	WorkerTimeout time.Duration

	// Owner names the user account new records are ingested under. When
	// empty, the first account in the store is used.
	Owner string

	// ServerAddr is the listen address of the status HTTP server.
	ServerAddr string
}

// Defaults returns the settings used when no config file or environment
// overrides are present.
func Defaults() Settings {
	return Settings{
		DB:                   db.DefaultConfig(),
		WatchDir:             "./uploads",
		WorkerCount:          4,
		BatchSize:            5000,
		MaxConcurrentWorkers: 16,
		WorkerTimeout:        10 * time.Minute,
		ServerAddr:           ":8080",
	}
}

// Load reads config.yaml from configPath, applying environment overrides
// with the INGEST prefix (e.g. INGEST_DATABASE_HOST, INGEST_STORE_URI).
func Load(configPath string) (Settings, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("INGEST")

	// Map nested keys to flat env vars.
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("store_uri")
	v.BindEnv("ingest.watch_dir")
	v.BindEnv("ingest.worker_count")
	v.BindEnv("ingest.batch_size")
	v.BindEnv("ingest.max_concurrent_workers")
	v.BindEnv("ingest.worker_timeout")
	v.BindEnv("ingest.owner")
	v.BindEnv("server.addr")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Use defaults + env.
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("store_uri") {
		cfg.DB.StoreURI = v.GetString("store_uri")
	}
	if v.IsSet("ingest.watch_dir") {
		cfg.WatchDir = v.GetString("ingest.watch_dir")
	}
	if v.IsSet("ingest.worker_count") {
		cfg.WorkerCount = v.GetInt("ingest.worker_count")
	}
	if v.IsSet("ingest.batch_size") {
		cfg.BatchSize = v.GetInt("ingest.batch_size")
	}
	if v.IsSet("ingest.max_concurrent_workers") {
		cfg.MaxConcurrentWorkers = v.GetInt64("ingest.max_concurrent_workers")
	}
	if v.IsSet("ingest.worker_timeout") {
		cfg.WorkerTimeout = v.GetDuration("ingest.worker_timeout")
	}
	if v.IsSet("ingest.owner") {
		cfg.Owner = v.GetString("ingest.owner")
	}
	if v.IsSet("server.addr") {
		cfg.ServerAddr = v.GetString("server.addr")
	}

	if cfg.WorkerCount < 1 {
		return cfg, fmt.Errorf("ingest.worker_count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.BatchSize < 1 {
		return cfg, fmt.Errorf("ingest.batch_size must be at least 1, got %d", cfg.BatchSize)
	}

	return cfg, nil
}
