// Package config loads the SDK-wide ambient defaults an embedding
// application doesn't configure per Channel Group: where records persist,
// how verbose logging is, and the flush/backpressure ceilings a Channel Unit
// falls back to when a group's own models.GroupConfig leaves them at zero.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gpt-load-telemetry/channel-sdk/internal/utils"
	"github.com/joho/godotenv"
)

// LogConfig controls the SDK's own structured logging, set up the same way
// internal/utils.SetupLogger does it.
type LogConfig struct {
	Level      string
	Format     string
	EnableFile bool
	FilePath   string
}

// DatabaseConfig is the DSN GormStore dials on startup. Dialect is sniffed
// from the DSN's shape (see internal/db), not stated separately here.
type DatabaseConfig struct {
	DSN string
}

// Defaults are process-wide fallbacks for fields a caller's GroupConfig
// leaves unset (zero value). A Channel Group's own config always wins when
// non-zero; see channel.ChannelGroup.AddUnit.
type Defaults struct {
	FlushInterval       time.Duration
	BatchSizeLimit      int
	PendingBatchesLimit int
	IngestionEndpoint   string
	// ExcludedTargetKeys seeds every new Channel Unit's paused target-key
	// set at construction time, e.g. for keys retired via ops config rather
	// than a live pauseTarget call.
	ExcludedTargetKeys map[string]struct{}
}

// Manager is the SDK's ConfigManager: a thread-safe, reloadable view over
// process environment variables.
type Manager struct {
	mu        sync.RWMutex
	envFile   string
	log       LogConfig
	db        DatabaseConfig
	defaults  Defaults
	debugMode bool
}

// NewManager loads an optional .env file (a missing file is not an error:
// the not-exist error godotenv.Load returns is ignored, any other load error
// is returned) and parses the environment into a validated Manager.
func NewManager(envFile string) (*Manager, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading %s: %w", envFile, err)
		}
	}
	m := &Manager{envFile: envFile}
	if err := m.ReloadConfig(); err != nil {
		return nil, err
	}
	return m, nil
}

// ReloadConfig re-reads the environment and re-validates. Call after an
// embedding app mutates os.Setenv at runtime (mainly useful in tests).
func (m *Manager) ReloadConfig() error {
	log := LogConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Format:     getEnv("LOG_FORMAT", "text"),
		EnableFile: getEnvBool("LOG_ENABLE_FILE", false),
		FilePath:   getEnv("LOG_FILE_PATH", "./data/logs/channel-sdk.log"),
	}

	db := DatabaseConfig{
		DSN: getEnv("DATABASE_DSN", "file::memory:?cache=shared"),
	}

	flushSeconds, err := getEnvInt("FLUSH_INTERVAL_SECONDS", 30)
	if err != nil {
		return fmt.Errorf("config: FLUSH_INTERVAL_SECONDS: %w", err)
	}
	batchSize, err := getEnvInt("BATCH_SIZE_LIMIT", 50)
	if err != nil {
		return fmt.Errorf("config: BATCH_SIZE_LIMIT: %w", err)
	}
	pendingLimit, err := getEnvInt("PENDING_BATCHES_LIMIT", 5)
	if err != nil {
		return fmt.Errorf("config: PENDING_BATCHES_LIMIT: %w", err)
	}

	defaults := Defaults{
		FlushInterval:       time.Duration(flushSeconds) * time.Second,
		BatchSizeLimit:      batchSize,
		PendingBatchesLimit: pendingLimit,
		IngestionEndpoint:   getEnv("INGESTION_ENDPOINT", ""),
		ExcludedTargetKeys:  utils.StringToSet(getEnv("EXCLUDED_TARGET_KEYS", ""), ","),
	}

	debugMode := getEnvBool("DEBUG_MODE", false)

	if err := validate(defaults); err != nil {
		return err
	}

	m.mu.Lock()
	m.log = log
	m.db = db
	m.defaults = defaults
	m.debugMode = debugMode
	m.mu.Unlock()
	return nil
}

func validate(d Defaults) error {
	if d.IngestionEndpoint == "" {
		return fmt.Errorf("config: INGESTION_ENDPOINT is required")
	}
	if d.FlushInterval <= 0 {
		return fmt.Errorf("config: FLUSH_INTERVAL_SECONDS must be positive")
	}
	if d.BatchSizeLimit <= 0 {
		return fmt.Errorf("config: BATCH_SIZE_LIMIT must be positive")
	}
	if d.PendingBatchesLimit <= 0 {
		return fmt.Errorf("config: PENDING_BATCHES_LIMIT must be positive")
	}
	return nil
}

// GetLogConfig returns the current log configuration.
func (m *Manager) GetLogConfig() LogConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.log
}

// GetDatabaseConfig returns the current database configuration.
func (m *Manager) GetDatabaseConfig() DatabaseConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

// GetDefaults returns the current SDK-wide defaults.
func (m *Manager) GetDefaults() Defaults {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaults
}

// IsDebugMode reports whether the SDK should run with verbose diagnostics.
func (m *Manager) IsDebugMode() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.debugMode
}

// Validate re-runs validation against the currently loaded configuration.
func (m *Manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return validate(m.defaults)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", v, err)
	}
	return n, nil
}
