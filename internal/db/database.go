// Package db opens the gorm connection backing the default durable Log
// Store, selecting a dialect from the DSN.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Open connects to dsn, sniffing the dialect from its shape: a
// "postgres://"/"postgresql://" scheme or a "host=...dbname=..." keyword
// string selects Postgres, "@tcp(" or "@unix(" selects MySQL, and
// anything else is treated as a SQLite file path or URI, so one DSN
// string configures the whole store regardless of backend.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db: DSN is not configured")
	}

	isPostgres := strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		(strings.Contains(dsn, "host=") && strings.Contains(dsn, "dbname="))
	isMySQL := strings.Contains(dsn, "@tcp(") || strings.Contains(dsn, "@unix(")

	var dialector gorm.Dialector
	switch {
	case isPostgres:
		dialector = postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true})
	case isMySQL:
		if !strings.Contains(dsn, "parseTime") {
			if strings.Contains(dsn, "?") {
				dsn += "&parseTime=true"
			} else {
				dsn += "?parseTime=true"
			}
		}
		dialector = mysql.Open(dsn)
	default:
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		cacheSize := getEnvOrDefault("SQLITE_CACHE_SIZE", "10000")
		tempStore := getEnvOrDefault("SQLITE_TEMP_STORE", "MEMORY")
		params := fmt.Sprintf("_pragma=foreign_keys(1)&_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL&_cache_size=%s&_temp_store=%s", cacheSize, tempStore)
		delimiter := "?"
		if strings.Contains(dsn, "?") {
			delimiter = "&"
		}
		dialector = sqlite.Open(dsn + delimiter + params)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{PrepareStmt: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if isPostgres || isMySQL {
		sqlDB.SetMaxIdleConns(20)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// SQLite has a single-writer model; keep the pool to one connection
		// to avoid lock contention.
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	logrus.WithField("dialect", gdb.Dialector.Name()).Debug("channel log store database connection established")
	return gdb, nil
}
