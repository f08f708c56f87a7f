package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/raczniakservices/HVAC/internal/config"
)

// MemoryPath opens a private in-memory database, used by tests.
const MemoryPath = ":memory:"

// Client wraps the SQLite connection
type Client struct {
	db   *gorm.DB
	path string
	log  *zap.Logger
}

// NewClient opens the SQLite database at cfg.Path, creating its directory
// when needed. The pool holds a single connection so writers are serialized.
func NewClient(ctx context.Context, cfg *config.Database, log *zap.Logger) (*Client, error) {
	log.Info("Opening SQLite database",
		zap.String("path", cfg.Path),
		zap.Bool("logQueries", cfg.LogQueries))

	if cfg.Path != MemoryPath {
		if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	logLevel := logger.Silent
	if cfg.LogQueries {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dsn(cfg.Path)), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		log.Error("Failed to open SQLite database", zap.Error(err))
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		log.Error("Failed to ping SQLite database", zap.Error(err))
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	log.Info("SQLite database opened successfully")

	return &Client{db: db, path: cfg.Path, log: log}, nil
}

func dsn(path string) string {
	if path == MemoryPath {
		return "file::memory:?_busy_timeout=3000"
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=3000&_foreign_keys=on", path)
}

// DB returns the underlying GORM handle
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Ping checks if the database connection is alive
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the SQLite connection
func (c *Client) Close() error {
	c.log.Info("Closing SQLite database", zap.String("path", c.path))
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		c.log.Error("Error closing SQLite database", zap.Error(err))
		return err
	}
	return nil
}
