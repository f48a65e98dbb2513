package db

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/hangar/internal/models"
)

var DB *gorm.DB

// Initialize opens the database at path, runs migrations and stores the
// connection in DB for the CLI commands.
func Initialize(path string) error {
	conn, err := Open(path)
	if err != nil {
		return err
	}
	DB = conn
	return nil
}

// Open connects to the SQLite database at path, creating its directory if
// needed, and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db: database path is required")
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("db: create directory for %s: %w", path, err)
	}

	conn, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Quiet by default
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", path, err)
	}

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// Migrate creates/updates the database schema
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&models.WorkOrder{},
		&models.Finding{},
		&models.Material{},
		&models.SessionEvent{},
	)
	if err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		sqlDB, err := DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
