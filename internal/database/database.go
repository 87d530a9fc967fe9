package database

import (
	"errors"
	"fmt"
	"time"

	"budgettracker/internal/logger"
	"budgettracker/internal/models"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Models lists every table the service owns, in dependency order.
var Models = []interface{}{
	&models.User{},
	&models.RefreshToken{},
	&models.Budget{},
	&models.Category{},
	&models.Transaction{},
	&models.AuditLog{},
}

// Manager handles database operations
type Manager struct {
	db     *gorm.DB
	config *Config
}

// NewManager creates a new database manager
func NewManager(config *Config) (*Manager, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{
			DSN:                  config.DSN(),
			PreferSimpleProtocol: true, // Required for Supabase Supavisor; harmless for direct connections
		})
	case DriverSQLite:
		dialector = sqlite.Open(config.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if config.Driver == DriverSQLite {
		// SQLite serializes writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &Manager{db: db, config: config}, nil
}

// Migrate brings the schema up to date. Postgres uses the versioned SQL
// migrations; SQLite, used for local runs, is auto-migrated from the models.
func (m *Manager) Migrate() error {
	if m.config.Driver == DriverSQLite {
		logger.Get().Info("Auto-migrating SQLite schema...")
		if err := m.db.AutoMigrate(Models...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		return nil
	}
	return m.RunMigrations()
}

// RunMigrations applies pending SQL migrations from the migrations/ directory.
func (m *Manager) RunMigrations() error {
	logger.Get().Info("Running database migrations...")

	mig, err := migrate.New(m.config.MigrationsPath, m.config.MigrateURL())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
