package database

import (
	"fmt"

	"budgettracker/internal/config"
)

// Drivers supported by NewManager.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds database configuration
type Config struct {
	Driver         string
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	SQLitePath     string
	MigrationsPath string
}

// NewConfig derives the database configuration from the application config.
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Driver:         cfg.DBDriver,
		Host:           cfg.DBHost,
		Port:           cfg.DBPort,
		User:           cfg.DBUser,
		Password:       cfg.DBPassword,
		DBName:         cfg.DBName,
		SSLMode:        cfg.DBSSLMode,
		SQLitePath:     cfg.SQLitePath,
		MigrationsPath: cfg.MigrationsPath,
	}
}

// DSN returns the PostgreSQL connection string
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// MigrateURL returns the URL form golang-migrate expects.
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}
