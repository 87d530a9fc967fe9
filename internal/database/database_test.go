package database

import (
	"path/filepath"
	"testing"

	"budgettracker/internal/config"
	"budgettracker/internal/logger"
)

func init() {
	logger.Init("test")
}

func TestNewConfig_DSN(t *testing.T) {
	cfg := NewConfig(&config.Config{
		DBDriver: DriverPostgres, DBHost: "db", DBPort: "5432", DBUser: "u",
		DBPassword: "p", DBName: "budget", DBSSLMode: "require",
	})
	if got, want := cfg.DSN(), "host=db port=5432 user=u password=p dbname=budget sslmode=require"; got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
	if got, want := cfg.MigrateURL(), "postgres://u:p@db:5432/budget?sslmode=require"; got != want {
		t.Errorf("MigrateURL() = %q, want %q", got, want)
	}
}

func TestNewManager_SQLiteMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	m, err := NewManager(&Config{Driver: DriverSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer func() { _ = m.Close() }()

	if err := m.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	for _, table := range []string{"users", "refresh_tokens", "budgets", "categories", "transactions", "audit_logs"} {
		if !m.DB().Migrator().HasTable(table) {
			t.Errorf("table %q missing after migration", table)
		}
	}
}

func TestNewManager_UnknownDriver(t *testing.T) {
	if _, err := NewManager(&Config{Driver: "mysql"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
