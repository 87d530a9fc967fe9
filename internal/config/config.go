package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Identity provider backends.
const (
	IdentityLocal  = "local"
	IdentityGoTrue = "gotrue"
)

// DevJWTSecret signs local tokens when JWT_SECRET is unset. It is public, so
// production refuses it.
const DevJWTSecret = "fallback-secret-key-for-dev-only"

// minProductionSecretLength is the shortest HS256 key accepted in production.
const minProductionSecretLength = 32

// Config holds application configuration
type Config struct {
	// Server
	Env                string
	Port               string
	SiteURL            string
	CORSAllowedOrigins []string
	WebDir             string

	// Database
	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	SQLitePath     string
	MigrationsPath string

	// Identity
	IdentityProvider string
	GoTrueURL        string
	GoTrueAnonKey    string
	JWTSecret        string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	// Session cookies
	CookieMaxAge time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Env:                getEnv("ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		SiteURL:            strings.TrimRight(getEnv("SITE_URL", "http://localhost:3000"), "/"),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		WebDir:             getEnv("WEB_DIR", ""),

		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "budget"),
		DBPassword:     getEnv("DB_PASSWORD", "budget"),
		DBName:         getEnv("DB_NAME", "budget"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		SQLitePath:     getEnv("SQLITE_PATH", "budget.db"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),

		IdentityProvider: getEnv("IDENTITY_PROVIDER", IdentityLocal),
		GoTrueURL:        strings.TrimRight(getEnv("GOTRUE_URL", ""), "/"),
		GoTrueAnonKey:    getEnv("GOTRUE_ANON_KEY", ""),
		JWTSecret:        getEnv("JWT_SECRET", DevJWTSecret),
	}

	config.AccessTokenTTL = getDuration("ACCESS_TOKEN_TTL", time.Hour)
	config.RefreshTokenTTL = getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	config.CookieMaxAge = getDuration("COOKIE_MAX_AGE", 30*24*time.Hour)

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// IsProduction reports whether the service runs with production cookie policy.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ValidateIdentity rejects identity settings that would let anyone mint
// tokens. In production the local provider needs a private signing key.
func (c *Config) ValidateIdentity() error {
	if !c.IsProduction() || c.IdentityProvider != IdentityLocal {
		return nil
	}
	if c.JWTSecret == "" || c.JWTSecret == DevJWTSecret {
		return errors.New("JWT_SECRET must be set in production")
	}
	if len(c.JWTSecret) < minProductionSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", minProductionSecretLength)
	}
	return nil
}

// CookieSameSite is Strict in production and Lax everywhere else.
func (c *Config) CookieSameSite() http.SameSite {
	if c.IsProduction() {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
