package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// developmentSecret is only accepted when ENVIRONMENT=development
const developmentSecret = "change-me-in-production"

var locationPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// reservedLocations are taken by the profile directory in both stores
var reservedLocations = map[string]bool{
	"profile":       true,
	"profile_email": true,
	"profiles":      true,
}

// Config holds the application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"complaintdesk"`

	StoreDriver       string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL       string        `env:"DATABASE_URL" envDefault:"postgres://localhost:5432/complaintdesk?sslmode=disable"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	RedisURL          string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	TenantsRaw string `env:"TENANTS" envDefault:"Bank=bank_complaints:bank_categories,Airline=airline_complaints:airline_categories,Telecom=telecom_complaints:telecom_categories"`
	tenants    []Tenant

	CORSAllowedOrigins    []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RateLimitPerMinute    int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`
	DirectoryNameCacheTTL time.Duration `env:"DIRECTORY_NAME_CACHE_TTL" envDefault:"1m"`
	OTLPEndpoint          string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Tenant is one registered tenant and where its records live
type Tenant struct {
	Key                string
	ComplaintsLocation string
	CategoriesLocation string
}

// Load reads configuration from an optional .env file and the environment
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the development defaults are allowed
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	if c.JWTSecret == "" || c.JWTSecret == developmentSecret {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET must be set when ENVIRONMENT=%s", c.Environment)
		}
		c.JWTSecret = developmentSecret
	}

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case DriverRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want postgres or redis", c.StoreDriver)
	}

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %d", c.ServerPort)
	}

	tenants, err := ParseTenants(c.TenantsRaw)
	if err != nil {
		return err
	}
	c.tenants = tenants
	return nil
}

// Tenants returns the parsed tenant registrations in TENANTS order
func (c *Config) Tenants() []Tenant {
	return c.tenants
}

// ParseTenants parses Key=complaints[:categories] entries separated by commas.
// A missing categories location defaults to <lower(key)>_categories.
func ParseTenants(raw string) ([]Tenant, error) {
	var tenants []Tenant
	seen := make(map[string]bool)
	seenLocations := make(map[string]string)

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		key, locations, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid TENANTS entry %q: want Key=complaints[:categories]", entry)
		}
		if seen[key] {
			return nil, fmt.Errorf("duplicate tenant %q in TENANTS", key)
		}
		seen[key] = true

		complaints, categories, _ := strings.Cut(locations, ":")
		complaints = strings.TrimSpace(complaints)
		categories = strings.TrimSpace(categories)
		if categories == "" {
			categories = strings.ToLower(key) + "_categories"
		}

		for _, loc := range []string{complaints, categories} {
			if !locationPattern.MatchString(loc) {
				return nil, fmt.Errorf("invalid location %q for tenant %s", loc, key)
			}
			if reservedLocations[loc] {
				return nil, fmt.Errorf("location %q for tenant %s is reserved", loc, key)
			}
			if owner, ok := seenLocations[loc]; ok {
				return nil, fmt.Errorf("location %q for tenant %s is already used by tenant %s", loc, key, owner)
			}
			seenLocations[loc] = key
		}

		tenants = append(tenants, Tenant{
			Key:                key,
			ComplaintsLocation: complaints,
			CategoriesLocation: categories,
		})
	}

	if len(tenants) == 0 {
		return nil, fmt.Errorf("TENANTS must register at least one tenant")
	}
	return tenants, nil
}
