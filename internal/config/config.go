// Package config loads the YAML configuration file and applies environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/freight-tycoon/internal/economy"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/persistence"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Config is the whole application configuration.
type Config struct {
	World    world.GenConfig `yaml:"world"`
	Economy  Economy         `yaml:"economy"`
	Company  Company         `yaml:"company"`
	Vehicles Vehicles        `yaml:"vehicles"`
	Server   Server          `yaml:"server"`
	Storage  Storage         `yaml:"storage"`

	// RandomOrgKey enables the random.org entropy pool. Empty = local PRNG.
	RandomOrgKey string `yaml:"random_org_key"`
}

type Economy struct {
	InflationRate float64 `yaml:"inflation_rate"` // per month
	DeliveryRate  int64   `yaml:"delivery_rate"`  // flat profit per unit delivered
}

type Company struct {
	Name          string `yaml:"name"`
	StartingMoney int64  `yaml:"starting_money"`
	Unlimited     bool   `yaml:"unlimited"` // sandbox: purchases never fail
}

type Vehicles struct {
	BreakdownsEnabled bool `yaml:"breakdowns_enabled"`
}

type Server struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	AdminKey      string        `yaml:"admin_key"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	AutosaveTicks int           `yaml:"autosave_ticks"` // 0 = save only on shutdown
}

type Storage struct {
	Dialect     string `yaml:"dialect"` // sqlite | postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// Default returns the shipped configuration.
func Default() Config {
	return Config{
		World: world.DefaultGenConfig(),
		Economy: Economy{
			InflationRate: economy.DefaultInflation,
			DeliveryRate:  vehicle.DefaultSettings().DeliveryRate,
		},
		Company: Company{
			Name:          "Player",
			StartingMoney: 1_000_000,
		},
		Server: Server{
			Port:          8080,
			TickInterval:  time.Second,
			AutosaveTicks: engine.TicksPerMonth,
		},
		Storage: Storage{
			Dialect:     string(persistence.DialectSQLite),
			SQLitePath:  "data/tycoon.db",
			SnapshotDir: "data/snapshots",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("TYCOON_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := os.Getenv("TYCOON_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TYCOON_PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("RANDOM_ORG_API_KEY"); v != "" {
		c.RandomOrgKey = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DIALECT"))); v != "" {
		c.Storage.Dialect = v
	}
	if v := os.Getenv("DB_SQLITE_PATH"); v != "" {
		c.Storage.SQLitePath = v
	}
	if v := os.Getenv("DB_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" && c.Storage.PostgresDSN == "" {
		c.Storage.PostgresDSN = v
	}
	return nil
}

// Validate rejects configurations the simulation cannot run with.
func (c Config) Validate() error {
	switch {
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("%w: world size %dx%d", ErrInvalidConfig, c.World.Width, c.World.Height)
	case c.World.SeaLevel >= c.World.MountainLvl:
		return fmt.Errorf("%w: sea level %.2f must be below mountain level %.2f", ErrInvalidConfig, c.World.SeaLevel, c.World.MountainLvl)
	case c.Economy.InflationRate < 0:
		return fmt.Errorf("%w: negative inflation", ErrInvalidConfig)
	case c.Company.StartingMoney < 0:
		return fmt.Errorf("%w: negative starting money", ErrInvalidConfig)
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: port %d", ErrInvalidConfig, c.Server.Port)
	case c.Server.TickInterval <= 0:
		return fmt.Errorf("%w: tick interval must be positive", ErrInvalidConfig)
	}
	switch persistence.Dialect(c.Storage.Dialect) {
	case persistence.DialectSQLite:
	case persistence.DialectPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres dialect requires DB_POSTGRES_DSN or DATABASE_URL", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported dialect %q", ErrInvalidConfig, c.Storage.Dialect)
	}
	return nil
}

// Setup maps the configuration onto a new-game description.
func (c Config) Setup() engine.Setup {
	return engine.Setup{
		Gen:           c.World,
		CompanyName:   c.Company.Name,
		StartingMoney: c.Company.StartingMoney,
		Unlimited:     c.Company.Unlimited,
		Inflation:     c.Economy.InflationRate,
		Vehicles: vehicle.Settings{
			BreakdownsEnabled: c.Vehicles.BreakdownsEnabled,
			DeliveryRate:      c.Economy.DeliveryRate,
		},
	}
}

// StorageOptions maps the storage section onto persistence options.
func (c Config) StorageOptions() persistence.Options {
	return persistence.Options{
		Dialect:     persistence.Dialect(c.Storage.Dialect),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
