package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tycoon.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
world:
  width: 32
  seed: 7
company:
  name: Northern Rail
  unlimited: true
economy:
  delivery_rate: 25
server:
  tick_interval: 250ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	def := Default()
	if cfg.World.Width != 32 || cfg.World.Seed != 7 {
		t.Errorf("world = %+v", cfg.World)
	}
	if cfg.World.Height != def.World.Height {
		t.Errorf("unset height should keep default %d, got %d", def.World.Height, cfg.World.Height)
	}
	if cfg.Server.TickInterval != 250*time.Millisecond {
		t.Errorf("tick interval = %v", cfg.Server.TickInterval)
	}

	setup := cfg.Setup()
	if setup.CompanyName != "Northern Rail" || !setup.Unlimited || setup.StartingMoney != 1_000_000 {
		t.Errorf("setup = %+v", setup)
	}
	if setup.Vehicles.DeliveryRate != 25 {
		t.Errorf("delivery rate = %d", setup.Vehicles.DeliveryRate)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"missing file", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }, ErrConfigNotFound},
		{"bad yaml", func(t *testing.T) string { return writeConfig(t, "world: [1, 2") }, ErrInvalidConfig},
		{"zero width", func(t *testing.T) string { return writeConfig(t, "world:\n  width: 0\n") }, ErrInvalidConfig},
		{"bad dialect", func(t *testing.T) string { return writeConfig(t, "storage:\n  dialect: oracle\n") }, ErrInvalidConfig},
		{"postgres without dsn", func(t *testing.T) string { return writeConfig(t, "storage:\n  dialect: postgres\n") }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_DIALECT", "")
			t.Setenv("DB_POSTGRES_DSN", "")
			t.Setenv("DATABASE_URL", "")
			_, err := Load(tt.path(t))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TYCOON_ADMIN_KEY", "secret")
	t.Setenv("TYCOON_PORT", "9090")
	t.Setenv("DB_DIALECT", "Postgres")
	t.Setenv("DB_POSTGRES_DSN", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/tycoon")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.AdminKey != "secret" || cfg.Server.Port != 9090 {
		t.Errorf("server = %+v", cfg.Server)
	}
	opts := cfg.StorageOptions()
	if opts.Dialect != "postgres" || opts.PostgresDSN != "postgres://localhost/tycoon" {
		t.Errorf("storage = %+v", opts)
	}
	if cfg.Addr() != ":9090" {
		t.Errorf("addr = %q", cfg.Addr())
	}

	t.Setenv("TYCOON_PORT", "eighty")
	if _, err := Load(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}
