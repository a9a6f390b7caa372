// Package persistence stores simulation snapshots in SQL (SQLite by default,
// Postgres optional) or as JSON files.
package persistence

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/freight-tycoon/internal/company"
	"github.com/talgya/freight-tycoon/internal/economy"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/vehicle"
	"github.com/talgya/freight-tycoon/internal/world"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

// ErrNoWorld is returned by Load when nothing has been saved yet.
var ErrNoWorld = errors.New("no saved world")

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Options configure Open.
type Options struct {
	Dialect     Dialect
	SQLitePath  string
	PostgresDSN string
}

// DB wraps a SQL connection for world state persistence.
type DB struct {
	dialect Dialect
	conn    *sqlx.DB
}

// Open connects, pings and migrates the database.
func Open(ctx context.Context, opts Options) (*DB, error) {
	dialect := Dialect(strings.ToLower(strings.TrimSpace(string(opts.Dialect))))
	if dialect == "" {
		dialect = DialectSQLite
	}

	var driver, dsn string
	switch dialect {
	case DialectSQLite:
		driver = "sqlite"
		p := opts.SQLitePath
		if p == "" {
			p = filepath.Join("data", "tycoon.db")
		}
		if p != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite directory: %w", err)
			}
		}
		dsn = p + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	case DialectPostgres:
		driver = "pgx"
		dsn = opts.PostgresDSN
		if dsn == "" {
			return nil, errors.New("postgres dialect requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dialect, err)
	}
	conn.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}

	db := &DB{dialect: dialect, conn: conn}
	if err := db.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("database ready", "dialect", dialect)
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Dialect reports the backend in use.
func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	if err := db.conn.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}

	files, err := fs.Glob(migrationFS, path.Join("migrations", string(db.dialect), "*.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	slices.Sort(files)
	for _, file := range files {
		version := path.Base(file)
		if slices.Contains(applied, version) {
			continue
		}
		schema, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(schema)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		q := tx.Rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)")
		if _, err := tx.ExecContext(ctx, q, version, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}
	return nil
}

type tileRow struct {
	X           int    `db:"x"`
	Y           int    `db:"y"`
	Terrain     uint8  `db:"terrain"`
	Height      uint8  `db:"height"`
	ContentJSON string `db:"content_json"`
}

type marketRow struct {
	Cargo      string  `db:"cargo"`
	BasePrice  float64 `db:"base_price"`
	Price      float64 `db:"price"`
	Supply     uint32  `db:"supply"`
	Demand     uint32  `db:"demand"`
	Multiplier float64 `db:"multiplier"`
}

type eventRow struct {
	Tick        uint64 `db:"tick"`
	Description string `db:"description"`
	Category    string `db:"category"`
	MetaJSON    string `db:"meta_json"`
}

type gridIndex struct {
	Towns      []world.Coord `json:"towns"`
	Industries []world.Coord `json:"industries"`
	Stations   []world.Coord `json:"stations"`
}

// Save writes the snapshot, replacing whatever was stored before. All
// tables change in one transaction.
func (db *DB) Save(ctx context.Context, snap Snapshot) error {
	index, err := json.Marshal(gridIndex{snap.Grid.Towns, snap.Grid.Industries, snap.Grid.Stations})
	if err != nil {
		return fmt.Errorf("encode grid index: %w", err)
	}
	settings, err := json.Marshal(snap.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	meta := map[string]string{
		"world_id":        snap.WorldID.String(),
		"snapshot_id":     snap.ID.String(),
		"saved_at":        snap.SavedAt.Format(time.RFC3339Nano),
		"last_tick":       strconv.FormatUint(snap.Tick, 10),
		"next_vehicle_id": strconv.FormatUint(uint64(snap.NextVehicleID), 10),
		"grid_width":      strconv.Itoa(snap.Grid.Width),
		"grid_height":     strconv.Itoa(snap.Grid.Height),
		"grid_index":      string(index),
		"settings":        string(settings),
		"market_state":    snap.Market.State.String(),
		"market_month":    strconv.FormatUint(uint64(snap.Market.Month), 10),
		"inflation_rate":  strconv.FormatFloat(snap.Market.InflationRate, 'g', -1, 64),
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"world_meta", "tiles", "vehicles", "market", "companies", "events"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	metaStmt, err := tx.PreparexContext(ctx, tx.Rebind("INSERT INTO world_meta (key, value) VALUES (?, ?)"))
	if err != nil {
		return err
	}
	defer metaStmt.Close()
	for k, v := range meta {
		if _, err := metaStmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	if err := saveTiles(ctx, tx, snap.Grid); err != nil {
		return err
	}
	if err := saveVehicles(ctx, tx, snap.Vehicles); err != nil {
		return err
	}
	if err := saveMarket(ctx, tx, snap.Market); err != nil {
		return err
	}
	if err := saveCompanies(ctx, tx, snap.Companies); err != nil {
		return err
	}
	if err := saveEvents(ctx, tx, snap.Events); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	slog.Info("world state saved", "tick", snap.Tick, "vehicles", len(snap.Vehicles), "dialect", db.dialect)
	return nil
}

func saveTiles(ctx context.Context, tx *sqlx.Tx, g world.GridState) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO tiles
		(x, y, terrain, height, content_json) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, t := range g.Tiles {
		content, err := world.MarshalContent(t.Content)
		if err != nil {
			return fmt.Errorf("encode tile %d: %w", i, err)
		}
		x, y := i%g.Width, i/g.Width
		if _, err := stmt.ExecContext(ctx, x, y, t.Terrain, t.Height, string(content)); err != nil {
			return fmt.Errorf("insert tile (%d,%d): %w", x, y, err)
		}
	}
	return nil
}

func saveVehicles(ctx context.Context, tx *sqlx.Tx, vehicles []*vehicle.Vehicle) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO vehicles
		(id, owner, class, state, x, y, profit, data_json) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, v := range vehicles {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode vehicle %d: %w", v.ID, err)
		}
		_, err = stmt.ExecContext(ctx, v.ID, v.Owner, v.Kind.Class().String(), vehicle.StateName(v.State),
			v.Pos.X, v.Pos.Y, v.Profit, string(data))
		if err != nil {
			return fmt.Errorf("insert vehicle %d: %w", v.ID, err)
		}
	}
	return nil
}

func saveMarket(ctx context.Context, tx *sqlx.Tx, m *economy.Market) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO market
		(cargo, base_price, price, supply, demand, multiplier) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, k := range world.AllCargo() {
		e, ok := m.Entries[k]
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, k.String(), e.BasePrice, e.Price, e.Supply, e.Demand, e.Multiplier); err != nil {
			return fmt.Errorf("insert market %s: %w", k, err)
		}
	}
	return nil
}

func saveCompanies(ctx context.Context, tx *sqlx.Tx, companies []*company.Company) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO companies
		(idx, name, money, reputation, data_json) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range companies {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode company %q: %w", c.Name, err)
		}
		if _, err := stmt.ExecContext(ctx, i, c.Name, c.Money, c.Reputation, string(data)); err != nil {
			return fmt.Errorf("insert company %q: %w", c.Name, err)
		}
	}
	return nil
}

func saveEvents(ctx context.Context, tx *sqlx.Tx, events []engine.Event) error {
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO events
		(tick, description, category, meta_json) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range events {
		meta, err := json.Marshal(e.Meta)
		if err != nil {
			return fmt.Errorf("encode event meta: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, e.Tick, e.Description, e.Category, string(meta)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// HasWorldState reports whether a world has been saved.
func (db *DB) HasWorldState(ctx context.Context) bool {
	var n int
	err := db.conn.GetContext(ctx, &n, db.conn.Rebind("SELECT COUNT(*) FROM world_meta WHERE key = ?"), "world_id")
	return err == nil && n > 0
}

// GetMeta reads a single metadata value.
func (db *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var v string
	err := db.conn.GetContext(ctx, &v, db.conn.Rebind("SELECT value FROM world_meta WHERE key = ?"), key)
	return v, err
}

// Load reads the stored snapshot. It never touches a live simulation; the
// caller restores and swaps.
func (db *DB) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	if !db.HasWorldState(ctx) {
		return snap, ErrNoWorld
	}

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT key, value FROM world_meta"); err != nil {
		return snap, fmt.Errorf("load meta: %w", err)
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}

	var err error
	if snap.WorldID, err = uuid.Parse(meta["world_id"]); err != nil {
		return snap, fmt.Errorf("parse world id: %w", err)
	}
	snap.ID, _ = uuid.Parse(meta["snapshot_id"])
	snap.SavedAt, _ = time.Parse(time.RFC3339Nano, meta["saved_at"])
	if snap.Tick, err = strconv.ParseUint(meta["last_tick"], 10, 64); err != nil {
		return snap, fmt.Errorf("parse last tick: %w", err)
	}
	next, err := strconv.ParseUint(meta["next_vehicle_id"], 10, 32)
	if err != nil {
		return snap, fmt.Errorf("parse next vehicle id: %w", err)
	}
	snap.NextVehicleID = vehicle.ID(next)
	if err := json.Unmarshal([]byte(meta["settings"]), &snap.Settings); err != nil {
		return snap, fmt.Errorf("decode settings: %w", err)
	}

	if snap.Grid, err = db.loadGrid(ctx, meta); err != nil {
		return snap, err
	}
	if snap.Market, err = db.loadMarket(ctx, meta); err != nil {
		return snap, err
	}
	if snap.Vehicles, err = db.loadVehicles(ctx); err != nil {
		return snap, err
	}
	if snap.Companies, err = db.loadCompanies(ctx); err != nil {
		return snap, err
	}
	if snap.Events, err = db.loadEvents(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

func (db *DB) loadGrid(ctx context.Context, meta map[string]string) (world.GridState, error) {
	var g world.GridState
	var err error
	if g.Width, err = strconv.Atoi(meta["grid_width"]); err != nil {
		return g, fmt.Errorf("parse grid width: %w", err)
	}
	if g.Height, err = strconv.Atoi(meta["grid_height"]); err != nil {
		return g, fmt.Errorf("parse grid height: %w", err)
	}
	var index gridIndex
	if err := json.Unmarshal([]byte(meta["grid_index"]), &index); err != nil {
		return g, fmt.Errorf("decode grid index: %w", err)
	}
	g.Towns, g.Industries, g.Stations = index.Towns, index.Industries, index.Stations

	var rows []tileRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT x, y, terrain, height, content_json FROM tiles"); err != nil {
		return g, fmt.Errorf("load tiles: %w", err)
	}
	if len(rows) != g.Width*g.Height {
		return g, fmt.Errorf("load tiles: have %d rows for %dx%d grid", len(rows), g.Width, g.Height)
	}
	g.Tiles = make([]world.Tile, len(rows))
	for _, r := range rows {
		if r.X < 0 || r.X >= g.Width || r.Y < 0 || r.Y >= g.Height {
			return g, fmt.Errorf("load tiles: (%d,%d) outside grid", r.X, r.Y)
		}
		content, err := world.UnmarshalContent([]byte(r.ContentJSON))
		if err != nil {
			return g, fmt.Errorf("decode tile (%d,%d): %w", r.X, r.Y, err)
		}
		g.Tiles[r.Y*g.Width+r.X] = world.Tile{Terrain: world.Terrain(r.Terrain), Height: r.Height, Content: content}
	}
	return g, nil
}

func (db *DB) loadMarket(ctx context.Context, meta map[string]string) (*economy.Market, error) {
	m := economy.NewMarket()
	if err := m.State.UnmarshalText([]byte(meta["market_state"])); err != nil {
		return nil, fmt.Errorf("decode market state: %w", err)
	}
	month, err := strconv.ParseUint(meta["market_month"], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("parse market month: %w", err)
	}
	m.Month = uint32(month)
	if m.InflationRate, err = strconv.ParseFloat(meta["inflation_rate"], 64); err != nil {
		return nil, fmt.Errorf("parse inflation rate: %w", err)
	}

	var rows []marketRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT cargo, base_price, price, supply, demand, multiplier FROM market"); err != nil {
		return nil, fmt.Errorf("load market: %w", err)
	}
	for _, r := range rows {
		k, ok := world.ParseCargo(r.Cargo)
		if !ok {
			return nil, fmt.Errorf("load market: unknown cargo %q", r.Cargo)
		}
		m.Entries[k] = &economy.MarketEntry{
			Cargo:      k,
			BasePrice:  r.BasePrice,
			Price:      r.Price,
			Supply:     r.Supply,
			Demand:     r.Demand,
			Multiplier: r.Multiplier,
		}
	}
	return m, nil
}

func (db *DB) loadVehicles(ctx context.Context) ([]*vehicle.Vehicle, error) {
	var data []string
	if err := db.conn.SelectContext(ctx, &data, "SELECT data_json FROM vehicles ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load vehicles: %w", err)
	}
	out := make([]*vehicle.Vehicle, 0, len(data))
	for _, d := range data {
		v := new(vehicle.Vehicle)
		if err := json.Unmarshal([]byte(d), v); err != nil {
			return nil, fmt.Errorf("decode vehicle: %w", err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (db *DB) loadCompanies(ctx context.Context) ([]*company.Company, error) {
	var data []string
	if err := db.conn.SelectContext(ctx, &data, "SELECT data_json FROM companies ORDER BY idx"); err != nil {
		return nil, fmt.Errorf("load companies: %w", err)
	}
	out := make([]*company.Company, 0, len(data))
	for _, d := range data {
		c := new(company.Company)
		if err := json.Unmarshal([]byte(d), c); err != nil {
			return nil, fmt.Errorf("decode company: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (db *DB) loadEvents(ctx context.Context) ([]engine.Event, error) {
	var rows []eventRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT tick, description, category, meta_json FROM events ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	out := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		e := engine.Event{Tick: r.Tick, Description: r.Description, Category: r.Category}
		if r.MetaJSON != "" && r.MetaJSON != "null" {
			if err := json.Unmarshal([]byte(r.MetaJSON), &e.Meta); err != nil {
				return nil, fmt.Errorf("decode event meta: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, nil
}
