package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/talgya/freight-tycoon/internal/api"
	"github.com/talgya/freight-tycoon/internal/config"
	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/mcptools"
	"github.com/talgya/freight-tycoon/internal/persistence"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the simulation with the HTTP API",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd, os.Stdout)
			if err != nil {
				return err
			}
			return runServe(ctx, cfg)
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "serve MCP tools over stdio",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "paused",
				Usage: "do not advance the world in the background",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// stdout carries the protocol.
			cfg, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}
			return runMCP(ctx, cfg, cmd.Bool("paused"))
		},
	}
}

// runtimeSource picks the randomness that drives ticks.
func runtimeSource(cfg config.Config, tick uint64) entropy.Source {
	if cfg.RandomOrgKey != "" {
		slog.Info("using random.org entropy pool")
		return entropy.FromKey(cfg.RandomOrgKey)
	}
	return entropy.NewSeeded(cfg.World.Seed + int64(tick))
}

// loadOrGenerate restores the saved world or generates and saves a new one.
func loadOrGenerate(ctx context.Context, cfg config.Config, db *persistence.DB) (*engine.Simulation, error) {
	snap, err := db.Load(ctx)
	switch {
	case err == nil:
		sim, err := snap.Restore(runtimeSource(cfg, snap.Tick))
		if err != nil {
			return nil, fmt.Errorf("restore saved world: %w", err)
		}
		slog.Info("world state restored",
			"world_id", sim.WorldID,
			"tick", sim.LastTick,
			"sim_time", engine.SimTime(sim.LastTick),
			"vehicles", len(sim.Vehicles),
		)
		return sim, nil
	case errors.Is(err, persistence.ErrNoWorld):
		slog.Info("no saved state found, generating new world...", "seed", cfg.World.Seed)
		sim := engine.NewWorld(cfg.Setup(), entropy.NewSeeded(cfg.World.Seed))
		sim.SetRand(runtimeSource(cfg, 0))
		if err := db.Save(ctx, persistence.Capture(sim)); err != nil {
			slog.Error("initial save failed", "error", err)
		}
		return sim, nil
	default:
		return nil, fmt.Errorf("load world: %w", err)
	}
}

func save(ctx context.Context, db *persistence.DB, sim *engine.Simulation, lock sync.Locker) {
	lock.Lock()
	defer lock.Unlock()
	if err := db.Save(ctx, persistence.Capture(sim)); err != nil {
		slog.Error("save failed", "tick", sim.LastTick, "error", err)
		return
	}
	slog.Debug("world saved", "tick", sim.LastTick)
}

func runServe(ctx context.Context, cfg config.Config) error {
	db, err := persistence.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "dialect", db.Dialect())

	files, err := persistence.NewFileStore(cfg.Storage.SnapshotDir)
	if err != nil {
		return err
	}

	sim, err := loadOrGenerate(ctx, cfg, db)
	if err != nil {
		return err
	}

	lock := &sync.Mutex{}
	eng := engine.NewEngine(sim, lock)
	eng.Interval = cfg.Server.TickInterval

	hub := api.NewHub()
	go hub.Run(ctx)

	if cfg.Server.AdminKey == "" {
		slog.Warn("TYCOON_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	srv := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Lock:     lock,
		Hub:      hub,
		DB:       db,
		Files:    files,
		Addr:     cfg.Addr(),
		AdminKey: cfg.Server.AdminKey,
	}

	// Callbacks run with lock held.
	autosave := uint64(max(cfg.Server.AutosaveTicks, 0))
	eng.OnTick = func(r engine.TickReport) {
		srv.PublishTick(r)
		if autosave > 0 && r.Tick%autosave == 0 {
			if err := db.Save(ctx, persistence.Capture(sim)); err != nil {
				slog.Error("autosave failed", "tick", r.Tick, "error", err)
			}
		}
	}
	eng.OnMonth = func(tick uint64) {
		hub.Publish(api.Message{Type: "month", Tick: tick, Data: sim.Status()})
	}
	eng.OnYear = func(tick uint64) {
		if _, err := files.Save(persistence.Capture(sim)); err != nil {
			slog.Error("yearly snapshot failed", "tick", tick, "error", err)
		}
	}

	srv.Start(ctx)

	fmt.Printf("\n%s v%s: %d towns, %d industries on a %dx%d map.\n",
		AppName, Version, len(sim.Grid.Towns()), len(sim.Grid.Industries()), sim.Grid.Width, sim.Grid.Height)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	if sim.LastTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", sim.LastTick, engine.SimTime(sim.LastTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	slog.Info("final save...")
	save(shutdownCtx, db, sim, lock)
	fmt.Println("Simulation stopped. World state saved.")
	return nil
}

func runMCP(ctx context.Context, cfg config.Config, paused bool) error {
	db, err := persistence.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	sim, err := loadOrGenerate(ctx, cfg, db)
	if err != nil {
		return err
	}

	lock := &sync.Mutex{}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if !paused {
		eng := engine.NewEngine(sim, lock)
		eng.Interval = cfg.Server.TickInterval
		wg.Add(1)
		go func() {
			defer wg.Done()
			eng.Run(ctx)
		}()
	}

	slog.Info("MCP stdio server starting", "world_id", sim.WorldID, "paused", paused)
	serveErr := mcptools.New(sim, lock, 0).Serve()

	cancel()
	wg.Wait()
	save(context.Background(), db, sim, lock)
	return serveErr
}
