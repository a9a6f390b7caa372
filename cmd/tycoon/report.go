package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/talgya/freight-tycoon/internal/engine"
	"github.com/talgya/freight-tycoon/internal/entropy"
	"github.com/talgya/freight-tycoon/internal/persistence"
	"github.com/talgya/freight-tycoon/internal/world"
)

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "generate a world and write it as a JSON snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "snapshot directory (defaults to storage.snapshot_dir)",
			},
			&cli.BoolFlag{
				Name:  "map",
				Usage: "print the rendered map",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}
			dir := cfg.Storage.SnapshotDir
			if cmd.IsSet("out") {
				dir = cmd.String("out")
			}
			files, err := persistence.NewFileStore(dir)
			if err != nil {
				return err
			}

			sim := engine.NewWorld(cfg.Setup(), entropy.NewSeeded(cfg.World.Seed))
			path, err := files.Save(persistence.Capture(sim))
			if err != nil {
				return err
			}

			out := os.Stdout
			printTerrain(out, sim.Grid)
			printSummary(out, sim)
			if cmd.Bool("map") {
				fmt.Fprintln(out)
				fmt.Fprint(out, sim.Render())
			}
			fmt.Fprintf(out, "\nSaved %s\n", path)
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print a summary of a saved world",
		ArgsUsage: "[snapshot.json]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "events",
				Value: 10,
				Usage: "number of recent events to show",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := setup(cmd, os.Stderr)
			if err != nil {
				return err
			}

			var snap persistence.Snapshot
			if path := cmd.Args().First(); path != "" {
				if snap, err = persistence.ReadSnapshot(path); err != nil {
					return err
				}
			} else {
				db, err := persistence.Open(ctx, cfg.StorageOptions())
				if err != nil {
					return err
				}
				defer db.Close()
				if snap, err = db.Load(ctx); err != nil {
					return err
				}
			}

			sim, err := snap.Restore(entropy.NewSeeded(cfg.World.Seed))
			if err != nil {
				return err
			}

			out := os.Stdout
			fmt.Fprintf(out, "Saved %s\n", humanize.Time(snap.SavedAt))
			printSummary(out, sim)
			printCompanies(out, sim)
			printMarket(out, sim)
			printEvents(out, sim, int(cmd.Int("events")))
			return nil
		},
	}
}

func printTerrain(w io.Writer, g *world.Grid) {
	counts := world.TerrainCounts(g)
	terrains := make([]world.Terrain, 0, len(counts))
	for t := range counts {
		terrains = append(terrains, t)
	}
	slices.Sort(terrains)

	total := g.Width * g.Height
	fmt.Fprintln(w, "Terrain:")
	for _, t := range terrains {
		fmt.Fprintf(w, "  %-10s %6s  %5.1f%%\n", world.TerrainName(t), humanize.Comma(int64(counts[t])), 100*float64(counts[t])/float64(total))
	}
}

func printSummary(w io.Writer, sim *engine.Simulation) {
	st := sim.Status()
	fmt.Fprintf(w, "\nWorld %s\n", st.WorldID)
	fmt.Fprintf(w, "  %s (tick %s)\n", st.Date, humanize.Comma(int64(st.Tick)))
	fmt.Fprintf(w, "  %dx%d map, %d towns (population %s), %d industries, %d stations\n",
		st.Width, st.Height, st.Towns, humanize.Comma(int64(st.Population)), st.Industries, st.Stations)
	fmt.Fprintf(w, "  %d vehicles, economy %s\n", st.Vehicles, st.Economy)
}

func printCompanies(w io.Writer, sim *engine.Simulation) {
	fmt.Fprintln(w, "\nCompanies:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tMONEY\tVALUE\tVEHICLES\tROUTES\tREPUTATION")
	for i := range sim.Companies {
		st, err := sim.CompanyStats(i)
		if err != nil {
			continue
		}
		fmt.Fprintf(tw, "  %s\t$%s\t$%s\t%d\t%d\t%.0f\n",
			st.Name, humanize.Comma(st.Money), humanize.Comma(st.TotalValue), st.Vehicles, st.Routes, st.Reputation)
	}
	tw.Flush()
}

func printMarket(w io.Writer, sim *engine.Simulation) {
	r := sim.MarketReport()
	fmt.Fprintf(w, "\nMarket (%s, inflation %.1f%%/month):\n", r.State, r.InflationRate*100)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  CARGO\tPRICE\tSUPPLY\tDEMAND\tTREND")
	for _, c := range r.Cargo {
		fmt.Fprintf(tw, "  %s\t%.2f\t%d\t%d\t%s\n", c.Cargo, c.Price, c.Supply, c.Demand, c.Trend)
	}
	tw.Flush()
}

func printEvents(w io.Writer, sim *engine.Simulation, n int) {
	events := sim.RecentEvents(n)
	if n <= 0 || len(events) == 0 {
		return
	}
	fmt.Fprintln(w, "\nRecent events:")
	for _, e := range events {
		fmt.Fprintf(w, "  [%s] %s\n", engine.SimTime(e.Tick), e.Description)
	}
}
