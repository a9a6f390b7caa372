// Command tycoon runs the Freight Tycoon transport economy simulation.
//
// Subcommands:
//
//	serve     run the engine loop with the HTTP API and websocket stream
//	mcp       serve MCP tools over stdio against an in-process world
//	generate  generate a world and write it as a JSON snapshot
//	inspect   print a summary of a saved world
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/talgya/freight-tycoon/internal/config"
)

const (
	Version = "1.0.0"
	AppName = "Freight Tycoon"
)

func main() {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().Run(ctx, os.Args); err != nil {
		slog.Error("tycoon failed", "error", err)
		os.Exit(1)
	}
}

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "tycoon",
		Usage:   "transport economy simulation",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("TYCOON_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "world generation seed (overrides config)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port (overrides config)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "SQLite database path (overrides config)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			generateCommand(),
			inspectCommand(),
		},
	}
}

// setup installs the default logger and loads configuration with flag
// overrides applied.
func setup(cmd *cli.Command, logOut io.Writer) (config.Config, error) {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}
	if cmd.IsSet("seed") {
		cfg.World.Seed = int64(cmd.Int("seed"))
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("db") {
		cfg.Storage.SQLitePath = cmd.String("db")
	}
	return cfg, cfg.Validate()
}
