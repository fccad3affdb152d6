package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/slipbox/internal"
	pkgconfig "github.com/starford/slipbox/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "slipbox",
		Usage:  "Keep a LaTeX slip box, its manifest and its link registry in agreement",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API and watch the notes directory",
				Action: serve,
			},
			{
				Name:   "sync",
				Usage:  "Rescan notes whose contents changed since the last pass",
				Action: syncCmd,
			},
			{
				Name:  "resync",
				Usage: "Reconcile manifest, disk and registry, then rescan every note",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Accept every proposed fix without prompting",
					},
				},
				Action: resyncCmd,
			},
			{
				Name:   "watch",
				Usage:  "Sync whenever a note changes on disk",
				Action: watchCmd,
			},
			{
				Name:      "rename-file",
				Usage:     "Rename a note file, keeping its reference",
				ArgsUsage: "OLD NEW",
				Action:    renameFileCmd,
			},
			{
				Name:      "rename-ref",
				Usage:     "Rename a reference and rewrite every note citing it",
				ArgsUsage: "OLD NEW",
				Action:    renameRefCmd,
			},
			{
				Name:      "remove",
				Usage:     "Remove a note from the registry and the manifest",
				ArgsUsage: "FILENAME",
				Action:    removeCmd,
			},
			{
				Name:   "graph",
				Usage:  "Print the adjacency matrix of the link graph",
				Action: graphCmd,
			},
			{
				Name:   "unreferenced",
				Usage:  "List notes no other note links to",
				Action: unreferencedCmd,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tool set over stdio",
				Action: mcpCmd,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
