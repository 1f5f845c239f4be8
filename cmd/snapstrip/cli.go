package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/hpungsan/snapstrip/internal/config"
	"github.com/hpungsan/snapstrip/internal/db"
	"github.com/hpungsan/snapstrip/internal/errors"
	"github.com/hpungsan/snapstrip/internal/mcp"
	"github.com/hpungsan/snapstrip/internal/pipeline"
	"github.com/hpungsan/snapstrip/internal/ranking"
	"github.com/hpungsan/snapstrip/internal/scheduler"
	"github.com/hpungsan/snapstrip/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(log *slog.Logger) *cli.App {
	app := &cli.App{
		Name:    "snapstrip",
		Usage:   "Camera-to-comic daily strip pipeline",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config.yaml",
				EnvVars: []string{"SNAPSTRIP_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(log),
			webCmd(log),
			mcpCmd(),
			captureCmd(log),
			publishCmd(log),
			rankingsCmd(),
			daysCmd(),
			clearCmd(),
			configCmd(),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// configPath resolves the config file location: --config flag, then
// $SNAPSTRIP_CONFIG (via the flag's env binding), then the default data dir.
func configPath(c *cli.Context) (string, error) {
	if path := c.String("config"); path != "" {
		return path, nil
	}
	base, err := config.DefaultBaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

// openStore loads config and opens the database underneath it.
func openStore(c *cli.Context) (*config.Config, *sql.DB, error) {
	path, err := configPath(c)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DataDir == "" {
		base, err := config.DefaultBaseDir()
		if err != nil {
			return nil, nil, err
		}
		cfg.DataDir = base
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	database, err := db.Init(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, database, nil
}

// requireValid rejects configs the daemon cannot run on.
func requireValid(cfg *config.Config) error {
	problems := cfg.Validate()
	if len(problems) == 0 {
		return nil
	}
	return outputError(errors.NewInvalidConfig(strings.Join(problems, "; ")))
}

// serveCmd runs the capture daemon: the scheduler loop driving the pipeline.
func serveCmd(log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the capture daemon (interval captures plus daily publishes)",
		Action: func(c *cli.Context) error {
			cfg, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()
			if err := requireValid(cfg); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipe, err := pipeline.New(ctx, cfg, database, log)
			if err != nil {
				return outputError(err)
			}
			defer pipe.Source.Close()

			log.Info("snapstrip daemon starting", "version", Version, "data_dir", cfg.DataDir)
			scheduler.New(cfg, pipe, database, log).Run(ctx)
			return nil
		},
	}
}

// webCmd runs the dashboard as its own process; it shares nothing with the
// daemon but the on-disk store.
func webCmd(log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Run the read-only dashboard",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Bind address (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			cfg, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			bind := cfg.Web.Bind
			if c.String("bind") != "" {
				bind = c.String("bind")
			}
			port := cfg.Web.Port
			if c.Int("port") != 0 {
				port = c.Int("port")
			}

			srv := web.NewServer(database, cfg, Version, bind, port)
			return web.Run(srv)
		},
	}
}

// mcpCmd runs the MCP server over stdio.
func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			cfg, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
				return outputError(errors.NewInvalidConfig(
					fmt.Sprintf("unknown disabled_tools: %s", strings.Join(unknown, ", "))))
			}
			return mcp.Run(database, cfg, Version)
		},
	}
}

// captureCmd runs one capture tick by hand.
func captureCmd(log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "Run one capture tick now",
		Action: func(c *cli.Context) error {
			cfg, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipe, err := pipeline.New(ctx, cfg, database, log)
			if err != nil {
				return outputError(err)
			}
			defer pipe.Source.Close()

			day := ranking.DayOf(time.Now())
			if err := pipe.CaptureTick(ctx, day); err != nil {
				return outputError(err)
			}

			entries, err := ranking.TopN(database, day)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"day": day, "ranked": len(entries)})
		},
	}
}

// publishCmd runs the publish pipeline by hand.
func publishCmd(log *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "publish",
		Usage: "Stylize, assemble, and push the strip for a day",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Day (YYYY-MM-DD, default today)"},
		},
		Action: func(c *cli.Context) error {
			cfg, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipe, err := pipeline.New(ctx, cfg, database, log)
			if err != nil {
				return outputError(err)
			}
			defer pipe.Source.Close()

			day := c.String("day")
			if day == "" {
				day = ranking.DayOf(time.Now())
			}
			if err := pipe.Publish(ctx, day); err != nil {
				return outputError(err)
			}

			out := map[string]any{"day": day, "published": false}
			strip, err := ranking.GetStrip(database, day)
			switch {
			case err == nil:
				out["strip"] = strip
				out["published"] = strip.PushedAt != nil
			case errors.Is(err, errors.ErrNotFound):
			default:
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// rankingsCmd prints a day's ranked frames.
func rankingsCmd() *cli.Command {
	return &cli.Command{
		Name:  "rankings",
		Usage: "List the ranked frames for a day",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Usage: "Day (YYYY-MM-DD, default today)"},
			&cli.BoolFlag{Name: "by-time", Usage: "Order by capture time instead of score"},
		},
		Action: func(c *cli.Context) error {
			_, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			day := c.String("day")
			if day == "" {
				day = ranking.DayOf(time.Now())
			}

			var entries []*ranking.Entry
			if c.Bool("by-time") {
				entries, err = ranking.ByTime(database, day)
			} else {
				entries, err = ranking.TopN(database, day)
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"day": day, "entries": entries})
		},
	}
}

// daysCmd lists the recorded days.
func daysCmd() *cli.Command {
	return &cli.Command{
		Name:  "days",
		Usage: "List every day with ranked frames, newest first",
		Action: func(c *cli.Context) error {
			_, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			days, err := ranking.Days(database)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"days": days})
		},
	}
}

// clearCmd removes a day's entries and files.
func clearCmd() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove all ranked frames and their files for a day",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "day", Aliases: []string{"d"}, Required: true, Usage: "Day (YYYY-MM-DD)"},
		},
		Action: func(c *cli.Context) error {
			_, database, err := openStore(c)
			if err != nil {
				return outputError(err)
			}
			defer database.Close()

			removed, err := ranking.ClearDay(database, c.String("day"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"day": c.String("day"), "removed": removed})
		},
	}
}

// configCmd holds the config subcommands.
func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage the configuration file",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a default config file",
				Action: func(c *cli.Context) error {
					path, err := configPath(c)
					if err != nil {
						return outputError(err)
					}
					if err := config.WriteDefault(path); err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"path": path})
				},
			},
			{
				Name:  "show",
				Usage: "Print the effective config with secrets masked",
				Action: func(c *cli.Context) error {
					path, err := configPath(c)
					if err != nil {
						return outputError(err)
					}
					cfg, err := config.Load(path)
					if err != nil {
						return outputError(err)
					}

					masked, err := yaml.Marshal(cfg.Masked())
					if err != nil {
						return outputError(errors.NewInternal(err))
					}
					fmt.Print(string(masked))

					if problems := cfg.Validate(); len(problems) > 0 {
						fmt.Fprintf(os.Stderr, "\nconfig problems:\n")
						for _, p := range problems {
							fmt.Fprintf(os.Stderr, "  - %s\n", p)
						}
					}
					return nil
				},
			},
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if pipeErr, ok := err.(*errors.PipeError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", pipeErr.Code, pipeErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
