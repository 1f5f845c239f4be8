package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
                        __       _
   ___ ___  ___ ____   / /_____ (_)__
  (_-</ _ \/ _ '/ _ \ (_-/_  _// / _ \
 /___/_//_/\_,_/ .__//___//_/ /_/ .__/
              /_/              /_/

  Camera-to-comic daily strip pipeline

  Usage: snapstrip <command> [options]
         snapstrip --help`)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("SNAPSTRIP_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
}

func main() {
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	logger := newLogger()
	slog.SetDefault(logger)

	app := newCLIApp(logger)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
