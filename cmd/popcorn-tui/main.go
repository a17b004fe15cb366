// Command popcorn-tui browses TMDB and edits the watchlist and favourites
// from the terminal. It shares the server's database, so set lock_dir in
// both when they run side by side.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/icco/popcorn/lib/app"
	"github.com/icco/popcorn/lib/config"
)

func main() {
	// The screen belongs to the UI, so logs go to a file when asked for.
	var out io.Writer = io.Discard
	if path := os.Getenv("POPCORN_TUI_LOG"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg, err := config.Load(os.Getenv("POPCORN_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.TMDB.APIKey == "" {
		fmt.Fprintln(os.Stderr, "TMDB_API_KEY environment variable is required")
		os.Exit(1)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := tea.NewProgram(NewModel(ctx, a.Movies, a.Store), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		logger.Error("TUI exited with error", slog.Any("error", err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
