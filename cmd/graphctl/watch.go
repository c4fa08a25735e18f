package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/songtagger/internal/app"
	"github.com/ewilliams-labs/songtagger/internal/core/graph"
)

const watchDebounce = 150 * time.Millisecond

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts graph.RunOptions
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run a graph whenever its definition file changes",
		Long: "Edits are applied to the live graph node by node, so only the " +
			"branches an edit touches are recomputed and sources whose " +
			"settings did not change are not fetched again.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := ctx.ensureApp(runCtx)
			if err != nil {
				return err
			}
			return watchDefinition(runCtx, ctx, a, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Persist, "persist", false, "Write output playlists and tag assignments on every run")
	cmd.Flags().BoolVar(&opts.IncludeAll, "include-all", false, "Fetch every optional join for display")
	return cmd
}

func watchDefinition(ctx context.Context, cc *commandContext, a *app.App, path string, opts graph.RunOptions) error {
	def, err := readDefinition(path)
	if err != nil {
		return err
	}
	g, err := graph.Build(def, a.Logger)
	if err != nil {
		return err
	}
	if err := runAndRender(ctx, cc, a, g, opts); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(cc.out, "error:", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory.
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	fmt.Fprintf(cc.out, "Watching %s (Ctrl-C to stop)\n", path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.Logger.Warn("watch error", "error", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			pending = time.After(watchDebounce)
		case <-pending:
			pending = nil
			if err := reapply(ctx, cc, a, g, path, opts); err != nil {
				fmt.Fprintln(cc.out, "error:", err)
			}
		}
	}
}

// reapply reconciles the live graph with the file and runs it again.
func reapply(ctx context.Context, cc *commandContext, a *app.App, g *graph.Graph, path string, opts graph.RunOptions) error {
	def, err := readDefinition(path)
	if err != nil {
		return err
	}
	if err := graph.Apply(g, def); err != nil {
		return err
	}
	fmt.Fprintf(cc.out, "\n%s changed, re-running\n", path)
	return runAndRender(ctx, cc, a, g, opts)
}
