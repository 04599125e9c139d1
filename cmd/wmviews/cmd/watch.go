package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmwm/wmviews/internal/config"
	"github.com/dmwm/wmviews/internal/output"
	"github.com/dmwm/wmviews/internal/watcher"
)

func newWatchCmd(g *globals) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-run a view whenever documents under a directory change",
		Long: `Run a view over every matching file under dir, then keep watching and
re-run it for the files that change.

After each change the complete row set is written again: to --output
(replaced atomically under its lock) or to stdout. Stop with Ctrl-C.`,
		Example: `  # Keep rows.json current while dumps arrive
  wmviews watch ./dumps --output rows.json

  # Longer debounce for slow writers
  WMVIEWS_DEBOUNCE=2s wmviews watch ./dumps`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			return runWatch(cmd.Context(), cmd, g.logger, cfg, flags.quiet, args[0])
		},
	}

	flags.register(cmd)
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, cfg *config.Config, quiet bool, dir string) error {
	v, err := lookupView(cfg.View.Name)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	w, err := watcher.New(watcher.Options{
		DebounceWindow: cfg.DebounceDuration(),
		Include:        cfg.Input.Include,
		Exclude:        cfg.Input.Exclude,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	status := output.New(cmd.ErrOrStderr())
	session := watcher.NewSession(dir, newRunner(v, cfg, logger), cfg.Input.Include, cfg.Input.Exclude, logger)

	first := true
	err = session.Watch(ctx, w, func(u watcher.Update) error {
		if err := writeRows(ctx, cmd.OutOrStdout(), cfg.Output.Path, format, u.Rows); err != nil {
			return err
		}
		if quiet {
			return nil
		}
		if first {
			first = false
			status.Summary(u.View, summaryOf(u.Stats))
			status.Statusf("👀", "Watching %s (%d files)", dir, u.Files)
			return nil
		}
		status.Statusf("🔄", "%d rows from %d files (%d changed, %d removed)",
			len(u.Rows), u.Files, len(u.Changed), len(u.Removed))
		if u.Stats.Invalid > 0 {
			status.Warningf("%d documents could not be mapped; run with --debug for details", u.Stats.Invalid)
		}
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
