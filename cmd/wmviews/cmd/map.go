package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmwm/wmviews/internal/config"
	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/output"
	"github.com/dmwm/wmviews/internal/runner"
	"github.com/dmwm/wmviews/internal/source"
	"github.com/dmwm/wmviews/internal/view"
)

// runFlags are shared by map and watch. Zero values mean "use config".
type runFlags struct {
	view      string
	format    string
	output    string
	workers   int
	cacheSize int
	quiet     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.view, "view", "", "View to run (see 'wmviews views')")
	cmd.Flags().StringVarP(&f.format, "format", "f", "", "Output format: "+output.FormatNames(", "))
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write rows to this file instead of stdout")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Documents mapped concurrently (default: number of CPUs)")
	cmd.Flags().IntVar(&f.cacheSize, "cache-size", 0, "Documents whose rows are memoised, 0 disables")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Do not print the summary to stderr")
}

// apply overrides cfg with the flags the user set.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("view") {
		cfg.View.Name = f.view
	}
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = f.format
	}
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = f.output
	}
	if cmd.Flags().Changed("workers") {
		cfg.Runner.Workers = f.workers
	}
	if cmd.Flags().Changed("cache-size") {
		cfg.Runner.CacheSize = f.cacheSize
	}
}

func newMapCmd(g *globals) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "map [paths...]",
		Short: "Run a view over document files",
		Long: `Run a view's map function over every document in the given files and
directories and print the emitted rows in input order.

Directories are expanded with the input.include and input.exclude globs
from the configuration. Use - to read documents from stdin.`,
		Example: `  # Map a dump of job summaries
  wmviews map jobsummaries.json

  # Every dump under a directory, as a table
  wmviews map ./dumps --format table

  # From a database export on stdin
  curl -s "$DB/_all_docs?include_docs=true" | wmviews map -

  # Write a view response atomically
  wmviews map ./dumps --format json --output rows.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			return runMap(cmd.Context(), cmd, g.logger, cfg, flags.quiet, args)
		},
	}

	flags.register(cmd)
	return cmd
}

func runMap(ctx context.Context, cmd *cobra.Command, logger *slog.Logger, cfg *config.Config, quiet bool, args []string) error {
	if len(args) == 0 {
		return verrors.New(verrors.ErrCodeNoInput, "no input given", nil).
			WithSuggestion("Pass files or directories, or - to read from stdin")
	}

	v, err := lookupView(cfg.View.Name)
	if err != nil {
		return err
	}
	format, err := output.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	docs, err := readInputs(cmd.InOrStdin(), args, cfg.Input)
	if err != nil {
		return err
	}
	logger.Debug("inputs read",
		slog.Int("documents", len(docs)),
		slog.String("view", v.Name()))

	r := newRunner(v, cfg, logger)
	res, err := r.Run(ctx, docs)
	if err != nil {
		return err
	}

	if err := writeRows(ctx, cmd.OutOrStdout(), cfg.Output.Path, format, res.Rows); err != nil {
		return err
	}

	if !quiet {
		output.New(cmd.ErrOrStderr()).Summary(v.Name(), summaryOf(res.Stats))
	}
	return nil
}

func lookupView(name string) (view.View, error) {
	v, ok := view.Default().Lookup(name)
	if !ok {
		return nil, verrors.New(verrors.ErrCodeUnknownView, fmt.Sprintf("unknown view %q", name), nil).
			WithSuggestion("Available views: " + strings.Join(view.Default().Names(), ", "))
	}
	return v, nil
}

func newRunner(v view.View, cfg *config.Config, logger *slog.Logger) *runner.Runner {
	return runner.New(v,
		runner.WithWorkers(cfg.Runner.Workers),
		runner.WithCacheSize(cfg.Runner.CacheSize),
		runner.WithLogger(logger))
}

// readInputs reads every path in order. Directories expand to the files
// matching in.Include and in.Exclude, sorted.
func readInputs(stdin io.Reader, paths []string, in config.InputConfig) ([]source.Raw, error) {
	var docs []source.Raw
	files := 0
	for _, p := range paths {
		if p == source.Stdin {
			got, err := source.Read(stdin, source.Stdin)
			if err != nil {
				return nil, err
			}
			docs = append(docs, got...)
			files++
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, verrors.New(verrors.ErrCodeFileNotFound, "cannot read "+p, err)
		}
		targets := []string{p}
		if info.IsDir() {
			targets, err = source.Discover(p, in.Include, in.Exclude)
			if err != nil {
				return nil, err
			}
		}
		for _, f := range targets {
			got, err := source.ReadFile(f)
			if err != nil {
				return nil, err
			}
			docs = append(docs, got...)
			files++
		}
	}

	if files == 0 {
		return nil, verrors.New(verrors.ErrCodeNoInput, "no input files matched", nil).
			WithDetail("include", strings.Join(in.Include, ",")).
			WithSuggestion("Check input.include in the configuration")
	}
	return docs, nil
}

// writeRows writes to path under its lock when set, otherwise to w.
func writeRows(ctx context.Context, w io.Writer, path string, f output.Format, rows []view.Row) error {
	if path != "" {
		return output.WriteFile(ctx, path, f, rows)
	}
	return output.Encode(w, f, rows)
}

func summaryOf(s runner.Stats) output.Summary {
	return output.Summary{
		Scanned:   s.Scanned,
		Emitted:   s.Emitted,
		Skipped:   s.Skipped,
		Invalid:   s.Invalid,
		CacheHits: s.CacheHits,
		Duration:  s.Duration,
	}
}
