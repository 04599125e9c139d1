// Package cmd provides the CLI commands for wmviews.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmwm/wmviews/internal/config"
	verrors "github.com/dmwm/wmviews/internal/errors"
	"github.com/dmwm/wmviews/internal/logging"
	"github.com/dmwm/wmviews/internal/profiling"
	"github.com/dmwm/wmviews/pkg/version"
)

// globals carries the persistent flags and the state the root hooks build
// for subcommands.
type globals struct {
	debug     bool
	configDir string
	profile   profiling.Options

	cfg      *config.Config
	cfgErr   error
	logger   *slog.Logger
	cleanup  func()
	profiler *profiling.Profiler
}

// config returns the configuration loaded for --config-dir.
func (g *globals) config() (*config.Config, error) {
	if g.cfgErr != nil {
		ve, ok := verrors.As(g.cfgErr)
		if !ok {
			ve = verrors.ConfigError("cannot load configuration", g.cfgErr)
		}
		if ve.Suggestion == "" {
			ve.WithSuggestion("Run 'wmviews config show' after fixing the file, or 'wmviews config path' to locate it")
		}
		return nil, ve
	}
	if g.cfg == nil {
		return config.NewConfig(), nil
	}
	return g.cfg, nil
}

// NewRootCmd creates the root command for the wmviews CLI.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "wmviews",
		Short: "Run WMStats view map functions over document dumps",
		Long: `wmviews applies WMStats CouchDB view map functions, such as
jobsByStatusWorkflow, to exported documents and prints the rows the
database would index for them.

Input can be single documents, JSON arrays, _all_docs?include_docs=true
output, _bulk_docs bodies or newline-delimited JSON.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("wmviews version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging to ~/.wmviews/logs/")
	cmd.PersistentFlags().StringVar(&g.configDir, "config-dir", ".", "Directory holding the project .wmviews.yaml")
	cmd.PersistentFlags().StringVar(&g.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Heap, "profile-mem", "", "Write heap profile to file")
	cmd.PersistentFlags().StringVar(&g.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return g.start(cmd)
	}

	cmd.AddCommand(newMapCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newViewsCmd())
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newVersionCmd())

	stopAfterRun(cmd, g)
	return cmd
}

// stopAfterRun wraps the RunE of c and its subcommands so that profiles are
// written and the log file closed even when the command fails. Cobra skips
// post-run hooks after an error.
func stopAfterRun(c *cobra.Command, g *globals) {
	if run := c.RunE; run != nil {
		c.RunE = func(cmd *cobra.Command, args []string) (err error) {
			defer func() {
				if stopErr := g.stop(); err == nil {
					err = stopErr
				}
			}()
			return run(cmd, args)
		}
	}
	for _, sub := range c.Commands() {
		stopAfterRun(sub, g)
	}
}

// start loads configuration, sets up logging and starts profiling.
// A broken config file is only an error for commands that need it.
func (g *globals) start(cmd *cobra.Command) error {
	g.cfg, g.cfgErr = config.Load(g.configDir)

	logCfg := config.NewConfig().Logging
	if g.cfg != nil {
		logCfg = g.cfg.Logging
	}

	if g.debug {
		lc := logging.DebugConfig()
		lc.MaxSizeMB = logCfg.MaxSizeMB
		lc.MaxFiles = logCfg.MaxFiles
		lc.WriteToStderr = false
		logger, cleanup, err := logging.Setup(lc)
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		g.logger = logger
		g.cleanup = cleanup
		g.logger.Info("Debug logging enabled",
			slog.String("log_file", lc.FilePath),
			slog.String("version", version.Version),
			slog.String("command", cmd.CommandPath()))
	} else {
		g.logger = logging.Text(cmd.ErrOrStderr(), logCfg.Level)
	}
	slog.SetDefault(g.logger)

	if g.cfgErr != nil {
		g.logger.Debug("configuration not loaded", slog.String("error", g.cfgErr.Error()))
	}

	if g.profile.Enabled() {
		p, err := profiling.Start(g.profile)
		if err != nil {
			_ = g.stop()
			return err
		}
		g.profiler = p
	}
	return nil
}

// stop writes profiles and closes the log file.
func (g *globals) stop() error {
	err := g.profiler.Stop()
	g.profiler = nil

	if g.cleanup != nil {
		g.logger.Info("Debug logging stopped",
			slog.String("heap_in_use", profiling.FormatBytes(profiling.HeapInUse())))
		g.cleanup()
		g.cleanup = nil
	}
	return err
}

// Execute runs the root command, cancelling on SIGINT/SIGTERM, and prints
// any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), verrors.FormatForCLI(err))
	}
	return err
}
