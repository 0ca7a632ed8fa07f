package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/launchkit/internal/build"
	"github.com/Iron-Ham/launchkit/internal/config"
	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/logwatch"
	"github.com/Iron-Ham/launchkit/internal/process"
	"github.com/Iron-Ham/launchkit/internal/progress"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
	"github.com/Iron-Ham/launchkit/internal/tui"
)

// environment is everything a build command needs, assembled from the
// loaded configuration.
type environment struct {
	cfg     *config.Config
	profile toolkit.Profile
	logDir  string
	logger  *logging.Logger
	bus     *event.Bus
	runner  *process.ExecRunner
}

// loadConfig loads and validates the configuration and registers custom
// variants. Problems with variant files are reported as warnings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if _, err := toolkit.LoadVariantDir(cfg.Paths.ResolveVariantsDir()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	return cfg, nil
}

// setup resolves the active profile and opens the launcher log.
func setup(cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	profile, err := cfg.ActiveProfile("")
	if err != nil {
		return nil, err
	}

	logDir := cfg.Paths.ResolveLogDir()
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		logger, err = logging.NewLoggerWithRotation(logDir, cfg.Logging.Level, logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open launcher log: %w", err)
		}
	}
	logger = logger.With("profile", profile.Name, "variant", profile.Variant.Name)

	runner := process.NewExecRunner(profile, logDir, logger)
	runner.Console = cmd.OutOrStdout()

	return &environment{
		cfg:     cfg,
		profile: profile,
		logDir:  logDir,
		logger:  logger,
		bus:     event.NewBus(logger),
		runner:  runner,
	}, nil
}

func (e *environment) Close() {
	_ = e.logger.Close()
}

// job is one build command run under a progress view.
type job struct {
	title string
	// logNames are the tool log names the job writes, followed live when
	// output goes to log files.
	logNames []string
	output   process.OutputMode
	run      func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) error
}

// execute runs j with a tracker tied to the command context and shows its
// progress on the command's output.
func (e *environment) execute(cmd *cobra.Command, j job) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	tr := progress.New(ctx)
	defer tr.Close()

	orch := build.New(e.runner, e.profile,
		build.WithLogger(e.logger),
		build.WithBus(e.bus),
		build.WithOutput(j.output),
	)

	if j.output == process.OutputLogFile && len(j.logNames) > 0 {
		w, err := logwatch.New(e.logDir, logPattern(j.logNames...), e.bus, e.logger)
		if err != nil {
			return err
		}
		w.SkipExisting()
		w.Start()
		defer w.Stop()
	}

	out := cmd.OutOrStdout()
	err := tui.Run(tui.Options{
		Title:       j.title,
		Tracker:     tr,
		Bus:         e.bus,
		Output:      out,
		Input:       cmd.InOrStdin(),
		Interactive: j.output != process.OutputConsole && tui.IsTerminal(out),
	}, func() error {
		return j.run(ctx, orch, tr)
	})
	if err != nil && !errors.IsCancellation(err) {
		if j.output == process.OutputLogFile {
			fmt.Fprintf(cmd.ErrOrStderr(), "Tool logs: %s\n", e.logDir)
		}
		if path := e.logger.Path(); path != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Launcher log: %s\n", path)
		}
	}
	return err
}

// logPattern builds a tool log glob matching any of names.
func logPattern(names ...string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = glob.QuoteMeta(n)
	}
	if len(quoted) == 1 {
		return quoted[0] + "*"
	}
	return "{" + strings.Join(quoted, ",") + "}*"
}

// outputMode returns the --output flag value, or the configured default.
func outputMode(cmd *cobra.Command, cfg *config.Config) (process.OutputMode, error) {
	value := cfg.Lightmap.Output
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		value = f.Value.String()
	}
	return process.ParseOutputMode(value)
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "", "where tool output goes: window, console or log (default: lightmap.output)")
}
