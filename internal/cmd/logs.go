package cmd

import (
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/logwatch"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View the launcher log",
	Long: `View and filter the launcher log.

Examples:
  # Show the last 50 entries
  launchkit logs

  # Warnings and errors from one lightmap bake
  launchkit logs --level warn --operation lightmaps_dam

  # Everything worker 2 logged in the last hour, as JSON
  launchkit logs --worker 2 --since 1h --format json -n 0`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var logsToolsCmd = &cobra.Command{
	Use:   "tools [pattern]",
	Short: "List or follow captured tool logs",
	Long: `List the tool output files captured in log output mode.

The pattern matches log names without the worker suffix, for example
"lightmaps_*" or "structure_dam". With --follow, new output from the
matching logs is printed as the tools write it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogsTools,
}

var logsCleanCmd = &cobra.Command{
	Use:   "clean [pattern]",
	Short: "Remove old tool logs",
	Long: `Remove captured tool logs whose operation has not written output within
--older-than. The logs of one operation are removed together. The launcher
log is never touched; it is rotated instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogsClean,
}

var (
	logsTail      int
	logsLevel     string
	logsSince     string
	logsOperation string
	logsStep      string
	logsWorker    int
	logsGrep      string
	logsFormat    string
	logsFollow    bool
	logsOlderThan time.Duration
	logsDryRun    bool
)

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsToolsCmd)
	logsCmd.AddCommand(logsCleanCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsOperation, "operation", "", "Filter by operation (e.g., lightmaps_dam)")
	logsCmd.Flags().StringVar(&logsStep, "step", "", "Filter by step (e.g., worker, merge)")
	logsCmd.Flags().IntVar(&logsWorker, "worker", -1, "Filter by worker index")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter entries whose message contains text")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format: text or json")

	logsToolsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow tool output (like tail -f)")

	logsCleanCmd.Flags().DurationVar(&logsOlderThan, "older-than", 7*24*time.Hour, "Remove logs with no output for this long")
	logsCleanCmd.Flags().BoolVar(&logsDryRun, "dry-run", false, "List the logs that would be removed")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logDir := cfg.Paths.ResolveLogDir()
	out := cmd.OutOrStdout()

	entries, err := logging.AggregateLogs(logDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(out, "No launcher log found.")
			fmt.Fprintln(out, "Logs are stored in:", logDir)
			return nil
		}
		return fmt.Errorf("failed to read launcher log: %w", err)
	}

	filter := logging.LogFilter{
		Operation:       logsOperation,
		Step:            logsStep,
		MessageContains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}
	if cmd.Flags().Changed("worker") {
		worker := logsWorker
		filter.Worker = &worker
	}

	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No matching log entries found.")
		return nil
	}
	return logging.WriteEntries(out, entries, logsFormat)
}

func runLogsTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logDir := cfg.Paths.ResolveLogDir()
	out := cmd.OutOrStdout()

	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	if logsFollow {
		return followToolLogs(cmd, logDir, pattern)
	}

	logs, err := logging.FindToolLogs(logDir, pattern)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(out, "No tool logs found.")
		return nil
	}
	for _, l := range logs {
		fmt.Fprintf(out, "%s  %8d  %s\n", l.ModTime.Format("2006-01-02 15:04:05"), l.Size, l.Path)
	}
	return nil
}

// followToolLogs prints new tool output until the command context ends.
func followToolLogs(cmd *cobra.Command, logDir, pattern string) error {
	bus := event.NewBus(nil)
	w, err := logwatch.New(logDir, pattern, bus, nil)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	bus.Subscribe(event.TypeToolOutput, func(e event.Event) {
		line := e.(event.ToolOutputEvent)
		prefix := line.Name
		if line.Worker >= 0 {
			prefix = fmt.Sprintf("%s[%d]", line.Name, line.Worker)
		}
		fmt.Fprintf(out, "%s: %s\n", prefix, line.Line)
	})

	w.SkipExisting()
	w.Start()
	defer w.Stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "Following tool logs in %s... (Ctrl+C to stop)\n", logDir)
	<-cmd.Context().Done()
	return nil
}

func runLogsClean(cmd *cobra.Command, args []string) error {
	if logsOlderThan < 0 {
		return errors.NewValidationError("must not be negative").WithField("older-than").WithValue(logsOlderThan)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logDir := cfg.Paths.ResolveLogDir()
	out := cmd.OutOrStdout()

	pattern := ""
	if len(args) == 1 {
		pattern = args[0]
	}

	res, err := logging.PruneToolLogs(logDir, pattern, time.Now().Add(-logsOlderThan), logsDryRun)
	if err != nil {
		return err
	}
	verb := "Removed"
	if logsDryRun {
		verb = "Would remove"
	}
	for _, l := range res.Removed {
		fmt.Fprintf(out, "%s %s\n", verb, l.Path)
	}
	for _, msg := range res.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", msg)
	}
	fmt.Fprintf(out, "%s %d tool logs (%d bytes)\n", verb, len(res.Removed), res.Bytes)
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d tool logs could not be removed", len(res.Errors))
	}
	return nil
}
