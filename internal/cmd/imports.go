package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/launchkit/internal/build"
	"github.com/Iron-Ham/launchkit/internal/progress"
)

// Single-step import commands. Each runs one operation of the active
// toolkit; none of them can be cancelled once the tool has started.

// stepFunc runs one build operation.
type stepFunc func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error)

// runStep runs fn as operation kind on path.
func runStep(cmd *cobra.Command, kind, path string, fn stepFunc) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	output, err := outputMode(cmd, env.cfg)
	if err != nil {
		return err
	}

	operation := build.OperationName(kind, path)
	return env.execute(cmd, job{
		title:    operation,
		logNames: []string{operation},
		output:   output,
		run: func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) error {
			_, err := fn(ctx, o, tr)
			return err
		},
	})
}

var structureRelease bool

var structureCmd = &cobra.Command{
	Use:   "structure <data-file>",
	Short: "Import a level structure from a JMS or ASS file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, build.OpStructure, args[0], func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error) {
			return o.ImportStructure(ctx, args[0], structureRelease, tr)
		})
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache <scenario>",
	Short: "Package a scenario into a cache file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, build.OpCache, args[0], func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error) {
			return o.BuildCache(ctx, args[0], tr)
		})
	},
}

var bitmapsType string

var bitmapsCmd = &cobra.Command{
	Use:   "bitmaps <path>",
	Short: "Compile the images under a data directory into bitmap tags",
	Long: `Compile the images under a data directory into bitmap tags.

Toolkits with typed bitmap import require --type (for example 2d,
3d, cubemaps, sprites or interface).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, build.OpBitmaps, args[0], func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error) {
			return o.ImportBitmaps(ctx, args[0], bitmapsType, tr)
		})
	},
}

var stringsCmd = &cobra.Command{
	Use:   "strings <path>",
	Short: "Import a unicode string list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, build.OpStrings, args[0], func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error) {
			return o.ImportStrings(ctx, args[0], tr)
		})
	},
}

var soundCmd = &cobra.Command{
	Use:   "sound <path> <ltf>",
	Short: "Import a sound with its lipsync file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStep(cmd, build.OpSound, args[0], func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error) {
			return o.ImportSound(ctx, args[0], args[1], tr)
		})
	},
}

var modelSteps string

var modelCmd = &cobra.Command{
	Use:   "model <path>",
	Short: "Import a model",
	Long: `Import a model.

--steps selects the stages to run, in render, collision, physics,
animations order. The import stops at the first stage that fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := build.ParseModelSteps(modelSteps)
		if err != nil {
			return err
		}
		return runStep(cmd, build.OpModel, args[0], func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) (*build.Outcome, error) {
			return o.ImportModel(ctx, args[0], steps, tr)
		})
	},
}

func init() {
	structureCmd.Flags().BoolVar(&structureRelease, "release", false, "compile in release mode")
	bitmapsCmd.Flags().StringVarP(&bitmapsType, "type", "t", "", "bitmap type, for toolkits with typed bitmap import")
	modelCmd.Flags().StringVar(&modelSteps, "steps", "all", "stages to run: render, collision, physics, animations or all")

	for _, c := range []*cobra.Command{structureCmd, cacheCmd, bitmapsCmd, stringsCmd, soundCmd, modelCmd} {
		addOutputFlag(c)
		rootCmd.AddCommand(c)
	}
}
