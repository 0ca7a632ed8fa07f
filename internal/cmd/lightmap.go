package cmd

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/launchkit/internal/build"
	"github.com/Iron-Ham/launchkit/internal/config"
	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/progress"
)

var lightmapCmd = &cobra.Command{
	Use:   "lightmap <scenario> <bsp>",
	Short: "Bake lightmaps for one BSP of a scenario",
	Long: `Bake lightmaps for one BSP of a scenario.

On toolkits with multi-instance support, --instances N splits the bake
across N tool processes and merges their output once all of them have
finished. The instance count is capped at lightmap.max_instances, or the
number of logical CPUs when that is 0.

Examples:
  # Single-process bake with the configured quality
  launchkit lightmap scenarios\multi\dam\dam dam

  # Four workers at final quality, output captured to log files
  launchkit lightmap -n 4 -q final scenarios\multi\dam\dam dam`,
	Args: cobra.ExactArgs(2),
	RunE: runLightmap,
}

// lightmapFlags are shared by the lightmap and level commands.
type lightmapFlags struct {
	instances int
	quality   string
	noAssert  bool
}

func (f *lightmapFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.instances, "instances", "n", 0, "number of tool instances (default: lightmap.instances)")
	cmd.Flags().StringVarP(&f.quality, "quality", "q", "", "lightmap quality (default: lightmap.quality)")
	cmd.Flags().BoolVar(&f.noAssert, "no-assert", false, "use the assert-free tool build where available (default: lightmap.no_assert)")
	addOutputFlag(cmd)
}

// request builds a lightmap request from the flags, falling back to the
// configured defaults for flags that were not given.
func (f *lightmapFlags) request(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger, scenario, bsp string) (build.LightmapRequest, error) {
	output, err := outputMode(cmd, cfg)
	if err != nil {
		return build.LightmapRequest{}, err
	}

	req := build.LightmapRequest{
		Scenario:  scenario,
		BSP:       bsp,
		Quality:   cfg.Lightmap.Quality,
		Instances: cfg.Lightmap.Instances,
		NoAssert:  cfg.Lightmap.NoAssert,
		Output:    output,
	}
	if cmd.Flags().Changed("quality") {
		req.Quality = f.quality
	}
	if cmd.Flags().Changed("instances") {
		if f.instances < 1 {
			return build.LightmapRequest{}, errors.NewValidationError("--instances must be at least 1").
				WithField("instances").WithValue(f.instances)
		}
		req.Instances = f.instances
	}
	if cmd.Flags().Changed("no-assert") {
		req.NoAssert = f.noAssert
	}

	limit := instanceLimit(cfg)
	if req.Instances > limit {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d instances requested, running %d\n", req.Instances, limit)
		logger.Warn("instance count capped", "requested", req.Instances, "limit", limit)
		req.Instances = limit
	}
	return req, nil
}

// instanceLimit is the largest worker count a bake may use.
func instanceLimit(cfg *config.Config) int {
	if cfg.Lightmap.MaxInstances > 0 {
		return cfg.Lightmap.MaxInstances
	}
	return runtime.NumCPU()
}

var lightmapOpts lightmapFlags

func init() {
	rootCmd.AddCommand(lightmapCmd)
	lightmapOpts.register(lightmapCmd)
}

func runLightmap(cmd *cobra.Command, args []string) error {
	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	req, err := lightmapOpts.request(cmd, env.cfg, env.logger, args[0], args[1])
	if err != nil {
		return err
	}

	return env.execute(cmd, job{
		title:    req.Operation(),
		logNames: []string{req.Operation()},
		output:   req.Output,
		run: func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) error {
			_, err := o.BuildLightmap(ctx, req, tr)
			return err
		},
	})
}

var levelCmd = &cobra.Command{
	Use:   "level <scenario> <bsp>",
	Short: "Compile a level structure and bake its lightmaps",
	Long: `Compile a level structure and bake its lightmaps.

The compile step imports the structure from --data-file (a JMS or ASS
file). The light step bakes the BSP's lightmaps like the lightmap command.
--steps selects which steps run; the light step is skipped when the
compile step fails.

Examples:
  launchkit level --data-file data\levels\dam\structure\dam.ass levels\dam\dam dam
  launchkit level --steps light -n 4 levels\dam\dam dam`,
	Args: cobra.ExactArgs(2),
	RunE: runLevel,
}

var (
	levelOpts     lightmapFlags
	levelDataFile string
	levelRelease  bool
	levelSteps    string
)

func init() {
	rootCmd.AddCommand(levelCmd)
	levelOpts.register(levelCmd)
	levelCmd.Flags().StringVar(&levelDataFile, "data-file", "", "JMS or ASS structure file (required for the compile step)")
	levelCmd.Flags().BoolVar(&levelRelease, "release", false, "compile the structure in release mode")
	levelCmd.Flags().StringVar(&levelSteps, "steps", "all", "steps to run: compile, light or all")
}

func runLevel(cmd *cobra.Command, args []string) error {
	steps, err := build.ParseStepSet(levelSteps)
	if err != nil {
		return err
	}

	env, err := setup(cmd)
	if err != nil {
		return err
	}
	defer env.Close()

	light, err := levelOpts.request(cmd, env.cfg, env.logger, args[0], args[1])
	if err != nil {
		return err
	}
	req := build.LevelRequest{
		DataFile: levelDataFile,
		Release:  levelRelease,
		Steps:    steps,
		Lightmap: light,
	}

	var logNames []string
	if steps.Has(build.StepCompile) {
		logNames = append(logNames, build.OperationName(build.OpStructure, levelDataFile))
	}
	if steps.Has(build.StepLight) {
		logNames = append(logNames, light.Operation())
	}

	return env.execute(cmd, job{
		title:    "level_" + args[1],
		logNames: logNames,
		output:   light.Output,
		run: func(ctx context.Context, o *build.Orchestrator, tr *progress.Tracker) error {
			_, err := o.CompileLevel(ctx, req, tr)
			return err
		},
	})
}
