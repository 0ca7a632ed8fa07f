package build

import (
	"context"
	"strings"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/process"
	"github.com/Iron-Ham/launchkit/internal/progress"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// The operations in this file each run as a single uncancellable step:
// cancellation is disabled on tr before the first tool launches, and tr
// receives one unit of work per tool invocation.

// Operation kinds. An operation is named "<kind>_<base name of its input>",
// and its tool logs are named after the operation.
const (
	OpLightmaps = "lightmaps"
	OpStructure = "structure"
	OpCache     = "cache"
	OpBitmaps   = "bitmaps"
	OpStrings   = "strings"
	OpSound     = "sound"
	OpModel     = "model"
)

// OperationName returns the name of a kind operation on path.
func OperationName(kind, path string) string {
	return kind + "_" + baseName(path)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(field + " is required").WithField(field)
	}
	return nil
}

// single runs one tool invocation as operation.
func (o *Orchestrator) single(ctx context.Context, tr *progress.Tracker, operation, step string, args []string) (*Outcome, error) {
	tr, release := o.tracker(ctx, tr)
	defer release()

	r := o.newRun(operation, tr)
	r.transition(StateDispatching)
	return r.sequence([]WorkerTask{{
		Index: process.NoIndex,
		Step:  step,
		Spec:  o.spec(toolkit.Tool, args, o.output, operation, process.NoIndex),
	}})
}

// ImportStructure compiles a level's structure from a JMS or ASS data file.
func (o *Orchestrator) ImportStructure(ctx context.Context, dataFile string, release bool, tr *progress.Tracker) (*Outcome, error) {
	if err := required("data file", dataFile); err != nil {
		return nil, err
	}
	return o.single(ctx, tr, OperationName(OpStructure, dataFile), stepStructure,
		o.profile.Variant.StructureArgs(dataFile, release))
}

// BuildCache packages a scenario into a cache file.
func (o *Orchestrator) BuildCache(ctx context.Context, scenario string, tr *progress.Tracker) (*Outcome, error) {
	if err := required("scenario", scenario); err != nil {
		return nil, err
	}
	return o.single(ctx, tr, OperationName(OpCache, scenario), stepCache,
		o.profile.Variant.CacheArgs(scenario))
}

// ImportBitmaps compiles the images under path. bitmapType is ignored by
// variants without typed bitmap import.
func (o *Orchestrator) ImportBitmaps(ctx context.Context, path, bitmapType string, tr *progress.Tracker) (*Outcome, error) {
	if err := required("path", path); err != nil {
		return nil, err
	}
	if o.profile.Variant.TypedBitmaps {
		if err := required("bitmap type", bitmapType); err != nil {
			return nil, err
		}
	}
	return o.single(ctx, tr, OperationName(OpBitmaps, path), stepBitmaps,
		o.profile.Variant.BitmapArgs(path, bitmapType))
}

// ImportStrings compiles a unicode string list.
func (o *Orchestrator) ImportStrings(ctx context.Context, path string, tr *progress.Tracker) (*Outcome, error) {
	if err := required("path", path); err != nil {
		return nil, err
	}
	return o.single(ctx, tr, OperationName(OpStrings, path), stepStrings,
		o.profile.Variant.StringsArgs(path))
}

// ImportSound imports a sound with its lipsync track.
func (o *Orchestrator) ImportSound(ctx context.Context, path, ltfPath string, tr *progress.Tracker) (*Outcome, error) {
	if err := required("path", path); err != nil {
		return nil, err
	}
	if err := required("ltf path", ltfPath); err != nil {
		return nil, err
	}
	return o.single(ctx, tr, OperationName(OpSound, path), stepSound,
		o.profile.Variant.SoundArgs(path, ltfPath))
}

// ImportModel runs the requested model import stages in render, collision,
// physics, animations order, stopping at the first failure. Each stage logs
// to its own file.
func (o *Orchestrator) ImportModel(ctx context.Context, path string, steps ModelSteps, tr *progress.Tracker) (*Outcome, error) {
	if err := required("path", path); err != nil {
		return nil, err
	}
	stages := steps.Ordered()
	if len(stages) == 0 {
		return nil, errors.NewValidationError("no model steps selected").WithField("steps")
	}

	tr, release := o.tracker(ctx, tr)
	defer release()

	operation := OperationName(OpModel, path)
	r := o.newRun(operation, tr)
	r.transition(StateDispatching)

	tasks := make([]WorkerTask, len(stages))
	for i, stage := range stages {
		tasks[i] = WorkerTask{
			Index: process.NoIndex,
			Step:  string(stage),
			Spec:  o.spec(toolkit.Tool, []string{stage.Verb(), path}, o.output, operation+"_"+string(stage), process.NoIndex),
		}
	}
	return r.sequence(tasks)
}

// LevelRequest describes a level build: structure import followed by a
// lightmap bake of the resulting scenario.
type LevelRequest struct {
	// DataFile is the JMS or ASS file the structure is compiled from.
	DataFile string
	Release  bool
	Steps    StepSet
	// Lightmap configures the light step. Its Scenario and BSP name the
	// compiled level.
	Lightmap LightmapRequest
}

// LevelOutcome holds the outcome of each step that ran.
type LevelOutcome struct {
	Compile *Outcome
	Light   *Outcome
}

// Succeeded reports whether every step that ran completed.
func (l *LevelOutcome) Succeeded() bool {
	if l == nil || (l.Compile == nil && l.Light == nil) {
		return false
	}
	return (l.Compile == nil || l.Compile.Succeeded()) && (l.Light == nil || l.Light.Succeeded())
}

// CompileLevel runs the selected level build steps in compile, light order.
//
// The compile step tracks its progress privately so that tr only accounts
// for the light step and stays cancellable until the bake starts. The light
// step is skipped when the compile step fails or tr was cancelled meanwhile.
func (o *Orchestrator) CompileLevel(ctx context.Context, req LevelRequest, tr *progress.Tracker) (*LevelOutcome, error) {
	if len(req.Steps.Ordered()) == 0 {
		return nil, errors.NewValidationError("no level steps selected").WithField("steps")
	}
	if req.Steps.Has(StepCompile) {
		if err := required("data file", req.DataFile); err != nil {
			return nil, err
		}
	}
	if req.Steps.Has(StepLight) {
		if err := req.Lightmap.validate(); err != nil {
			return nil, err
		}
	}

	tr, release := o.tracker(ctx, tr)
	defer release()

	out := &LevelOutcome{}
	if req.Steps.Has(StepCompile) {
		compile, err := o.ImportStructure(ctx, req.DataFile, req.Release, nil)
		out.Compile = compile
		if err != nil {
			return out, err
		}
	}
	if !req.Steps.Has(StepLight) {
		return out, nil
	}
	if tr.IsCancelled() {
		o.logger.WithOperation(req.Lightmap.Operation()).Info("light step skipped", "reason", tr.Reason())
		return out, errors.NewCancelledError(string(StepLight), tr.Reason())
	}

	light, err := o.BuildLightmap(ctx, req.Lightmap, tr)
	out.Light = light
	return out, err
}
