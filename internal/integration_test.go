// Package internal contains integration tests that run the build
// orchestrator against real processes, wired up the way the CLI does it.
package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/launchkit/internal/build"
	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/logwatch"
	"github.com/Iron-Ham/launchkit/internal/process"
	"github.com/Iron-Ham/launchkit/internal/progress"
	"github.com/Iron-Ham/launchkit/internal/testutil"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// recorder collects bus events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) snapshot() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

func (r *recorder) states() []string {
	var out []string
	for _, e := range r.snapshot() {
		if s, ok := e.(event.BuildStateEvent); ok {
			out = append(out, s.To)
		}
	}
	return out
}

func (r *recorder) started(step string) int {
	n := 0
	for _, e := range r.snapshot() {
		if s, ok := e.(event.StepStartedEvent); ok && s.Step == step {
			n++
		}
	}
	return n
}

// pipeline is an orchestrator over a real ExecRunner whose tool is a shell
// script.
type pipeline struct {
	orch   *build.Orchestrator
	bus    *event.Bus
	rec    *recorder
	logDir string
}

func newPipeline(t *testing.T, variantName string, delay time.Duration, script string) *pipeline {
	t.Helper()
	testutil.SkipIfNoShell(t)

	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	tool := testutil.WriteScript(t, dir, "tool", script)

	variant, ok := toolkit.Lookup(variantName)
	if !ok {
		t.Fatalf("variant %q is not registered", variantName)
	}
	variant.StartupDelay = delay

	profile := toolkit.Profile{
		Name:    "integration",
		BaseDir: dir,
		Variant: variant,
		Tools:   map[toolkit.ToolType]string{toolkit.Tool: tool},
	}
	logger := logging.NopLogger()
	bus := event.NewBus(logger)
	rec := &recorder{}
	bus.SubscribeAll(rec.handle)

	runner := process.NewExecRunner(profile, logDir, logger)
	runner.GracePeriod = 200 * time.Millisecond

	return &pipeline{
		orch:   build.New(runner, profile, build.WithLogger(logger), build.WithBus(bus), build.WithOutput(process.OutputLogFile)),
		bus:    bus,
		rec:    rec,
		logDir: logDir,
	}
}

func (p *pipeline) watch(t *testing.T, pattern string) *logwatch.Watcher {
	t.Helper()
	w, err := logwatch.New(p.logDir, pattern, p.bus, nil)
	if err != nil {
		t.Fatalf("logwatch.New() error = %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	return w
}

func lightmapRequest(instances int) build.LightmapRequest {
	return build.LightmapRequest{
		Scenario:  "levels/test/dam/dam.scenario",
		BSP:       "dam",
		Quality:   "final",
		Instances: instances,
		Output:    process.OutputLogFile,
	}
}

// TestLightmapPipeline bakes with three workers on a variant with a
// delayed worker zero.
func TestLightmapPipeline(t *testing.T) {
	p := newPipeline(t, toolkit.VariantMCC, 100*time.Millisecond, `echo "$1"`)
	w := p.watch(t, "lightmaps_*")

	tr := progress.New(context.Background())
	defer tr.Close()

	outcome, err := p.orch.BuildLightmap(context.Background(), lightmapRequest(3), tr)
	if err != nil {
		t.Fatalf("BuildLightmap() error = %v", err)
	}
	if !outcome.Succeeded() || len(outcome.Workers) != 3 || outcome.Merge == nil {
		t.Fatalf("outcome = %+v", outcome)
	}

	snap := tr.Snapshot()
	if snap.Current != 4 || snap.Max != 4 || snap.Status != build.StatusMerging {
		t.Errorf("snapshot = %+v, want 4/4 %q", snap, build.StatusMerging)
	}
	if got, want := strings.Join(p.rec.states(), " "), "dispatching fan_out merging completed"; got != want {
		t.Errorf("states = %q, want %q", got, want)
	}

	// Worker zero launches last because of its startup delay.
	var order []int
	for _, e := range p.rec.snapshot() {
		if s, ok := e.(event.StepStartedEvent); ok && s.Step == "worker" {
			order = append(order, s.Worker)
		}
	}
	if len(order) != 3 || order[2] != 0 {
		t.Errorf("worker launch order = %v, want worker 0 last", order)
	}

	w.Poll()
	lines := map[string]bool{}
	for _, e := range p.rec.snapshot() {
		if o, ok := e.(event.ToolOutputEvent); ok {
			lines[fmt.Sprintf("%d:%s", o.Worker, o.Line)] = true
		}
	}
	for _, want := range []string{
		"0:lightmaps-farm-worker", "1:lightmaps-farm-worker", "2:lightmaps-farm-worker",
		"-1:lightmaps-farm-merge",
	} {
		if !lines[want] {
			t.Errorf("tool output %q not seen; got %v", want, lines)
		}
	}
}

// TestLightmapPipeline_UserCancel cancels a bake whose workers never exit
// on their own.
func TestLightmapPipeline_UserCancel(t *testing.T) {
	p := newPipeline(t, toolkit.VariantH2Codez, 0, `echo started; exec sleep 30`)

	tr := progress.New(context.Background())
	defer tr.Close()

	type result struct {
		outcome *build.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := p.orch.BuildLightmap(context.Background(), lightmapRequest(2), tr)
		done <- result{outcome, err}
	}()

	testutil.Eventually(t, 5*time.Second, func() bool { return p.rec.started("worker") == 2 }, "workers did not start")
	if !tr.Cancel("cancelled by user") {
		t.Fatal("Cancel() refused during fan-out")
	}

	select {
	case r := <-done:
		if !errors.IsCancellation(r.err) {
			t.Errorf("error = %v, want a cancellation", r.err)
		}
		if r.outcome.State != build.StateCancelled || r.outcome.Merge != nil {
			t.Errorf("outcome = %+v", r.outcome)
		}
		for _, w := range r.outcome.Workers {
			if w.Result == nil || !w.Result.Terminated {
				t.Errorf("worker %d was not terminated: %+v", w.Index, w.Result)
			}
		}
	case <-time.After(10 * time.Second):
		t.Fatal("cancellation did not terminate the workers")
	}

	if snap := tr.Snapshot(); !snap.Cancelled || snap.Reason != "cancelled by user" || snap.Current != 0 {
		t.Errorf("snapshot = %+v", snap)
	}
}

// TestLightmapPipeline_WorkerFailure lets one worker fail while its sibling
// is still running. The sibling finishes normally and the merge never runs.
func TestLightmapPipeline_WorkerFailure(t *testing.T) {
	// h2codez passes "<count> <index>" last.
	p := newPipeline(t, toolkit.VariantH2Codez, 0,
		`if [ "$1" = "lightmaps-slave" ] && [ "$6" = "1" ]; then exit 4; fi; sleep 0.3`)

	tr := progress.New(context.Background())
	defer tr.Close()

	outcome, err := p.orch.BuildLightmap(context.Background(), lightmapRequest(2), tr)
	if !errors.Is(err, errors.ErrToolExecution) {
		t.Fatalf("error = %v, want a tool execution error", err)
	}
	if code, _ := errors.ExitCode(err); code != 4 {
		t.Errorf("exit code = %d, want 4", code)
	}
	if outcome.State != build.StateFailed || outcome.Merge != nil {
		t.Errorf("outcome = %+v", outcome)
	}
	if p.rec.started("merge") != 0 {
		t.Error("merge must not start after a worker failure")
	}
	if snap := tr.Snapshot(); snap.Reason != "tool worker 1 has failed - exit code 4" {
		t.Errorf("reason = %q", snap.Reason)
	}
}

// TestCompileLevelPipeline runs both level steps against a real tool.
func TestCompileLevelPipeline(t *testing.T) {
	p := newPipeline(t, toolkit.VariantStandard, 0, `echo "$1"`)

	tr := progress.New(context.Background())
	defer tr.Close()

	req := build.LevelRequest{
		DataFile: "data/levels/test/dam/structure/dam.jms",
		Steps:    build.NewStepSet(build.StepCompile, build.StepLight),
		Lightmap: lightmapRequest(4),
	}
	out, err := p.orch.CompileLevel(context.Background(), req, tr)
	if err != nil {
		t.Fatalf("CompileLevel() error = %v", err)
	}
	if !out.Succeeded() || out.Compile == nil || out.Light == nil {
		t.Fatalf("outcome = %+v", out)
	}
	// standard has no multi-instance support, so the bake is a single step.
	if snap := tr.Snapshot(); snap.Current != 1 || snap.Max != 1 {
		t.Errorf("snapshot = %+v, want 1/1", snap)
	}
	for _, name := range []string{"structure_dam.log", "lightmaps_dam.log"} {
		if got := strings.TrimSpace(testutil.ReadFile(t, filepath.Join(p.logDir, name))); got == "" {
			t.Errorf("%s is empty", name)
		}
	}
}
