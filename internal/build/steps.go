package build

import (
	"fmt"
	"slices"
	"strings"
)

// Step is an independently dispatchable stage of a level build.
type Step string

const (
	// StepCompile imports the level structure.
	StepCompile Step = "compile"
	// StepLight bakes lightmaps.
	StepLight Step = "light"
)

var allSteps = []Step{StepCompile, StepLight}

// StepSet is the set of level build stages to run. Stages always run in
// compile, light order regardless of how the set was built.
type StepSet map[Step]bool

// NewStepSet returns a set containing steps.
func NewStepSet(steps ...Step) StepSet {
	return StepSet(newTagSet(steps))
}

// Has reports whether step is in the set.
func (s StepSet) Has(step Step) bool { return s[step] }

// Ordered returns the members in execution order.
func (s StepSet) Ordered() []Step { return ordered(s, allSteps) }

func (s StepSet) String() string { return joinTags(s.Ordered()) }

// ParseStepSet parses a comma-separated list such as "compile,light".
// "all" selects every step.
func ParseStepSet(list string) (StepSet, error) {
	m, err := parseTags(list, allSteps)
	return StepSet(m), err
}

// ModelStep is one stage of a model import.
type ModelStep string

const (
	ModelRender     ModelStep = "render"
	ModelCollision  ModelStep = "collision"
	ModelPhysics    ModelStep = "physics"
	ModelAnimations ModelStep = "animations"
)

var allModelSteps = []ModelStep{ModelRender, ModelCollision, ModelPhysics, ModelAnimations}

// Verb returns the tool verb that performs the stage.
func (m ModelStep) Verb() string {
	switch m {
	case ModelRender:
		return "model-render"
	case ModelCollision:
		return "model-collision"
	case ModelPhysics:
		return "model-physics"
	case ModelAnimations:
		return "append-animations"
	default:
		return ""
	}
}

// ModelSteps is the set of model import stages to run.
type ModelSteps map[ModelStep]bool

// NewModelSteps returns a set containing steps.
func NewModelSteps(steps ...ModelStep) ModelSteps {
	return ModelSteps(newTagSet(steps))
}

// Has reports whether step is in the set.
func (s ModelSteps) Has(step ModelStep) bool { return s[step] }

// Ordered returns the members in execution order.
func (s ModelSteps) Ordered() []ModelStep { return ordered(s, allModelSteps) }

func (s ModelSteps) String() string { return joinTags(s.Ordered()) }

// ParseModelSteps parses a comma-separated list such as "render,physics".
// "all" selects every stage.
func ParseModelSteps(list string) (ModelSteps, error) {
	m, err := parseTags(list, allModelSteps)
	return ModelSteps(m), err
}

func newTagSet[T ~string](tags []T) map[T]bool {
	m := make(map[T]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

func ordered[T ~string](set map[T]bool, order []T) []T {
	var out []T
	for _, t := range order {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

func joinTags[T ~string](tags []T) string {
	parts := make([]string, len(tags))
	for i, t := range tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

func parseTags[T ~string](list string, valid []T) (map[T]bool, error) {
	set := make(map[T]bool)
	for _, raw := range strings.Split(list, ",") {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if name == "all" {
			return newTagSet(valid), nil
		}
		tag := T(name)
		if !slices.Contains(valid, tag) {
			return nil, fmt.Errorf("unknown step %q (valid: %s, all)", name, joinTags(valid))
		}
		set[tag] = true
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("no steps selected")
	}
	return set, nil
}
