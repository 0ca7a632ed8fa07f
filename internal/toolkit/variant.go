package toolkit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultStartupDelay is how long worker zero waits before launching on
// toolchains with the legacy startup race.
const DefaultStartupDelay = 70 * time.Second

// ArgOrder controls the position of the worker index and worker count in a
// fan-out worker command line.
type ArgOrder string

const (
	// IndexThenCount appends "<index> <count>".
	IndexThenCount ArgOrder = "index_count"
	// CountThenIndex appends "<count> <index>".
	CountThenIndex ArgOrder = "count_index"
)

// Variant is a capability descriptor for one toolchain generation. It is
// selected once per profile and supplies command verbs and policy flags to
// the build orchestrator.
type Variant struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// MultiInstance reports whether lightmaps can be fanned out across
	// several worker processes followed by a merge.
	MultiInstance bool `yaml:"multi_instance"`
	// StartupDelay, when non-zero, delays worker zero and runs it at low
	// priority.
	StartupDelay time.Duration `yaml:"startup_delay"`
	// FastTool reports whether the toolchain ships an assert-free tool build
	// used when NoAssert is requested.
	FastTool bool `yaml:"fast_tool"`
	// TypedBitmaps reports whether bitmap import accepts a bitmap type.
	TypedBitmaps bool `yaml:"typed_bitmaps"`

	LightmapVerb string   `yaml:"lightmap_verb"`
	WorkerVerb   string   `yaml:"worker_verb"`
	WorkerOrder  ArgOrder `yaml:"worker_order"`
	MergeVerb    string   `yaml:"merge_verb"`
	// MergeQuality, when set, is inserted before the worker count in the
	// merge command line.
	MergeQuality string `yaml:"merge_quality,omitempty"`
}

// Built-in variant names.
const (
	VariantStandard = "standard"
	VariantH2Codez  = "h2codez"
	VariantMCC      = "mcc"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Variant{
		VariantStandard: {
			Name:         VariantStandard,
			Description:  "Stock toolkit without multi-instance lightmaps",
			LightmapVerb: "lightmaps",
		},
		VariantH2Codez: {
			Name:          VariantH2Codez,
			Description:   "Community toolkit with legacy slave/master lightmap farming",
			MultiInstance: true,
			TypedBitmaps:  true,
			LightmapVerb:  "lightmaps",
			WorkerVerb:    "lightmaps-slave",
			WorkerOrder:   CountThenIndex,
			MergeVerb:     "lightmaps-master",
			MergeQuality:  "super",
		},
		VariantMCC: {
			Name:          VariantMCC,
			Description:   "MCC editing kit with farm worker/merge lightmaps",
			MultiInstance: true,
			StartupDelay:  DefaultStartupDelay,
			FastTool:      true,
			TypedBitmaps:  true,
			LightmapVerb:  "lightmaps",
			WorkerVerb:    "lightmaps-farm-worker",
			WorkerOrder:   IndexThenCount,
			MergeVerb:     "lightmaps-farm-merge",
		},
	}
)

// Register adds or replaces a variant. It validates the descriptor first.
func Register(v Variant) error {
	if err := v.Validate(); err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(v.Name)] = v
	return nil
}

// Lookup returns the registered variant with the given name.
func Lookup(name string) (Variant, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	v, ok := registry[strings.ToLower(name)]
	return v, ok
}

// Variants returns all registered variants sorted by name.
func Variants() []Variant {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Variant, 0, len(registry))
	for _, v := range registry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks that the descriptor is usable.
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variant name is required")
	}
	if v.LightmapVerb == "" {
		return fmt.Errorf("variant %q: lightmap_verb is required", v.Name)
	}
	if v.StartupDelay < 0 {
		return fmt.Errorf("variant %q: startup_delay must not be negative", v.Name)
	}
	if !v.MultiInstance {
		return nil
	}
	if v.WorkerVerb == "" || v.MergeVerb == "" {
		return fmt.Errorf("variant %q: multi_instance requires worker_verb and merge_verb", v.Name)
	}
	switch v.WorkerOrder {
	case IndexThenCount, CountThenIndex:
	default:
		return fmt.Errorf("variant %q: worker_order must be %q or %q", v.Name, IndexThenCount, CountThenIndex)
	}
	return nil
}

// HasStartupDelay reports whether worker zero must be delayed.
func (v Variant) HasStartupDelay() bool {
	return v.StartupDelay > 0
}

// LightmapTool picks the tool binary used for lightmap invocations.
func (v Variant) LightmapTool(noAssert bool) ToolType {
	if noAssert && v.FastTool {
		return ToolFast
	}
	return Tool
}

// LightmapArgs builds the single-process lightmap command line.
func (v Variant) LightmapArgs(scenario, bsp, quality string) []string {
	return []string{v.LightmapVerb, scenario, bsp, quality}
}

// WorkerArgs builds the command line for fan-out worker index of count.
func (v Variant) WorkerArgs(scenario, bsp, quality string, index, count int) []string {
	args := []string{v.WorkerVerb, scenario, bsp, quality}
	if v.WorkerOrder == CountThenIndex {
		return append(args, strconv.Itoa(count), strconv.Itoa(index))
	}
	return append(args, strconv.Itoa(index), strconv.Itoa(count))
}

// MergeArgs builds the command line that merges count worker outputs.
func (v Variant) MergeArgs(scenario, bsp string, count int) []string {
	args := []string{v.MergeVerb, scenario, bsp}
	if v.MergeQuality != "" {
		args = append(args, v.MergeQuality)
	}
	return append(args, strconv.Itoa(count))
}

// StructureArgs builds the structure import command line. ASS files use the
// newer importer; everything else is treated as JMS.
func (v Variant) StructureArgs(dataFile string, release bool) []string {
	verb := "structure-from-jms"
	if strings.HasSuffix(strings.ToLower(dataFile), "ass") {
		verb = "structure-new-from-ass"
	}
	return []string{verb, dataFile, yesNo(release)}
}

// CacheArgs builds the cache packaging command line.
func (v Variant) CacheArgs(scenario string) []string {
	return []string{"build-cache-file", strings.TrimSuffix(scenario, ".scenario")}
}

// BitmapArgs builds the bitmap import command line.
func (v Variant) BitmapArgs(path, bitmapType string) []string {
	if v.TypedBitmaps {
		return []string{"bitmaps-with-type", path, bitmapType}
	}
	return []string{"bitmaps", path}
}

// StringsArgs builds the unicode string import command line.
func (v Variant) StringsArgs(path string) []string {
	return []string{"new-strings", path}
}

// SoundArgs builds the lipsync sound import command line.
func (v Variant) SoundArgs(path, ltfPath string) []string {
	return []string{"import-lipsync", path, ltfPath}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
