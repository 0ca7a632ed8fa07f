package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// VariantFile is a custom variant descriptor loaded from YAML.
//
// Example:
//
//	version: "1"
//	variant:
//	  name: h3-mcc
//	  multi_instance: true
//	  startup_delay: 70s
//	  lightmap_verb: lightmaps
//	  worker_verb: lightmaps-farm-worker
//	  worker_order: index_count
//	  merge_verb: lightmaps-farm-merge
type VariantFile struct {
	Version string  `yaml:"version"`
	Variant Variant `yaml:"variant"`
}

// LoadVariantFile reads and validates a variant descriptor.
func LoadVariantFile(path string) (*Variant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading variant file: %w", err)
	}

	var file VariantFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing variant file: %w", err)
	}

	if file.Version != "1" {
		return nil, fmt.Errorf("unsupported variant file version: %q (supported: 1)", file.Version)
	}
	file.Variant.Name = strings.ToLower(file.Variant.Name)
	if err := file.Variant.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant: %w", err)
	}

	return &file.Variant, nil
}

// LoadVariantDir registers every *.yaml and *.yml descriptor in dir. A
// missing directory is not an error. Files that fail to load are returned as
// a combined error after the valid ones have been registered.
func LoadVariantDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading variants directory: %w", err)
	}

	var loaded []string
	var problems []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		v, err := LoadVariantFile(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		if err := Register(*v); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", entry.Name(), err))
			continue
		}
		loaded = append(loaded, v.Name)
	}

	if len(problems) > 0 {
		return loaded, fmt.Errorf("failed to load %d variant file(s):\n  %s", len(problems), strings.Join(problems, "\n  "))
	}
	return loaded, nil
}

// MarshalVariant renders v as a version 1 descriptor.
func MarshalVariant(v Variant) ([]byte, error) {
	return yaml.Marshal(VariantFile{Version: "1", Variant: v})
}
