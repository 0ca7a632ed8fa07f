package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/logging"
	"github.com/Iron-Ham/launchkit/internal/process"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lightmap.instances")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is makes a failed configuration match errors.ErrInvalidInput.
func (e ValidationErrors) Is(target error) bool {
	return target == errors.ErrInvalidInput
}

// profileNameRegex validates profile names, which double as CLI arguments
var profileNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidOutputModes returns the list of valid lightmap output modes
func ValidOutputModes() []string {
	return []string{"window", "console", "log"}
}

// Upper bounds for numeric and path settings.
const (
	maxInstancesLimit = 256
	maxLogSizeMB      = 1000 // 1GB
	maxPathLength     = 4096
)

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateProfiles()...)
	errors = append(errors, c.validateLightmap()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validateProfiles validates the profile list and the active profile name
func (c *Config) validateProfiles() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool)
	for i, p := range c.Profiles {
		field := fmt.Sprintf("profiles[%d]", i)

		if !profileNameRegex.MatchString(p.Name) {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Value:   p.Name,
				Message: "must start with a letter or digit and contain only letters, digits, '.', '_' or '-'",
			})
		}
		key := strings.ToLower(p.Name)
		if p.Name != "" && seen[key] {
			errors = append(errors, ValidationError{
				Field:   field + ".name",
				Value:   p.Name,
				Message: "duplicate profile name",
			})
		}
		seen[key] = true

		if p.Variant == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".variant",
				Value:   p.Variant,
				Message: "is required",
			})
		}
		if p.Tool == "" {
			errors = append(errors, ValidationError{
				Field:   field + ".tool",
				Value:   p.Tool,
				Message: "is required",
			})
		}
		for _, path := range []struct{ name, value string }{
			{"base_dir", p.BaseDir}, {"tool", p.Tool}, {"tool_fast", p.ToolFast},
			{"guerilla", p.Guerilla}, {"sapien", p.Sapien}, {"game", p.Game},
		} {
			errors = append(errors, validatePath(field+"."+path.name, path.value)...)
		}
	}

	if c.Toolkit.Profile != "" && !seen[strings.ToLower(c.Toolkit.Profile)] {
		errors = append(errors, ValidationError{
			Field:   "toolkit.profile",
			Value:   c.Toolkit.Profile,
			Message: "does not name a configured profile",
		})
	}

	return errors
}

// validateLightmap validates the LightmapConfig
func (c *Config) validateLightmap() []ValidationError {
	var errors []ValidationError

	if c.Lightmap.Instances < 1 || c.Lightmap.Instances > maxInstancesLimit {
		errors = append(errors, ValidationError{
			Field:   "lightmap.instances",
			Value:   c.Lightmap.Instances,
			Message: fmt.Sprintf("must be between 1 and %d", maxInstancesLimit),
		})
	}

	if c.Lightmap.MaxInstances < 0 || c.Lightmap.MaxInstances > maxInstancesLimit {
		errors = append(errors, ValidationError{
			Field:   "lightmap.max_instances",
			Value:   c.Lightmap.MaxInstances,
			Message: fmt.Sprintf("must be between 0 and %d (0 means the CPU count)", maxInstancesLimit),
		})
	}

	if strings.TrimSpace(c.Lightmap.Quality) == "" {
		errors = append(errors, ValidationError{
			Field:   "lightmap.quality",
			Value:   c.Lightmap.Quality,
			Message: "is required",
		})
	}

	if _, err := process.ParseOutputMode(c.Lightmap.Output); err != nil {
		errors = append(errors, ValidationError{
			Field:   "lightmap.output",
			Value:   c.Lightmap.Output,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidOutputModes(), ", ")),
		})
	}

	if c.Lightmap.StartupDelaySeconds < -1 {
		errors = append(errors, ValidationError{
			Field:   "lightmap.startup_delay_seconds",
			Value:   c.Lightmap.StartupDelaySeconds,
			Message: "must be -1 (variant default) or non-negative",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.ToLower(strings.Join(logging.ValidLevels(), ", "))),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError
	errors = append(errors, validatePath("paths.log_dir", c.Paths.LogDir)...)
	errors = append(errors, validatePath("paths.variants_dir", c.Paths.VariantsDir)...)
	return errors
}

// validatePath rejects paths no filesystem accepts. Empty paths are valid.
func validatePath(field, path string) []ValidationError {
	var errors []ValidationError

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	// Reasonable path length limit (most filesystems have limits around 4096)
	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
