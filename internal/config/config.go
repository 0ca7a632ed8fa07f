package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

// Config represents the complete launchkit configuration
type Config struct {
	Toolkit  ToolkitConfig   `mapstructure:"toolkit"`
	Profiles []ProfileConfig `mapstructure:"profiles"`
	Lightmap LightmapConfig  `mapstructure:"lightmap"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Paths    PathsConfig     `mapstructure:"paths"`
}

// ToolkitConfig selects the active toolchain
type ToolkitConfig struct {
	// Profile is the name of the active profile. It may be empty when exactly
	// one profile is configured.
	Profile string `mapstructure:"profile"`
}

// ProfileConfig describes one installed toolchain
type ProfileConfig struct {
	Name string `mapstructure:"name"`
	// Variant is a built-in variant ("standard", "h2codez", "mcc") or one
	// loaded from paths.variants_dir.
	Variant string `mapstructure:"variant"`
	// BaseDir is the toolkit install directory. Tools run with it as their
	// working directory, and relative tool paths are resolved against it.
	BaseDir string `mapstructure:"base_dir"`

	// Executable paths, absolute or relative to BaseDir
	Tool     string `mapstructure:"tool"`
	ToolFast string `mapstructure:"tool_fast"`
	Guerilla string `mapstructure:"guerilla"`
	Sapien   string `mapstructure:"sapien"`
	Game     string `mapstructure:"game"`
}

// LightmapConfig holds defaults for lightmap bakes
type LightmapConfig struct {
	// Instances is the default worker count (default: 1)
	Instances int `mapstructure:"instances"`
	// Quality is the default quality setting passed to the tool (default: "medium")
	Quality string `mapstructure:"quality"`
	// Output is where tool output goes: "window", "console" or "log" (default: "log")
	Output string `mapstructure:"output"`
	// NoAssert uses the assert-free tool build where available (default: false)
	NoAssert bool `mapstructure:"no_assert"`
	// StartupDelaySeconds overrides the variant's delay of worker zero.
	// -1 keeps the variant's value and 0 disables the delay (default: -1).
	StartupDelaySeconds int `mapstructure:"startup_delay_seconds"`
	// MaxInstances caps the worker count; 0 means the number of logical CPUs
	// (default: 0)
	MaxInstances int `mapstructure:"max_instances"`
}

// LoggingConfig controls the launcher log
type LoggingConfig struct {
	// Enabled controls whether the launcher log is written (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated backups (default: false)
	Compress bool `mapstructure:"compress"`
}

// PathsConfig controls where launchkit reads and writes files
type PathsConfig struct {
	// LogDir holds the launcher log and the tool logs. If empty, defaults to
	// "logs" under the config directory. Supports ~ for home directory
	// expansion.
	LogDir string `mapstructure:"log_dir"`
	// VariantsDir holds custom variant descriptors (*.yaml). If empty,
	// defaults to "variants" under the config directory.
	VariantsDir string `mapstructure:"variants_dir"`
}

// ResolveLogDir returns the resolved log directory path.
func (p *PathsConfig) ResolveLogDir() string {
	if p.LogDir == "" {
		return filepath.Join(ConfigDir(), "logs")
	}
	return expandHome(p.LogDir)
}

// ResolveVariantsDir returns the resolved custom variants directory path.
func (p *PathsConfig) ResolveVariantsDir() string {
	if p.VariantsDir == "" {
		return filepath.Join(ConfigDir(), "variants")
	}
	return expandHome(p.VariantsDir)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

// StartupDelay returns the configured override of the variant startup delay
// and whether one is set.
func (c *LightmapConfig) StartupDelay() (time.Duration, bool) {
	if c.StartupDelaySeconds < 0 {
		return 0, false
	}
	return time.Duration(c.StartupDelaySeconds) * time.Second, true
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Profiles: []ProfileConfig{},
		Lightmap: LightmapConfig{
			Instances:           1,
			Quality:             "medium",
			Output:              "log",
			NoAssert:            false,
			StartupDelaySeconds: -1, // Keep the variant's delay
			MaxInstances:        0,  // Number of logical CPUs
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Toolkit defaults
	viper.SetDefault("toolkit.profile", defaults.Toolkit.Profile)

	// Lightmap defaults
	viper.SetDefault("lightmap.instances", defaults.Lightmap.Instances)
	viper.SetDefault("lightmap.quality", defaults.Lightmap.Quality)
	viper.SetDefault("lightmap.output", defaults.Lightmap.Output)
	viper.SetDefault("lightmap.no_assert", defaults.Lightmap.NoAssert)
	viper.SetDefault("lightmap.startup_delay_seconds", defaults.Lightmap.StartupDelaySeconds)
	viper.SetDefault("lightmap.max_instances", defaults.Lightmap.MaxInstances)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Paths defaults
	viper.SetDefault("paths.log_dir", defaults.Paths.LogDir)
	viper.SetDefault("paths.variants_dir", defaults.Paths.VariantsDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "launchkit")
	}
	// Fall back to ~/.config/launchkit
	home, err := os.UserHomeDir()
	if err != nil {
		return ".launchkit"
	}
	return filepath.Join(home, ".config", "launchkit")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ProfileNames returns the configured profile names in file order.
func (c *Config) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}

// ActiveProfile resolves the named profile, or toolkit.profile when name is
// empty, into a toolkit.Profile. When neither names one and exactly one
// profile is configured, that profile is used. The lightmap startup delay
// override is applied to the profile's variant.
func (c *Config) ActiveProfile(name string) (toolkit.Profile, error) {
	if name == "" {
		name = c.Toolkit.Profile
	}

	var pc *ProfileConfig
	switch {
	case name != "":
		for i := range c.Profiles {
			if strings.EqualFold(c.Profiles[i].Name, name) {
				pc = &c.Profiles[i]
				break
			}
		}
		if pc == nil {
			return toolkit.Profile{}, errors.NewProfileError(
				"profile is not configured", errors.ErrProfileNotFound,
			).WithProfile(name)
		}
	case len(c.Profiles) == 1:
		pc = &c.Profiles[0]
	case len(c.Profiles) == 0:
		return toolkit.Profile{}, errors.NewProfileError(
			"no profiles configured; add one to "+ConfigFile(), errors.ErrProfileNotFound,
		)
	default:
		return toolkit.Profile{}, errors.NewProfileError(
			"several profiles configured; select one with --profile or toolkit.profile", errors.ErrProfileNotFound,
		)
	}

	variant, ok := toolkit.Lookup(pc.Variant)
	if !ok {
		return toolkit.Profile{}, errors.NewProfileError(
			"unknown toolkit variant", errors.ErrUnknownVariant,
		).WithProfile(pc.Name).WithVariant(pc.Variant)
	}
	if d, ok := c.Lightmap.StartupDelay(); ok && variant.HasStartupDelay() {
		variant.StartupDelay = d
	}

	tools := make(map[toolkit.ToolType]string)
	for tool, path := range map[toolkit.ToolType]string{
		toolkit.Tool:     pc.Tool,
		toolkit.ToolFast: pc.ToolFast,
		toolkit.Guerilla: pc.Guerilla,
		toolkit.Sapien:   pc.Sapien,
		toolkit.Game:     pc.Game,
	} {
		if path != "" {
			tools[tool] = expandHome(path)
		}
	}

	return toolkit.Profile{
		Name:    pc.Name,
		BaseDir: expandHome(pc.BaseDir),
		Variant: variant,
		Tools:   tools,
	}, nil
}
