package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default lightmap config
	if cfg.Lightmap.Instances != 1 {
		t.Errorf("Lightmap.Instances = %d, want 1", cfg.Lightmap.Instances)
	}
	if cfg.Lightmap.Quality != "medium" {
		t.Errorf("Lightmap.Quality = %q, want %q", cfg.Lightmap.Quality, "medium")
	}
	if cfg.Lightmap.Output != "log" {
		t.Errorf("Lightmap.Output = %q, want %q", cfg.Lightmap.Output, "log")
	}
	if cfg.Lightmap.StartupDelaySeconds != -1 {
		t.Errorf("Lightmap.StartupDelaySeconds = %d, want -1", cfg.Lightmap.StartupDelaySeconds)
	}

	// Verify default logging config
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.MaxSizeMB != 10 || cfg.Logging.MaxBackups != 3 {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLightmapConfig_StartupDelay(t *testing.T) {
	tests := []struct {
		seconds int
		want    time.Duration
		wantSet bool
	}{
		{-1, 0, false},
		{0, 0, true},
		{30, 30 * time.Second, true},
	}

	for _, tt := range tests {
		cfg := LightmapConfig{StartupDelaySeconds: tt.seconds}
		got, set := cfg.StartupDelay()
		if got != tt.want || set != tt.wantSet {
			t.Errorf("StartupDelay() with %ds = %v, %v; want %v, %v", tt.seconds, got, set, tt.want, tt.wantSet)
		}
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got := ConfigDir(); got != "/custom/config/launchkit" {
			t.Errorf("ConfigDir() = %q", got)
		}
		if got := ConfigFile(); got != "/custom/config/launchkit/config.yaml" {
			t.Errorf("ConfigFile() = %q", got)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "launchkit")
		if got := ConfigDir(); got != expected {
			t.Errorf("ConfigDir() = %q, want %q", got, expected)
		}
	})
}

func TestPathsConfig_Resolve(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name     string
		paths    PathsConfig
		wantLog  string
		wantVars string
	}{
		{"defaults", PathsConfig{}, "/cfg/launchkit/logs", "/cfg/launchkit/variants"},
		{"absolute", PathsConfig{LogDir: "/var/log/lk", VariantsDir: "/opt/variants"}, "/var/log/lk", "/opt/variants"},
		{"home", PathsConfig{LogDir: "~/lk-logs", VariantsDir: "~"}, filepath.Join(home, "lk-logs"), home},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.paths.ResolveLogDir(); got != tt.wantLog {
				t.Errorf("ResolveLogDir() = %q, want %q", got, tt.wantLog)
			}
			if got := tt.paths.ResolveVariantsDir(); got != tt.wantVars {
				t.Errorf("ResolveVariantsDir() = %q, want %q", got, tt.wantVars)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
toolkit:
  profile: mcc
profiles:
  - name: mcc
    variant: mcc
    base_dir: /games/mcc/h3ek
    tool: tool.exe
    tool_fast: tool_fast.exe
  - name: h2
    variant: h2codez
    base_dir: /games/h2ek
    tool: h2tool.exe
lightmap:
  instances: 4
  quality: super
  output: console
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff([]string{"mcc", "h2"}, cfg.ProfileNames()); diff != "" {
		t.Errorf("profiles mismatch (-want +got):\n%s", diff)
	}
	if cfg.Lightmap.Instances != 4 || cfg.Lightmap.Quality != "super" || cfg.Lightmap.Output != "console" {
		t.Errorf("Lightmap = %+v", cfg.Lightmap)
	}
	// Unset keys fall back to the registered defaults.
	if cfg.Logging.MaxSizeMB != 10 || cfg.Lightmap.StartupDelaySeconds != -1 {
		t.Errorf("defaults not applied: %+v %+v", cfg.Logging, cfg.Lightmap)
	}
}

func TestLoad_Invalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	SetDefaults()
	viper.Set("lightmap.instances", 0)
	viper.Set("lightmap.output", "printer")

	_, err := Load()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Load() error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d validation errors: %v", len(verrs), verrs)
	}
}

func testConfig() *Config {
	cfg := Default()
	cfg.Profiles = []ProfileConfig{
		{Name: "mcc", Variant: "mcc", BaseDir: "/games/h3ek", Tool: "tool.exe", ToolFast: "tool_fast.exe"},
		{Name: "h2", Variant: "h2codez", BaseDir: "/games/h2ek", Tool: "/opt/h2/tool.exe", Sapien: "sapien.exe"},
	}
	return cfg
}

func TestConfig_ActiveProfile(t *testing.T) {
	cfg := testConfig()
	cfg.Toolkit.Profile = "h2"

	p, err := cfg.ActiveProfile("")
	if err != nil {
		t.Fatalf("ActiveProfile() error = %v", err)
	}
	if p.Name != "h2" || p.Variant.Name != toolkit.VariantH2Codez || p.BaseDir != "/games/h2ek" {
		t.Errorf("profile = %+v", p)
	}
	wantTools := map[toolkit.ToolType]string{toolkit.Tool: "/opt/h2/tool.exe", toolkit.Sapien: "sapien.exe"}
	if diff := cmp.Diff(wantTools, p.Tools); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}

	// An explicit name wins over toolkit.profile and matches case-insensitively.
	p, err = cfg.ActiveProfile("MCC")
	if err != nil || p.Name != "mcc" {
		t.Errorf("ActiveProfile(MCC) = %+v, %v", p, err)
	}
	if p.Variant.StartupDelay != toolkit.DefaultStartupDelay {
		t.Errorf("StartupDelay = %v, want the variant default", p.Variant.StartupDelay)
	}
}

func TestConfig_ActiveProfile_StartupDelayOverride(t *testing.T) {
	cfg := testConfig()
	cfg.Lightmap.StartupDelaySeconds = 0

	p, err := cfg.ActiveProfile("mcc")
	if err != nil {
		t.Fatalf("ActiveProfile() error = %v", err)
	}
	if p.Variant.HasStartupDelay() {
		t.Errorf("StartupDelay = %v, want disabled", p.Variant.StartupDelay)
	}

	// The registered variant is unchanged.
	v, _ := toolkit.Lookup(toolkit.VariantMCC)
	if v.StartupDelay != toolkit.DefaultStartupDelay {
		t.Errorf("registry variant was modified: %v", v.StartupDelay)
	}
}

func TestConfig_ActiveProfile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     func() *Config
		profile string
		want    error
	}{
		{"none configured", Default, "", errors.ErrProfileNotFound},
		{"ambiguous", testConfig, "", errors.ErrProfileNotFound},
		{"unknown name", testConfig, "reach", errors.ErrProfileNotFound},
		{"unknown variant", func() *Config {
			cfg := testConfig()
			cfg.Profiles[0].Variant = "halo-online"
			return cfg
		}, "mcc", errors.ErrUnknownVariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg().ActiveProfile(tt.profile)
			if !errors.Is(err, tt.want) {
				t.Errorf("ActiveProfile() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestConfig_ActiveProfile_Single(t *testing.T) {
	cfg := Default()
	cfg.Profiles = []ProfileConfig{{Name: "only", Variant: "standard", Tool: "tool.exe"}}

	p, err := cfg.ActiveProfile("")
	if err != nil || p.Name != "only" {
		t.Errorf("ActiveProfile() = %+v, %v", p, err)
	}
}
