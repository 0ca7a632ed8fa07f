package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/launchkit/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View launchkit configuration",
	Long: `View launchkit configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/launchkit/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "# Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	// Validate before printing so problems are reported against the file
	if _, err := loadConfig(cmd); err != nil {
		return err
	}

	settings := viper.AllSettings()
	delete(settings, "config")
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to render configuration: %w", err)
	}
	_, err = out.Write(data)
	return err
}

// defaultConfigContent is written by 'config init'.
const defaultConfigContent = `# launchkit configuration

# Toolkit installs. Executable paths are absolute or relative to base_dir,
# which is also the working directory of every tool invocation.
# Variants: standard, h2codez, mcc, or one from paths.variants_dir.
profiles: []
#  - name: mcc
#    variant: mcc
#    base_dir: C:\Program Files (x86)\Steam\steamapps\common\H3EK
#    tool: tool.exe
#    tool_fast: tool_fast.exe
#    guerilla: guerilla.exe
#    sapien: sapien.exe

toolkit:
  # Active profile. May be left empty when exactly one profile is configured.
  profile: ""

lightmap:
  # Default number of tool instances for multi-instance bakes
  instances: 1
  # Upper bound on instances; 0 means the number of logical CPUs
  max_instances: 0
  quality: medium
  # Where tool output goes: window, console or log
  output: log
  # Use the assert-free tool build where the toolkit ships one
  no_assert: false
  # Delay before worker 0 starts, in seconds. -1 keeps the toolkit default
  # and 0 disables the delay.
  startup_delay_seconds: -1

logging:
  enabled: true
  # debug, info, warn or error
  level: info
  max_size_mb: 10
  max_backups: 3
  compress: false

paths:
  # Launcher log and tool logs (default: ~/.config/launchkit/logs)
  log_dir: ""
  # Custom variant descriptors (default: ~/.config/launchkit/variants)
  variants_dir: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()
	out := cmd.OutOrStdout()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "Created config file at %s\n", configFile)
	fmt.Fprintln(out, "Add a profile for your toolkit install to get started.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: LAUNCHKIT_* (e.g., LAUNCHKIT_LIGHTMAP_INSTANCES)")

	return nil
}
