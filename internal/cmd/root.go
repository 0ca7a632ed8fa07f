package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/launchkit/internal/config"
	"github.com/Iron-Ham/launchkit/internal/errors"
)

var rootCmd = &cobra.Command{
	Use:   "launchkit",
	Short: "Toolkit launcher with parallel lightmap builds",
	Long: `launchkit drives an installed game-asset toolkit from the command line.

It runs tool invocations for levels, models, bitmaps, strings and sounds,
and splits lightmap bakes across several tool instances on toolkits that
support it, merging their output once every worker has finished.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configErr records a config file that was named but could not be read.
var configErr error

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx. Cancelling ctx cancels the
// running build.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ExitStatus maps an error returned by Execute to a process exit status.
func ExitStatus(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsCancellation(err):
		return 130
	case errors.Is(err, errors.ErrInvalidInput):
		return 2
	default:
		return 1
	}
}

// PrintError reports an error returned by Execute on w. A requested stop is
// not shown as a failure, and errors that were not written for end users
// point at the launcher log.
func PrintError(w io.Writer, err error) {
	if err == nil {
		return
	}
	if errors.GetSeverity(err) <= errors.SeverityInfo {
		fmt.Fprintln(w, "Stopped:", err)
		return
	}
	fmt.Fprintln(w, "Error:", err)
	if !errors.IsUserFacing(err) {
		fmt.Fprintln(w, "Run 'launchkit logs --level error' for details.")
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/launchkit/config.yaml)")
	rootCmd.PersistentFlags().StringP("profile", "p", "", "toolkit profile to use (default is toolkit.profile)")
	rootCmd.PersistentFlags().String("log-level", "", "launcher log level (debug/info/warn/error)")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("toolkit.profile", flags.Lookup("profile"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))

	cfgFile := viper.GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("LAUNCHKIT")
	// Replace dots with underscores for nested keys in env vars
	// e.g., LAUNCHKIT_LIGHTMAP_INSTANCES for lightmap.instances
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	configErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			configErr = errors.Wrapf(err, "reading config file %s", viper.ConfigFileUsed())
		}
	}
}
