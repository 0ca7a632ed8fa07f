package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/launchkit/internal/errors"
	"github.com/Iron-Ham/launchkit/internal/toolkit"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List configured toolkit profiles",
	Long: `List the toolkit profiles from the config file. The active profile is
marked with '*'.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

var variantsCmd = &cobra.Command{
	Use:   "variants [name]",
	Short: "List toolkit variants, or print one as a descriptor file",
	Long: `List the built-in toolkit variants and those loaded from paths.variants_dir.

With a name, prints that variant as a YAML descriptor that can be copied
into the variants directory and edited.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVariants,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(variantsCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(cfg.Profiles) == 0 {
		fmt.Fprintln(out, "No profiles configured.")
		fmt.Fprintln(out, "Add a profiles entry to the config file ('launchkit config path' shows where).")
		return nil
	}

	active := ""
	if p, err := cfg.ActiveProfile(""); err == nil {
		active = p.Name
	}

	for _, p := range cfg.Profiles {
		marker := " "
		if p.Name == active {
			marker = "*"
		}
		status := ""
		if _, ok := toolkit.Lookup(p.Variant); !ok {
			status = "  (unknown variant)"
		}
		fmt.Fprintf(out, "%s %-16s %-10s %s%s\n", marker, p.Name, p.Variant, p.BaseDir, status)
	}
	return nil
}

func runVariants(cmd *cobra.Command, args []string) error {
	if _, err := loadConfig(cmd); err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		v, ok := toolkit.Lookup(args[0])
		if !ok {
			return errors.NewNotFoundError("variant", args[0])
		}
		data, err := toolkit.MarshalVariant(v)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	for _, v := range toolkit.Variants() {
		fmt.Fprintf(out, "%-10s %s\n", v.Name, describeVariant(v))
	}
	return nil
}

// describeVariant summarizes a variant's lightmap capabilities.
func describeVariant(v toolkit.Variant) string {
	var caps []string
	if v.MultiInstance {
		caps = append(caps, "multi-instance lightmaps")
	}
	if v.HasStartupDelay() {
		caps = append(caps, fmt.Sprintf("worker 0 delayed %s", v.StartupDelay))
	}
	if v.FastTool {
		caps = append(caps, "assert-free tool")
	}
	if v.TypedBitmaps {
		caps = append(caps, "typed bitmaps")
	}
	if len(caps) == 0 {
		caps = append(caps, "single-process lightmaps")
	}
	s := strings.Join(caps, ", ")
	if v.Description != "" {
		s = v.Description + " (" + s + ")"
	}
	return s
}
