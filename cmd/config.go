package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/habitloom-cli/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Habitloom configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if err := requireConfig(); err != nil {
			fmt.Fprintf(out, "No config loaded: %v\n", err)
			return nil
		}
		for _, k := range cfgpkg.Keys {
			v, err := cfg.Get(k)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
		if len(cfg.CategoryMap) > 0 {
			fmt.Fprintln(out, "category_map:")
			for _, r := range cfg.CategoryMap {
				fmt.Fprintf(out, "  - %s -> %s\n", r.Keyword, r.Category)
			}
		}
		if len(cfg.CategoryColors) > 0 {
			fmt.Fprintln(out, "category_colors:")
			names := make([]string, 0, len(cfg.CategoryColors))
			for n := range cfg.CategoryColors {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintf(out, "  %s: %s\n", n, cfg.CategoryColors[n])
			}
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if err := requireConfig(); err != nil {
			return err
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
