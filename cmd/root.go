package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/habitloom-cli/internal/analytics"
	cfgpkg "github.com/KaramelBytes/habitloom-cli/internal/config"
	"github.com/KaramelBytes/habitloom-cli/internal/dashboard"
	"github.com/KaramelBytes/habitloom-cli/internal/habit"
	"github.com/KaramelBytes/habitloom-cli/internal/logging"
	"github.com/KaramelBytes/habitloom-cli/internal/overrides"
	"github.com/KaramelBytes/habitloom-cli/internal/sheet"
	"github.com/KaramelBytes/habitloom-cli/internal/utils"
)

var (
	// Global flags
	cfgFile     string
	debug       bool
	flagDataDir string

	// Loaded configuration
	cfg *cfgpkg.Global

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "habitloom",
	Short: "Habitloom: habit streaks and productivity analytics from your spreadsheets",
	Long: `Habitloom reads habit-tracker spreadsheets (one row per day, one column per habit),
infers what each column means and serves streaks, perfect days and productivity charts
to the dashboard or straight to your terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.habitloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory holding habit spreadsheets (overrides config)")
}

func loadConfig() {
	if err := requireConfig(); err != nil {
		// Non-fatal: config commands can still repair the file
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
	}
}

// initLogger builds the process logger. Only the server logs at the configured level; the
// one-shot commands keep stderr to warnings unless --debug is set.
func initLogger(cmd *cobra.Command) error {
	opt := logging.Options{Level: "warn", Debug: debug}
	if cfg != nil {
		opt.File = utils.ExpandHome(cfg.LogFile)
		if cmd.Name() == "serve" {
			opt.Level = cfg.LogLevel
		}
	}
	l, err := logging.New(opt)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// requireConfig loads the configuration once and applies CLI overrides.
func requireConfig() error {
	if cfg == nil {
		c, err := cfgpkg.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = c
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	return nil
}

// newService wires the configured sources, override store and analytics options. The returned
// func releases the store.
func newService(ctx context.Context) (*dashboard.Service, func(), error) {
	if err := requireConfig(); err != nil {
		return nil, nil, err
	}
	sopt, err := sheetOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	dopt, err := dashboardOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := overrides.Open(ctx, cfg.OverrideStore, utils.ExpandHome(cfg.OverridesPath))
	if err != nil {
		return nil, nil, err
	}
	release := func() {}
	if c, ok := store.(io.Closer); ok {
		release = func() {
			if err := c.Close(); err != nil {
				logger.Warn("closing override store", zap.Error(err))
			}
		}
	}
	src := sheet.DirSource{Dir: utils.ExpandHome(cfg.DataDir), Options: sopt}
	logger.Debug("service configured",
		zap.String("data_dir", src.Dir),
		zap.String("store", cfg.OverrideStore),
		zap.String("overrides", cfg.OverridesPath))
	return dashboard.New(src, store, dopt, logger), release, nil
}

func sheetOptions(c *cfgpkg.Global) (sheet.Options, error) {
	opt := sheet.DefaultOptions()
	opt.DateColumn = c.DateColumn
	opt.SheetName = c.SheetName
	var err error
	if opt.Delimiter, err = singleRune("delimiter", c.Delimiter); err != nil {
		return opt, err
	}
	if opt.DecimalSeparator, err = singleRune("decimal_separator", c.DecimalSeparator); err != nil {
		return opt, err
	}
	if opt.ThousandsSeparator, err = singleRune("thousands_separator", c.ThousandsSeparator); err != nil {
		return opt, err
	}
	return opt, nil
}

// singleRune parses a one-character setting. "tab" and `\t` mean a tab.
func singleRune(key, val string) (rune, error) {
	switch strings.ToLower(val) {
	case "":
		return 0, nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(val) != 1 {
		return 0, fmt.Errorf("invalid %s: %q (want a single character)", key, val)
	}
	r, _ := utf8.DecodeRuneInString(val)
	return r, nil
}

func dashboardOptions(c *cfgpkg.Global) (dashboard.Options, error) {
	gap, err := analytics.ParseGapPolicy(c.StreakGapPolicy)
	if err != nil {
		return dashboard.Options{}, err
	}
	sopt, err := sheetOptions(c)
	if err != nil {
		return dashboard.Options{}, err
	}
	rules := habitRules(c)
	rules.DecimalSeparator = sopt.DecimalSeparator
	rules.ThousandsSeparator = sopt.ThousandsSeparator
	cats := make([]analytics.CategoryRule, 0, len(c.CategoryMap))
	for _, r := range c.CategoryMap {
		cats = append(cats, analytics.CategoryRule{Keyword: r.Keyword, Category: r.Category})
	}
	return dashboard.Options{
		Rules: rules,
		// nil keeps the built-in list; an explicitly empty list disables it
		SystemColumns: c.SystemColumns,
		GapPolicy:     gap,
		Categories:    cats,
		Colors:        c.CategoryColors,
		Timeout:       time.Duration(c.ComputeTimeoutSec) * time.Second,
	}, nil
}

func habitRules(c *cfgpkg.Global) habit.Rules {
	return habit.Rules{
		SampleSize:        c.SampleSize,
		TimeMinimum:       c.ClassifyTimeMin,
		CompletionMinutes: c.CompletionThresholdMin,
	}
}

// parseAnchor reads an optional YYYY-MM-DD flag value.
func parseAnchor(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --anchor %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func printJSON(w io.Writer, v any) error {
	b, err := utils.PrettyJSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}
