package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CategoryRule groups habits whose name contains Keyword into one chart category.
type CategoryRule struct {
	Keyword  string `mapstructure:"keyword" yaml:"keyword"`
	Category string `mapstructure:"category" yaml:"category"`
}

// Global configuration structure.
type Global struct {
	DataDir       string `mapstructure:"data_dir" yaml:"data_dir"`
	OverrideStore string `mapstructure:"override_store" yaml:"override_store"`
	OverridesPath string `mapstructure:"overrides_path" yaml:"overrides_path"`

	// Spreadsheet reading
	DateColumn         string `mapstructure:"date_column" yaml:"date_column,omitempty"`
	SheetName          string `mapstructure:"sheet_name" yaml:"sheet_name,omitempty"`
	Delimiter          string `mapstructure:"delimiter" yaml:"delimiter,omitempty"`
	DecimalSeparator   string `mapstructure:"decimal_separator" yaml:"decimal_separator,omitempty"`
	ThousandsSeparator string `mapstructure:"thousands_separator" yaml:"thousands_separator,omitempty"`

	// Inference
	SampleSize             int      `mapstructure:"sample_size" yaml:"sample_size"`
	ClassifyTimeMin        float64  `mapstructure:"classify_time_min" yaml:"classify_time_min"`
	CompletionThresholdMin float64  `mapstructure:"completion_threshold_min" yaml:"completion_threshold_min"`
	StreakGapPolicy        string   `mapstructure:"streak_gap_policy" yaml:"streak_gap_policy"`
	SystemColumns          []string `mapstructure:"system_columns" yaml:"system_columns"`

	// Charts
	CategoryMap    []CategoryRule    `mapstructure:"category_map" yaml:"category_map,omitempty"`
	CategoryColors map[string]string `mapstructure:"category_colors" yaml:"category_colors,omitempty"`

	// HTTP API
	ListenAddr        string   `mapstructure:"listen_addr" yaml:"listen_addr"`
	CORSOrigins       []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	ComputeTimeoutSec int      `mapstructure:"compute_timeout_sec" yaml:"compute_timeout_sec"`
	Watch             bool     `mapstructure:"watch" yaml:"watch"`

	// Logging
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogFile  string `mapstructure:"log_file" yaml:"log_file,omitempty"`
}

const dirName = ".habitloom"

func homeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.habitloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := homeDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", ".")
	v.SetDefault("override_store", "json")
	v.SetDefault("overrides_path", "")
	v.SetDefault("date_column", "")
	v.SetDefault("sheet_name", "")
	v.SetDefault("delimiter", "")
	v.SetDefault("decimal_separator", "")
	v.SetDefault("thousands_separator", "")
	v.SetDefault("sample_size", 10)
	v.SetDefault("classify_time_min", 5.0)
	v.SetDefault("completion_threshold_min", 20.0)
	v.SetDefault("streak_gap_policy", "break")
	v.SetDefault("system_columns", []string{"Data", "Date", "WEEKDAY", "Weekday", "Razem", "Total"})
	v.SetDefault("listen_addr", "127.0.0.1:8000")
	v.SetDefault("cors_origins", []string{"http://localhost:3000", "http://127.0.0.1:3000"})
	v.SetDefault("compute_timeout_sec", 30)
	v.SetDefault("watch", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("HABITLOOM")
	v.AutomaticEnv()
	setDefaults(v)

	dir, err := homeDir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, a broken one is not
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.OverridesPath == "" {
		name := "habits_config.json"
		if c.OverrideStore == "sqlite" {
			name = "overrides.db"
		}
		c.OverridesPath = filepath.Join(dir, name)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks enumerated values and numeric ranges.
func (c *Global) Validate() error {
	switch c.OverrideStore {
	case "", "json", "sqlite":
	default:
		return fmt.Errorf("invalid override_store: %s (use json or sqlite)", c.OverrideStore)
	}
	switch strings.ToLower(c.StreakGapPolicy) {
	case "", "break", "skip":
	default:
		return fmt.Errorf("invalid streak_gap_policy: %s (use break or skip)", c.StreakGapPolicy)
	}
	if c.SampleSize < 0 || c.ClassifyTimeMin < 0 || c.CompletionThresholdMin < 0 || c.ComputeTimeoutSec < 0 {
		return fmt.Errorf("numeric settings must not be negative")
	}
	return nil
}

// Keys lists the settable scalar keys in display order.
var Keys = []string{
	"data_dir", "override_store", "overrides_path", "date_column", "sheet_name", "delimiter",
	"decimal_separator", "thousands_separator", "sample_size", "classify_time_min",
	"completion_threshold_min", "streak_gap_policy", "system_columns", "listen_addr",
	"cors_origins", "compute_timeout_sec", "watch", "log_level", "log_file",
}

// Set assigns one key from its string form. List keys take comma-separated values.
func (c *Global) Set(key, val string) error {
	switch key {
	case "data_dir":
		c.DataDir = val
	case "override_store":
		c.OverrideStore = strings.ToLower(val)
	case "overrides_path":
		c.OverridesPath = val
	case "date_column":
		c.DateColumn = val
	case "sheet_name":
		c.SheetName = val
	case "delimiter":
		c.Delimiter = val
	case "decimal_separator":
		c.DecimalSeparator = val
	case "thousands_separator":
		c.ThousandsSeparator = val
	case "sample_size":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid int for sample_size: %v", val)
		}
		c.SampleSize = i
	case "classify_time_min":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for classify_time_min: %v", val)
		}
		c.ClassifyTimeMin = f
	case "completion_threshold_min":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f <= 0 {
			return fmt.Errorf("invalid float for completion_threshold_min: %v", val)
		}
		c.CompletionThresholdMin = f
	case "streak_gap_policy":
		c.StreakGapPolicy = strings.ToLower(val)
	case "system_columns":
		c.SystemColumns = splitList(val)
	case "listen_addr":
		c.ListenAddr = val
	case "cors_origins":
		c.CORSOrigins = splitList(val)
	case "compute_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for compute_timeout_sec: %v", val)
		}
		c.ComputeTimeoutSec = i
	case "watch":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for watch: %w", err)
		}
		c.Watch = b
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_file":
		c.LogFile = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return c.Validate()
}

// Get returns the display form of a key.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "data_dir":
		return c.DataDir, nil
	case "override_store":
		return c.OverrideStore, nil
	case "overrides_path":
		return c.OverridesPath, nil
	case "date_column":
		return c.DateColumn, nil
	case "sheet_name":
		return c.SheetName, nil
	case "delimiter":
		return c.Delimiter, nil
	case "decimal_separator":
		return c.DecimalSeparator, nil
	case "thousands_separator":
		return c.ThousandsSeparator, nil
	case "sample_size":
		return strconv.Itoa(c.SampleSize), nil
	case "classify_time_min":
		return strconv.FormatFloat(c.ClassifyTimeMin, 'f', -1, 64), nil
	case "completion_threshold_min":
		return strconv.FormatFloat(c.CompletionThresholdMin, 'f', -1, 64), nil
	case "streak_gap_policy":
		return c.StreakGapPolicy, nil
	case "system_columns":
		return strings.Join(c.SystemColumns, ","), nil
	case "listen_addr":
		return c.ListenAddr, nil
	case "cors_origins":
		return strings.Join(c.CORSOrigins, ","), nil
	case "compute_timeout_sec":
		return strconv.Itoa(c.ComputeTimeoutSec), nil
	case "watch":
		return strconv.FormatBool(c.Watch), nil
	case "log_level":
		return c.LogLevel, nil
	case "log_file":
		return c.LogFile, nil
	}
	return "", fmt.Errorf("unknown key: %s", key)
}

func splitList(val string) []string {
	var out []string
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
