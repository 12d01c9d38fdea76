// Package config loads harness configuration from YAML with defaults for
// every field. CLI flags override file values; the merged result is treated
// as an immutable snapshot for the duration of a suite run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the config file location relative to the working
// directory.
const DefaultConfigPath = ".gauntlet/config.yaml"

// JudgeConfig configures the default LLM judge.
type JudgeConfig struct {
	// Model is the chat model used for evaluation.
	Model string `yaml:"model"`

	// Temperature is the sampling temperature for judge calls.
	Temperature float32 `yaml:"temperature"`

	// SpecsDir is the directory holding the markdown evaluation specs.
	SpecsDir string `yaml:"specs_dir"`
}

// Config represents harness configuration options.
type Config struct {
	// ReportName is the base name for generated report files.
	ReportName string `yaml:"report_name"`

	// DstDir is the directory report files are written into.
	DstDir string `yaml:"dst_dir"`

	// EnableCSVReport toggles CSV report generation.
	EnableCSVReport bool `yaml:"enable_csv_report"`

	// ResultsDB is the path of the SQLite results store. Empty disables it.
	ResultsDB string `yaml:"results_db"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// Verbose adds per-stage timing to progress lines and the summary.
	Verbose bool `yaml:"verbose"`

	// Judge configures the default LLM judge.
	Judge JudgeConfig `yaml:"judge"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		ReportName:      "report",
		DstDir:          ".",
		EnableCSVReport: true,
		ResultsDB:       "",
		LogLevel:        "info",
		Verbose:         false,
		Judge: JudgeConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0,
			SpecsDir:    "specs",
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Pointers distinguish "absent" from explicit zero values so partial
	// files merge with defaults.
	type yamlConfig struct {
		ReportName      *string      `yaml:"report_name"`
		DstDir          *string      `yaml:"dst_dir"`
		EnableCSVReport *bool        `yaml:"enable_csv_report"`
		ResultsDB       *string      `yaml:"results_db"`
		LogLevel        *string      `yaml:"log_level"`
		Verbose         *bool        `yaml:"verbose"`
		Judge           *JudgeConfig `yaml:"judge"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.ReportName != nil {
		cfg.ReportName = *yamlCfg.ReportName
	}
	if yamlCfg.DstDir != nil {
		cfg.DstDir = *yamlCfg.DstDir
	}
	if yamlCfg.EnableCSVReport != nil {
		cfg.EnableCSVReport = *yamlCfg.EnableCSVReport
	}
	if yamlCfg.ResultsDB != nil {
		cfg.ResultsDB = *yamlCfg.ResultsDB
	}
	if yamlCfg.LogLevel != nil {
		cfg.LogLevel = *yamlCfg.LogLevel
	}
	if yamlCfg.Verbose != nil {
		cfg.Verbose = *yamlCfg.Verbose
	}
	if yamlCfg.Judge != nil {
		if yamlCfg.Judge.Model != "" {
			cfg.Judge.Model = yamlCfg.Judge.Model
		}
		if yamlCfg.Judge.Temperature != 0 {
			cfg.Judge.Temperature = yamlCfg.Judge.Temperature
		}
		if yamlCfg.Judge.SpecsDir != "" {
			cfg.Judge.SpecsDir = yamlCfg.Judge.SpecsDir
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from dir/.gauntlet/config.yaml,
// falling back to defaults when absent.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, DefaultConfigPath))
}

// Save writes the configuration to the given path, creating parent
// directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
