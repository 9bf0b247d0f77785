package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envConfigPath = "LORACTL_CONFIG"

// Config represents the loractl configuration file (~/.config/loractl/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ModelPath string `yaml:"model"`
	ModelsDir string `yaml:"models_dir"`
	LoraDir   string `yaml:"lora_dir"`

	// Run defaults
	Steps      *int64 `yaml:"steps"`
	HiresSteps *int64 `yaml:"hires_steps"`
	StepOffset *int64 `yaml:"step_offset"`
	Active     *bool  `yaml:"active"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "loractl", "config.yaml")
}

// applyLoggingConfig applies config file logging defaults when the flags
// were not set on the command line.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyModelConfig fills the shared model and LoRA location flags.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelPath != "" && !c.IsSet("model") {
		modelPath = cfg.ModelPath
	}
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	// An exported but empty LORACTL_LORA_DIR counts as set for the flag.
	if cfg.LoraDir != "" && (!c.IsSet("lora-dir") || strings.TrimSpace(loraDir) == "") {
		loraDir = cfg.LoraDir
	}
}

// applyRunConfig applies config file defaults to run command variables
// when the corresponding CLI flag was not explicitly set.
func applyRunConfig(c *cli.Command, cfg Config, steps, hiresSteps *int64, inactive *bool) {
	applyModelConfig(c, cfg)
	if cfg.Steps != nil && !c.IsSet("steps") {
		*steps = *cfg.Steps
	}
	if cfg.HiresSteps != nil && !c.IsSet("hires-steps") {
		*hiresSteps = *cfg.HiresSteps
	}
	if cfg.Active != nil && !c.IsSet("inactive") {
		*inactive = !*cfg.Active
	}
}

// applyScheduleConfig applies config file defaults to the schedule command.
func applyScheduleConfig(c *cli.Command, cfg Config, steps, offset *int64) {
	if cfg.Steps != nil && !c.IsSet("steps") {
		*steps = *cfg.Steps
	}
	if cfg.StepOffset != nil && !c.IsSet("offset") {
		*offset = *cfg.StepOffset
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyModelConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
