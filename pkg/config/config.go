// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration errors
var (
	ErrConfigNotFound      = errors.New("config file not found")
	ErrMissingInput        = errors.New("input.path or input.pattern is required")
	ErrInvalidDelimiter    = errors.New("input.delimiter must be a single character")
	ErrInvalidSkipRows     = errors.New("input.skip_rows cannot be negative")
	ErrInvalidPeekRows     = errors.New("input.peek_rows cannot be negative")
	ErrMissingOutputDir    = errors.New("output.dir is required")
	ErrInvalidOutputFormat = errors.New("output.format must be one of: csv, excel, all")
	ErrInvalidLogLevel     = errors.New("log_level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat    = errors.New("log_format must be 'json' or 'console'")
)

// Output formats
const (
	FormatCSV   = "csv"
	FormatExcel = "excel"
	FormatAll   = "all"
)

// Config represents the application configuration
type Config struct {
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Transform TransformConfig `yaml:"transform"`
	RulesFile string          `yaml:"rules_file"` // replaces Transform when set
	Sink      SinkConfig      `yaml:"sink"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// InputConfig describes where and how the raw survey file is read
type InputConfig struct {
	Path      string `yaml:"path"`
	Pattern   string `yaml:"pattern"`
	Encoding  string `yaml:"encoding"`
	Delimiter string `yaml:"delimiter"`
	SkipRows  int    `yaml:"skip_rows"`
	PeekRows  int    `yaml:"peek_rows"`
}

// OutputConfig describes what the run writes and where
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	Format         string `yaml:"format"`
	FilePrefix     string `yaml:"file_prefix"`
	MetadataPrefix string `yaml:"metadata_prefix"`
	MetricsFile    string `yaml:"metrics_file"`
}

// WantCSV reports whether the CSV export is enabled
func (o OutputConfig) WantCSV() bool {
	return o.Format == FormatCSV || o.Format == FormatAll
}

// WantExcel reports whether the spreadsheet export is enabled
func (o OutputConfig) WantExcel() bool {
	return o.Format == FormatExcel || o.Format == FormatAll
}

// DefaultConfig returns the configuration used when nothing is overridden
func DefaultConfig() (*Config, error) {
	tc, err := DefaultTransformConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Input: InputConfig{
			Pattern:   "data/*.csv",
			Encoding:  "utf-8",
			Delimiter: ",",
			PeekRows:  5,
		},
		Output: OutputConfig{
			Dir:            "output",
			Format:         FormatAll,
			FilePrefix:     "survey_cleaned",
			MetadataPrefix: "metadata_etl",
		},
		Transform: tc,
		Sink:      defaultSinkConfig(),
		LogLevel:  "info",
		LogFormat: "json",
	}, nil
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// and environment variables, in that order of precedence
func LoadConfig(path string) (*Config, error) {
	cfg, err := DefaultConfig()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.RulesFile = getEnv("SURVEYETL_RULES_FILE", cfg.RulesFile)
	if cfg.RulesFile != "" {
		if cfg.Transform, err = LoadTransformConfig(cfg.RulesFile); err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Sink.loadCredentials(); err != nil {
		return nil, fmt.Errorf("failed to load sink configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Overrides holds command line values, which take precedence over every
// other configuration source. Empty fields are ignored.
type Overrides struct {
	Input      string
	OutputDir  string
	Format     string
	RulesFile  string
	SinkDriver string
}

// ApplyOverrides applies command line values and re-validates the result
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.RulesFile != "" {
		tc, err := LoadTransformConfig(o.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules: %w", err)
		}
		c.RulesFile = o.RulesFile
		c.Transform = tc
		c.applyEnv()
	}
	if o.Input != "" {
		c.Input.Path = o.Input
	}
	if o.OutputDir != "" {
		c.Output.Dir = o.OutputDir
	}
	if o.Format != "" {
		c.Output.Format = o.Format
	}
	if o.SinkDriver != "" && o.SinkDriver != c.Sink.Driver {
		c.Sink.Driver = o.SinkDriver
		if err := c.Sink.loadCredentials(); err != nil {
			return fmt.Errorf("failed to load sink configuration: %w", err)
		}
	}
	return c.Validate()
}

func (c *Config) applyEnv() {
	c.Input.Path = getEnv("SURVEYETL_INPUT", c.Input.Path)
	c.Input.Pattern = getEnv("SURVEYETL_INPUT_PATTERN", c.Input.Pattern)
	c.Input.Encoding = getEnv("SURVEYETL_ENCODING", c.Input.Encoding)
	c.Input.SkipRows = getEnvAsInt("SURVEYETL_SKIP_ROWS", c.Input.SkipRows)

	c.Output.Dir = getEnv("SURVEYETL_OUTPUT_DIR", c.Output.Dir)
	c.Output.Format = getEnv("SURVEYETL_OUTPUT_FORMAT", c.Output.Format)
	c.Output.MetricsFile = getEnv("SURVEYETL_METRICS_FILE", c.Output.MetricsFile)

	c.Transform.MissingThreshold = getEnvAsFloat("SURVEYETL_MISSING_THRESHOLD", c.Transform.MissingThreshold)
	c.Transform.LowercaseColumns = getEnvAsStringSlice("SURVEYETL_LOWERCASE_COLUMNS", c.Transform.LowercaseColumns)

	c.Sink.Driver = getEnv("SINK_DRIVER", c.Sink.Driver)
	c.Sink.Table = getEnv("SINK_TABLE", c.Sink.Table)
	c.Sink.BatchSize = getEnvAsInt("SINK_BATCH_SIZE", c.Sink.BatchSize)
	c.Sink.SQLitePath = getEnv("SQLITE_PATH", c.Sink.SQLitePath)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate ensures all required configuration is present and valid
func (c *Config) Validate() error {
	if c.Input.Path == "" && c.Input.Pattern == "" {
		return ErrMissingInput
	}
	if len([]rune(c.Input.Delimiter)) != 1 {
		return ErrInvalidDelimiter
	}
	if c.Input.SkipRows < 0 {
		return ErrInvalidSkipRows
	}
	if c.Input.PeekRows < 0 {
		return ErrInvalidPeekRows
	}

	if c.Output.Dir == "" {
		return ErrMissingOutputDir
	}
	switch c.Output.Format {
	case FormatCSV, FormatExcel, FormatAll:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidOutputFormat, c.Output.Format)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogLevel, c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidLogFormat, c.LogFormat)
	}

	if err := c.Transform.Validate(); err != nil {
		return fmt.Errorf("invalid transform rules: %w", err)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("invalid sink configuration: %w", err)
	}

	return nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsStringSlice parses a comma-separated list, honoring double quotes
func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result []string
	for _, v := range splitCommaDelimited(value) {
		if v != "" {
			result = append(result, v)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}
	return result
}

func splitCommaDelimited(s string) []string {
	result := make([]string, 0)
	var current strings.Builder
	inQuotes := false

	for _, char := range s {
		switch {
		case char == '"':
			inQuotes = !inQuotes
		case char == ',' && !inQuotes:
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		result = append(result, strings.TrimSpace(current.String()))
	}
	return result
}
