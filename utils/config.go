package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds training configuration
type Config struct {
	Architecture   []int   `yaml:"architecture"`
	TrainFile      string  `yaml:"train_file"`
	TestFile       string  `yaml:"test_file"`
	ValidationSize int     `yaml:"validation_size"`
	Epochs         int     `yaml:"epochs"`
	BatchSize      int     `yaml:"batch_size"`
	LearningRate   float64 `yaml:"learning_rate"`
	Lambda         float64 `yaml:"lambda"`
	DecayScale     string  `yaml:"decay_scale"`
	Concurrency    int     `yaml:"concurrency"`
	Seed           int64   `yaml:"seed"`
	Output         string  `yaml:"output"`
	Resume         string  `yaml:"resume"`
	OverflowPolicy string  `yaml:"overflow_policy"`
}

// DefaultConfig returns the settings used when neither a config file nor a
// flag provides a value.
func DefaultConfig() Config {
	return Config{
		Architecture:   []int{784, 30, 10},
		ValidationSize: 10000,
		Epochs:         30,
		BatchSize:      10,
		LearningRate:   0.5,
		Lambda:         1,
		DecayScale:     "training-set",
		Concurrency:    1,
		Seed:           42,
		OverflowPolicy: "clamp",
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}

// ParseArchitecture parses architecture string into slice of integers.
// Widths may be separated by spaces or commas, e.g. "784 30 10" or "784,30,10".
func ParseArchitecture(archStr string) ([]int, error) {
	archParts := strings.FieldsFunc(archStr, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	arch := make([]int, len(archParts))
	for i, s := range archParts {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		arch[i] = n
	}
	return arch, nil
}

// FormatArchitecture is the inverse of ParseArchitecture.
func FormatArchitecture(arch []int) string {
	parts := make([]string, len(arch))
	for i, n := range arch {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// ValidateConfig validates training configuration
func ValidateConfig(config *Config) error {
	if len(config.Architecture) < 2 && config.Resume == "" {
		return fmt.Errorf("architecture must have at least 2 layers (input and output)")
	}
	for _, n := range config.Architecture {
		if n <= 0 {
			return fmt.Errorf("layer widths must be positive, got %d", n)
		}
	}

	if config.TrainFile == "" {
		return fmt.Errorf("train file must be set")
	}

	if config.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	if config.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive")
	}

	if config.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive")
	}

	if config.Lambda < 0 {
		return fmt.Errorf("lambda must not be negative")
	}

	if config.ValidationSize < 0 {
		return fmt.Errorf("validation size must not be negative")
	}

	if config.DecayScale != "training-set" && config.DecayScale != "batch" {
		return fmt.Errorf("decay scale must be 'training-set' or 'batch'")
	}

	if config.OverflowPolicy != "clamp" && config.OverflowPolicy != "fail" {
		return fmt.Errorf("overflow policy must be 'clamp' or 'fail'")
	}

	return nil
}
