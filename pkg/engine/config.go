// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default engine configuration.
const (
	DefaultMaxIterations    = 3
	DefaultQualityThreshold = 0.7
	DefaultTopK             = 10
)

// Config holds engine configuration.
type Config struct {
	// MaxIterations bounds the reflection loop. Default 3.
	MaxIterations int `yaml:"max_iterations"`

	// QualityThreshold is the answer-quality bar in [0, 1] below which
	// another iteration is attempted. Default 0.7.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// EnableReflection turns the self-evaluation loop on. Default true.
	EnableReflection bool `yaml:"enable_reflection"`

	// EnableCompression controls history payload compression in the
	// registry. Default true.
	EnableCompression bool `yaml:"enable_compression"`

	// TopK is the retrieval result count handed to the planner.
	// Default 10.
	TopK int `yaml:"top_k"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxIterations:     DefaultMaxIterations,
		QualityThreshold:  DefaultQualityThreshold,
		EnableReflection:  true,
		EnableCompression: true,
		TopK:              DefaultTopK,
	}
}

// configYAML uses pointer fields so absent keys fall back to defaults
// instead of zero values.
type configYAML struct {
	MaxIterations     *int     `yaml:"max_iterations"`
	QualityThreshold  *float64 `yaml:"quality_threshold"`
	EnableReflection  *bool    `yaml:"enable_reflection"`
	EnableCompression *bool    `yaml:"enable_compression"`
	TopK              *int     `yaml:"top_k"`
}

// LoadConfig reads engine configuration from a YAML file. Missing keys
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var parsed configYAML
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	if parsed.MaxIterations != nil {
		cfg.MaxIterations = *parsed.MaxIterations
	}
	if parsed.QualityThreshold != nil {
		cfg.QualityThreshold = *parsed.QualityThreshold
	}
	if parsed.EnableReflection != nil {
		cfg.EnableReflection = *parsed.EnableReflection
	}
	if parsed.EnableCompression != nil {
		cfg.EnableCompression = *parsed.EnableCompression
	}
	if parsed.TopK != nil {
		cfg.TopK = *parsed.TopK
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be >= 1, got %d", c.MaxIterations)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold must be in [0, 1], got %g", c.QualityThreshold)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be >= 1, got %d", c.TopK)
	}
	return nil
}
