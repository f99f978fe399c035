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
// Package reflection scores draft answers and decides whether another
// orchestration pass is warranted.
package reflection

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/synthesis"
)

// Default evaluator configuration.
const (
	DefaultQualityThreshold = 0.7
	DefaultMaxIterations    = 3
)

// Config bounds the evaluator independently of the engine configuration,
// so a misconfigured engine cannot alone cause an unbounded loop.
type Config struct {
	QualityThreshold float64
	MaxIterations    int
}

func (c Config) withDefaults() Config {
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = DefaultQualityThreshold
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	return c
}

// Quality is a deterministic answer-quality score in [0, 1] with a
// per-heuristic component breakdown.
type Quality struct {
	Overall    float64            `json:"overall"`
	Components map[string]float64 `json:"components,omitempty"`
}

// Evaluator scores draft answers. Deterministic: identical inputs
// always produce identical scores, and the score is monotonic in source
// count and mean source relevance.
type Evaluator struct {
	cfg    Config
	logger *zap.Logger
}

// NewEvaluator creates an evaluator. A nil logger falls back to no-op.
func NewEvaluator(cfg Config, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{cfg: cfg.withDefaults(), logger: logger}
}

// Component weights. Coverage and relevance dominate; directness and
// specificity refine.
const (
	weightCoverage    = 0.35
	weightRelevance   = 0.35
	weightDirectness  = 0.15
	weightSpecificity = 0.15

	// coverageSaturation is the source count at which coverage maxes out.
	coverageSaturation = 5.0

	// defaultSourceScore stands in for sources that report no score.
	defaultSourceScore = 0.5
)

// Evaluate scores a draft answer against the query and its sources.
func (e *Evaluator) Evaluate(query, answer string, sources []synthesis.Source) Quality {
	coverage := minFloat(float64(len(sources))/coverageSaturation, 1.0)

	relevance := 0.0
	if len(sources) > 0 {
		var total float64
		for _, source := range sources {
			if source.Score != nil {
				total += clamp01(*source.Score)
			} else {
				total += defaultSourceScore
			}
		}
		relevance = total / float64(len(sources))
	}

	directness := directnessScore(query, answer, sources)
	specificity := specificityScore(query, answer)

	overall := clamp01(weightCoverage*coverage +
		weightRelevance*relevance +
		weightDirectness*directness +
		weightSpecificity*specificity)

	e.logger.Debug("evaluated answer quality",
		zap.Float64("overall", overall),
		zap.Int("sources", len(sources)))

	return Quality{
		Overall: overall,
		Components: map[string]float64{
			"coverage":    coverage,
			"relevance":   relevance,
			"directness":  directness,
			"specificity": specificity,
		},
	}
}

// ShouldIterate reports whether another pass is warranted. It enforces
// the evaluator's own threshold and iteration budget as a secondary
// guard: once this budget is spent, it refuses regardless of how the
// engine is configured.
func (e *Evaluator) ShouldIterate(q Quality, iteration int) bool {
	if iteration >= e.cfg.MaxIterations {
		return false
	}
	return q.Overall < e.cfg.QualityThreshold
}

// directnessScore rewards answers that directly address the query's
// shape: a numeric answer for a calculation query, or a non-fallback
// answer backed by at least one source otherwise.
func directnessScore(query, answer string, sources []synthesis.Source) float64 {
	if answer == synthesis.FallbackNoResults || answer == synthesis.FallbackNoRelevant {
		return 0
	}
	if isCalculationQuery(query) {
		if containsDigit(answer) {
			return 1.0
		}
		return 0.2
	}
	if len(sources) > 0 {
		return 0.8
	}
	return 0.4
}

// specificityScore compares answer length to query complexity. Short
// answers to complex queries score low; the score saturates so verbose
// answers gain nothing past the target length.
func specificityScore(query, answer string) float64 {
	queryWords := len(strings.Fields(query))
	answerWords := len(strings.Fields(answer))
	if answerWords == 0 {
		return 0
	}
	target := float64(queryWords * 3)
	if target < 10 {
		target = 10
	}
	return minFloat(float64(answerWords)/target, 1.0)
}

func isCalculationQuery(query string) bool {
	lowered := strings.ToLower(query)
	return strings.Contains(lowered, "calculate") ||
		strings.Contains(lowered, "compute") ||
		strings.Contains(lowered, "evaluate")
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
