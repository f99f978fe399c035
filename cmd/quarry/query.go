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
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quarrylabs/quarry/internal/log"
	"github.com/quarrylabs/quarry/pkg/engine"
	"github.com/quarrylabs/quarry/pkg/tool"
	"github.com/quarrylabs/quarry/pkg/tool/builtin"
)

func newQueryCmd() *cobra.Command {
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "query [text]",
		Short: "Answer a free-text query",
		Long: heredoc.Doc(`
			Plan, execute, and synthesize an answer for the given query.
			Sources and the execution trace are printed alongside the
			answer.
		`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := engine.DefaultConfig()
			if configPath != "" {
				loaded, err := engine.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			registry, err := buildRegistry(cfg)
			if err != nil {
				return err
			}

			eng := engine.New(registry,
				engine.WithConfig(cfg),
				engine.WithLogger(log.Logger()))

			response, err := eng.Query(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			fmt.Println(response.Answer)
			fmt.Println()
			fmt.Printf("Confidence: %.2f", response.Confidence.Overall)
			if response.Quality != nil {
				fmt.Printf("  Quality: %.2f", *response.Quality)
			}
			fmt.Println()

			if len(response.Sources) > 0 {
				fmt.Println("\nSources:")
				for _, source := range response.Sources {
					if source.Score != nil {
						fmt.Printf("  [%s] (%.2f) %s\n", source.Tool, *source.Score, source.Content)
					} else {
						fmt.Printf("  [%s] %s\n", source.Tool, source.Content)
					}
				}
			}

			if showTrace {
				fmt.Printf("\nTrace (%d iteration(s), %.1fms):\n",
					response.Trace.IterationsUsed, response.Trace.TotalDurationMs)
				for _, step := range response.Trace.Steps {
					fmt.Printf("  %d. [%s] %s -> %s\n",
						step.StepNumber, step.ToolName, step.Description, step.Status)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the execution trace")
	return cmd
}

// buildRegistry wires the builtin tools over an index seeded from the
// optional corpus file.
func buildRegistry(cfg engine.Config) (*tool.Registry, error) {
	registry := tool.NewRegistry(
		tool.WithLogger(log.Logger()),
		tool.WithHistoryCompression(cfg.EnableCompression))

	index := builtin.NewMemoryIndex()
	if corpusPath != "" {
		docs, err := loadCorpus(corpusPath)
		if err != nil {
			return nil, err
		}
		index.Add(docs...)
	}

	for _, t := range []tool.Tool{
		builtin.NewRetrievalTool(index, cfg.TopK),
		builtin.NewWebSearchTool(),
		builtin.NewCalculatorTool(),
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// loadCorpus reads documents for the in-memory index from a YAML file
// shaped as a list of {content, metadata} entries.
func loadCorpus(path string) ([]builtin.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus file: %w", err)
	}

	var entries []struct {
		Content  string                 `yaml:"content"`
		Metadata map[string]interface{} `yaml:"metadata"`
	}
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse corpus file: %w", err)
	}

	docs := make([]builtin.Document, 0, len(entries))
	for _, entry := range entries {
		if entry.Content == "" {
			continue
		}
		docs = append(docs, builtin.Document{Content: entry.Content, Metadata: entry.Metadata})
	}
	return docs, nil
}
