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

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quarrylabs/quarry/internal/log"
)

var (
	configPath string
	corpusPath string
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry - agentic retrieval-orchestration engine",
	Long: heredoc.Doc(`
		Quarry answers free-text queries by planning tool invocations,
		executing them through a tool registry, and synthesizing an
		answer with cited sources. An optional reflection loop re-plans
		until an answer-quality threshold is met or the iteration
		budget is exhausted.
	`),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to engine YAML config")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "path to YAML corpus for the in-memory index")

	viper.SetEnvPrefix("QUARRY")
	viper.AutomaticEnv()

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newToolsCmd())
}

func main() {
	defer func() { _ = log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
