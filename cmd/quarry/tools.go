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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/pkg/engine"
)

func newToolsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List registered tools and their parameter schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := buildRegistry(engine.DefaultConfig())
			if err != nil {
				return err
			}

			schemas := registry.Schemas()
			if asJSON {
				raw, err := json.MarshalIndent(schemas, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(raw))
				return nil
			}

			for _, schema := range schemas {
				fmt.Printf("%s (v%s)\n  %s\n", schema.Name, schema.Version, schema.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print schemas as JSON")
	return cmd
}
