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
package tool

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// validateParams checks the invocation parameters against the tool's
// declared parameter schema. A nil schema accepts anything.
func validateParams(schema *JSONSchema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	raw, err := schema.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize parameter schema: %w", err)
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(raw),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}
	return fmt.Errorf("invalid parameters: %s", strings.Join(issues, "; "))
}
