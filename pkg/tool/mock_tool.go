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
	"context"
	"sync"
)

// MockTool is a mock implementation of the Tool interface for testing.
// It allows tests to control all tool behavior and verify interactions.
// Thread-safe for concurrent testing.
type MockTool struct {
	mu           sync.Mutex
	MockMetadata Metadata
	MockExecute  func(ctx context.Context, params map[string]interface{}) (*Result, error)
	ExecuteCount int
	LastParams   map[string]interface{}
}

// Metadata returns the mock metadata, defaulting the name.
func (m *MockTool) Metadata() Metadata {
	meta := m.MockMetadata
	if meta.Name == "" {
		meta.Name = "mock_tool"
	}
	if meta.Description == "" {
		meta.Description = "Mock tool for testing"
	}
	return meta
}

// Execute runs the mock execution function.
func (m *MockTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	m.mu.Lock()
	m.ExecuteCount++
	m.LastParams = params
	m.mu.Unlock()

	if m.MockExecute != nil {
		return m.MockExecute(ctx, params)
	}

	// Default success result
	return &Result{
		Success: true,
		Data: []map[string]interface{}{
			{"content": "mock result", "score": 1.0},
		},
	}, nil
}

// Calls returns the number of Execute invocations observed.
func (m *MockTool) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ExecuteCount
}

// Ensure MockTool implements Tool interface
var _ Tool = (*MockTool)(nil)
