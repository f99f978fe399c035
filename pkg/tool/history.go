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
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// compressionThreshold is the minimum serialized payload size in bytes
// before a history entry's data is stored compressed.
const compressionThreshold = 4 * 1024

// HistoryEntry is one record in the registry's append-only execution log.
type HistoryEntry struct {
	// ID uniquely identifies this entry.
	ID string

	// ToolName is the tool that was invoked.
	ToolName string

	// Success mirrors the result's success flag.
	Success bool

	// Error is the result's error message, empty on success.
	Error string

	// ExecutionTimeMs is the invocation's wall-clock time.
	ExecutionTimeMs float64

	// Timestamp is when the entry was appended.
	Timestamp time.Time

	// Data is the result payload. Large payloads are stored compressed
	// internally and decompressed transparently on read.
	Data interface{}
}

// storedEntry is the internal representation. Exactly one of data or
// compressed is populated.
type storedEntry struct {
	HistoryEntry
	compressed []byte
}

// historyLog is the append-only execution log. Appends happen under a
// single writer lock so concurrent multi-invocations never lose entries;
// reads take the shared lock and do not block each other.
type historyLog struct {
	mu       sync.RWMutex
	entries  []storedEntry
	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

func newHistoryLog(compress bool) *historyLog {
	h := &historyLog{compress: compress}
	if compress {
		// Writer/Reader with nil destinations are reusable and thread-safe
		// in EncodeAll/DecodeAll mode.
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			h.compress = false
			return h
		}
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			encoder.Close()
			h.compress = false
			return h
		}
		h.encoder = encoder
		h.decoder = decoder
	}
	return h
}

// append records one invocation outcome.
func (h *historyLog) append(result *Result) {
	entry := storedEntry{
		HistoryEntry: HistoryEntry{
			ID:              uuid.New().String(),
			ToolName:        result.ToolName,
			Success:         result.Success,
			Error:           result.Error.String(),
			ExecutionTimeMs: result.ExecutionTimeMs,
			Timestamp:       time.Now(),
			Data:            result.Data,
		},
	}

	if h.compress && result.Data != nil {
		if raw, err := json.Marshal(result.Data); err == nil && len(raw) >= compressionThreshold {
			entry.compressed = h.encoder.EncodeAll(raw, nil)
			entry.Data = nil
		}
	}

	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.mu.Unlock()
}

// list returns entries, optionally filtered by tool name. Compressed
// payloads are decoded into generic JSON values.
func (h *historyLog) list(toolName string) []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]HistoryEntry, 0, len(h.entries))
	for _, stored := range h.entries {
		if toolName != "" && stored.ToolName != toolName {
			continue
		}
		entry := stored.HistoryEntry
		if stored.compressed != nil && h.decoder != nil {
			if raw, err := h.decoder.DecodeAll(stored.compressed, nil); err == nil {
				var data interface{}
				if json.Unmarshal(raw, &data) == nil {
					entry.Data = data
				}
			}
		}
		out = append(out, entry)
	}
	return out
}

// clear drops all entries.
func (h *historyLog) clear() {
	h.mu.Lock()
	h.entries = nil
	h.mu.Unlock()
}
