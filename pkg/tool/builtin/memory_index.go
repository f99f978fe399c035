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
package builtin

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/sahilm/fuzzy"
)

// Document is one entry in a MemoryIndex.
type Document struct {
	Content  string
	Metadata map[string]interface{}
}

// MemoryIndex is a deterministic in-memory Index implementation used by
// tests and the CLI demo. Scoring combines exact word overlap with a
// fuzzy-match fallback so morphological variants ("learn" vs "learning")
// still count. Identical inputs always produce identical rankings.
//
// Thread-safe: documents may be added while searches run.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryIndex creates an index over the given documents.
func NewMemoryIndex(docs ...Document) *MemoryIndex {
	return &MemoryIndex{docs: docs}
}

// Add appends documents to the index.
func (idx *MemoryIndex) Add(docs ...Document) {
	idx.mu.Lock()
	idx.docs = append(idx.docs, docs...)
	idx.mu.Unlock()
}

// Len returns the number of indexed documents.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Search ranks documents against the query and returns up to topK
// matches with scores in (0, 1]. Zero-score documents are dropped.
func (idx *MemoryIndex) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	idx.mu.RLock()
	docs := idx.docs
	idx.mu.RUnlock()

	type scored struct {
		doc   Document
		score float64
	}
	results := make([]scored, 0, len(docs))
	for _, doc := range docs {
		score := scoreDocument(terms, doc.Content)
		if score <= 0 {
			continue
		}
		results = append(results, scored{doc: doc, score: score})
	}

	// Ties break on content so ranking is stable for identical inputs.
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].doc.Content < results[j].doc.Content
	})

	if len(results) > topK {
		results = results[:topK]
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, Match{
			Content:  r.doc.Content,
			Score:    r.score,
			Metadata: r.doc.Metadata,
		})
	}
	return matches, nil
}

// scoreDocument returns the fraction of query terms found in the
// document. An exact word hit counts 1.0; a fuzzy hit against the
// document's words counts 0.5.
func scoreDocument(terms []string, content string) float64 {
	words := contentWords(content)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	var hits float64
	for _, term := range terms {
		if wordSet[term] {
			hits++
			continue
		}
		if len(fuzzy.Find(term, words)) > 0 {
			hits += 0.5
		}
	}
	return hits / float64(len(terms))
}

// stopwords excluded from scoring so filler words never dominate.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "for": true,
	"how": true, "in": true, "is": true, "of": true, "on": true,
	"the": true, "to": true, "what": true, "which": true, "with": true,
}

func queryTerms(query string) []string {
	var terms []string
	for _, w := range contentWords(query) {
		if len(w) < 2 || stopwords[w] {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

func contentWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

// Ensure MemoryIndex implements Index.
var _ Index = (*MemoryIndex)(nil)
