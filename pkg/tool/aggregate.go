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
	"errors"
	"fmt"
	"sort"
)

// Aggregation strategy names accepted by AggregateResults.
const (
	StrategyConcatenate = "concatenate"
	StrategyMerge       = "merge"
	StrategyRank        = "rank"
)

// ErrUnknownStrategy is returned when AggregateResults is called with an
// unrecognized strategy name. It never silently degrades to a default.
var ErrUnknownStrategy = errors.New("unknown aggregation strategy")

// AggregateResults combines multiple tool results into one structure
// using a named strategy:
//
//   - "concatenate" flattens each result's item list into one ordered list.
//   - "merge" unions map keys across result payloads, concatenating
//     list-valued fields.
//   - "rank" is concatenate followed by score-descending sort and
//     duplicate-content removal, reporting the pre-dedup count.
//
// Failed results are skipped by every strategy.
func (r *Registry) AggregateResults(results []*Result, strategy string) (map[string]interface{}, error) {
	switch strategy {
	case StrategyConcatenate:
		return aggregateConcatenate(results), nil
	case StrategyMerge:
		return aggregateMerge(results), nil
	case StrategyRank:
		return aggregateRank(results), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}

func aggregateConcatenate(results []*Result) map[string]interface{} {
	items := collectItems(results)
	return map[string]interface{}{
		"strategy": StrategyConcatenate,
		"items":    items,
		"count":    len(items),
	}
}

func aggregateMerge(results []*Result) map[string]interface{} {
	merged := make(map[string]interface{})
	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		data, ok := result.Data.(map[string]interface{})
		if !ok {
			// Item lists merge under a shared "items" key.
			if items := result.Items(); items != nil {
				data = map[string]interface{}{"items": toInterfaceSlice(items)}
			} else {
				continue
			}
		}
		for key, value := range data {
			existing, seen := merged[key]
			if !seen {
				merged[key] = value
				continue
			}
			existingList, existingIsList := existing.([]interface{})
			valueList, valueIsList := value.([]interface{})
			switch {
			// Always copy before extending: the existing slice aliases a
			// result's Data, and appending in place would write into its
			// spare capacity and mutate the caller's payload.
			case existingIsList && valueIsList:
				merged[key] = concatLists(existingList, valueList)
			case existingIsList:
				merged[key] = concatLists(existingList, []interface{}{value})
			default:
				// Later scalar values win, matching map overlay semantics.
				merged[key] = value
			}
		}
	}
	return map[string]interface{}{
		"strategy": StrategyMerge,
		"merged":   merged,
	}
}

func aggregateRank(results []*Result) map[string]interface{} {
	items := collectItems(results)
	totalBeforeDedup := len(items)

	// Stable sort keeps call order for equal scores.
	sort.SliceStable(items, func(i, j int) bool {
		return itemScore(items[i]) > itemScore(items[j])
	})

	seen := make(map[string]bool, len(items))
	deduped := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		key := itemContent(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, item)
	}

	return map[string]interface{}{
		"strategy":           StrategyRank,
		"items":              deduped,
		"count":              len(deduped),
		"total_before_dedup": totalBeforeDedup,
	}
}

func collectItems(results []*Result) []map[string]interface{} {
	var items []map[string]interface{}
	for _, result := range results {
		if result == nil || !result.Success {
			continue
		}
		items = append(items, result.Items()...)
	}
	if items == nil {
		items = []map[string]interface{}{}
	}
	return items
}

func itemScore(item map[string]interface{}) float64 {
	switch v := item["score"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func itemContent(item map[string]interface{}) string {
	if content, ok := item["content"].(string); ok {
		return content
	}
	return fmt.Sprintf("%v", item)
}

func concatLists(a, b []interface{}) []interface{} {
	out := make([]interface{}, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func toInterfaceSlice(items []map[string]interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
