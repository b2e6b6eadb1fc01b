// Package tags implements batch tag maintenance across search results.
package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// NormalizeList parses a tag-list argument, which may arrive as a JSON array
// string, and returns the trimmed non-empty entries. An empty input yields
// an empty list; malformed JSON and non-string entries are errors.
func NormalizeList(raw, fieldName string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var parsed []any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		// A bare word is accepted as a single tag for convenience; anything
		// that looks like a failed array is rejected.
		if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
			return nil, fmt.Errorf("%s appears to be malformed JSON: %s", fieldName, raw)
		}
		parsed = []any{raw}
	}

	normalized := make([]string, 0, len(parsed))
	for _, entry := range parsed {
		s, ok := entry.(string)
		if !ok {
			return nil, fmt.Errorf("%s entries must all be strings", fieldName)
		}
		if s = strings.TrimSpace(s); s != "" {
			normalized = append(normalized, s)
		}
	}
	return normalized, nil
}

// Result summarizes one batch update run.
type Result struct {
	Processed    int
	Updated      int
	Skipped      int
	AddedCounts  map[string]int // tag -> items it was added to
	RemovedCount map[string]int // tag -> items it was removed from
	Failures     []string       // per-item failure descriptions
}

// Delta computes the tag list an item should end up with. Removals are
// applied first, then additions not already present. The returned counts
// record how many changes the delta implies; changed is false when the item
// already has the desired state.
func Delta(current, addTags, removeTags []string) (next []string, added, removed []string, changed bool) {
	removeSet := map[string]bool{}
	for _, t := range removeTags {
		removeSet[t] = true
	}
	currentSet := map[string]bool{}
	for _, t := range current {
		currentSet[t] = true
	}

	for _, t := range current {
		if removeSet[t] {
			removed = append(removed, t)
			changed = true
			continue
		}
		next = append(next, t)
	}
	for _, t := range addTags {
		if !currentSet[t] {
			next = append(next, t)
			added = append(added, t)
			changed = true
		}
	}
	return next, added, removed, changed
}

// Update applies the tag delta to every item matching the query. Item
// failures are isolated: a failed write is recorded and the run continues.
func Update(ctx context.Context, client zotero.Client, log zerolog.Logger, query string, addTags, removeTags []string, limit int) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if len(addTags) == 0 && len(removeTags) == 0 {
		return nil, fmt.Errorf("you must specify either tags to add or tags to remove")
	}
	if limit <= 0 {
		limit = 50
	}

	items, err := client.Items(ctx, zotero.ItemQuery{Q: query, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("searching items for %q: %w", query, err)
	}

	result := &Result{
		Processed:    len(items),
		AddedCounts:  map[string]int{},
		RemovedCount: map[string]int{},
	}
	for _, t := range addTags {
		result.AddedCounts[t] = 0
	}
	for _, t := range removeTags {
		result.RemovedCount[t] = 0
	}

	for _, item := range items {
		if item.Data.ItemType() == "attachment" {
			result.Skipped++
			continue
		}

		next, added, removed, changed := Delta(item.Data.Tags(), addTags, removeTags)
		if !changed {
			result.Skipped++
			continue
		}

		item.Data.SetTags(next)
		if err := client.UpdateItem(ctx, item); err != nil {
			log.Error().Str("key", item.Key).Err(err).Msg("tag update failed, continuing with remaining items")
			result.Skipped++
			result.Failures = append(result.Failures, fmt.Sprintf("%s: %v", item.Key, err))
			continue
		}

		result.Updated++
		for _, t := range added {
			result.AddedCounts[t]++
		}
		for _, t := range removed {
			result.RemovedCount[t]++
		}
	}
	return result, nil
}
