// Package search implements client-side advanced search over library items.
// The Zotero APIs cannot evaluate multi-condition boolean queries
// server-side, so items are scanned page by page and matched locally.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/zotero"
)

const (
	// pageSize is the scan batch size against the backend.
	pageSize = 100

	// DefaultMaxLimit caps requested result counts unless overridden.
	DefaultMaxLimit = 500
)

// Operations supported by conditions.
var validOperations = map[string]bool{
	"is":             true,
	"isNot":          true,
	"contains":       true,
	"doesNotContain": true,
	"beginsWith":     true,
	"endsWith":       true,
	"isGreaterThan":  true,
	"isLessThan":     true,
	"isBefore":       true,
	"isAfter":        true,
}

// Condition is one field/operation/value triple.
type Condition struct {
	Field     string `json:"field"`
	Operation string `json:"operation"`
	Value     string `json:"value"`
}

// Options controls a search run.
type Options struct {
	JoinMode      string // "all" or "any"
	SortBy        string
	SortDirection string // "asc" or "desc"
	Limit         int
	MaxLimit      int // 0 means DefaultMaxLimit
}

// ParseConditions decodes a JSON array of condition objects and validates
// each entry. Errors identify the offending condition by 1-based position.
func ParseConditions(raw string) ([]Condition, error) {
	var conds []Condition
	if err := json.Unmarshal([]byte(raw), &conds); err != nil {
		return nil, fmt.Errorf("conditions must be valid JSON: %w", err)
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("no search conditions provided")
	}
	for i := range conds {
		conds[i].Field = strings.TrimSpace(conds[i].Field)
		conds[i].Operation = strings.TrimSpace(conds[i].Operation)
		conds[i].Value = strings.TrimSpace(conds[i].Value)
		if conds[i].Field == "" {
			return nil, fmt.Errorf("condition %d has an empty field", i+1)
		}
		if !validOperations[conds[i].Operation] {
			return nil, fmt.Errorf("unsupported operation %q in condition %d (supported: %s)",
				conds[i].Operation, i+1, strings.Join(sortedOperations(), ", "))
		}
	}
	return conds, nil
}

func sortedOperations() []string {
	ops := make([]string, 0, len(validOperations))
	for op := range validOperations {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// fieldAliases maps lowercased user field names onto wire field names.
var fieldAliases = map[string]string{
	"itemtype":     "itemType",
	"dateadded":    "dateAdded",
	"datemodified": "dateModified",
	"doi":          "DOI",
}

// extractValues pulls the comparable values of a field from an item.
// Multi-valued fields (creators, tags) yield one entry per value.
func extractValues(d zotero.ItemData, field string) []string {
	switch strings.ToLower(field) {
	case "author", "authors", "creator", "creators":
		var values []string
		for _, c := range d.Creators() {
			full := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
			if full != "" {
				values = append(values, full)
			}
			if name := strings.TrimSpace(c.Name); name != "" {
				values = append(values, name)
			}
		}
		return values
	case "tag", "tags":
		return d.Tags()
	case "year":
		date := d.Str("date")
		if len(date) >= 4 {
			return []string{date[:4]}
		}
		return nil
	}

	source := field
	if alias, ok := fieldAliases[strings.ToLower(field)]; ok {
		source = alias
	}
	// A missing or empty field yields no values, so the condition cannot
	// match this item regardless of operation.
	if v := d.Str(source); v != "" {
		return []string{v}
	}
	return nil
}

// compare evaluates one operation between a candidate value and the target.
// Comparisons are case-insensitive; ordering operations compare numerically
// when both sides parse as numbers, lexically otherwise.
func compare(candidate, target, operation string) bool {
	left := strings.ToLower(candidate)
	right := strings.ToLower(target)

	switch operation {
	case "is":
		return left == right
	case "isNot":
		return left != right
	case "contains":
		return strings.Contains(left, right)
	case "doesNotContain":
		return !strings.Contains(left, right)
	case "beginsWith":
		return strings.HasPrefix(left, right)
	case "endsWith":
		return strings.HasSuffix(left, right)
	}

	leftNum, leftErr := strconv.ParseFloat(left, 64)
	rightNum, rightErr := strconv.ParseFloat(right, 64)
	greater := operation == "isGreaterThan" || operation == "isAfter"
	if leftErr == nil && rightErr == nil {
		if greater {
			return leftNum > rightNum
		}
		return leftNum < rightNum
	}
	if greater {
		return left > right
	}
	return left < right
}

// Matches reports whether an item satisfies one condition. A field with no
// values never matches. Negative operations must hold for every value of a
// multi-valued field; positive operations need only one.
func Matches(d zotero.ItemData, cond Condition) bool {
	values := extractValues(d, cond.Field)
	if len(values) == 0 {
		return false
	}
	negative := cond.Operation == "isNot" || cond.Operation == "doesNotContain"
	for _, v := range values {
		ok := compare(v, cond.Value, cond.Operation)
		if negative && !ok {
			return false
		}
		if !negative && ok {
			return true
		}
	}
	return negative
}

// MatchesAll combines conditions under the join mode.
func MatchesAll(d zotero.ItemData, conds []Condition, joinMode string) bool {
	if joinMode == "any" {
		for _, c := range conds {
			if Matches(d, c) {
				return true
			}
		}
		return false
	}
	for _, c := range conds {
		if !Matches(d, c) {
			return false
		}
	}
	return true
}

// skippedTypes are container children excluded from advanced search results.
var skippedTypes = map[string]bool{"attachment": true, "note": true, "annotation": true}

// Run scans the whole library in pages and returns the matching items,
// sorted and truncated per the options.
func Run(ctx context.Context, client zotero.Client, conds []Condition, opts Options) ([]*zotero.Item, error) {
	if opts.JoinMode == "" {
		opts.JoinMode = "all"
	}
	if opts.JoinMode != "all" && opts.JoinMode != "any" {
		return nil, fmt.Errorf("join_mode must be either 'all' or 'any'")
	}
	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	if opts.Limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}
	if opts.Limit > maxLimit {
		opts.Limit = maxLimit
	}

	var results []*zotero.Item
	for start := 0; ; start += pageSize {
		batch, err := client.Items(ctx, zotero.ItemQuery{Start: start, Limit: pageSize})
		if err != nil {
			return nil, fmt.Errorf("scanning items at offset %d: %w", start, err)
		}
		if len(batch) == 0 {
			break
		}
		for _, item := range batch {
			if skippedTypes[item.Data.ItemType()] {
				continue
			}
			if MatchesAll(item.Data, conds, opts.JoinMode) {
				results = append(results, item)
			}
		}
		if len(batch) < pageSize {
			break
		}
	}

	if opts.SortBy != "" {
		sortResults(results, opts.SortBy, opts.SortDirection == "desc")
	}
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

func sortResults(items []*zotero.Item, field string, descending bool) {
	field = strings.TrimSpace(field)
	key := func(it *zotero.Item) string {
		if field == "creator" || field == "author" {
			return format.Creators(it.Data.Creators())
		}
		return strings.ToLower(it.Data.Str(field))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return key(items[i]) > key(items[j])
		}
		return key(items[i]) < key(items[j])
	})
}
