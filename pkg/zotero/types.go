package zotero

import (
	"fmt"
	"strings"
)

// ItemData is the "data" object of a Zotero item. The API is schemaless from
// the client's point of view (field sets vary per item type), so the raw map
// is kept and typed accessors are layered on top. Search and mutation code
// needs arbitrary-field lookup, which a fixed struct cannot provide.
type ItemData map[string]any

// Item is a Zotero item as returned by the API.
type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    ItemData `json:"data"`
}

// Creator is one entry of an item's creators array. Personal creators carry
// first/last names; institutional creators carry a single composite name.
type Creator struct {
	CreatorType string `json:"creatorType,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// CollectionData is the "data" object of a Zotero collection.
type CollectionData struct {
	Key              string `json:"key,omitempty"`
	Name             string `json:"name"`
	ParentCollection any    `json:"parentCollection,omitempty"` // key string, or false for top level
}

// Collection is a Zotero collection as returned by the API.
type Collection struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Data    CollectionData `json:"data"`
}

// Group describes a group library accessible to the current API key.
type Group struct {
	ID   int64 `json:"id"`
	Data struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"data"`
}

// WriteResult summarizes a batched create call. Zotero reports per-index
// outcomes so one bad payload does not void the rest of the batch.
type WriteResult struct {
	Success map[string]string       `json:"success"` // index -> created key
	Failed  map[string]WriteFailure `json:"failed"`
}

// WriteFailure is a per-index create failure.
type WriteFailure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FirstKey returns the key of the first successfully created object, if any.
func (r *WriteResult) FirstKey() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, key := range r.Success {
		return key, true
	}
	return "", false
}

// FailureSummary renders the failed entries for user-facing error text.
func (r *WriteResult) FailureSummary() string {
	if r == nil || len(r.Failed) == 0 {
		return "unknown error"
	}
	parts := make([]string, 0, len(r.Failed))
	for idx, f := range r.Failed {
		parts = append(parts, fmt.Sprintf("%s: %s", idx, f.Message))
	}
	return strings.Join(parts, "; ")
}

// Str returns a field as a trimmed string. Non-string scalars are rendered
// with fmt; missing fields and nulls yield "".
func (d ItemData) Str(field string) string {
	v, ok := d[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}

// ItemType returns the item's type ("journalArticle", "attachment", ...).
func (d ItemData) ItemType() string { return d.Str("itemType") }

// Title returns the item title, or "Untitled" when absent.
func (d ItemData) Title() string {
	if t := d.Str("title"); t != "" {
		return t
	}
	return "Untitled"
}

// Creators decodes the creators array. Entries that are not objects are
// skipped rather than treated as errors.
func (d ItemData) Creators() []Creator {
	raw, ok := d["creators"].([]any)
	if !ok {
		return nil
	}
	creators := make([]Creator, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		creators = append(creators, Creator{
			CreatorType: asString(m["creatorType"]),
			FirstName:   asString(m["firstName"]),
			LastName:    asString(m["lastName"]),
			Name:        asString(m["name"]),
		})
	}
	return creators
}

// Tags returns the item's tag labels in declaration order.
func (d ItemData) Tags() []string {
	raw, ok := d["tags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if tag := strings.TrimSpace(asString(m["tag"])); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// SetTags replaces the item's tag list, preserving the wire shape
// ([{"tag": ...}, ...]).
func (d ItemData) SetTags(tags []string) {
	out := make([]any, 0, len(tags))
	for _, tag := range tags {
		out = append(out, map[string]any{"tag": tag})
	}
	d["tags"] = out
}

// Collections returns the collection keys the item belongs to.
func (d ItemData) Collections() []string {
	raw, ok := d["collections"].([]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for _, entry := range raw {
		if k := asString(entry); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// SetCollections replaces the item's collection membership list.
func (d ItemData) SetCollections(keys []string) {
	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, k)
	}
	d["collections"] = out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
