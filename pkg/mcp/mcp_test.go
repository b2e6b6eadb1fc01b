package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/zotero"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var r mcp.CallToolRequest
	r.Params.Arguments = args
	return r
}

func TestArgHelpers(t *testing.T) {
	t.Run("argInt accepts numbers and numeric strings", func(t *testing.T) {
		r := toolRequest(map[string]any{"a": float64(7), "b": "12", "c": "nope"})
		assert.Equal(t, 7, argInt(r, "a", 1))
		assert.Equal(t, 12, argInt(r, "b", 1))
		assert.Equal(t, 1, argInt(r, "c", 1))
		assert.Equal(t, 1, argInt(r, "missing", 1))
	})

	t.Run("argBool accepts booleans and truthy strings", func(t *testing.T) {
		r := toolRequest(map[string]any{"a": true, "b": "yes", "c": "false"})
		assert.True(t, argBool(r, "a"))
		assert.True(t, argBool(r, "b"))
		assert.False(t, argBool(r, "c"))
		assert.False(t, argBool(r, "missing"))
	})

	t.Run("argStringList accepts arrays, JSON strings, and bare words", func(t *testing.T) {
		r := toolRequest(map[string]any{
			"array": []any{"one", " two "},
			"json":  `["a", "b"]`,
			"bare":  "solo",
			"bad":   `["unterminated`,
			"mixed": []any{"ok", 3.0},
		})

		list, err := argStringList(r, "array")
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, list)

		list, err = argStringList(r, "json")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, list)

		list, err = argStringList(r, "bare")
		require.NoError(t, err)
		assert.Equal(t, []string{"solo"}, list)

		list, err = argStringList(r, "missing")
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = argStringList(r, "bad")
		require.Error(t, err)
		_, err = argStringList(r, "mixed")
		require.Error(t, err)
	})

	t.Run("argStringMap accepts objects and JSON strings", func(t *testing.T) {
		r := toolRequest(map[string]any{
			"obj":  map[string]any{"item_type": "note"},
			"json": `{"item_type": "book"}`,
		})

		m, err := argStringMap(r, "obj")
		require.NoError(t, err)
		assert.Equal(t, "note", m["item_type"])

		m, err = argStringMap(r, "json")
		require.NoError(t, err)
		assert.Equal(t, "book", m["item_type"])

		m, err = argStringMap(r, "missing")
		require.NoError(t, err)
		assert.Nil(t, m)
	})
}

func TestExtractItemKey(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"zotero://select/items/ABCD1234", "ABCD1234"},
		{"zotero://select/library/items/ABCD1234", "ABCD1234"},
		{"https://api.zotero.org/users/1/items/WXYZ9876?format=json", "WXYZ9876"},
		{"ABCD1234", "ABCD1234"},
		{"please fetch item ABCD1234.", "ABCD1234"},
		{"no key here", ""},
		{"toolong123", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractItemKey(tc.input), "input %q", tc.input)
	}
}

func TestHighlightMatch(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog."

	excerpt, ok := highlightMatch(text, "FOX")
	require.True(t, ok)
	assert.Contains(t, excerpt, "**fox**")

	_, ok = highlightMatch(text, "wolf")
	assert.False(t, ok)

	t.Run("long text is trimmed with ellipses", func(t *testing.T) {
		long := ""
		for i := 0; i < 50; i++ {
			long += "padding words here "
		}
		long += "needle"
		for i := 0; i < 50; i++ {
			long += " more padding"
		}
		excerpt, ok := highlightMatch(long, "needle")
		require.True(t, ok)
		assert.Contains(t, excerpt, "**needle**")
		assert.True(t, len(excerpt) < len(long))
	})
}

func TestRenderCollectionTree(t *testing.T) {
	cols := []*zotero.Collection{
		{Key: "AAAA0001", Data: zotero.CollectionData{Name: "Zoology"}},
		{Key: "BBBB0002", Data: zotero.CollectionData{Name: "Astronomy"}},
		{Key: "CCCC0003", Data: zotero.CollectionData{Name: "Planets", ParentCollection: "BBBB0002"}},
		{Key: "DDDD0004", Data: zotero.CollectionData{Name: "Orphan", ParentCollection: "GONE0000"}},
	}
	out := renderCollectionTree(cols)

	assert.Contains(t, out, "- **Astronomy** (`BBBB0002`)\n  - **Planets** (`CCCC0003`)")
	// Orphans surface at the top level, sorted with the roots.
	assert.Contains(t, out, "- **Orphan** (`DDDD0004`)")
	assert.Less(t, strings.Index(out, "Astronomy"), strings.Index(out, "Zoology"))

	t.Run("empty library", func(t *testing.T) {
		assert.Contains(t, renderCollectionTree(nil), "No collections found")
	})
}

func TestRenderTagGroups(t *testing.T) {
	out := renderTagGroups([]string{"zebra", "apple", "Amber", "42things"})
	assert.Contains(t, out, "## A")
	assert.Contains(t, out, "## Z")
	assert.Contains(t, out, "## #")
	assert.Less(t, strings.Index(out, "Amber"), strings.Index(out, "apple"))
}

// attachmentClient serves a fixed set of children for attachment selection.
type attachmentClient struct {
	zotero.Client
	children []*zotero.Item
}

func (c *attachmentClient) Children(ctx context.Context, key string, q zotero.ItemQuery) ([]*zotero.Item, error) {
	return c.children, nil
}

func TestPrimaryAttachment(t *testing.T) {
	pdf := &zotero.Item{Key: "PDF00001", Data: zotero.ItemData{"itemType": "attachment", "contentType": "application/pdf"}}
	epub := &zotero.Item{Key: "EPUB0001", Data: zotero.ItemData{"itemType": "attachment", "contentType": "application/epub+zip"}}
	note := &zotero.Item{Key: "NOTE0001", Data: zotero.ItemData{"itemType": "note"}}
	parent := &zotero.Item{Key: "ITEM0001", Data: zotero.ItemData{"itemType": "journalArticle"}}

	t.Run("item that is an attachment wins outright", func(t *testing.T) {
		got, err := primaryAttachment(context.Background(), &attachmentClient{}, pdf)
		require.NoError(t, err)
		assert.Equal(t, pdf, got)
	})

	t.Run("pdf child preferred over other attachments", func(t *testing.T) {
		client := &attachmentClient{children: []*zotero.Item{note, epub, pdf}}
		got, err := primaryAttachment(context.Background(), client, parent)
		require.NoError(t, err)
		assert.Equal(t, pdf, got)
	})

	t.Run("non-pdf attachment as fallback", func(t *testing.T) {
		client := &attachmentClient{children: []*zotero.Item{note, epub}}
		got, err := primaryAttachment(context.Background(), client, parent)
		require.NoError(t, err)
		assert.Equal(t, epub, got)
	})

	t.Run("no attachments yields nil", func(t *testing.T) {
		client := &attachmentClient{children: []*zotero.Item{note}}
		got, err := primaryAttachment(context.Background(), client, parent)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
