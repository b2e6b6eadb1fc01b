package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/zotero"
)

func sampleItem() *zotero.Item {
	return &zotero.Item{
		Key:     "ABCD1234",
		Version: 7,
		Data: zotero.ItemData{
			"itemType":         "journalArticle",
			"title":            "Attention Is All You Need",
			"date":             "2017-06-12",
			"publicationTitle": "NeurIPS",
			"DOI":              "10.5555/3295222",
			"abstractNote":     "We propose the Transformer.",
			"creators": []any{
				map[string]any{"creatorType": "author", "firstName": "Ashish", "lastName": "Vaswani"},
				map[string]any{"creatorType": "author", "name": "Google Brain"},
			},
			"tags": []any{map[string]any{"tag": "attention"}},
		},
	}
}

func TestCreators(t *testing.T) {
	item := sampleItem()
	assert.Equal(t, "Ashish Vaswani, Google Brain", Creators(item.Data.Creators()))
	assert.Equal(t, "No authors", Creators(nil))
}

func TestCleanHTML(t *testing.T) {
	raw := `<h1>Notes</h1><p>First &amp; foremost.</p><p>Line one<br/>line two</p>`
	got := CleanHTML(raw)
	require.Contains(t, got, "Notes")
	require.Contains(t, got, "First & foremost.")
	require.Contains(t, got, "Line one\nline two")
	assert.NotContains(t, got, "<p>")

	assert.Equal(t, "", CleanHTML(""))
	assert.Equal(t, "plain text", CleanHTML("plain text"))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 10))
	assert.Equal(t, "lon...", Snippet("long enough", 3))
}

func TestItemMetadata(t *testing.T) {
	got := ItemMetadata(sampleItem(), true)
	require.Contains(t, got, "# Attention Is All You Need")
	require.Contains(t, got, "**Item Key:** ABCD1234")
	require.Contains(t, got, "**Authors:** Ashish Vaswani, Google Brain")
	require.Contains(t, got, "**DOI:** 10.5555/3295222")
	require.Contains(t, got, "`attention`")
	require.Contains(t, got, "## Abstract")

	withoutAbstract := ItemMetadata(sampleItem(), false)
	assert.NotContains(t, withoutAbstract, "## Abstract")
}

func TestBibTeX(t *testing.T) {
	got := BibTeX(sampleItem())
	require.True(t, strings.HasPrefix(got, "@article{vaswani2017,"), got)
	require.Contains(t, got, "author = {Vaswani, Ashish and {Google Brain}}")
	require.Contains(t, got, "year = {2017}")
	require.Contains(t, got, "journal = {NeurIPS}")

	t.Run("unknown type falls back to misc", func(t *testing.T) {
		item := &zotero.Item{Key: "XK", Data: zotero.ItemData{"itemType": "artwork", "title": "Untyped"}}
		assert.True(t, strings.HasPrefix(BibTeX(item), "@misc{xk,"))
	})
}

func TestNoteHTML(t *testing.T) {
	t.Run("plain text gets paragraphs and breaks", func(t *testing.T) {
		got := NoteHTML("", "first\nsecond\n\nthird")
		assert.Equal(t, "<p>first<br/>second</p><p>third</p>", got)
	})
	t.Run("existing markup kept verbatim", func(t *testing.T) {
		got := NoteHTML("", "<p>already html</p>")
		assert.Equal(t, "<p>already html</p>", got)
	})
	t.Run("title becomes escaped heading", func(t *testing.T) {
		got := NoteHTML("A < B", "body")
		assert.Equal(t, "<h1>A &lt; B</h1><p>body</p>", got)
	})
}
