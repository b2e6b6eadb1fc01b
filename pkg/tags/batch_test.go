package tags

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/zotero"
)

func TestNormalizeList(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		got, err := NormalizeList("", "add_tags")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
	t.Run("JSON array", func(t *testing.T) {
		got, err := NormalizeList(`["a", " b ", ""]`, "add_tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got)
	})
	t.Run("bare word becomes single tag", func(t *testing.T) {
		got, err := NormalizeList("reading", "add_tags")
		require.NoError(t, err)
		assert.Equal(t, []string{"reading"}, got)
	})
	t.Run("malformed array rejected", func(t *testing.T) {
		_, err := NormalizeList(`["a",`, "remove_tags")
		require.ErrorContains(t, err, "malformed JSON")
		require.ErrorContains(t, err, "remove_tags")
	})
	t.Run("non-string entries rejected", func(t *testing.T) {
		_, err := NormalizeList(`[1, 2]`, "add_tags")
		require.ErrorContains(t, err, "must all be strings")
	})
}

func TestDelta(t *testing.T) {
	next, added, removed, changed := Delta([]string{"a", "b"}, []string{"b", "c"}, []string{"a"})
	assert.True(t, changed)
	assert.Equal(t, []string{"b", "c"}, next)
	assert.Equal(t, []string{"c"}, added) // "b" already present
	assert.Equal(t, []string{"a"}, removed)

	t.Run("no-op delta", func(t *testing.T) {
		_, _, _, changed := Delta([]string{"a"}, []string{"a"}, []string{"x"})
		assert.False(t, changed)
	})
}

// tagClient fakes search results and records update outcomes.
type tagClient struct {
	zotero.Client
	items   []*zotero.Item
	failKey string
	updated []string
}

func (c *tagClient) Items(ctx context.Context, q zotero.ItemQuery) ([]*zotero.Item, error) {
	return c.items, nil
}

func (c *tagClient) UpdateItem(ctx context.Context, item *zotero.Item) error {
	if item.Key == c.failKey {
		return errors.New("write rejected")
	}
	c.updated = append(c.updated, item.Key)
	return nil
}

func taggedItem(key string, tags ...string) *zotero.Item {
	d := zotero.ItemData{"itemType": "journalArticle"}
	d.SetTags(tags)
	return &zotero.Item{Key: key, Data: d}
}

func TestUpdateValidation(t *testing.T) {
	client := &tagClient{}
	log := zerolog.Nop()

	_, err := Update(context.Background(), client, log, "", []string{"a"}, nil, 10)
	require.ErrorContains(t, err, "query cannot be empty")

	_, err = Update(context.Background(), client, log, "q", nil, nil, 10)
	require.ErrorContains(t, err, "tags to add or tags to remove")
}

func TestUpdateCountsAndDelta(t *testing.T) {
	client := &tagClient{items: []*zotero.Item{taggedItem("K1", "a", "b")}}

	result, err := Update(context.Background(), client, zerolog.Nop(), "q", []string{"b", "c"}, []string{"a"}, 10)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 1, result.AddedCounts["c"])
	assert.Equal(t, 0, result.AddedCounts["b"])
	assert.Equal(t, 1, result.RemovedCount["a"])

	require.Len(t, client.items, 1)
	assert.Equal(t, []string{"b", "c"}, client.items[0].Data.Tags())
}

func TestUpdateIsolatesFailures(t *testing.T) {
	client := &tagClient{
		items: []*zotero.Item{
			taggedItem("GOOD", "old"),
			taggedItem("BAD", "old"),
			taggedItem("ALSO", "old"),
		},
		failKey: "BAD",
	}

	result, err := Update(context.Background(), client, zerolog.Nop(), "q", []string{"new"}, nil, 10)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, []string{"GOOD", "ALSO"}, client.updated)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "BAD")
	// Counts reflect successful writes only.
	assert.Equal(t, 2, result.AddedCounts["new"])
}

func TestUpdateSkipsAttachmentsAndNoOps(t *testing.T) {
	attachment := &zotero.Item{Key: "ATT", Data: zotero.ItemData{"itemType": "attachment"}}
	unchanged := taggedItem("SAME", "keep")

	client := &tagClient{items: []*zotero.Item{attachment, unchanged}}
	result, err := Update(context.Background(), client, zerolog.Nop(), "q", []string{"keep"}, nil, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Skipped)
	assert.Empty(t, client.updated)
}
