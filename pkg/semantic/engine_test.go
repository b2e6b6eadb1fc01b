package semantic

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// keywordEmbedder produces deterministic vectors: one axis per keyword.
type keywordEmbedder struct {
	keywords []string
	calls    int
}

func (e *keywordEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.keywords))
		lower := strings.ToLower(text)
		for j, kw := range e.keywords {
			if strings.Contains(lower, kw) {
				vec[j] = 1
			}
		}
		out[i] = vec
	}
	return out, nil
}

// itemsClient pages a fixed item list.
type itemsClient struct {
	zotero.Client
	all []*zotero.Item
}

func (c *itemsClient) Items(ctx context.Context, q zotero.ItemQuery) ([]*zotero.Item, error) {
	if q.Start >= len(c.all) {
		return nil, nil
	}
	end := q.Start + q.Limit
	if end > len(c.all) {
		end = len(c.all)
	}
	return c.all[q.Start:end], nil
}

func newTestEngine(t *testing.T) (*Engine, *keywordEmbedder) {
	t.Helper()
	store, err := OpenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	embedder := &keywordEmbedder{keywords: []string{"transformer", "protein", "graph"}}
	engine := NewEngineWith(DefaultConfig(t.TempDir()), store, embedder, zerolog.Nop())
	return engine, embedder
}

func libraryItem(key string, version int, title string) *zotero.Item {
	return &zotero.Item{
		Key:     key,
		Version: version,
		Data:    zotero.ItemData{"itemType": "journalArticle", "title": title},
	}
}

func TestUpdateAndSearch(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := &itemsClient{all: []*zotero.Item{
		libraryItem("T1", 1, "Transformer architectures"),
		libraryItem("P1", 1, "Protein folding"),
		{Key: "ATT", Version: 1, Data: zotero.ItemData{"itemType": "attachment", "title": "file.pdf"}},
	}}

	stats, err := engine.UpdateDatabase(context.Background(), client, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalItems)
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Errors)

	results, err := engine.Search(context.Background(), "transformer models", 5, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "T1", results[0].ItemKey)
	assert.Greater(t, results[0].Score, 0.9)
}

func TestUpdateSkipsUnchangedVersions(t *testing.T) {
	engine, embedder := newTestEngine(t)
	client := &itemsClient{all: []*zotero.Item{libraryItem("T1", 3, "Transformer architectures")}}

	_, err := engine.UpdateDatabase(context.Background(), client, false, 0)
	require.NoError(t, err)
	embedCallsAfterFirst := embedder.calls

	stats, err := engine.UpdateDatabase(context.Background(), client, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Added+stats.Updated)
	assert.Equal(t, embedCallsAfterFirst, embedder.calls, "unchanged item must not be re-embedded")

	t.Run("bumped version is re-indexed as update", func(t *testing.T) {
		client.all[0].Version = 4
		stats, err := engine.UpdateDatabase(context.Background(), client, false, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Updated)
	})
}

func TestSearchFilters(t *testing.T) {
	engine, _ := newTestEngine(t)
	note := &zotero.Item{Key: "N1", Version: 1, Data: zotero.ItemData{
		"itemType": "note", "note": "<p>graph theory reading notes</p>",
	}}
	client := &itemsClient{all: []*zotero.Item{libraryItem("G1", 1, "Graph networks"), note}}

	_, err := engine.UpdateDatabase(context.Background(), client, false, 0)
	require.NoError(t, err)

	t.Run("item_type filter restricts results", func(t *testing.T) {
		results, err := engine.Search(context.Background(), "graph", 10, map[string]string{"item_type": "note"})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "N1", results[0].ItemKey)
	})
	t.Run("itemType alias accepted", func(t *testing.T) {
		results, err := engine.Search(context.Background(), "graph", 10, map[string]string{"itemType": "note"})
		require.NoError(t, err)
		require.Len(t, results, 1)
	})
	t.Run("unknown filter rejected", func(t *testing.T) {
		_, err := engine.Search(context.Background(), "graph", 10, map[string]string{"creator": "x"})
		require.ErrorContains(t, err, "unsupported filter")
	})
	t.Run("empty query rejected", func(t *testing.T) {
		_, err := engine.Search(context.Background(), "  ", 10, nil)
		require.ErrorContains(t, err, "cannot be empty")
	})
}

func TestForceRebuildClearsIndex(t *testing.T) {
	engine, _ := newTestEngine(t)
	client := &itemsClient{all: []*zotero.Item{libraryItem("T1", 1, "Transformer architectures")}}

	_, err := engine.UpdateDatabase(context.Background(), client, false, 0)
	require.NoError(t, err)

	stats, err := engine.UpdateDatabase(context.Background(), client, true, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added, "rebuild re-adds everything from scratch")

	status, err := engine.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.DocumentCount)
}

func TestConfigShouldUpdate(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"auto update off", Config{UpdateFrequency: "daily"}, false},
		{"manual frequency", Config{AutoUpdate: true, UpdateFrequency: "manual"}, false},
		{"startup always updates", Config{AutoUpdate: true, UpdateFrequency: "startup"}, true},
		{"daily, stale", Config{AutoUpdate: true, UpdateFrequency: "daily", LastUpdate: now.Add(-25 * time.Hour).Format(time.RFC3339)}, true},
		{"daily, fresh", Config{AutoUpdate: true, UpdateFrequency: "daily", LastUpdate: now.Add(-2 * time.Hour).Format(time.RFC3339)}, false},
		{"every 7 days, fresh", Config{AutoUpdate: true, UpdateFrequency: "interval", UpdateDays: 7, LastUpdate: now.Add(-48 * time.Hour).Format(time.RFC3339)}, false},
		{"never updated", Config{AutoUpdate: true, UpdateFrequency: "daily"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.ShouldUpdate(now))
		})
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := t.TempDir() + "/config.json"

	cfg := DefaultConfig(t.TempDir())
	cfg.AutoUpdate = true
	cfg.UpdateFrequency = "daily"
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.AutoUpdate, loaded.AutoUpdate)
	assert.Equal(t, cfg.EmbeddingModel, loaded.EmbeddingModel)

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(t.TempDir() + "/none.json")
		require.NoError(t, err)
		assert.Equal(t, "manual", cfg.UpdateFrequency)
	})
}
