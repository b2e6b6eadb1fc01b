// Package semantic maintains an embedding index over library items and
// answers similarity queries against it.
package semantic

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/zotero"
)

const updatePageSize = 100

// Engine binds the config, vector store, and embedder together.
type Engine struct {
	configPath string
	cfg        Config
	store      *Store
	embedder   Embedder
	log        zerolog.Logger
}

// NewEngine opens the engine described by the config file at configPath.
func NewEngine(configPath string, log zerolog.Logger) (*Engine, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading semantic config: %w", err)
	}
	store, err := OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	embedder, err := NewOpenAIEmbedder(cfg.EmbeddingModel)
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Engine{
		configPath: configPath,
		cfg:        cfg,
		store:      store,
		embedder:   embedder,
		log:        log.With().Str("component", "semantic").Logger(),
	}, nil
}

// NewEngineWith wires explicit parts. Used by tests.
func NewEngineWith(cfg Config, store *Store, embedder Embedder, log zerolog.Logger) *Engine {
	return &Engine{cfg: cfg, store: store, embedder: embedder, log: log}
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Result is one similarity hit.
type Result struct {
	ItemKey     string  `json:"itemKey"`
	Score       float64 `json:"score"`
	Title       string  `json:"title"`
	ItemType    string  `json:"itemType"`
	MatchedText string  `json:"matchedText,omitempty"`
}

// Search embeds the query and ranks the index by cosine similarity.
// Filters restrict results by document field; "item_type" (with "itemType"
// accepted as an alias) is the supported key.
func (e *Engine) Search(ctx context.Context, query string, limit int, filters map[string]string) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	itemType := ""
	for k, v := range filters {
		switch k {
		case "item_type", "itemType":
			itemType = v
		default:
			return nil, fmt.Errorf("unsupported filter %q (supported: item_type)", k)
		}
	}

	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryVec := vectors[0]

	docs, err := e.store.All(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		if itemType != "" && doc.ItemType != itemType {
			continue
		}
		results = append(results, Result{
			ItemKey:     doc.ItemKey,
			Score:       cosine(queryVec, doc.Embedding),
			Title:       doc.Title,
			ItemType:    doc.ItemType,
			MatchedText: format.Snippet(doc.Content, 300),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats summarizes one index update run.
type Stats struct {
	TotalItems int           `json:"totalItems"`
	Processed  int           `json:"processed"`
	Added      int           `json:"added"`
	Updated    int           `json:"updated"`
	Skipped    int           `json:"skipped"`
	Errors     int           `json:"errors"`
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	Duration   time.Duration `json:"duration"`
}

// indexedTypes excludes container children that carry no citable text of
// their own. Notes stay indexed so note search works semantically.
func indexable(itemType string) bool {
	return itemType != "attachment" && itemType != "annotation"
}

// documentText builds the text that gets embedded for an item.
func documentText(d zotero.ItemData) string {
	parts := []string{d.Title()}
	if creators := d.Creators(); len(creators) > 0 {
		parts = append(parts, format.Creators(creators))
	}
	if abstract := d.Str("abstractNote"); abstract != "" {
		parts = append(parts, abstract)
	}
	if d.ItemType() == "note" {
		if note := format.CleanHTML(d.Str("note")); note != "" {
			parts = append(parts, note)
		}
	}
	if tags := d.Tags(); len(tags) > 0 {
		parts = append(parts, strings.Join(tags, ", "))
	}
	return strings.Join(parts, "\n")
}

// UpdateDatabase scans the library and (re)embeds items whose version
// changed since the last run. forceRebuild drops the index first; limit
// bounds the number of items processed.
func (e *Engine) UpdateDatabase(ctx context.Context, client zotero.Client, forceRebuild bool, limit int) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	if forceRebuild {
		if err := e.store.Clear(ctx); err != nil {
			return nil, fmt.Errorf("clearing index for rebuild: %w", err)
		}
	}

	for start := 0; ; start += updatePageSize {
		batch, err := client.Items(ctx, zotero.ItemQuery{Start: start, Limit: updatePageSize})
		if err != nil {
			return nil, fmt.Errorf("scanning items at offset %d: %w", start, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, item := range batch {
			stats.TotalItems++
			if limit > 0 && stats.Processed >= limit {
				continue
			}
			if !indexable(item.Data.ItemType()) {
				stats.Skipped++
				continue
			}

			stats.Processed++
			indexed, err := e.store.Version(ctx, item.Key)
			if err != nil {
				stats.Errors++
				e.log.Error().Str("key", item.Key).Err(err).Msg("version lookup failed")
				continue
			}
			if !forceRebuild && indexed == item.Version {
				stats.Skipped++
				continue
			}

			vectors, err := e.embedder.Embed(ctx, []string{documentText(item.Data)})
			if err != nil {
				stats.Errors++
				e.log.Error().Str("key", item.Key).Err(err).Msg("embedding failed")
				continue
			}

			doc := Document{
				ItemKey:   item.Key,
				Version:   item.Version,
				ItemType:  item.Data.ItemType(),
				Title:     item.Data.Title(),
				Content:   documentText(item.Data),
				Embedding: vectors[0],
			}
			if err := e.store.Upsert(ctx, doc); err != nil {
				stats.Errors++
				e.log.Error().Str("key", item.Key).Err(err).Msg("index write failed")
				continue
			}
			if indexed < 0 {
				stats.Added++
			} else {
				stats.Updated++
			}
		}

		if len(batch) < updatePageSize {
			break
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	e.cfg.LastUpdate = stats.EndTime.Format(time.RFC3339)
	if e.configPath != "" {
		if err := SaveConfig(e.configPath, e.cfg); err != nil {
			e.log.Warn().Err(err).Msg("could not persist last-update timestamp")
		}
	}
	return stats, nil
}

// Status describes the index and its update schedule.
type Status struct {
	DocumentCount  int    `json:"documentCount"`
	EmbeddingModel string `json:"embeddingModel"`
	DatabasePath   string `json:"databasePath"`
	AutoUpdate     bool   `json:"autoUpdate"`
	Frequency      string `json:"frequency"`
	UpdateDays     int    `json:"updateDays,omitempty"`
	LastUpdate     string `json:"lastUpdate,omitempty"`
	ShouldUpdate   bool   `json:"shouldUpdate"`
}

// Status reports index size and schedule state.
func (e *Engine) Status(ctx context.Context) (*Status, error) {
	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		DocumentCount:  count,
		EmbeddingModel: e.cfg.EmbeddingModel,
		DatabasePath:   e.cfg.DatabasePath,
		AutoUpdate:     e.cfg.AutoUpdate,
		Frequency:      e.cfg.UpdateFrequency,
		UpdateDays:     e.cfg.UpdateDays,
		LastUpdate:     e.cfg.LastUpdate,
		ShouldUpdate:   e.cfg.ShouldUpdate(time.Now()),
	}, nil
}

// ShouldUpdate exposes the schedule check for the startup maintenance loop.
func (e *Engine) ShouldUpdate(now time.Time) bool {
	return e.cfg.ShouldUpdate(now)
}
