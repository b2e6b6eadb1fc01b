package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// Item key extraction patterns, tried in order of specificity: a select
// link, an API-style path, then any bare eight-character key.
var (
	selectLinkPattern = regexp.MustCompile(`zotero://select/(?:library/)?items/([A-Za-z0-9]{8})`)
	itemPathPattern   = regexp.MustCompile(`/items/([A-Za-z0-9]{8})(?:[^A-Za-z0-9]|$)`)
	bareKeyPattern    = regexp.MustCompile(`\b([A-Za-z0-9]{8})\b`)
)

// ExtractItemKey pulls a Zotero item key out of free-form input: a select
// link, an items URL, or the bare key itself. Returns "" when nothing
// matches.
func ExtractItemKey(input string) string {
	input = strings.TrimSpace(input)
	for _, pattern := range []*regexp.Regexp{selectLinkPattern, itemPathPattern, bareKeyPattern} {
		if m := pattern.FindStringSubmatch(input); m != nil {
			return m[1]
		}
	}
	return ""
}

type connectorResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type connectorDocument struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata"`
}

// RegisterConnectorTools wires the generic search/fetch pair consumed by
// deep-research connectors. Both tools speak JSON rather than markdown, and
// search degrades to an empty result list instead of an error so a failed
// backend never aborts a research run.
func RegisterConnectorTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "connector").Logger()

	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Search the Zotero library. Returns a JSON list of result IDs for use with fetch."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search phrase")),
	)
	s.AddTool(searchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		empty := map[string]any{"results": []connectorResult{}}

		query := argString(request, "query")
		if query == "" {
			return jsonResult(empty), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("connector search degraded to empty results")
			return jsonResult(empty), nil
		}
		items, err := client.Items(ctx, zotero.ItemQuery{
			Q:        query,
			QMode:    "titleCreatorYear",
			ItemType: "-attachment",
			Limit:    20,
		})
		if err != nil {
			log.Warn().Str("query", query).Err(err).Msg("connector search degraded to empty results")
			return jsonResult(empty), nil
		}

		results := make([]connectorResult, 0, len(items))
		for _, item := range items {
			results = append(results, connectorResult{
				ID:    item.Key,
				Title: item.Data.Title(),
				URL:   "zotero://select/items/" + item.Key,
			})
		}
		return jsonResult(map[string]any{"results": results}), nil
	})

	fetchTool := mcp.NewTool("fetch",
		mcp.WithDescription("Fetch one library item by ID (a key, select link, or items URL) as a JSON document with metadata and full text."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item key or link containing one")),
	)
	s.AddTool(fetchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := ExtractItemKey(argString(request, "id"))
		if key == "" {
			return errorResult("Error: no item key found in input"), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		item, err := client.Item(ctx, key)
		if err != nil {
			return errorResult("Error fetching item %s: %v", key, err), nil
		}

		text, _, err := itemFulltext(ctx, client, item, log)
		if err != nil {
			log.Debug().Str("key", key).Err(err).Msg("connector fetch proceeding without full text")
		}
		// Thin extractions fall back to the abstract.
		if len(strings.TrimSpace(text)) < 40 {
			text = item.Data.Str("abstractNote")
		}

		body := format.ItemMetadata(item, true)
		if text != "" {
			body += "\n\n## Full Text\n\n" + text
		}

		doc := connectorDocument{
			ID:       item.Key,
			Title:    item.Data.Title(),
			Text:     body,
			URL:      "zotero://select/items/" + item.Key,
			Metadata: connectorMetadata(item),
		}
		return jsonResult(doc), nil
	})
}

// connectorMetadata flattens the fields research connectors care about.
func connectorMetadata(item *zotero.Item) map[string]string {
	d := item.Data
	meta := map[string]string{
		"key":        item.Key,
		"itemType":   d.ItemType(),
		"authors":    format.Creators(d.Creators()),
		"zotero_url": "zotero://select/items/" + item.Key,
		"source":     "zotkit",
	}
	if date := d.Str("date"); date != "" {
		meta["date"] = date
	}
	if doi := d.Str("DOI"); doi != "" {
		meta["doi"] = doi
	}
	if tags := d.Tags(); len(tags) > 0 {
		meta["tags"] = strings.Join(tags, ", ")
	}
	if url := webLibraryURL(item.Key); url != "" {
		meta["web_url"] = url
	}
	return meta
}

// webLibraryURL builds the zotero.org item page for the configured library,
// when one is configured.
func webLibraryURL(itemKey string) string {
	env := config.Read()
	if env.LibraryID == "" || env.LibraryID == "0" {
		return ""
	}
	prefix := "users"
	if env.LibraryType == "group" {
		prefix = "groups"
	}
	return fmt.Sprintf("https://www.zotero.org/%s/%s/items/%s", prefix, env.LibraryID, itemKey)
}

// jsonResult marshals v as the tool's text payload.
func jsonResult(v any) *mcp.CallToolResult {
	encoded, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Error encoding response: %v", err))
	}
	return mcp.NewToolResultText(string(encoded))
}
