package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/semantic"
)

// RegisterSemanticTools wires the embedding-backed search tools. The engine
// is opened per call so configuration and credential changes take effect
// without a restart.
func RegisterSemanticTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "semantic-tools").Logger()

	openEngine := func() (*semantic.Engine, error) {
		configPath, err := semanticConfigPath()
		if err != nil {
			return nil, err
		}
		return semantic.NewEngine(configPath, log)
	}

	searchTool := mcp.NewTool("zotero_semantic_search",
		mcp.WithDescription("Search the library by meaning rather than keywords, using the embedding index. Run zotero_update_search_database first to build the index."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language description of what to find")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 10)")),
		mcp.WithString("filters", mcp.Description("JSON object of filters, e.g. {\"item_type\": \"journalArticle\"}")),
	)
	s.AddTool(searchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := argString(request, "query")
		if query == "" {
			return errorResult("Error: search query is required"), nil
		}
		filters, err := argStringMap(request, "filters")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		engine, err := openEngine()
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		defer engine.Close()

		results, err := engine.Search(ctx, query, argInt(request, "limit", 10), filters)
		if err != nil {
			log.Error().Str("query", query).Err(err).Msg("semantic search failed")
			return errorResult("Error: %v", err), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Semantic Search Results for: %s\n\n", query)
		if len(results) == 0 {
			b.WriteString("No results. The index may be empty; run zotero_update_search_database to build it.\n")
			return mcp.NewToolResultText(b.String()), nil
		}
		for i, r := range results {
			fmt.Fprintf(&b, "## %d. %s\n\n", i+1, r.Title)
			fmt.Fprintf(&b, "**Item Key:** %s\n", r.ItemKey)
			fmt.Fprintf(&b, "**Type:** %s\n", r.ItemType)
			fmt.Fprintf(&b, "**Similarity:** %.3f\n", r.Score)
			if r.MatchedText != "" {
				fmt.Fprintf(&b, "\n%s\n", r.MatchedText)
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n") + "\n"), nil
	})

	updateTool := mcp.NewTool("zotero_update_search_database",
		mcp.WithDescription("Build or refresh the embedding index over the active library. Only items whose version changed since the last run are re-embedded."),
		mcp.WithBoolean("force_rebuild", mcp.Description("Drop the index and re-embed everything (default false)")),
		mcp.WithNumber("limit", mcp.Description("Bound the number of items processed this run (default all)")),
	)
	s.AddTool(updateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engine, err := openEngine()
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		defer engine.Close()

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		stats, err := engine.UpdateDatabase(ctx, client, argBool(request, "force_rebuild"), argInt(request, "limit", 0))
		if err != nil {
			log.Error().Err(err).Msg("index update failed")
			return errorResult("Error updating search database: %v", err), nil
		}

		var b strings.Builder
		b.WriteString("# Search Database Updated\n\n")
		fmt.Fprintf(&b, "**Items scanned:** %d\n", stats.TotalItems)
		fmt.Fprintf(&b, "**Added:** %d\n", stats.Added)
		fmt.Fprintf(&b, "**Updated:** %d\n", stats.Updated)
		fmt.Fprintf(&b, "**Skipped:** %d\n", stats.Skipped)
		fmt.Fprintf(&b, "**Errors:** %d\n", stats.Errors)
		fmt.Fprintf(&b, "**Duration:** %s\n", stats.Duration.Round(10*time.Millisecond))
		return mcp.NewToolResultText(b.String()), nil
	})

	statusTool := mcp.NewTool("zotero_get_search_database_status",
		mcp.WithDescription("Report the embedding index size, model, and update schedule."),
	)
	s.AddTool(statusTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		engine, err := openEngine()
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		defer engine.Close()

		status, err := engine.Status(ctx)
		if err != nil {
			return errorResult("Error reading index status: %v", err), nil
		}

		var b strings.Builder
		b.WriteString("# Search Database Status\n\n")
		fmt.Fprintf(&b, "**Indexed documents:** %d\n", status.DocumentCount)
		fmt.Fprintf(&b, "**Embedding model:** %s\n", status.EmbeddingModel)
		fmt.Fprintf(&b, "**Database path:** %s\n", status.DatabasePath)
		fmt.Fprintf(&b, "**Auto update:** %t\n", status.AutoUpdate)
		fmt.Fprintf(&b, "**Frequency:** %s\n", status.Frequency)
		if status.UpdateDays > 0 {
			fmt.Fprintf(&b, "**Update interval:** every %d days\n", status.UpdateDays)
		}
		if status.LastUpdate != "" {
			fmt.Fprintf(&b, "**Last update:** %s\n", status.LastUpdate)
		}
		fmt.Fprintf(&b, "**Update due:** %t\n", status.ShouldUpdate)
		return mcp.NewToolResultText(b.String()), nil
	})
}
