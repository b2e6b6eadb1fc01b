package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/search"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// RegisterSearchTools wires the query-side tools: keyword search, tag
// search, advanced search, recent items, and the tag listing.
func RegisterSearchTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "search-tools").Logger()

	searchTool := mcp.NewTool("zotero_search_items",
		mcp.WithDescription("Search the Zotero library by keyword. Returns matching items as markdown."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search phrase")),
		mcp.WithString("qmode", mcp.Description("Query mode: titleCreatorYear (default) or everything")),
		mcp.WithString("item_type", mcp.Description("Item type filter, e.g. 'book' or '-attachment' to exclude (default '-attachment')")),
		mcp.WithString("tag", mcp.Description("Restrict results to items carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 10)")),
	)
	s.AddTool(searchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := argString(request, "query")
		if query == "" {
			return errorResult("Error: search query is required"), nil
		}

		q := zotero.ItemQuery{
			Q:        query,
			QMode:    argStringOr(request, "qmode", "titleCreatorYear"),
			ItemType: argStringOr(request, "item_type", "-attachment"),
			Limit:    argInt(request, "limit", 10),
		}
		if tag := argString(request, "tag"); tag != "" {
			q.Tags = []string{tag}
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		items, err := client.Items(ctx, q)
		if err != nil {
			log.Error().Str("query", query).Err(err).Msg("keyword search failed")
			return errorResult("Error searching items: %v", err), nil
		}
		return mcp.NewToolResultText(renderItemList("Search Results for: "+query, items)), nil
	})

	tagTool := mcp.NewTool("zotero_search_by_tag",
		mcp.WithDescription("Search items by tag. Multiple tags are combined with AND; prefix a tag with '-' to exclude it, and use ' || ' inside one entry for alternatives."),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Tag conditions as a JSON array or a single tag")),
		mcp.WithString("item_type", mcp.Description("Item type filter (default '-attachment')")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 20)")),
	)
	s.AddTool(tagTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tags, err := argStringList(request, "tags")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if len(tags) == 0 {
			return errorResult("Error: at least one tag is required"), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		items, err := client.Items(ctx, zotero.ItemQuery{
			Tags:     tags,
			ItemType: argStringOr(request, "item_type", "-attachment"),
			Limit:    argInt(request, "limit", 20),
		})
		if err != nil {
			log.Error().Strs("tags", tags).Err(err).Msg("tag search failed")
			return errorResult("Error searching by tag: %v", err), nil
		}
		return mcp.NewToolResultText(renderItemList("Items tagged: "+strings.Join(tags, " AND "), items)), nil
	})

	advancedTool := mcp.NewTool("zotero_advanced_search",
		mcp.WithDescription("Search with multiple field conditions evaluated locally. Conditions are a JSON array of {field, operation, value} objects; operations include is, isNot, contains, doesNotContain, beginsWith, endsWith, isGreaterThan, isLessThan, isBefore, isAfter."),
		mcp.WithString("conditions", mcp.Required(), mcp.Description("JSON array of search conditions")),
		mcp.WithString("join_mode", mcp.Description("How conditions combine: 'all' (default) or 'any'")),
		mcp.WithString("sort_by", mcp.Description("Field to sort results by, e.g. 'date' or 'creator'")),
		mcp.WithString("sort_direction", mcp.Description("'asc' (default) or 'desc'")),
		mcp.WithNumber("limit", mcp.Description("Maximum results to return (default 50, capped at 500)")),
	)
	s.AddTool(advancedTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		conds, err := search.ParseConditions(argString(request, "conditions"))
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		items, err := search.Run(ctx, client, conds, search.Options{
			JoinMode:      argStringOr(request, "join_mode", "all"),
			SortBy:        argString(request, "sort_by"),
			SortDirection: argStringOr(request, "sort_direction", "asc"),
			Limit:         argInt(request, "limit", 50),
		})
		if err != nil {
			log.Error().Err(err).Msg("advanced search failed")
			return errorResult("Error: %v", err), nil
		}

		title := fmt.Sprintf("Advanced Search Results (%d conditions, %s)", len(conds), argStringOr(request, "join_mode", "all"))
		return mcp.NewToolResultText(renderItemList(title, items)), nil
	})

	recentTool := mcp.NewTool("zotero_get_recent",
		mcp.WithDescription("List the most recently added items."),
		mcp.WithNumber("limit", mcp.Description("Number of items to return (default 10, max 100)")),
	)
	s.AddTool(recentTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := argInt(request, "limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		items, err := client.Items(ctx, zotero.ItemQuery{
			ItemType:  "-attachment",
			Sort:      "dateAdded",
			Direction: "desc",
			Limit:     limit,
		})
		if err != nil {
			log.Error().Err(err).Msg("recent items fetch failed")
			return errorResult("Error fetching recent items: %v", err), nil
		}
		return mcp.NewToolResultText(renderItemList("Recently Added Items", items)), nil
	})

	tagsTool := mcp.NewTool("zotero_get_tags",
		mcp.WithDescription("List the tags used in the library, grouped alphabetically."),
		mcp.WithNumber("limit", mcp.Description("Maximum tags to return (default 100)")),
	)
	s.AddTool(tagsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		tags, err := client.Tags(ctx, argInt(request, "limit", 100))
		if err != nil {
			log.Error().Err(err).Msg("tag listing failed")
			return errorResult("Error fetching tags: %v", err), nil
		}
		return mcp.NewToolResultText(renderTagGroups(tags)), nil
	})
}

// renderTagGroups renders tags alphabetically, grouped under first-letter
// headings. Tags that do not start with a letter are grouped under "#".
func renderTagGroups(tags []string) string {
	var b strings.Builder
	b.WriteString("# Zotero Tags\n\n")
	if len(tags) == 0 {
		b.WriteString("No tags found in library.\n")
		return b.String()
	}

	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i]) < strings.ToLower(sorted[j])
	})

	fmt.Fprintf(&b, "Found %d tags:\n", len(sorted))
	current := ""
	for _, tag := range sorted {
		letter := "#"
		if r := []rune(tag); len(r) > 0 && unicode.IsLetter(r[0]) {
			letter = strings.ToUpper(string(r[0]))
		}
		if letter != current {
			current = letter
			fmt.Fprintf(&b, "\n## %s\n\n", current)
		}
		fmt.Fprintf(&b, "- `%s`\n", tag)
	}
	return b.String()
}
