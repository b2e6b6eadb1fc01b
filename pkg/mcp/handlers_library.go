package mcp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/localdb"
)

// RegisterLibraryTools wires library discovery and switching: listing the
// libraries and feeds an installation knows about, and changing which one
// subsequent tool calls address.
func RegisterLibraryTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "library-tools").Logger()

	listTool := mcp.NewTool("zotero_list_libraries",
		mcp.WithDescription("List the libraries available to this connection: the local installation's libraries in local mode, or the user library plus accessible groups over the web API."),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := config.Read()
		active := manager.Resolve(env)

		if env.Local {
			reader, err := localdb.Open(env.DatabasePath())
			if err != nil {
				return errorResult("Error opening local Zotero database: %v", err), nil
			}
			defer reader.Close()

			libs, err := reader.Libraries(ctx)
			if err != nil {
				log.Error().Err(err).Msg("local library listing failed")
				return errorResult("Error listing libraries: %v", err), nil
			}
			return mcp.NewToolResultText(renderLocalLibraries(libs, active)), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		groups, err := client.Groups(ctx)
		if err != nil {
			log.Error().Err(err).Msg("group listing failed")
			return errorResult("Error listing groups: %v", err), nil
		}

		var b strings.Builder
		b.WriteString("# Zotero Libraries\n\n")
		fmt.Fprintf(&b, "- **user/%s** (personal library)%s\n", env.LibraryID, activeMarker(active, "user", env.LibraryID))
		for _, g := range groups {
			id := strconv.FormatInt(g.ID, 10)
			fmt.Fprintf(&b, "- **group/%s** %s%s\n", id, g.Data.Name, activeMarker(active, "group", id))
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	switchTool := mcp.NewTool("zotero_switch_library",
		mcp.WithDescription("Switch which library subsequent tool calls operate on. The switch is validated and probed with a one-item read before it takes effect; pass library_type 'default' to return to the configured default."),
		mcp.WithString("library_id", mcp.Description("Numeric library ID (group ID for groups)")),
		mcp.WithString("library_type", mcp.Description("Library type: user, group, feed, or 'default' to reset")),
	)
	s.AddTool(switchTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		typ := argStringOr(request, "library_type", "user")

		if strings.EqualFold(typ, "default") {
			manager.ClearActive()
			sel := manager.Resolve(config.Read())
			return mcp.NewToolResultText(fmt.Sprintf("Reverted to the default library: %s.", sel)), nil
		}

		result, err := manager.Switch(ctx, library.Selection{
			ID:   argString(request, "library_id"),
			Type: typ,
		})
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		var b strings.Builder
		b.WriteString("# Library Switched\n\n")
		fmt.Fprintf(&b, "**Previous:** %s\n", result.Previous)
		fmt.Fprintf(&b, "**Current:** %s\n", result.Current)
		fmt.Fprintf(&b, "\nAccess verified with a sample read (%d item(s) seen).\n", result.SampleSize)
		return mcp.NewToolResultText(b.String()), nil
	})

	feedsTool := mcp.NewTool("zotero_list_feeds",
		mcp.WithDescription("List the RSS feed subscriptions of the local Zotero installation. Requires local mode."),
	)
	s.AddTool(feedsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := config.Read()
		if !env.Local {
			return errorResult("Error: feed listing requires local mode (set ZOTERO_LOCAL=true)"), nil
		}

		reader, err := localdb.Open(env.DatabasePath())
		if err != nil {
			return errorResult("Error opening local Zotero database: %v", err), nil
		}
		defer reader.Close()

		feeds, err := reader.Feeds(ctx)
		if err != nil {
			log.Error().Err(err).Msg("feed listing failed")
			return errorResult("Error listing feeds: %v", err), nil
		}

		var b strings.Builder
		b.WriteString("# Zotero Feeds\n\n")
		if len(feeds) == 0 {
			b.WriteString("No feed subscriptions found.\n")
			return mcp.NewToolResultText(b.String()), nil
		}
		for _, f := range feeds {
			fmt.Fprintf(&b, "## %s\n\n", f.Name)
			fmt.Fprintf(&b, "**Library ID:** %d\n", f.LibraryID)
			fmt.Fprintf(&b, "**URL:** %s\n", f.URL)
			fmt.Fprintf(&b, "**Items:** %d\n", f.ItemCount)
			if f.LastCheck != "" {
				fmt.Fprintf(&b, "**Last Checked:** %s\n", f.LastCheck)
			}
			if f.LastCheckError != "" {
				fmt.Fprintf(&b, "**Last Check Error:** %s\n", f.LastCheckError)
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n") + "\n"), nil
	})

	feedItemsTool := mcp.NewTool("zotero_get_feed_items",
		mcp.WithDescription("List recent entries of one feed subscription. Requires local mode."),
		mcp.WithString("feed_id", mcp.Required(), mcp.Description("Feed library ID (see zotero_list_feeds)")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default 20)")),
	)
	s.AddTool(feedItemsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		env := config.Read()
		if !env.Local {
			return errorResult("Error: feed access requires local mode (set ZOTERO_LOCAL=true)"), nil
		}

		feedID, err := strconv.ParseInt(argString(request, "feed_id"), 10, 64)
		if err != nil {
			return errorResult("Error: feed_id must be numeric"), nil
		}

		reader, err := localdb.Open(env.DatabasePath())
		if err != nil {
			return errorResult("Error opening local Zotero database: %v", err), nil
		}
		defer reader.Close()

		feeds, err := reader.Feeds(ctx)
		if err != nil {
			return errorResult("Error listing feeds: %v", err), nil
		}
		var feed *localdb.Feed
		for i := range feeds {
			if feeds[i].LibraryID == feedID {
				feed = &feeds[i]
				break
			}
		}
		if feed == nil {
			return errorResult("Error: no feed with library ID %d (use zotero_list_feeds to see available feeds)", feedID), nil
		}

		items, err := reader.FeedItems(ctx, feedID, argInt(request, "limit", 20), 0)
		if err != nil {
			log.Error().Int64("feed", feedID).Err(err).Msg("feed items fetch failed")
			return errorResult("Error fetching feed items: %v", err), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Feed: %s\n\n", feed.Name)
		if len(items) == 0 {
			b.WriteString("No entries found.\n")
			return mcp.NewToolResultText(b.String()), nil
		}
		for i, it := range items {
			fmt.Fprintf(&b, "## %d. %s\n\n", i+1, it.Title)
			fmt.Fprintf(&b, "**Key:** %s\n", it.Key)
			if it.Creators != "" {
				fmt.Fprintf(&b, "**Authors:** %s\n", it.Creators)
			}
			if it.URL != "" {
				fmt.Fprintf(&b, "**URL:** %s\n", it.URL)
			}
			fmt.Fprintf(&b, "**Added:** %s\n", it.DateAdded)
			if it.Abstract != "" {
				fmt.Fprintf(&b, "\n%s\n", format.Snippet(it.Abstract, 300))
			}
			b.WriteString("\n")
		}
		return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n") + "\n"), nil
	})
}

// renderLocalLibraries renders the local installation's library table.
func renderLocalLibraries(libs []localdb.Library, active library.Selection) string {
	var b strings.Builder
	b.WriteString("# Zotero Libraries\n\n")
	if len(libs) == 0 {
		b.WriteString("No libraries found.\n")
		return b.String()
	}
	for _, lib := range libs {
		id := strconv.FormatInt(lib.LibraryID, 10)
		if lib.Type == "group" {
			id = strconv.FormatInt(lib.GroupID, 10)
		}
		name := lib.Name
		if name == "" {
			name = "Personal Library"
		}
		fmt.Fprintf(&b, "- **%s/%s** %s (%d items)%s\n", lib.Type, id, name, lib.ItemCount, activeMarker(active, lib.Type, id))
	}
	return b.String()
}

func activeMarker(active library.Selection, typ, id string) string {
	if active.Type == typ && active.ID == id {
		return " *(active)*"
	}
	return ""
}

