package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/pdf"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// RegisterItemTools wires single-item and collection inspection tools.
func RegisterItemTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "item-tools").Logger()

	metadataTool := mcp.NewTool("zotero_get_item_metadata",
		mcp.WithDescription("Fetch one item's metadata, rendered as markdown or as a BibTeX entry."),
		mcp.WithString("item_key", mcp.Required(), mcp.Description("Zotero item key")),
		mcp.WithString("format", mcp.Description("Output format: 'markdown' (default) or 'bibtex'")),
		mcp.WithBoolean("include_abstract", mcp.Description("Include the abstract in markdown output (default true)")),
	)
	s.AddTool(metadataTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "item_key")
		if key == "" {
			return errorResult("Error: item_key is required"), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		item, err := client.Item(ctx, key)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no item found with key %s", key), nil
			}
			log.Error().Str("key", key).Err(err).Msg("item fetch failed")
			return errorResult("Error fetching item: %v", err), nil
		}

		switch argStringOr(request, "format", "markdown") {
		case "bibtex":
			return mcp.NewToolResultText("```bibtex\n" + format.BibTeX(item) + "\n```"), nil
		case "markdown":
			includeAbstract := true
			if _, present := request.Params.Arguments["include_abstract"]; present {
				includeAbstract = argBool(request, "include_abstract")
			}
			return mcp.NewToolResultText(format.ItemMetadata(item, includeAbstract)), nil
		default:
			return errorResult("Error: format must be 'markdown' or 'bibtex'"), nil
		}
	})

	fulltextTool := mcp.NewTool("zotero_get_item_fulltext",
		mcp.WithDescription("Fetch an item's metadata together with the full text of its primary attachment. Tries the fulltext index first and falls back to downloading and converting the PDF."),
		mcp.WithString("item_key", mcp.Required(), mcp.Description("Zotero item key")),
	)
	s.AddTool(fulltextTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "item_key")
		if key == "" {
			return errorResult("Error: item_key is required"), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		item, err := client.Item(ctx, key)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no item found with key %s", key), nil
			}
			return errorResult("Error fetching item: %v", err), nil
		}

		var b strings.Builder
		b.WriteString(format.ItemMetadata(item, true))
		b.WriteString("\n\n## Full Text\n\n")

		text, source, err := itemFulltext(ctx, client, item, log)
		switch {
		case err != nil:
			fmt.Fprintf(&b, "[Attachment available but text extraction failed: %v]\n", err)
		case text == "":
			b.WriteString("[No full text available for this item]\n")
		default:
			log.Debug().Str("key", key).Str("source", source).Msg("full text resolved")
			b.WriteString(text)
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	collectionsTool := mcp.NewTool("zotero_get_collections",
		mcp.WithDescription("List the library's collections as a hierarchy."),
		mcp.WithNumber("limit", mcp.Description("Maximum collections to fetch (default all)")),
	)
	s.AddTool(collectionsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		cols, err := client.Collections(ctx, argInt(request, "limit", 0))
		if err != nil {
			log.Error().Err(err).Msg("collection listing failed")
			return errorResult("Error fetching collections: %v", err), nil
		}
		return mcp.NewToolResultText(renderCollectionTree(cols)), nil
	})

	collectionItemsTool := mcp.NewTool("zotero_get_collection_items",
		mcp.WithDescription("List the items in one collection."),
		mcp.WithString("collection_key", mcp.Required(), mcp.Description("Collection key")),
		mcp.WithNumber("limit", mcp.Description("Maximum items to return (default 50)")),
	)
	s.AddTool(collectionItemsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "collection_key")
		if key == "" {
			return errorResult("Error: collection_key is required"), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		col, err := client.Collection(ctx, key)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no collection found with key %s", key), nil
			}
			return errorResult("Error fetching collection: %v", err), nil
		}
		items, err := client.CollectionItems(ctx, key, argInt(request, "limit", 50))
		if err != nil {
			log.Error().Str("collection", key).Err(err).Msg("collection items fetch failed")
			return errorResult("Error fetching collection items: %v", err), nil
		}
		return mcp.NewToolResultText(renderItemList("Items in Collection: "+col.Data.Name, items)), nil
	})

	childrenTool := mcp.NewTool("zotero_get_item_children",
		mcp.WithDescription("List an item's child records, grouped into attachments and notes."),
		mcp.WithString("item_key", mcp.Required(), mcp.Description("Parent item key")),
	)
	s.AddTool(childrenTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "item_key")
		if key == "" {
			return errorResult("Error: item_key is required"), nil
		}

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		children, err := client.Children(ctx, key, zotero.ItemQuery{})
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no item found with key %s", key), nil
			}
			log.Error().Str("key", key).Err(err).Msg("children fetch failed")
			return errorResult("Error fetching children: %v", err), nil
		}
		return mcp.NewToolResultText(renderChildren(key, children)), nil
	})
}

// itemFulltext resolves the full text of an item's primary attachment. The
// fulltext index is consulted first; when it has nothing, the attachment is
// downloaded into a scratch directory and its text extracted directly.
func itemFulltext(ctx context.Context, client zotero.Client, item *zotero.Item, log zerolog.Logger) (text, source string, err error) {
	attachment, err := primaryAttachment(ctx, client, item)
	if err != nil || attachment == nil {
		return "", "", err
	}

	if text, err := client.FulltextItem(ctx, attachment.Key); err == nil && strings.TrimSpace(text) != "" {
		return text, "fulltext-index", nil
	} else if err != nil && !errors.Is(err, zotero.ErrNotFound) {
		log.Debug().Str("attachment", attachment.Key).Err(err).Msg("fulltext index miss, falling back to download")
	}

	if attachment.Data.Str("contentType") != "application/pdf" {
		return "", "", nil
	}

	dir, err := os.MkdirTemp("", "zotkit-fulltext-*")
	if err != nil {
		return "", "", err
	}
	defer os.RemoveAll(dir)

	path, err := client.DownloadAttachment(ctx, attachment.Key, dir)
	if err != nil {
		return "", "", err
	}
	extracted, err := pdf.ExtractText(path, dir)
	if err != nil {
		return "", "", err
	}
	return extracted, "pdf-download", nil
}

// primaryAttachment picks the attachment to read text from: the item itself
// when it is one, otherwise the first PDF child, otherwise the first child
// attachment of any type.
func primaryAttachment(ctx context.Context, client zotero.Client, item *zotero.Item) (*zotero.Item, error) {
	if item.Data.ItemType() == "attachment" {
		return item, nil
	}
	children, err := client.Children(ctx, item.Key, zotero.ItemQuery{})
	if err != nil {
		return nil, err
	}
	var fallback *zotero.Item
	for _, child := range children {
		if child.Data.ItemType() != "attachment" {
			continue
		}
		if child.Data.Str("contentType") == "application/pdf" {
			return child, nil
		}
		if fallback == nil {
			fallback = child
		}
	}
	return fallback, nil
}

// renderCollectionTree renders collections as an indented hierarchy. Orphans
// whose parent is not in the listing are shown at the top level.
func renderCollectionTree(cols []*zotero.Collection) string {
	var b strings.Builder
	b.WriteString("# Zotero Collections\n\n")
	if len(cols) == 0 {
		b.WriteString("No collections found in library.\n")
		return b.String()
	}

	known := map[string]bool{}
	for _, c := range cols {
		known[c.Key] = true
	}
	children := map[string][]*zotero.Collection{}
	var roots []*zotero.Collection
	for _, c := range cols {
		parent, _ := c.Data.ParentCollection.(string)
		if parent != "" && known[parent] {
			children[parent] = append(children[parent], c)
		} else {
			roots = append(roots, c)
		}
	}

	byName := func(list []*zotero.Collection) {
		sort.SliceStable(list, func(i, j int) bool {
			return strings.ToLower(list[i].Data.Name) < strings.ToLower(list[j].Data.Name)
		})
	}

	var render func(list []*zotero.Collection, depth int)
	render = func(list []*zotero.Collection, depth int) {
		byName(list)
		for _, c := range list {
			fmt.Fprintf(&b, "%s- **%s** (`%s`)\n", strings.Repeat("  ", depth), c.Data.Name, c.Key)
			render(children[c.Key], depth+1)
		}
	}
	render(roots, 0)
	return b.String()
}

// renderChildren groups child items into attachments, notes, and the rest.
func renderChildren(parentKey string, children []*zotero.Item) string {
	var attachments, notes, others []*zotero.Item
	for _, child := range children {
		switch child.Data.ItemType() {
		case "attachment":
			attachments = append(attachments, child)
		case "note":
			notes = append(notes, child)
		default:
			others = append(others, child)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Children of Item: %s\n\n", parentKey)
	if len(children) == 0 {
		b.WriteString("No child items found.\n")
		return b.String()
	}

	if len(attachments) > 0 {
		fmt.Fprintf(&b, "## Attachments (%d)\n\n", len(attachments))
		for _, a := range attachments {
			fmt.Fprintf(&b, "- **%s** (`%s`)", a.Data.Title(), a.Key)
			if ct := a.Data.Str("contentType"); ct != "" {
				fmt.Fprintf(&b, " [%s]", ct)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, "## Notes (%d)\n\n", len(notes))
		for _, n := range notes {
			fmt.Fprintf(&b, "### Note `%s`\n\n", n.Key)
			text := format.CleanHTML(n.Data.Str("note"))
			if text == "" {
				text = "[Empty note]"
			}
			b.WriteString(format.Snippet(text, 500))
			b.WriteString("\n\n")
		}
	}
	if len(others) > 0 {
		fmt.Fprintf(&b, "## Other Items (%d)\n\n", len(others))
		for _, o := range others {
			fmt.Fprintf(&b, "- **%s** (`%s`, %s)\n", o.Data.Title(), o.Key, o.Data.ItemType())
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
