package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/ingest"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/tags"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// RegisterWriteTools wires the mutating tools: tag maintenance, item import
// by DOI/arXiv/URL, field updates, collection management, and deletion.
// Every write goes through the hosted web API.
func RegisterWriteTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "write-tools").Logger()

	batchTagsTool := mcp.NewTool("zotero_batch_update_tags",
		mcp.WithDescription("Add and remove tags across every item matching a search query. Failed items are skipped and reported; the rest of the batch proceeds."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query selecting the items to update")),
		mcp.WithString("add_tags", mcp.Description("Tags to add, as a JSON array")),
		mcp.WithString("remove_tags", mcp.Description("Tags to remove, as a JSON array")),
		mcp.WithNumber("limit", mcp.Description("Maximum items to process (default 50)")),
	)
	s.AddTool(batchTagsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		addTags, err := tags.NormalizeList(argString(request, "add_tags"), "add_tags")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		removeTags, err := tags.NormalizeList(argString(request, "remove_tags"), "remove_tags")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		result, err := tags.Update(ctx, client, log, argString(request, "query"), addTags, removeTags, argInt(request, "limit", 50))
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		return mcp.NewToolResultText(renderTagResult(result)), nil
	})

	doiTool := mcp.NewTool("zotero_add_items_by_doi",
		mcp.WithDescription("Import items by DOI. Metadata is resolved through CrossRef; a failed DOI is reported and the rest continue."),
		mcp.WithString("dois", mcp.Required(), mcp.Description("DOIs to import, as a JSON array or a single DOI")),
		mcp.WithString("collection_key", mcp.Description("Collection to file the new items into")),
	)
	s.AddTool(doiTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dois, err := argStringList(request, "dois")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if len(dois) == 0 {
			return errorResult("Error: at least one DOI is required"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		template, err := client.ItemTemplate(ctx, "journalArticle")
		if err != nil {
			return errorResult("Error fetching item template: %v", err), nil
		}

		crossref := ingest.NewCrossRefClient("", log)
		collectionKey := argString(request, "collection_key")

		var b strings.Builder
		b.WriteString("# DOI Import\n\n")
		imported := 0
		for _, doi := range dois {
			work, err := crossref.Work(ctx, doi)
			if err != nil {
				log.Warn().Str("doi", doi).Err(err).Msg("DOI lookup failed")
				fmt.Fprintf(&b, "- %s: lookup failed (%v)\n", doi, err)
				continue
			}

			data := cloneTemplate(template)
			work.Populate(data)
			if collectionKey != "" {
				data.SetCollections([]string{collectionKey})
			}

			result, err := client.CreateItems(ctx, []zotero.ItemData{data})
			if err != nil {
				fmt.Fprintf(&b, "- %s: create failed (%v)\n", doi, err)
				continue
			}
			key, ok := result.FirstKey()
			if !ok {
				fmt.Fprintf(&b, "- %s: create failed (%s)\n", doi, result.FailureSummary())
				continue
			}
			imported++
			fmt.Fprintf(&b, "- %s: imported as `%s` (%s)\n", doi, key, work.Title)
		}
		fmt.Fprintf(&b, "\nImported %d of %d DOIs.\n", imported, len(dois))
		return mcp.NewToolResultText(b.String()), nil
	})

	arxivTool := mcp.NewTool("zotero_add_items_by_arxiv",
		mcp.WithDescription("Import arXiv preprints by ID or URL. A failed ID is reported and the rest continue."),
		mcp.WithString("arxiv_ids", mcp.Required(), mcp.Description("arXiv IDs to import, as a JSON array or a single ID")),
		mcp.WithString("collection_key", mcp.Description("Collection to file the new items into")),
	)
	s.AddTool(arxivTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := argStringList(request, "arxiv_ids")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if len(ids) == 0 {
			return errorResult("Error: at least one arXiv ID is required"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		template, err := client.ItemTemplate(ctx, "preprint")
		if err != nil {
			return errorResult("Error fetching item template: %v", err), nil
		}

		arxiv := ingest.NewArxivClient("", log)
		collectionKey := argString(request, "collection_key")

		var b strings.Builder
		b.WriteString("# arXiv Import\n\n")
		imported := 0
		for _, id := range ids {
			entry, err := arxiv.Entry(ctx, id)
			if err != nil {
				log.Warn().Str("arxiv", id).Err(err).Msg("arXiv lookup failed")
				fmt.Fprintf(&b, "- %s: lookup failed (%v)\n", id, err)
				continue
			}

			data := cloneTemplate(template)
			entry.Populate(data)
			if collectionKey != "" {
				data.SetCollections([]string{collectionKey})
			}

			result, err := client.CreateItems(ctx, []zotero.ItemData{data})
			if err != nil {
				fmt.Fprintf(&b, "- %s: create failed (%v)\n", id, err)
				continue
			}
			key, ok := result.FirstKey()
			if !ok {
				fmt.Fprintf(&b, "- %s: create failed (%s)\n", id, result.FailureSummary())
				continue
			}
			imported++
			fmt.Fprintf(&b, "- %s: imported as `%s` (%s)\n", id, key, entry.Title)
		}
		fmt.Fprintf(&b, "\nImported %d of %d IDs.\n", imported, len(ids))
		return mcp.NewToolResultText(b.String()), nil
	})

	urlTool := mcp.NewTool("zotero_add_item_by_url",
		mcp.WithDescription("Save a web page as a webpage item. The page title and description are scraped from its HTML."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Address of the page to save")),
		mcp.WithString("collection_key", mcp.Description("Collection to file the new item into")),
	)
	s.AddTool(urlTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pageURL := argString(request, "url")
		if pageURL == "" {
			return errorResult("Error: url is required"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		template, err := client.ItemTemplate(ctx, "webpage")
		if err != nil {
			return errorResult("Error fetching item template: %v", err), nil
		}

		page, err := ingest.FetchWebpage(ctx, pageURL)
		if err != nil {
			log.Warn().Str("url", pageURL).Err(err).Msg("page fetch failed")
			return errorResult("Error fetching page: %v", err), nil
		}

		data := cloneTemplate(template)
		page.Populate(data)
		if key := argString(request, "collection_key"); key != "" {
			data.SetCollections([]string{key})
		}

		result, err := client.CreateItems(ctx, []zotero.ItemData{data})
		if err != nil {
			return errorResult("Error creating item: %v", err), nil
		}
		key, ok := result.FirstKey()
		if !ok {
			return errorResult("Error creating item: %s", result.FailureSummary()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Saved %q as webpage item `%s`.", page.Title, key)), nil
	})

	updateItemTool := mcp.NewTool("zotero_update_item",
		mcp.WithDescription("Update fields of an existing item. Fields are given as an object of field name to new value."),
		mcp.WithString("item_key", mcp.Required(), mcp.Description("Key of the item to update")),
		mcp.WithString("fields", mcp.Required(), mcp.Description("JSON object of fields to change, e.g. {\"title\": \"New Title\"}")),
	)
	s.AddTool(updateItemTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "item_key")
		if key == "" {
			return errorResult("Error: item_key is required"), nil
		}
		fields, err := argAnyMap(request, "fields")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if len(fields) == 0 {
			return errorResult("Error: no fields to update"), nil
		}

		client, err := manager.WebClient(ctx)
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

		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)

		var changes []string
		for _, name := range names {
			old := item.Data.Str(name)
			item.Data[name] = fields[name]
			changes = append(changes, fmt.Sprintf("%s: %q -> %q", name, old, item.Data.Str(name)))
		}

		if err := client.UpdateItem(ctx, item); err != nil {
			log.Error().Str("key", key).Err(err).Msg("item update failed")
			return errorResult("Error updating item: %v", err), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Item %s Updated\n\n", key)
		for _, c := range changes {
			fmt.Fprintf(&b, "- %s\n", c)
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	createCollectionTool := mcp.NewTool("zotero_create_collection",
		mcp.WithDescription("Create a new collection, optionally nested under an existing one."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name of the new collection")),
		mcp.WithString("parent_key", mcp.Description("Key of the parent collection for a nested collection")),
	)
	s.AddTool(createCollectionTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := argString(request, "name")
		if name == "" {
			return errorResult("Error: collection name is required"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		data := zotero.CollectionData{Name: name}
		if parent := argString(request, "parent_key"); parent != "" {
			data.ParentCollection = parent
		}
		result, err := client.CreateCollections(ctx, []zotero.CollectionData{data})
		if err != nil {
			log.Error().Str("name", name).Err(err).Msg("collection creation failed")
			return errorResult("Error creating collection: %v", err), nil
		}
		key, ok := result.FirstKey()
		if !ok {
			return errorResult("Error creating collection: %s", result.FailureSummary()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Collection %q created with key `%s`.", name, key)), nil
	})

	moveItemsTool := mcp.NewTool("zotero_move_items_to_collection",
		mcp.WithDescription("Add items to or remove items from a collection. A failed item is reported and the rest continue."),
		mcp.WithString("collection_key", mcp.Required(), mcp.Description("Target collection key")),
		mcp.WithString("item_keys", mcp.Required(), mcp.Description("Item keys, as a JSON array or a single key")),
		mcp.WithString("action", mcp.Description("'add' (default) or 'remove'")),
	)
	s.AddTool(moveItemsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		collectionKey := argString(request, "collection_key")
		if collectionKey == "" {
			return errorResult("Error: collection_key is required"), nil
		}
		keys, err := argStringList(request, "item_keys")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if len(keys) == 0 {
			return errorResult("Error: at least one item key is required"), nil
		}
		action := argStringOr(request, "action", "add")
		if action != "add" && action != "remove" {
			return errorResult("Error: action must be 'add' or 'remove'"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if _, err := client.Collection(ctx, collectionKey); err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no collection found with key %s", collectionKey), nil
			}
			return errorResult("Error fetching collection: %v", err), nil
		}

		moved := 0
		var failures []string
		for _, key := range keys {
			item, err := client.Item(ctx, key)
			if err == nil {
				if action == "add" {
					err = client.AddToCollection(ctx, collectionKey, item)
				} else {
					err = client.RemoveFromCollection(ctx, collectionKey, item)
				}
			}
			if err != nil {
				log.Warn().Str("key", key).Err(err).Msg("collection membership change failed")
				failures = append(failures, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			moved++
		}

		var b strings.Builder
		verb := "added to"
		if action == "remove" {
			verb = "removed from"
		}
		fmt.Fprintf(&b, "%d of %d items %s collection %s.\n", moved, len(keys), verb, collectionKey)
		for _, f := range failures {
			fmt.Fprintf(&b, "- failed %s\n", f)
		}
		return mcp.NewToolResultText(b.String()), nil
	})

	updateCollectionTool := mcp.NewTool("zotero_update_collection",
		mcp.WithDescription("Rename a collection or move it in the hierarchy. Pass an empty parent_key to make it top-level."),
		mcp.WithString("collection_key", mcp.Required(), mcp.Description("Key of the collection to update")),
		mcp.WithString("name", mcp.Description("New name for the collection")),
		mcp.WithString("parent_key", mcp.Description("New parent collection key, or empty string for top level")),
	)
	s.AddTool(updateCollectionTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "collection_key")
		if key == "" {
			return errorResult("Error: collection_key is required"), nil
		}

		client, err := manager.WebClient(ctx)
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

		changed := false
		if name := argString(request, "name"); name != "" {
			col.Data.Name = name
			changed = true
		}
		if raw, present := request.Params.Arguments["parent_key"]; present {
			parent, _ := raw.(string)
			if parent = strings.TrimSpace(parent); parent == "" {
				col.Data.ParentCollection = false
			} else {
				col.Data.ParentCollection = parent
			}
			changed = true
		}
		if !changed {
			return mcp.NewToolResultText("Nothing to update."), nil
		}

		if err := client.UpdateCollection(ctx, col); err != nil {
			log.Error().Str("key", key).Err(err).Msg("collection update failed")
			return errorResult("Error updating collection: %v", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Collection %s updated.", key)), nil
	})

	deleteCollectionTool := mcp.NewTool("zotero_delete_collection",
		mcp.WithDescription("Delete a collection. Its items stay in the library."),
		mcp.WithString("collection_key", mcp.Required(), mcp.Description("Key of the collection to delete")),
	)
	s.AddTool(deleteCollectionTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "collection_key")
		if key == "" {
			return errorResult("Error: collection_key is required"), nil
		}

		client, err := manager.WebClient(ctx)
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
		if err := client.DeleteCollection(ctx, col); err != nil {
			log.Error().Str("key", key).Err(err).Msg("collection deletion failed")
			return errorResult("Error deleting collection: %v", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Collection %q (%s) deleted.", col.Data.Name, key)), nil
	})

	deleteItemsTool := mcp.NewTool("zotero_delete_items",
		mcp.WithDescription("Move items to the trash. A failed item is reported and the rest continue."),
		mcp.WithString("item_keys", mcp.Required(), mcp.Description("Item keys, as a JSON array or a single key")),
	)
	s.AddTool(deleteItemsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		keys, err := argStringList(request, "item_keys")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if len(keys) == 0 {
			return errorResult("Error: at least one item key is required"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		deleted := 0
		var failures []string
		for _, key := range keys {
			item, err := client.Item(ctx, key)
			if err == nil {
				err = client.DeleteItem(ctx, item)
			}
			if err != nil {
				log.Warn().Str("key", key).Err(err).Msg("item deletion failed")
				failures = append(failures, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			deleted++
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%d of %d items deleted.\n", deleted, len(keys))
		for _, f := range failures {
			fmt.Fprintf(&b, "- failed %s\n", f)
		}
		return mcp.NewToolResultText(b.String()), nil
	})
}

// cloneTemplate deep-copies an item template so one fetch can seed many
// creates.
func cloneTemplate(template zotero.ItemData) zotero.ItemData {
	out := make(zotero.ItemData, len(template))
	for k, v := range template {
		out[k] = v
	}
	return out
}

// renderTagResult renders a batch tag run summary.
func renderTagResult(r *tags.Result) string {
	var b strings.Builder
	b.WriteString("# Batch Tag Update\n\n")
	fmt.Fprintf(&b, "**Items processed:** %d\n", r.Processed)
	fmt.Fprintf(&b, "**Items updated:** %d\n", r.Updated)
	fmt.Fprintf(&b, "**Items skipped:** %d\n", r.Skipped)

	writeCounts := func(heading string, counts map[string]int) {
		if len(counts) == 0 {
			return
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "\n## %s\n\n", heading)
		for _, name := range names {
			fmt.Fprintf(&b, "- `%s`: %d items\n", name, counts[name])
		}
	}
	writeCounts("Tags Added", r.AddedCounts)
	writeCounts("Tags Removed", r.RemovedCount)

	if len(r.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	return b.String()
}
