package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/annotations"
	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/library"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// annotationPageSize is the scan batch size for library-wide annotation
// listing.
const annotationPageSize = 100

// RegisterNoteTools wires the note and annotation tools.
func RegisterNoteTools(s *server.MCPServer, manager *library.Manager, log zerolog.Logger) {
	log = log.With().Str("component", "note-tools").Logger()

	annotationsTool := mcp.NewTool("zotero_get_annotations",
		mcp.WithDescription("Fetch PDF annotations. With an item_key, sources are tried in order (Better BibTeX bridge, Zotero API, direct PDF extraction) and the first one with results wins; without one, every annotation in the library is listed."),
		mcp.WithString("item_key", mcp.Description("Parent item key; omit for a library-wide listing")),
		mcp.WithBoolean("use_pdf_extraction", mcp.Description("Allow downloading PDFs and extracting annotations directly (default false)")),
		mcp.WithNumber("limit", mcp.Description("Maximum annotations for library-wide listing (default 100)")),
	)
	s.AddTool(annotationsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		key := argString(request, "item_key")
		if key == "" {
			annos, err := libraryAnnotations(ctx, client, argInt(request, "limit", 100))
			if err != nil {
				log.Error().Err(err).Msg("library annotation scan failed")
				return errorResult("Error fetching annotations: %v", err), nil
			}
			return mcp.NewToolResultText(renderAnnotations("Library Annotations", annos)), nil
		}

		item, err := client.Item(ctx, key)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no item found with key %s", key), nil
			}
			return errorResult("Error fetching item: %v", err), nil
		}

		aggregator := buildAggregator(client, argBool(request, "use_pdf_extraction"), log)
		annos := aggregator.ForItem(ctx, item)
		title := fmt.Sprintf("Annotations for: %s", item.Data.Title())
		return mcp.NewToolResultText(renderAnnotations(title, annos)), nil
	})

	notesTool := mcp.NewTool("zotero_get_notes",
		mcp.WithDescription("Fetch notes: the notes attached to one item, or the most recent notes across the library."),
		mcp.WithString("item_key", mcp.Description("Parent item key; omit for a library-wide listing")),
		mcp.WithNumber("limit", mcp.Description("Maximum notes to return (default 20)")),
	)
	s.AddTool(notesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		limit := argInt(request, "limit", 20)

		var notes []*zotero.Item
		title := "Zotero Notes"
		if key := argString(request, "item_key"); key != "" {
			parent, err := client.Item(ctx, key)
			if err != nil {
				if errors.Is(err, zotero.ErrNotFound) {
					return errorResult("Error: no item found with key %s", key), nil
				}
				return errorResult("Error fetching item: %v", err), nil
			}
			title = "Notes for: " + parent.Data.Title()
			notes, err = client.Children(ctx, key, zotero.ItemQuery{ItemType: "note", Limit: limit})
			if err != nil {
				return errorResult("Error fetching notes: %v", err), nil
			}
		} else {
			notes, err = client.Items(ctx, zotero.ItemQuery{ItemType: "note", Sort: "dateModified", Direction: "desc", Limit: limit})
			if err != nil {
				log.Error().Err(err).Msg("note listing failed")
				return errorResult("Error fetching notes: %v", err), nil
			}
		}
		return mcp.NewToolResultText(renderNotes(title, notes)), nil
	})

	searchNotesTool := mcp.NewTool("zotero_search_notes",
		mcp.WithDescription("Search note contents for a phrase. Matches are shown with surrounding context and the phrase highlighted; annotation text is searched as well."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to search for")),
		mcp.WithNumber("limit", mcp.Description("Maximum matches to return (default 20)")),
	)
	s.AddTool(searchNotesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := argString(request, "query")
		if query == "" {
			return errorResult("Error: search query is required"), nil
		}
		limit := argInt(request, "limit", 20)

		client, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		notes, err := client.Items(ctx, zotero.ItemQuery{Q: query, QMode: "everything", ItemType: "note", Limit: limit})
		if err != nil {
			log.Error().Str("query", query).Err(err).Msg("note search failed")
			return errorResult("Error searching notes: %v", err), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "# Note Search Results for: %s\n\n", query)
		matches := 0
		for _, note := range notes {
			text := format.CleanHTML(note.Data.Str("note"))
			excerpt, ok := highlightMatch(text, query)
			if !ok {
				continue
			}
			matches++
			fmt.Fprintf(&b, "## Note `%s`\n\n%s\n\n", note.Key, excerpt)
		}

		annos, err := client.Items(ctx, zotero.ItemQuery{Q: query, QMode: "everything", ItemType: "annotation", Limit: limit})
		if err == nil {
			for _, a := range annos {
				text := a.Data.Str("annotationText")
				if text == "" {
					text = a.Data.Str("annotationComment")
				}
				excerpt, ok := highlightMatch(text, query)
				if !ok {
					continue
				}
				matches++
				fmt.Fprintf(&b, "## Annotation `%s`\n\n%s\n\n", a.Key, excerpt)
			}
		}

		if matches == 0 {
			b.WriteString("No matching notes found.\n")
		}
		return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n") + "\n"), nil
	})

	createNoteTool := mcp.NewTool("zotero_create_note",
		mcp.WithDescription("Attach a new note to an item. Requires web API credentials."),
		mcp.WithString("item_key", mcp.Required(), mcp.Description("Parent item key")),
		mcp.WithString("note_title", mcp.Description("Optional heading for the note")),
		mcp.WithString("note_text", mcp.Required(), mcp.Description("Note body; plain text is converted to HTML paragraphs")),
		mcp.WithString("tags", mcp.Description("Tags for the note as a JSON array")),
	)
	s.AddTool(createNoteTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "item_key")
		text := argString(request, "note_text")
		if key == "" || text == "" {
			return errorResult("Error: item_key and note_text are required"), nil
		}
		tags, err := argStringList(request, "tags")
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		reader, err := manager.Client(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		if _, err := reader.Item(ctx, key); err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no item found with key %s", key), nil
			}
			return errorResult("Error verifying parent item: %v", err), nil
		}

		writer, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}

		note := zotero.ItemData{
			"itemType":   "note",
			"parentItem": key,
			"note":       format.NoteHTML(argString(request, "note_title"), text),
		}
		if len(tags) > 0 {
			note.SetTags(tags)
		}

		result, err := writer.CreateItems(ctx, []zotero.ItemData{note})
		if err != nil {
			log.Error().Str("parent", key).Err(err).Msg("note creation failed")
			return errorResult("Error creating note: %v", err), nil
		}
		created, ok := result.FirstKey()
		if !ok {
			return errorResult("Error creating note: %s", result.FailureSummary()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Note created with key %s (parent %s).", created, key)), nil
	})

	updateNoteTool := mcp.NewTool("zotero_update_note",
		mcp.WithDescription("Replace the content of an existing note. Requires web API credentials."),
		mcp.WithString("note_key", mcp.Required(), mcp.Description("Key of the note to update")),
		mcp.WithString("note_title", mcp.Description("Optional heading for the replacement content")),
		mcp.WithString("new_text", mcp.Required(), mcp.Description("Replacement note body")),
	)
	s.AddTool(updateNoteTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key := argString(request, "note_key")
		text := argString(request, "new_text")
		if key == "" || text == "" {
			return errorResult("Error: note_key and new_text are required"), nil
		}

		client, err := manager.WebClient(ctx)
		if err != nil {
			return errorResult("Error: %v", err), nil
		}
		note, err := client.Item(ctx, key)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				return errorResult("Error: no item found with key %s", key), nil
			}
			return errorResult("Error fetching note: %v", err), nil
		}
		if note.Data.ItemType() != "note" {
			return errorResult("Error: item %s is a %s, not a note", key, note.Data.ItemType()), nil
		}

		note.Data["note"] = format.NoteHTML(argString(request, "note_title"), text)
		if err := client.UpdateItem(ctx, note); err != nil {
			log.Error().Str("key", key).Err(err).Msg("note update failed")
			return errorResult("Error updating note: %v", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Note %s updated.", key)), nil
	})
}

// buildAggregator assembles the annotation source chain for one request.
// The Better BibTeX bridge lives inside a running desktop Zotero, so that
// source only applies in local mode; in web mode the chain starts at the API
// children provider.
func buildAggregator(client zotero.Client, usePDF bool, log zerolog.Logger) *annotations.Aggregator {
	env := config.Read()
	var providers []annotations.Provider
	if env.Local {
		providers = append(providers, annotations.NewBBTProvider(annotations.NewBBTClient(env.BetterBibTeXURL, log), log))
	}
	providers = append(providers, annotations.NewAPIProvider(client))
	if usePDF {
		providers = append(providers, annotations.NewPDFProvider(client, log))
	}
	return annotations.NewAggregator(log, providers...)
}

// libraryAnnotations pages through every annotation item in the library.
func libraryAnnotations(ctx context.Context, client zotero.Client, limit int) ([]annotations.Annotation, error) {
	if limit <= 0 {
		limit = 100
	}
	var out []annotations.Annotation
	for start := 0; len(out) < limit; start += annotationPageSize {
		batch, err := client.Items(ctx, zotero.ItemQuery{ItemType: "annotation", Start: start, Limit: annotationPageSize})
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, item := range batch {
			out = append(out, annotations.FromItem(item))
			if len(out) >= limit {
				break
			}
		}
		if len(batch) < annotationPageSize {
			break
		}
	}
	return out, nil
}

// renderAnnotations renders an annotation list as markdown.
func renderAnnotations(title string, annos []annotations.Annotation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(annos) == 0 {
		b.WriteString("No annotations found.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Found %d annotations:\n\n", len(annos))
	for i, a := range annos {
		annoType := a.Type
		if annoType == "" {
			annoType = "highlight"
		}
		fmt.Fprintf(&b, "## %d. %s", i+1, capitalize(annoType))
		if a.ColorCategory != "" {
			fmt.Fprintf(&b, " (%s)", a.ColorCategory)
		}
		b.WriteString("\n\n")
		if a.Text != "" {
			fmt.Fprintf(&b, "> %s\n\n", a.Text)
		}
		if a.Comment != "" {
			fmt.Fprintf(&b, "**Comment:** %s\n", a.Comment)
		}
		if a.PageLabel != "" {
			fmt.Fprintf(&b, "**Page:** %s\n", a.PageLabel)
		} else if a.Page > 0 {
			fmt.Fprintf(&b, "**Page:** %d\n", a.Page)
		}
		if a.AttachmentTitle != "" {
			fmt.Fprintf(&b, "**Attachment:** %s\n", a.AttachmentTitle)
		}
		if a.ParentItem != "" {
			fmt.Fprintf(&b, "**Parent Item:** %s\n", a.ParentItem)
		}
		if len(a.Tags) > 0 {
			fmt.Fprintf(&b, "**Tags:** %s\n", strings.Join(a.Tags, ", "))
		}
		fmt.Fprintf(&b, "**Source:** %s\n\n", a.Source)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// renderNotes renders notes with their content cleaned and truncated.
func renderNotes(title string, notes []*zotero.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(notes) == 0 {
		b.WriteString("No notes found.\n")
		return b.String()
	}
	for i, note := range notes {
		fmt.Fprintf(&b, "## %d. Note `%s`\n\n", i+1, note.Key)
		if parent := note.Data.Str("parentItem"); parent != "" {
			fmt.Fprintf(&b, "**Parent Item:** %s\n", parent)
		}
		if tags := note.Data.Tags(); len(tags) > 0 {
			fmt.Fprintf(&b, "**Tags:** %s\n", strings.Join(tags, ", "))
		}
		text := format.CleanHTML(note.Data.Str("note"))
		if text == "" {
			text = "[Empty note]"
		}
		fmt.Fprintf(&b, "\n%s\n\n", format.Snippet(text, 500))
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// highlightMatch finds the first case-insensitive occurrence of query in
// text and returns it with surrounding context, the match bolded.
func highlightMatch(text, query string) (string, bool) {
	if text == "" {
		return "", false
	}
	idx := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if idx < 0 {
		return "", false
	}

	const before, after = 100, 200
	start := idx - before
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + after
	if end > len(text) {
		end = len(text)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[start:idx])
	b.WriteString("**")
	b.WriteString(text[idx : idx+len(query)])
	b.WriteString("**")
	b.WriteString(text[idx+len(query) : end])
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String(), true
}
