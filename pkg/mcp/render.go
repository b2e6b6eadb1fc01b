package mcp

import (
	"fmt"
	"strings"

	"github.com/zotkit/zotkit/pkg/format"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// renderItemEntry writes one numbered markdown entry for an item list.
func renderItemEntry(b *strings.Builder, n int, item *zotero.Item) {
	d := item.Data
	fmt.Fprintf(b, "## %d. %s\n\n", n, d.Title())
	fmt.Fprintf(b, "**Type:** %s\n", d.ItemType())
	fmt.Fprintf(b, "**Item Key:** %s\n", item.Key)
	if date := d.Str("date"); date != "" {
		fmt.Fprintf(b, "**Date:** %s\n", date)
	}
	fmt.Fprintf(b, "**Authors:** %s\n", format.Creators(d.Creators()))
	if abstract := d.Str("abstractNote"); abstract != "" {
		fmt.Fprintf(b, "\n**Abstract:** %s\n", format.Snippet(abstract, 200))
	}
	if tags := d.Tags(); len(tags) > 0 {
		quoted := make([]string, len(tags))
		for i, t := range tags {
			quoted[i] = "`" + t + "`"
		}
		fmt.Fprintf(b, "**Tags:** %s\n", strings.Join(quoted, " "))
	}
	b.WriteString("\n---\n\n")
}

// renderItemList renders a titled markdown list of items, with a stock
// message when the list is empty.
func renderItemList(title string, items []*zotero.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	if len(items) == 0 {
		b.WriteString("No items found.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Found %d items:\n\n", len(items))
	for i, item := range items {
		renderItemEntry(&b, i+1, item)
	}
	return strings.TrimRight(b.String(), "\n-") + "\n"
}
