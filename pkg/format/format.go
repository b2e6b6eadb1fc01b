// Package format renders Zotero objects as the markdown, BibTeX, and note
// HTML served to tool callers.
package format

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// Creators renders an item's creator list as a single display string.
func Creators(creators []zotero.Creator) string {
	names := make([]string, 0, len(creators))
	for _, c := range creators {
		full := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
		if full == "" {
			full = strings.TrimSpace(c.Name)
		}
		if full != "" {
			names = append(names, full)
		}
	}
	if len(names) == 0 {
		return "No authors"
	}
	return strings.Join(names, ", ")
}

// CleanHTML strips markup from note HTML, keeping paragraph structure as
// blank lines. Entities are decoded by the tokenizer.
func CleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseBlankLines(strings.TrimSpace(b.String()))
		case html.TextToken:
			b.WriteString(string(tokenizer.Text()))
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "p", "div", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "tr":
				b.WriteString("\n\n")
			case "br":
				b.WriteString("\n")
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Snippet shortens text to max runes, appending an ellipsis when truncated.
func Snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

// ItemMetadata renders an item's metadata as markdown.
func ItemMetadata(item *zotero.Item, includeAbstract bool) string {
	d := item.Data
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title())
	fmt.Fprintf(&b, "**Type:** %s\n", d.ItemType())
	fmt.Fprintf(&b, "**Item Key:** %s\n", item.Key)
	fmt.Fprintf(&b, "**Authors:** %s\n", Creators(d.Creators()))

	optional := []struct{ label, field string }{
		{"Date", "date"},
		{"Publication", "publicationTitle"},
		{"Volume", "volume"},
		{"Issue", "issue"},
		{"Pages", "pages"},
		{"Publisher", "publisher"},
		{"DOI", "DOI"},
		{"URL", "url"},
		{"Language", "language"},
	}
	for _, f := range optional {
		if v := d.Str(f.field); v != "" {
			fmt.Fprintf(&b, "**%s:** %s\n", f.label, v)
		}
	}

	if tags := d.Tags(); len(tags) > 0 {
		quoted := make([]string, len(tags))
		for i, t := range tags {
			quoted[i] = "`" + t + "`"
		}
		fmt.Fprintf(&b, "**Tags:** %s\n", strings.Join(quoted, " "))
	}

	if includeAbstract {
		if abstract := d.Str("abstractNote"); abstract != "" {
			fmt.Fprintf(&b, "\n## Abstract\n\n%s\n", abstract)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

var bibtexTypes = map[string]string{
	"journalArticle":  "article",
	"book":            "book",
	"bookSection":     "incollection",
	"conferencePaper": "inproceedings",
	"thesis":          "phdthesis",
	"report":          "techreport",
	"preprint":        "misc",
	"webpage":         "misc",
}

// BibTeX renders an item as a BibTeX entry. The citation key is derived from
// the first creator's surname and the publication year.
func BibTeX(item *zotero.Item) string {
	d := item.Data
	entryType, ok := bibtexTypes[d.ItemType()]
	if !ok {
		entryType = "misc"
	}

	year := ""
	if date := d.Str("date"); len(date) >= 4 {
		year = date[:4]
	}

	citeKey := strings.ToLower(item.Key)
	creators := d.Creators()
	if len(creators) > 0 {
		surname := creators[0].LastName
		if surname == "" {
			surname = creators[0].Name
		}
		surname = strings.ToLower(strings.ReplaceAll(surname, " ", ""))
		if surname != "" {
			citeKey = surname + year
		}
	}

	var authors []string
	for _, c := range creators {
		if c.CreatorType != "" && c.CreatorType != "author" {
			continue
		}
		switch {
		case c.LastName != "":
			authors = append(authors, strings.TrimSpace(c.LastName+", "+c.FirstName))
		case c.Name != "":
			authors = append(authors, "{"+c.Name+"}")
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "@%s{%s,\n", entryType, citeKey)
	writeField := func(name, value string) {
		if value != "" {
			fmt.Fprintf(&b, "  %s = {%s},\n", name, value)
		}
	}
	writeField("title", d.Str("title"))
	writeField("author", strings.Join(authors, " and "))
	writeField("year", year)
	writeField("journal", d.Str("publicationTitle"))
	writeField("booktitle", d.Str("proceedingsTitle"))
	writeField("volume", d.Str("volume"))
	writeField("number", d.Str("issue"))
	writeField("pages", d.Str("pages"))
	writeField("publisher", d.Str("publisher"))
	writeField("doi", d.Str("DOI"))
	writeField("url", d.Str("url"))
	b.WriteString("}")
	return b.String()
}

// NoteHTML builds the HTML body of a new note. Text that already carries
// paragraph markup is used as-is; plain text is wrapped in paragraphs with
// line breaks preserved. A non-empty title becomes a leading heading.
func NoteHTML(title, text string) string {
	var body string
	if strings.Contains(text, "<p>") || strings.Contains(text, "<div>") {
		body = text
	} else {
		var parts []string
		for _, p := range strings.Split(text, "\n\n") {
			parts = append(parts, "<p>"+strings.ReplaceAll(p, "\n", "<br/>")+"</p>")
		}
		body = strings.Join(parts, "")
	}
	if title = strings.TrimSpace(title); title != "" {
		escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(title)
		body = "<h1>" + escaped + "</h1>" + body
	}
	return body
}
