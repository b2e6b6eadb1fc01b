package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// DefaultArxivBase is the arXiv Atom export endpoint.
const DefaultArxivBase = "http://export.arxiv.org/api/query"

// ArxivClient resolves preprint metadata from the arXiv Atom API.
type ArxivClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewArxivClient builds a client against base; an empty base uses the public
// endpoint.
func NewArxivClient(base string, log zerolog.Logger) *ArxivClient {
	if base == "" {
		base = DefaultArxivBase
	}
	return &ArxivClient{
		base: base,
		hc:   &http.Client{Timeout: 30 * time.Second},
		log:  log.With().Str("component", "arxiv").Logger(),
	}
}

// NormalizeArxivID strips the URL and DOI prefixes callers paste in, leaving
// the bare identifier (e.g. "2301.12345" or "math/0211159").
func NormalizeArxivID(raw string) string {
	id := strings.TrimSpace(raw)
	for _, prefix := range []string{
		"https://arxiv.org/abs/",
		"http://arxiv.org/abs/",
		"https://arxiv.org/pdf/",
		"10.48550/arXiv.",
		"10.48550/arxiv.",
		"arXiv:",
		"arxiv:",
	} {
		if strings.HasPrefix(id, prefix) {
			id = id[len(prefix):]
			break
		}
	}
	return strings.TrimSuffix(id, ".pdf")
}

// ArxivEntry is one resolved preprint.
type ArxivEntry struct {
	ID         string
	Title      string
	Abstract   string
	Published  string // YYYY-MM-DD
	URL        string
	Authors    []string
	Categories []string
}

type atomFeed struct {
	Entries []struct {
		ID        string `xml:"id"`
		Title     string `xml:"title"`
		Summary   string `xml:"summary"`
		Published string `xml:"published"`
		Authors   []struct {
			Name string `xml:"name"`
		} `xml:"author"`
		Categories []struct {
			Term string `xml:"term,attr"`
		} `xml:"category"`
	} `xml:"entry"`
}

// Entry resolves one arXiv ID.
func (c *ArxivClient) Entry(ctx context.Context, id string) (*ArxivEntry, error) {
	id = NormalizeArxivID(id)
	if id == "" {
		return nil, fmt.Errorf("arXiv ID is empty")
	}

	endpoint := c.base + "?id_list=" + url.QueryEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying arXiv for %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("arXiv returned %d for %s", resp.StatusCode, id)
	}

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding arXiv response for %s: %w", id, err)
	}
	if len(feed.Entries) == 0 {
		return nil, fmt.Errorf("arXiv ID %s not found", id)
	}

	raw := feed.Entries[0]
	// A query for a bad ID still yields one entry, with an error title and
	// no authors.
	if len(raw.Authors) == 0 {
		return nil, fmt.Errorf("arXiv ID %s not found", id)
	}

	entry := &ArxivEntry{
		ID:       id,
		Title:    strings.Join(strings.Fields(raw.Title), " "),
		Abstract: strings.Join(strings.Fields(raw.Summary), " "),
		URL:      "https://arxiv.org/abs/" + id,
	}
	if len(raw.Published) >= 10 {
		entry.Published = raw.Published[:10]
	}
	for _, a := range raw.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			entry.Authors = append(entry.Authors, name)
		}
	}
	for _, cat := range raw.Categories {
		if cat.Term != "" {
			entry.Categories = append(entry.Categories, cat.Term)
		}
	}
	return entry, nil
}

// Populate copies the entry's metadata onto a preprint item template.
func (e *ArxivEntry) Populate(d zotero.ItemData) {
	d["title"] = e.Title
	d["abstractNote"] = e.Abstract
	d["repository"] = "arXiv"
	d["archiveID"] = "arXiv:" + e.ID
	d["url"] = e.URL
	if e.Published != "" {
		d["date"] = e.Published
	}

	if len(e.Authors) > 0 {
		creators := make([]any, 0, len(e.Authors))
		for _, name := range e.Authors {
			first, last := splitName(name)
			creators = append(creators, map[string]any{
				"creatorType": "author",
				"firstName":   first,
				"lastName":    last,
			})
		}
		d["creators"] = creators
	}
	if len(e.Categories) > 0 {
		d["tags"] = []any{map[string]any{"tag": e.Categories[0]}}
	}
}

// splitName breaks a display name at the last space: everything before is
// the given name, the final token the family name.
func splitName(name string) (first, last string) {
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return "", name
	}
	return name[:idx], name[idx+1:]
}
