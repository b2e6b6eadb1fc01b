// Package ingest resolves bibliographic metadata from external sources
// (CrossRef, arXiv, plain web pages) into Zotero item data for import.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// DefaultCrossRefBase is the public CrossRef REST endpoint.
const DefaultCrossRefBase = "https://api.crossref.org"

// CrossRefClient looks up works by DOI.
type CrossRefClient struct {
	base string
	hc   *http.Client
	log  zerolog.Logger
}

// NewCrossRefClient builds a client against base; an empty base uses the
// public endpoint.
func NewCrossRefClient(base string, log zerolog.Logger) *CrossRefClient {
	if base == "" {
		base = DefaultCrossRefBase
	}
	return &CrossRefClient{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		log:  log.With().Str("component", "crossref").Logger(),
	}
}

// Author is one contributor of a resolved work.
type Author struct {
	Given  string
	Family string
}

// Work is the subset of CrossRef metadata mapped onto Zotero fields.
type Work struct {
	DOI            string
	Title          string
	ContainerTitle string
	Volume         string
	Issue          string
	Pages          string
	Abstract       string
	URL            string
	Date           string // YYYY, YYYY-M, or YYYY-M-D
	Authors        []Author
}

type crossRefResponse struct {
	Message struct {
		DOI            string   `json:"DOI"`
		Title          []string `json:"title"`
		ContainerTitle []string `json:"container-title"`
		Volume         string   `json:"volume"`
		Issue          string   `json:"issue"`
		Page           string   `json:"page"`
		Abstract       string   `json:"abstract"`
		URL            string   `json:"URL"`
		Author         []struct {
			Given  string `json:"given"`
			Family string `json:"family"`
		} `json:"author"`
		Issued struct {
			DateParts [][]int `json:"date-parts"`
		} `json:"issued"`
	} `json:"message"`
}

// Work resolves one DOI.
func (c *CrossRefClient) Work(ctx context.Context, doi string) (*Work, error) {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	if doi == "" {
		return nil, fmt.Errorf("DOI is empty")
	}

	endpoint := c.base + "/works/" + url.PathEscape(doi)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying CrossRef for %s: %w", doi, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("DOI %s not found on CrossRef", doi)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("CrossRef returned %d for %s", resp.StatusCode, doi)
	}

	var decoded crossRefResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding CrossRef response for %s: %w", doi, err)
	}

	m := decoded.Message
	work := &Work{
		DOI:      m.DOI,
		Volume:   m.Volume,
		Issue:    m.Issue,
		Pages:    m.Page,
		Abstract: stripJATS(m.Abstract),
		URL:      m.URL,
	}
	if len(m.Title) > 0 {
		work.Title = m.Title[0]
	}
	if len(m.ContainerTitle) > 0 {
		work.ContainerTitle = m.ContainerTitle[0]
	}
	for _, a := range m.Author {
		work.Authors = append(work.Authors, Author{Given: a.Given, Family: a.Family})
	}
	if len(m.Issued.DateParts) > 0 {
		parts := m.Issued.DateParts[0]
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = fmt.Sprintf("%d", p)
		}
		work.Date = strings.Join(strs, "-")
	}
	return work, nil
}

// Populate copies the work's metadata onto a journalArticle item template.
func (w *Work) Populate(d zotero.ItemData) {
	set := func(field, value string) {
		if value != "" {
			d[field] = value
		}
	}
	set("title", w.Title)
	set("publicationTitle", w.ContainerTitle)
	set("volume", w.Volume)
	set("issue", w.Issue)
	set("pages", w.Pages)
	set("abstractNote", w.Abstract)
	set("DOI", w.DOI)
	set("url", w.URL)
	set("date", w.Date)

	if len(w.Authors) > 0 {
		creators := make([]any, 0, len(w.Authors))
		for _, a := range w.Authors {
			creators = append(creators, map[string]any{
				"creatorType": "author",
				"firstName":   a.Given,
				"lastName":    a.Family,
			})
		}
		d["creators"] = creators
	}
}

// stripJATS removes the JATS markup CrossRef wraps abstracts in.
func stripJATS(s string) string {
	if s == "" {
		return ""
	}
	for _, tag := range []string{"<jats:p>", "</jats:p>", "<jats:title>", "</jats:title>", "<jats:sec>", "</jats:sec>"} {
		s = strings.ReplaceAll(s, tag, " ")
	}
	return strings.Join(strings.Fields(s), " ")
}
