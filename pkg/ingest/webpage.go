package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// Webpage is the metadata scraped from an HTML page for a webpage item.
type Webpage struct {
	URL         string
	Title       string
	Description string
}

// FetchWebpage downloads a page and scrapes its title and description.
// Open Graph tags win over the document title; a page without either keeps
// the URL as its title.
func FetchWebpage(ctx context.Context, pageURL string) (*Webpage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", "zotkit (reference manager)")

	hc := &http.Client{Timeout: 30 * time.Second}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetching %s: status %d", pageURL, resp.StatusCode)
	}

	page := &Webpage{URL: pageURL}
	var docTitle string

	tokenizer := html.NewTokenizer(resp.Body)
	inTitle := false
scan:
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			break scan
		case html.TextToken:
			if inTitle {
				docTitle += string(tokenizer.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			switch string(name) {
			case "title":
				inTitle = true
			case "meta":
				var property, content string
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = tokenizer.TagAttr()
					switch string(key) {
					case "property", "name":
						property = string(val)
					case "content":
						content = string(val)
					}
				}
				switch property {
				case "og:title":
					page.Title = content
				case "og:description", "description":
					if page.Description == "" {
						page.Description = content
					}
				}
			case "body":
				// Metadata lives in the head; no need to scan the body.
				break scan
			}
		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "title" {
				inTitle = false
			}
		}
	}

	if page.Title == "" {
		page.Title = strings.TrimSpace(docTitle)
	}
	if page.Title == "" {
		page.Title = pageURL
	}
	return page, nil
}

// Populate copies the page's metadata onto a webpage item template. The
// access date is stamped with today.
func (p *Webpage) Populate(d zotero.ItemData) {
	d["title"] = p.Title
	d["url"] = p.URL
	if p.Description != "" {
		d["abstractNote"] = p.Description
	}
	d["accessDate"] = time.Now().Format("2006-01-02")
}
