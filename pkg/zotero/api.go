package zotero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const apiVersion = "3"

// HTTPClient talks to a Zotero API endpoint: either the hosted web API or
// the HTTP server embedded in a running desktop Zotero. Both speak the same
// protocol; the local endpoint ignores the API key and rejects writes.
type HTTPClient struct {
	base        string // endpoint root, no trailing slash
	prefix      string // "users/123" or "groups/456"
	apiKey      string
	templateAPI string // item templates are only served by the web API
	hc          *http.Client
	log         zerolog.Logger
}

// NewHTTPClient builds a client for one library on one endpoint.
// libraryType must be "user" or "group"; feeds are served by the local
// database adapter, not this client.
func NewHTTPClient(base, libraryType, libraryID, apiKey string, log zerolog.Logger) (*HTTPClient, error) {
	var prefix string
	switch libraryType {
	case "user":
		prefix = "users/" + libraryID
	case "group":
		prefix = "groups/" + libraryID
	default:
		return nil, fmt.Errorf("unsupported library type %q", libraryType)
	}
	return &HTTPClient{
		base:        base,
		prefix:      prefix,
		apiKey:      apiKey,
		templateAPI: "https://api.zotero.org",
		hc:          &http.Client{Timeout: 30 * time.Second},
		log:         log.With().Str("component", "zotero-api").Logger(),
	}, nil
}

func (c *HTTPClient) url(path string, params map[string][]string) string {
	u := c.base + "/" + c.prefix + path
	if len(params) == 0 {
		return u
	}
	q := url.Values(params)
	return u + "?" + q.Encode()
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string, body []byte, headers map[string]string) ([]byte, *http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Zotero-API-Version", apiVersion)
	if c.apiKey != "" {
		req.Header.Set("Zotero-API-Key", c.apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp, err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp, ErrNotFound
	case resp.StatusCode >= 400:
		snippet := string(payload)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, resp, fmt.Errorf("zotero API %s %s: %s: %s", method, rawURL, resp.Status, snippet)
	}
	return payload, resp, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, out any) error {
	payload, _, err := c.do(ctx, http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// Item fetches a single item by key.
func (c *HTTPClient) Item(ctx context.Context, key string) (*Item, error) {
	var item Item
	if err := c.getJSON(ctx, c.url("/items/"+key, nil), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Items fetches one page of top-level items matching the query.
func (c *HTTPClient) Items(ctx context.Context, q ItemQuery) ([]*Item, error) {
	var items []*Item
	if err := c.getJSON(ctx, c.url("/items/top", q.values()), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Children lists an item's child items (attachments, notes, annotations).
func (c *HTTPClient) Children(ctx context.Context, key string, q ItemQuery) ([]*Item, error) {
	var items []*Item
	if err := c.getJSON(ctx, c.url("/items/"+key+"/children", q.values()), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Collections lists the library's collections.
func (c *HTTPClient) Collections(ctx context.Context, limit int) ([]*Collection, error) {
	params := map[string][]string{}
	if limit > 0 {
		params["limit"] = []string{strconv.Itoa(limit)}
	}
	var cols []*Collection
	if err := c.getJSON(ctx, c.url("/collections", params), &cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// Collection fetches one collection by key.
func (c *HTTPClient) Collection(ctx context.Context, key string) (*Collection, error) {
	var col Collection
	if err := c.getJSON(ctx, c.url("/collections/"+key, nil), &col); err != nil {
		return nil, err
	}
	return &col, nil
}

// CollectionItems lists the items filed under a collection.
func (c *HTTPClient) CollectionItems(ctx context.Context, key string, limit int) ([]*Item, error) {
	params := map[string][]string{}
	if limit > 0 {
		params["limit"] = []string{strconv.Itoa(limit)}
	}
	var items []*Item
	if err := c.getJSON(ctx, c.url("/collections/"+key+"/items", params), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Tags lists the library's tag labels.
func (c *HTTPClient) Tags(ctx context.Context, limit int) ([]string, error) {
	params := map[string][]string{}
	if limit > 0 {
		params["limit"] = []string{strconv.Itoa(limit)}
	}
	var raw []struct {
		Tag string `json:"tag"`
	}
	if err := c.getJSON(ctx, c.url("/tags", params), &raw); err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if t.Tag != "" {
			tags = append(tags, t.Tag)
		}
	}
	return tags, nil
}

// FulltextItem returns the indexed full text of an attachment, if Zotero has
// indexed it.
func (c *HTTPClient) FulltextItem(ctx context.Context, key string) (string, error) {
	var out struct {
		Content string `json:"content"`
	}
	if err := c.getJSON(ctx, c.url("/items/"+key+"/fulltext", nil), &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// DownloadAttachment streams an attachment file into dir and returns the
// written path. The caller owns dir and its cleanup.
func (c *HTTPClient) DownloadAttachment(ctx context.Context, key, dir string) (string, error) {
	payload, resp, err := c.do(ctx, http.MethodGet, c.url("/items/"+key+"/file", nil), nil, nil)
	if err != nil {
		return "", err
	}
	name := key + ".pdf"
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			name = filepath.Base(params["filename"])
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("writing attachment %s: %w", key, err)
	}
	return path, nil
}

// Groups lists group libraries accessible to the key. Always served by the
// web API under the user prefix.
func (c *HTTPClient) Groups(ctx context.Context) ([]*Group, error) {
	var groups []*Group
	if err := c.getJSON(ctx, c.url("/groups", nil), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ItemTemplate fetches an empty item payload for the given type from the web
// API (the template endpoint requires no credentials).
func (c *HTTPClient) ItemTemplate(ctx context.Context, itemType string) (ItemData, error) {
	rawURL := c.templateAPI + "/items/new?itemType=" + url.QueryEscape(itemType)
	var data ItemData
	if err := c.getJSON(ctx, rawURL, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// CreateItems posts a batch of new items.
func (c *HTTPClient) CreateItems(ctx context.Context, items []ItemData) (*WriteResult, error) {
	body, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	payload, _, err := c.do(ctx, http.MethodPost, c.url("/items", nil), body, nil)
	if err != nil {
		return nil, err
	}
	var result WriteResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding create response: %w", err)
	}
	return &result, nil
}

// UpdateItem writes back a modified item, guarded by its version.
func (c *HTTPClient) UpdateItem(ctx context.Context, item *Item) error {
	body, err := json.Marshal(item.Data)
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodPut, c.url("/items/"+item.Key, nil), body, versionHeader(item.Version))
	return err
}

// DeleteItem moves an item to the trash.
func (c *HTTPClient) DeleteItem(ctx context.Context, item *Item) error {
	_, _, err := c.do(ctx, http.MethodDelete, c.url("/items/"+item.Key, nil), nil, versionHeader(item.Version))
	return err
}

// CreateCollections posts a batch of new collections.
func (c *HTTPClient) CreateCollections(ctx context.Context, cols []CollectionData) (*WriteResult, error) {
	body, err := json.Marshal(cols)
	if err != nil {
		return nil, err
	}
	payload, _, err := c.do(ctx, http.MethodPost, c.url("/collections", nil), body, nil)
	if err != nil {
		return nil, err
	}
	var result WriteResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding create response: %w", err)
	}
	return &result, nil
}

// UpdateCollection writes back a modified collection.
func (c *HTTPClient) UpdateCollection(ctx context.Context, col *Collection) error {
	body, err := json.Marshal(col.Data)
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodPut, c.url("/collections/"+col.Key, nil), body, versionHeader(col.Version))
	return err
}

// DeleteCollection removes a collection. Items inside it stay in the library.
func (c *HTTPClient) DeleteCollection(ctx context.Context, col *Collection) error {
	_, _, err := c.do(ctx, http.MethodDelete, c.url("/collections/"+col.Key, nil), nil, versionHeader(col.Version))
	return err
}

// AddToCollection files an item into a collection via membership update.
func (c *HTTPClient) AddToCollection(ctx context.Context, collectionKey string, item *Item) error {
	keys := item.Data.Collections()
	for _, k := range keys {
		if k == collectionKey {
			return nil
		}
	}
	item.Data.SetCollections(append(keys, collectionKey))
	return c.UpdateItem(ctx, item)
}

// RemoveFromCollection removes an item from a collection via membership
// update.
func (c *HTTPClient) RemoveFromCollection(ctx context.Context, collectionKey string, item *Item) error {
	keys := item.Data.Collections()
	kept := keys[:0]
	for _, k := range keys {
		if k != collectionKey {
			kept = append(kept, k)
		}
	}
	if len(kept) == len(keys) {
		return nil
	}
	item.Data.SetCollections(kept)
	return c.UpdateItem(ctx, item)
}

func versionHeader(version int) map[string]string {
	return map[string]string{"If-Unmodified-Since-Version": strconv.Itoa(version)}
}
