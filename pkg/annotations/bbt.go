package annotations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BBTClient talks to the Better BibTeX plugin's JSON-RPC bridge inside a
// running desktop Zotero.
type BBTClient struct {
	url string
	hc  *http.Client
	log zerolog.Logger
}

// NewBBTClient builds a client for the JSON-RPC endpoint at url.
func NewBBTClient(url string, log zerolog.Logger) *BBTClient {
	return &BBTClient{
		url: url,
		hc:  &http.Client{Timeout: 10 * time.Second},
		log: log.With().Str("component", "better-bibtex").Logger(),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      string `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *BBTClient) call(ctx context.Context, method string, params []any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: uuid.NewString()})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("better-bibtex %s: %s", method, resp.Status)
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding better-bibtex %s response: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("better-bibtex %s: %s (code %d)", method, envelope.Error.Message, envelope.Error.Code)
	}
	if out != nil && envelope.Result != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decoding better-bibtex %s result: %w", method, err)
		}
	}
	return nil
}

// Running reports whether a Zotero with Better BibTeX answers on the bridge.
func (c *BBTClient) Running(ctx context.Context) bool {
	err := c.call(ctx, "user.groups", nil, nil)
	if err != nil {
		c.log.Debug().Err(err).Msg("better-bibtex bridge not reachable")
	}
	return err == nil
}

// BBTItem is a search hit from the bridge.
type BBTItem struct {
	Citekey string `json:"citekey"`
	Library string `json:"library"`
	Title   string `json:"title"`
}

// SearchCiteKeys looks items up by free-text term.
func (c *BBTClient) SearchCiteKeys(ctx context.Context, term string) ([]BBTItem, error) {
	var items []BBTItem
	if err := c.call(ctx, "item.search", []any{term}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// BBTAnnotation is one annotation as reported by the bridge.
type BBTAnnotation struct {
	Key       string `json:"key"`
	Type      string `json:"annotationType"`
	Text      string `json:"annotationText"`
	Comment   string `json:"annotationComment"`
	Color     string `json:"annotationColor"`
	PageLabel string `json:"annotationPageLabel"`
	Page      int    `json:"annotationPosition,omitempty"`
}

// BBTAttachment is one attachment of an item, with its annotations inlined.
type BBTAttachment struct {
	Title       string          `json:"title"`
	Path        string          `json:"path"`
	Annotations []BBTAnnotation `json:"annotations"`
}

// Attachments lists an item's attachments by citation key. Library may be
// "*" to search all libraries.
func (c *BBTClient) Attachments(ctx context.Context, citekey, library string) ([]BBTAttachment, error) {
	var attachments []BBTAttachment
	if err := c.call(ctx, "item.attachments", []any{citekey, library}, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}
