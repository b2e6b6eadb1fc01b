// Package annotations aggregates PDF annotations for library items from
// three sources of decreasing fidelity: the Better BibTeX plugin bridge, the
// Zotero API's annotation children, and direct extraction from downloaded
// PDF files. Sources are consulted in order and the first one to produce
// results wins; a source failure is logged and treated as empty.
package annotations

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/zotero"
)

// Source identifies where an annotation came from.
type Source string

const (
	SourceBetterBibTeX Source = "better-bibtex"
	SourceAPI          Source = "api"
	SourcePDF          Source = "pdf-extraction"
)

// Annotation is the normalized annotation shape shared by all sources.
type Annotation struct {
	Key             string   `json:"key"`
	Type            string   `json:"type"`
	Text            string   `json:"text,omitempty"`
	Comment         string   `json:"comment,omitempty"`
	Color           string   `json:"color,omitempty"`
	ColorCategory   string   `json:"colorCategory,omitempty"`
	Page            int      `json:"page,omitempty"`
	PageLabel       string   `json:"pageLabel,omitempty"`
	AttachmentTitle string   `json:"attachmentTitle,omitempty"`
	ParentItem      string   `json:"parentItem,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Source          Source   `json:"source"`
}

// Provider is one annotation source. TryFetch returns whatever the source
// can produce for the item; an error means the source is unavailable, not
// that the request failed.
type Provider interface {
	Name() string
	TryFetch(ctx context.Context, item *zotero.Item) ([]Annotation, error)
}

// Aggregator runs providers in order, stopping at the first non-empty
// result.
type Aggregator struct {
	providers []Provider
	log       zerolog.Logger
}

// NewAggregator builds an aggregator over the given providers, consulted in
// the order supplied.
func NewAggregator(log zerolog.Logger, providers ...Provider) *Aggregator {
	return &Aggregator{providers: providers, log: log.With().Str("component", "annotations").Logger()}
}

// ForItem fetches annotations for one item. Provider failures degrade to
// empty results; later providers are only consulted when every earlier one
// came up empty.
func (a *Aggregator) ForItem(ctx context.Context, item *zotero.Item) []Annotation {
	for _, p := range a.providers {
		annotations, err := p.TryFetch(ctx, item)
		if err != nil {
			a.log.Warn().Str("provider", p.Name()).Err(err).Msg("annotation source unavailable, trying next")
			continue
		}
		if len(annotations) > 0 {
			a.log.Debug().Str("provider", p.Name()).Int("count", len(annotations)).Msg("annotations retrieved")
			return annotations
		}
	}
	return nil
}

// zoteroColors maps the stock Zotero highlight palette to category names.
var zoteroColors = map[string]string{
	"#ffd400": "yellow",
	"#ff6666": "red",
	"#5fb236": "green",
	"#2ea8e5": "blue",
	"#a28ae5": "purple",
	"#e56eee": "magenta",
	"#f19837": "orange",
	"#aaaaaa": "gray",
}

// ColorCategory names the palette color of an annotation, or "" for custom
// colors.
func ColorCategory(hex string) string {
	return zoteroColors[strings.ToLower(strings.TrimSpace(hex))]
}

// FromItem converts an annotation child item returned by the Zotero API.
func FromItem(item *zotero.Item) Annotation {
	d := item.Data
	return Annotation{
		Key:           item.Key,
		Type:          d.Str("annotationType"),
		Text:          d.Str("annotationText"),
		Comment:       d.Str("annotationComment"),
		Color:         d.Str("annotationColor"),
		ColorCategory: ColorCategory(d.Str("annotationColor")),
		PageLabel:     d.Str("annotationPageLabel"),
		ParentItem:    d.Str("parentItem"),
		Tags:          d.Tags(),
		Source:        SourceAPI,
	}
}
