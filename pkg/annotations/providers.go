package annotations

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zotkit/zotkit/pkg/pdf"
	"github.com/zotkit/zotkit/pkg/zotero"
)

// bbtProvider pulls annotations through the Better BibTeX bridge. The item
// is located by citation key, read from the Extra field when present and
// found by title search otherwise.
type bbtProvider struct {
	client *BBTClient
	log    zerolog.Logger
}

// NewBBTProvider builds the Better BibTeX source.
func NewBBTProvider(client *BBTClient, log zerolog.Logger) Provider {
	return &bbtProvider{client: client, log: log}
}

func (p *bbtProvider) Name() string { return string(SourceBetterBibTeX) }

// citationKeyFromExtra scans the Extra field for a "Citation Key:" line.
func citationKeyFromExtra(extra string) string {
	for _, line := range strings.Split(extra, "\n") {
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "citation key:"):
			return strings.TrimSpace(line[len("citation key:"):])
		case strings.HasPrefix(lower, "citationkey:"):
			return strings.TrimSpace(line[len("citationkey:"):])
		}
	}
	return ""
}

func (p *bbtProvider) TryFetch(ctx context.Context, item *zotero.Item) ([]Annotation, error) {
	if !p.client.Running(ctx) {
		return nil, fmt.Errorf("better-bibtex bridge not reachable")
	}

	citekey := citationKeyFromExtra(item.Data.Str("extra"))
	if citekey == "" {
		hits, err := p.client.SearchCiteKeys(ctx, item.Data.Str("title"))
		if err != nil {
			return nil, err
		}
		for _, hit := range hits {
			if hit.Citekey != "" {
				citekey = hit.Citekey
				break
			}
		}
	}
	if citekey == "" {
		return nil, nil
	}

	library := "*"
	if hits, err := p.client.SearchCiteKeys(ctx, citekey); err == nil {
		for _, hit := range hits {
			if hit.Citekey == citekey && hit.Library != "" {
				library = hit.Library
				break
			}
		}
	}

	attachments, err := p.client.Attachments(ctx, citekey, library)
	if err != nil {
		return nil, err
	}

	var out []Annotation
	for _, att := range attachments {
		for _, a := range att.Annotations {
			annoType := a.Type
			if annoType == "" {
				annoType = "highlight"
			}
			out = append(out, Annotation{
				Key:             a.Key,
				Type:            annoType,
				Text:            a.Text,
				Comment:         a.Comment,
				Color:           a.Color,
				ColorCategory:   ColorCategory(a.Color),
				Page:            a.Page,
				PageLabel:       a.PageLabel,
				AttachmentTitle: att.Title,
				ParentItem:      item.Key,
				Source:          SourceBetterBibTeX,
			})
		}
	}
	return out, nil
}

// apiProvider reads annotation children through the Zotero API.
type apiProvider struct {
	client zotero.Client
}

// NewAPIProvider builds the Zotero API source.
func NewAPIProvider(client zotero.Client) Provider {
	return &apiProvider{client: client}
}

func (p *apiProvider) Name() string { return string(SourceAPI) }

func (p *apiProvider) TryFetch(ctx context.Context, item *zotero.Item) ([]Annotation, error) {
	children, err := p.client.Children(ctx, item.Key, zotero.ItemQuery{})
	if err != nil {
		return nil, err
	}
	var out []Annotation
	for _, child := range children {
		if child.Data.ItemType() != "annotation" {
			continue
		}
		out = append(out, FromItem(child))
	}
	return out, nil
}

// pdfProvider downloads PDF attachments into a scoped scratch directory and
// extracts their embedded annotations. The directory is removed on every
// exit path.
type pdfProvider struct {
	client zotero.Client
	log    zerolog.Logger
}

// NewPDFProvider builds the direct PDF extraction source.
func NewPDFProvider(client zotero.Client, log zerolog.Logger) Provider {
	return &pdfProvider{client: client, log: log}
}

func (p *pdfProvider) Name() string { return string(SourcePDF) }

func (p *pdfProvider) TryFetch(ctx context.Context, item *zotero.Item) ([]Annotation, error) {
	children, err := p.client.Children(ctx, item.Key, zotero.ItemQuery{})
	if err != nil {
		return nil, err
	}

	var out []Annotation
	for _, child := range children {
		if child.Data.Str("contentType") != "application/pdf" {
			continue
		}
		annotations, err := p.extractFromAttachment(ctx, item.Key, child)
		if err != nil {
			p.log.Warn().Str("attachment", child.Key).Err(err).Msg("pdf extraction failed for attachment")
			continue
		}
		out = append(out, annotations...)
	}
	return out, nil
}

func (p *pdfProvider) extractFromAttachment(ctx context.Context, parentKey string, attachment *zotero.Item) ([]Annotation, error) {
	dir, err := os.MkdirTemp("", "zotkit-pdf-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path, err := p.client.DownloadAttachment(ctx, attachment.Key, dir)
	if err != nil {
		return nil, err
	}

	extracted, err := pdf.ExtractAnnotations(path)
	if err != nil {
		return nil, err
	}

	var out []Annotation
	for i, a := range extracted {
		if a.Contents == "" {
			continue
		}
		key := a.ID
		if key == "" {
			key = fmt.Sprintf("pdf_%s_%d", attachment.Key, i)
		}
		annoType := strings.ToLower(a.Type)
		if annoType == "" {
			annoType = "highlight"
		}
		out = append(out, Annotation{
			Key:             key,
			Type:            annoType,
			Text:            a.Contents,
			Page:            a.Page,
			AttachmentTitle: attachment.Data.Str("title"),
			ParentItem:      parentKey,
			Source:          SourcePDF,
		})
	}
	return out, nil
}
