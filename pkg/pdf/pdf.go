// Package pdf wraps pdfcpu for the two operations zotkit needs: pulling
// embedded annotations out of a PDF and best-effort text extraction. Both
// are fallback paths, so failures here are reported but never fatal to the
// calling tool.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Annotation is one markup annotation found in a PDF.
type Annotation struct {
	Page     int    `json:"page"`
	Type     string `json:"type"`
	Contents string `json:"contents"`
	ID       string `json:"id,omitempty"`
}

// ExtractAnnotations lists the annotations embedded in the PDF at path,
// ordered by page.
func ExtractAnnotations(path string) ([]Annotation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pages, err := api.Annotations(f, nil, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("reading annotations from %s: %w", path, err)
	}

	var out []Annotation
	pageNumbers := make([]int, 0, len(pages))
	for page := range pages {
		pageNumbers = append(pageNumbers, page)
	}
	sort.Ints(pageNumbers)

	for _, page := range pageNumbers {
		for annotType, annots := range pages[page] {
			typeName := model.AnnotTypeStrings[annotType]
			for _, renderer := range annots.Map {
				out = append(out, Annotation{
					Page:     page,
					Type:     typeName,
					Contents: strings.TrimSpace(renderer.ContentString()),
					ID:       renderer.ID(),
				})
			}
		}
	}
	return out, nil
}

// ExtractText extracts page content from the PDF at path into scratch files
// under dir and returns the concatenated result. The output is raw content
// text, not a faithful reading-order rendering; it serves as a fallback when
// no indexed full text exists.
func ExtractText(path, dir string) (string, error) {
	if err := api.ExtractContentFile(path, dir, nil, model.NewDefaultConfiguration()); err != nil {
		return "", fmt.Errorf("extracting content from %s: %w", path, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.Contains(e.Name(), "_Content_") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		payload, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		b.Write(payload)
		b.WriteString("\n")
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("no extractable content in %s", path)
	}
	return text, nil
}
