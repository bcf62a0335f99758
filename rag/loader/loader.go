package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/ledongthuc/pdf"
	"github.com/microcosm-cc/bluemonday"
	"github.com/smallnest/coachrag/rag"
)

// Kind is the format of a source file
type Kind string

// Supported kinds
const (
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
	KindPDF      Kind = "pdf"
)

// KindOf picks the kind from the file extension; unknown extensions are text
func KindOf(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return KindMarkdown
	case ".html", ".htm":
		return KindHTML
	case ".pdf":
		return KindPDF
	default:
		return KindText
	}
}

type options struct {
	docID    string
	metadata map[string]any
}

// Option configures Load
type Option func(*options)

// WithDocID overrides the document id derived from the file name
func WithDocID(docID string) Option {
	return func(o *options) {
		o.docID = docID
	}
}

// WithMetadata adds metadata to the loaded document, overriding the defaults
func WithMetadata(metadata map[string]any) Option {
	return func(o *options) {
		maps.Copy(o.metadata, metadata)
	}
}

// Load reads the file at path and returns it as an ingest item.
// The doc id defaults to the base name without extension; metadata
// carries source (the base name) and type (the kind).
func Load(ctx context.Context, path string, opts ...Option) (*rag.IngestItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", rag.ErrInvalidArgument, path, err)
	}

	kind := KindOf(path)
	text, err := Extract(kind, data)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract text from %s: %w", rag.ErrInvalidArgument, path, err)
	}

	base := filepath.Base(path)
	o := &options{
		docID: strings.TrimSuffix(base, filepath.Ext(base)),
		metadata: map[string]any{
			rag.MetaSource: base,
			rag.MetaType:   string(kind),
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	item := &rag.IngestItem{
		DocID:    o.docID,
		Content:  text,
		Metadata: o.metadata,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// Extract returns the plain text of data interpreted as kind
func Extract(kind Kind, data []byte) (string, error) {
	switch kind {
	case KindText, "":
		return string(data), nil
	case KindMarkdown:
		return markdownText(data)
	case KindHTML:
		return htmlText(bytes.NewReader(data))
	case KindPDF:
		return pdfText(data)
	default:
		return "", fmt.Errorf("unsupported kind %q", kind)
	}
}

func markdownText(data []byte) (string, error) {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(data)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	rendered := bluemonday.UGCPolicy().SanitizeBytes(markdown.Render(doc, renderer))
	return htmlText(bytes.NewReader(rendered))
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "table": true, "ul": true, "ol": true,
	"section": true, "article": true, "header": true, "footer": true, "hr": true,
}

func htmlText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, template, head").Remove()

	var b strings.Builder
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			if name == "#text" {
				b.WriteString(c.Text())
				return
			}
			walk(c)
			if blockElements[name] {
				b.WriteByte('\n')
			}
		})
	}
	walk(doc.Selection)

	return normalizeLines(b.String()), nil
}

func pdfText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", err
	}
	return normalizeLines(string(out)), nil
}

// normalizeLines collapses runs of whitespace inside lines and drops blank lines
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
