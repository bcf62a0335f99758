package rag

import (
	"fmt"
	"maps"
	"strings"
)

// Well-known metadata keys
const (
	// MetaSource is the human-readable origin of a document, e.g. a file name
	MetaSource = "source"
	// MetaType is the kind of loader that produced the document
	MetaType = "type"
)

// SourceLabel returns the display label for a chunk: metadata["source"] when
// present and non-blank, otherwise the doc id
func SourceLabel(metadata map[string]any, docID string) string {
	if v, ok := metadata[MetaSource]; ok && v != nil {
		var label string
		switch s := v.(type) {
		case string:
			label = s
		case fmt.Stringer:
			label = s.String()
		case bool, int, int32, int64, float32, float64:
			label = fmt.Sprint(s)
		}
		if label = strings.TrimSpace(label); label != "" {
			return label
		}
	}
	return docID
}

// CloneMetadata returns a shallow copy of metadata that is never nil
func CloneMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	maps.Copy(out, metadata)
	return out
}
