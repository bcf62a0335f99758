// Package sqlite provides a file based rag.VectorStore for local use.
package sqlite
