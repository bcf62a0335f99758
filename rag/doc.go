// Package rag defines the core types of the retrieval-augmented question
// answering backend.
//
// Documents are split into overlapping chunks, embedded, and stored in a
// VectorStore. At query time the question is embedded, the nearest chunks are
// retrieved by cosine distance, and a language model answers from those
// chunks only.
//
// # Packages
//
//   - rag/splitter: character-based chunking with overlap
//   - rag/embedder: Embedder implementations (OpenAI, langchaingo, mock)
//   - rag/store: in-memory VectorStore
//   - store/postgres, store/sqlite: durable VectorStore backends
//   - store/redis: embedding cache
//   - rag/retriever: embeds a question and searches the store
//   - rag/engine: the ingest and ask flows
//   - rag/loader: turns files into IngestItems
//
// # Errors
//
// Every error wraps one of ErrInvalidArgument, ErrProvider or ErrStore:
//
//	answer, err := eng.Ask(ctx, rag.Query{Question: "What is GROW?"})
//	if errors.Is(err, rag.ErrProvider) {
//		// embedding or chat backend failed
//	}
//
// An empty search result is not an error; the engine still asks the model and
// tells it that no relevant context was found.
//
// # Metadata
//
// Metadata is an open map. The "source" key (MetaSource) is the display label
// of a document and falls back to the doc id when absent.
package rag
