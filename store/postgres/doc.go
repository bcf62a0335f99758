// Package postgres stores document chunks in PostgreSQL using pgvector.
//
// Chunks live in a single table (default rag_chunks) with a vector column of
// the configured dimension. Search orders rows by the pgvector cosine distance
// operator (<=>) and breaks ties by ascending id. Insert and Replace run in one
// transaction, so a failed or cancelled batch leaves no rows behind.
//
//	vs, err := postgres.NewVectorStore(ctx, postgres.Options{
//	    ConnString: os.Getenv("DATABASE_URL"),
//	    Dimension:  1536,
//	})
//	if err != nil {
//	    return err
//	}
//	defer vs.Close()
//	err = vs.InitSchema(ctx)
package postgres
