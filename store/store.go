package store

import (
	"context"
	"fmt"

	"github.com/smallnest/coachrag/log"
	"github.com/smallnest/coachrag/rag"
	ragstore "github.com/smallnest/coachrag/rag/store"
	"github.com/smallnest/coachrag/store/postgres"
	"github.com/smallnest/coachrag/store/sqlite"
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Options selects and configures a vector store backend
type Options struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	TableName   string
	Dimension   int
	Logger      log.Logger
}

// Open returns the vector store for opts.Driver. The postgres driver does not
// create the schema; run InitSchema once per database.
func Open(ctx context.Context, opts Options) (rag.VectorStore, error) {
	logger := log.OrDefault(opts.Logger)

	switch opts.Driver {
	case DriverPostgres, "":
		if opts.DatabaseURL == "" {
			return nil, fmt.Errorf("%w: postgres driver requires a database url", rag.ErrInvalidArgument)
		}
		logger.Debug("opening postgres vector store table=%s dim=%d", opts.TableName, opts.Dimension)
		vs, err := postgres.NewVectorStore(ctx, postgres.Options{
			ConnString: opts.DatabaseURL,
			TableName:  opts.TableName,
			Dimension:  opts.Dimension,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return vs, nil
	case DriverSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("%w: sqlite driver requires a path", rag.ErrInvalidArgument)
		}
		logger.Debug("opening sqlite vector store path=%s", opts.SQLitePath)
		vs, err := sqlite.NewVectorStore(sqlite.Options{
			Path:      opts.SQLitePath,
			TableName: opts.TableName,
			Dimension: opts.Dimension,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return vs, nil
	case DriverMemory:
		logger.Warn("using in-memory vector store, chunks are lost on exit")
		return ragstore.NewMemoryStore(opts.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", rag.ErrInvalidArgument, opts.Driver)
	}
}

// SchemaInitializer is implemented by stores whose schema is created explicitly
type SchemaInitializer interface {
	InitSchema(ctx context.Context) error
}

// InitSchema creates the schema of s when it needs one
func InitSchema(ctx context.Context, s rag.VectorStore) error {
	if si, ok := s.(SchemaInitializer); ok {
		return si.InitSchema(ctx)
	}
	return nil
}
