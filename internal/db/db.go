package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/models"
)

// ChunkRecord is one row of the session table.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`
	ID            string          `bun:"id,pk"`
	Position      int             `bun:"position,notnull"`
	Content       string          `bun:"content,notnull"`
	StartOffset   int             `bun:"start_offset,notnull"`
	EndOffset     int             `bun:"end_offset,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

type scoredRecord struct {
	ChunkRecord `bun:",extend"`
	Distance    float64 `bun:"distance"`
}

func (r scoredRecord) result() models.SearchResult {
	return models.SearchResult{
		Chunk: models.Chunk{
			ID:    r.ID,
			Index: r.Position,
			Text:  r.Content,
			Start: r.StartOffset,
			End:   r.EndOffset,
		},
		Score: 1 - r.Distance,
	}
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with bun's pgdriver or with lib/pq.
func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, &models.ConfigurationError{Field: "index.database.driver", Reason: fmt.Sprintf("unknown driver %q", cfg.Driver)}
	}
}

// Index keeps the chunks of the active document in a pgvector table. The
// table is rebuilt inside one transaction on every InsertAll, so readers see
// either the old document or the new one.
type Index struct {
	db       *bun.DB
	embedder embedding.Embedder
	table    string

	mu    sync.RWMutex
	ready bool
	count int
}

// NewIndex prepares the vector extension. Rows left over from an earlier
// process are not served: the index is empty until the first InsertAll.
func NewIndex(ctx context.Context, db *bun.DB, embedder embedding.Embedder, table string) (*Index, error) {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, fmt.Errorf("enable pgvector: %w", err)
	}
	return &Index{db: db, embedder: embedder, table: table}, nil
}

func (x *Index) InsertAll(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return models.ErrEmptyCollection
	}
	started := time.Now()

	vectors, err := embedding.EmbedChunks(ctx, x.embedder, chunks)
	if err != nil {
		return err
	}

	records := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = ChunkRecord{
			ID:          c.ID,
			Position:    c.Index,
			Content:     c.Text,
			StartOffset: c.Start,
			EndOffset:   c.End,
			Embedding:   pgvector.NewVector(vectors[i]),
		}
	}

	err = x.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDropTable().Model((*ChunkRecord)(nil)).ModelTableExpr("?", bun.Ident(x.table)).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", x.table, err)
		}
		if _, err := tx.ExecContext(ctx, `CREATE TABLE ? (
	id text PRIMARY KEY,
	position integer NOT NULL,
	content text NOT NULL,
	start_offset integer NOT NULL,
	end_offset integer NOT NULL,
	embedding vector(?) NOT NULL
)`, bun.Ident(x.table), len(vectors[0])); err != nil {
			return fmt.Errorf("create %s: %w", x.table, err)
		}
		if _, err := tx.NewInsert().Model(&records).ModelTableExpr("?", bun.Ident(x.table)).Exec(ctx); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	x.mu.Lock()
	x.ready = true
	x.count = len(records)
	x.mu.Unlock()

	log.Info().Str("table", x.table).Int("chunks", len(records)).Dur("elapsed", time.Since(started)).Msg("Indexed document")
	return nil
}

// Search ranks by cosine distance; equal distances keep chunk order.
func (x *Index) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	x.mu.RLock()
	ready := x.ready
	x.mu.RUnlock()

	if !ready {
		return nil, models.ErrIndexNotReady
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", models.ErrInvalidTopK, k)
	}

	vec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &models.EmbeddingError{Err: err}
	}
	if embedding.Magnitude(vec) == 0 {
		return []models.SearchResult{}, nil
	}

	var rows []scoredRecord
	err = x.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS c", bun.Ident(x.table)).
		ColumnExpr("c.id, c.position, c.content, c.start_offset, c.end_offset").
		ColumnExpr("c.embedding <=> ? AS distance", pgvector.NewVector(vec)).
		OrderExpr("distance ASC, c.position ASC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", x.table, err)
	}

	results := make([]models.SearchResult, len(rows))
	for i, r := range rows {
		results[i] = r.result()
	}
	return results, nil
}

func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// DropDocuments removes the session table.
func (x *Index) DropDocuments(ctx context.Context) error {
	_, err := x.db.NewDropTable().Model((*ChunkRecord)(nil)).ModelTableExpr("?", bun.Ident(x.table)).IfExists().Exec(ctx)
	if err != nil {
		return err
	}
	x.mu.Lock()
	x.ready = false
	x.count = 0
	x.mu.Unlock()
	return nil
}

func (x *Index) Close() error {
	return x.db.Close()
}
