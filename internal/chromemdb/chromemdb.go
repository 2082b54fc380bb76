package chromemdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docchat/internal/embedding"
	"docchat/internal/helper"
	"docchat/internal/models"
)

const (
	snapshotName = "index.gob"

	metaIndex = "index"
	metaStart = "start"
	metaEnd   = "end"
)

// Options control the optional on-disk snapshot of the active collection.
type Options struct {
	SnapshotDir   string
	Compress      bool
	EncryptionKey string
}

// Index is an exact cosine similarity index over the chunks of one document,
// held in an in-memory chromem database. Every InsertAll builds a fresh
// database and swaps it in only once all chunks are embedded and stored.
type Index struct {
	embedder embedding.Embedder
	opts     Options

	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
}

func NewIndex(embedder embedding.Embedder, opts Options) *Index {
	return &Index{embedder: embedder, opts: opts}
}

// InsertAll replaces the indexed chunks. On error the previous contents stay searchable.
func (x *Index) InsertAll(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return models.ErrEmptyCollection
	}
	started := time.Now()

	vectors, err := embedding.EmbedChunks(ctx, x.embedder, chunks)
	if err != nil {
		return err
	}
	docs := toDocuments(chunks, vectors)

	runID, err := helper.GenerateUUID()
	if err != nil {
		return err
	}
	name := "document_" + runID

	db := chromem.NewDB()
	collection, err := db.CreateCollection(name, map[string]string{"chunks": strconv.Itoa(len(chunks))}, x.embedder.Embed)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	x.mu.Lock()
	x.db = db
	x.collection = collection
	x.mu.Unlock()

	log.Info().Str("collection", name).Int("chunks", len(docs)).Dur("elapsed", time.Since(started)).Msg("Indexed document")

	if x.opts.SnapshotDir != "" {
		if err := x.Export(); err != nil {
			log.Warn().Err(err).Str("dir", x.opts.SnapshotDir).Msg("Failed to write index snapshot")
		}
	}
	return nil
}

func toDocuments(chunks []models.Chunk, vectors [][]float32) []chromem.Document {
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Embedding: vectors[i],
			Metadata: map[string]string{
				metaIndex: strconv.Itoa(c.Index),
				metaStart: strconv.Itoa(c.Start),
				metaEnd:   strconv.Itoa(c.End),
			},
		}
	}
	return docs
}

// Search returns up to k chunks ordered by descending similarity to query.
// Equal scores keep chunk order.
func (x *Index) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	x.mu.RLock()
	collection := x.collection
	x.mu.RUnlock()

	if collection == nil {
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

	// chromem does not define an order for ties, so rank every entry here
	results, err := collection.QueryEmbedding(ctx, vec, collection.Count(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.SearchResult{Chunk: toChunk(r), Score: float64(r.Similarity)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count is the number of indexed chunks.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.collection == nil {
		return 0
	}
	return x.collection.Count()
}

// SnapshotPath is where Export writes the active collection.
func (x *Index) SnapshotPath() string {
	name := snapshotName
	if x.opts.Compress {
		name += ".gz"
	}
	return filepath.Join(x.opts.SnapshotDir, name)
}

// Export writes the active collection to SnapshotPath, replacing any previous snapshot.
func (x *Index) Export() error {
	x.mu.RLock()
	db, collection := x.db, x.collection
	x.mu.RUnlock()

	if collection == nil {
		return models.ErrIndexNotReady
	}
	if x.opts.SnapshotDir == "" {
		return fmt.Errorf("snapshot dir is required")
	}
	if err := helper.CreateFolder(x.opts.SnapshotDir); err != nil {
		return err
	}

	target := x.SnapshotPath()
	tmp := target + ".tmp"
	log.Debug().Str("collection", collection.Name).Str("file", target).Bool("compress", x.opts.Compress).Msg("Exporting collection")
	if err := db.ExportToFile(tmp, x.opts.Compress, x.opts.EncryptionKey, collection.Name); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to export database: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a snapshot written by Export and reports the number of
// entries per collection. It never touches a live Index.
func ReadSnapshot(path, encryptionKey string) (map[string]int, error) {
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, encryptionKey); err != nil {
		return nil, fmt.Errorf("failed to import database: %w", err)
	}
	counts := make(map[string]int)
	for name, c := range db.ListCollections() {
		counts[name] = c.Count()
	}
	return counts, nil
}

func toChunk(r chromem.Result) models.Chunk {
	index, _ := strconv.Atoi(r.Metadata[metaIndex])
	start, _ := strconv.Atoi(r.Metadata[metaStart])
	end, _ := strconv.Atoi(r.Metadata[metaEnd])
	return models.Chunk{ID: r.ID, Index: index, Text: r.Content, Start: start, End: end}
}
