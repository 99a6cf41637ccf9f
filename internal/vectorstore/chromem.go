package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemStore stores chunks in an embedded chromem-go database. It backs
// the service when no external store URI is configured, which makes the
// default deployment run with zero external dependencies.
//
// The chromem.DB is shared across handles so that per-request handles built
// from overrides still see the process's data; a handle only binds a
// collection name and an embedder to the shared database.
type ChromemStore struct {
	db         *chromem.DB
	collection string
	emb        Embedder
	logger     *zap.Logger
}

var _ Store = (*ChromemStore)(nil)

// NewChromemStore binds a collection in the shared database.
func NewChromemStore(db *chromem.DB, collection string, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database required", ErrInvalidConfig)
	}
	if err := ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromemStore{
		db:         db,
		collection: collection,
		emb:        embedder,
		logger:     logger,
	}, nil
}

// embeddingFunc adapts the Embedder interface to chromem's callback.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.emb.EmbedQuery(ctx, text)
	}
}

// AddDocuments embeds and stores chunks, creating the collection on first
// write.
func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("documents cannot be empty")
	}

	collection, err := s.db.GetOrCreateCollection(s.collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", s.collection, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.New().String()
		}
		ids[i] = id
		chromemDocs[i] = chromem.Document{
			ID:       id,
			Content:  doc.Content,
			Metadata: metadataToString(doc.Metadata),
		}
	}

	if err := collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return nil, fmt.Errorf("adding documents to collection %s: %w", s.collection, err)
	}

	s.logger.Debug("stored chunks in embedded collection",
		zap.String("collection", s.collection),
		zap.Int("count", len(docs)),
	)
	return ids, nil
}

// Search performs similarity search restricted by exact metadata matches.
// A collection that does not exist yet yields no results.
func (s *ChromemStore) Search(ctx context.Context, query string, k int, filters map[string]string) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection := s.db.GetCollection(s.collection, s.embeddingFunc())
	if collection == nil {
		return []SearchResult{}, nil
	}

	// chromem requires nResults <= document count.
	count := collection.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.Query(ctx, query, k, filters, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.collection, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, r := range results {
		searchResults[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: metadataFromString(r.Metadata),
		}
	}
	return searchResults, nil
}

// DeleteWhere removes every chunk whose metadata matches all filters.
func (s *ChromemStore) DeleteWhere(ctx context.Context, filters map[string]string) error {
	if len(filters) == 0 {
		return fmt.Errorf("filters cannot be empty; use DeleteAll for a full wipe")
	}

	collection := s.db.GetCollection(s.collection, s.embeddingFunc())
	if collection == nil {
		return nil
	}
	if collection.Count() == 0 {
		return nil
	}

	if err := collection.Delete(ctx, filters, nil); err != nil {
		return fmt.Errorf("deleting from collection %s: %w", s.collection, err)
	}
	return nil
}

// DeleteAll drops the collection outright; it is recreated on the next
// write. This is the embedded store's explicit full-collection clear.
func (s *ChromemStore) DeleteAll(_ context.Context) error {
	if err := s.db.DeleteCollection(s.collection); err != nil {
		return fmt.Errorf("dropping collection %s: %w", s.collection, err)
	}
	return nil
}

// Close is a no-op; the shared database lives for the process.
func (s *ChromemStore) Close() error { return nil }

// metadataToString converts metadata to chromem's string map.
func metadataToString(metadata map[string]interface{}) map[string]string {
	if metadata == nil {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			out[k] = fmt.Sprintf("%v", val)
		}
	}
	return out
}

// metadataFromString widens chromem's string metadata for the Store
// interface. Values stay strings; callers compare on the isolation key only.
func metadataFromString(metadata map[string]string) map[string]interface{} {
	if metadata == nil {
		return nil
	}
	out := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
