// Package vectorstore provides vector storage implementations for document
// chunks.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Metadata keys stamped on every stored chunk.
const (
	MetaUploadID   = "upload_id"
	MetaSource     = "source"
	MetaUploadTime = "upload_time"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the store server could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names before they reach the
// store server. User-supplied overrides pass through here.
var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,255}$`)

// ValidateCollectionName rejects names with path separators, spaces, or
// other characters the backing stores do not accept.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Document represents one chunk to be embedded and stored.
type Document struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata carries the isolation key and provenance fields.
	Metadata map[string]interface{}
}

// SearchResult represents one similarity search hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]interface{}
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for chunk storage operations. All retrieval and
// deletion except DeleteAll is scoped by metadata filters; callers filter on
// the upload id to keep one upload's context from leaking into another's.
//
// Implementations:
//   - QdrantStore: external Qdrant server over gRPC
//   - ChromemStore: embedded chromem-go (zero external dependencies)
type Store interface {
	// AddDocuments embeds and stores chunks, returning their IDs. The batch
	// is best-effort at the server; callers treat it as a unit.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k chunks most similar to query, restricted to
	// chunks whose metadata matches every filter entry exactly.
	Search(ctx context.Context, query string, k int, filters map[string]string) ([]SearchResult, error)

	// DeleteWhere removes every chunk whose metadata matches all filters.
	// Deleting with a filter that matches nothing is not an error.
	DeleteWhere(ctx context.Context, filters map[string]string) error

	// DeleteAll removes every chunk in the store's collection.
	DeleteAll(ctx context.Context) error

	// Close releases the store connection.
	Close() error
}
