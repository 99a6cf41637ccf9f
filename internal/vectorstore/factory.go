package vectorstore

import (
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// HandleConfig describes one store handle. It is built from the resolved
// configuration bundle of a single operation.
type HandleConfig struct {
	// URI selects the backend: empty picks the embedded store, anything
	// else the external Qdrant server at that address.
	URI string

	// Token authenticates against a managed external store.
	Token string

	// Collection all operations target.
	Collection string

	// VectorSize is the embedding dimensionality.
	VectorSize int

	// EmbeddingBaseURL, EmbeddingModel and EmbeddingAPIKey configure the
	// embedder bound to the handle.
	EmbeddingBaseURL string
	EmbeddingModel   string
	EmbeddingAPIKey  string
}

// NewHandle builds a store handle from a resolved bundle.
//
// The embedded database is shared across handles; ephemeral handles built
// from request overrides bind their own collection and embedder but see the
// same data. External handles own a fresh gRPC connection and must be
// closed by the caller.
func NewHandle(cfg HandleConfig, shared *chromem.DB, logger *zap.Logger) (Store, error) {
	embedder, err := NewOpenAIEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingAPIKey)
	if err != nil {
		return nil, err
	}

	if cfg.URI == "" {
		return NewChromemStore(shared, cfg.Collection, embedder, logger)
	}

	return NewQdrantStore(QdrantConfig{
		URI:        cfg.URI,
		APIKey:     cfg.Token,
		Collection: cfg.Collection,
		VectorSize: uint64(cfg.VectorSize),
	}, embedder)
}
