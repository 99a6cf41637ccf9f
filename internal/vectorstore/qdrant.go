package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// QdrantConfig holds configuration for the Qdrant gRPC store.
type QdrantConfig struct {
	// URI is the server address. Accepted forms: "host:port",
	// "grpc://host:port", "http://host:port", "https://host". A https
	// scheme enables TLS.
	URI string

	// APIKey authenticates against managed deployments. Empty is passed
	// through for unauthenticated servers.
	APIKey string

	// Collection is the collection all operations target.
	Collection string

	// VectorSize is the embedding dimensionality, used when the collection
	// has to be created. MUST match the embedder's output.
	VectorSize uint64

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: URI required", ErrInvalidConfig)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// parseURI splits a store URI into host, port and TLS mode.
func parseURI(uri string) (host string, port int, useTLS bool, err error) {
	if !strings.Contains(uri, "://") {
		uri = "grpc://" + uri
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: parsing URI: %v", ErrInvalidConfig, err)
	}

	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("%w: URI %q has no host", ErrInvalidConfig, uri)
	}

	useTLS = u.Scheme == "https"
	port = 6334
	if useTLS {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("%w: invalid port %q", ErrInvalidConfig, p)
		}
	}
	return host, port, useTLS, nil
}

// QdrantStore stores chunks in an external Qdrant server over gRPC.
type QdrantStore struct {
	client *qdrant.Client
	config QdrantConfig
	emb    Embedder

	mu             sync.Mutex
	collectionSeen bool
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore connects to the configured server. The collection is
// created lazily on first write so read-only operations against a fresh
// server do not fail.
func NewQdrantStore(config QdrantConfig, embedder Embedder) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	host, port, useTLS, err := parseURI(config.URI)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: useTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return &QdrantStore{
		client: client,
		config: config,
		emb:    embedder,
	}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// ensureCollection creates the collection if it does not exist yet. The
// check is cached after the first success.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectionSeen {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", s.config.Collection, err)
		}
	}

	s.collectionSeen = true
	return nil
}

// AddDocuments embeds and upserts chunks.
func (s *QdrantStore) AddDocuments(ctx context.Context, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("documents cannot be empty")
	}

	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := s.emb.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}

	points := make([]*qdrant.PointStruct, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		pointID := doc.ID
		if pointID == "" {
			pointID = uuid.New().String()
		}
		ids[i] = pointID

		payload := map[string]*qdrant.Value{
			"content": {Kind: &qdrant.Value_StringValue{StringValue: doc.Content}},
			"id":      {Kind: &qdrant.Value_StringValue{StringValue: pointID}},
		}
		for k, v := range doc.Metadata {
			switch val := v.(type) {
			case string:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
			case int:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
			case int64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
			case float64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
			case bool:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
			}
		}

		// Point IDs must be UUIDs; the chunk ID travels in the payload.
		var qdrantPointID *qdrant.PointId
		if _, err := uuid.Parse(pointID); err == nil {
			qdrantPointID = qdrant.NewIDUUID(pointID)
		} else {
			qdrantPointID = qdrant.NewIDUUID(uuid.New().String())
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrantPointID,
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload,
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.Collection,
		Points:         points,
	})
	if err != nil {
		return nil, fmt.Errorf("upserting points to collection %s: %w", s.config.Collection, err)
	}
	return ids, nil
}

// Search performs similarity search restricted by exact metadata matches.
func (s *QdrantStore) Search(ctx context.Context, query string, k int, filters map[string]string) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	queryVector, err := s.emb.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
		Filter:         buildFilter(filters),
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", s.config.Collection, err)
	}

	searchResults := make([]SearchResult, len(results))
	for i, point := range results {
		result := SearchResult{Score: point.Score}
		if point.Payload != nil {
			result.Metadata = make(map[string]interface{}, len(point.Payload))
			for key, v := range point.Payload {
				switch val := v.Kind.(type) {
				case *qdrant.Value_StringValue:
					result.Metadata[key] = val.StringValue
					switch key {
					case "content":
						result.Content = val.StringValue
					case "id":
						result.ID = val.StringValue
					}
				case *qdrant.Value_IntegerValue:
					result.Metadata[key] = val.IntegerValue
				case *qdrant.Value_DoubleValue:
					result.Metadata[key] = val.DoubleValue
				case *qdrant.Value_BoolValue:
					result.Metadata[key] = val.BoolValue
				}
			}
		}
		searchResults[i] = result
	}
	return searchResults, nil
}

// DeleteWhere removes every point matching all filters. A filter matching
// nothing deletes nothing and is not an error.
func (s *QdrantStore) DeleteWhere(ctx context.Context, filters map[string]string) error {
	if len(filters) == 0 {
		return fmt.Errorf("filters cannot be empty; use DeleteAll for a full wipe")
	}
	return s.deleteByFilter(ctx, buildFilter(filters))
}

// DeleteAll removes every point in the collection. An empty filter matches
// all points, the server-side equivalent of a match-everything selector.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	return s.deleteByFilter(ctx, &qdrant.Filter{})
}

func (s *QdrantStore) deleteByFilter(ctx context.Context, filter *qdrant.Filter) error {
	exists, err := s.client.CollectionExists(ctx, s.config.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.config.Collection, err)
	}
	if !exists {
		// Nothing stored yet; deletion is idempotent.
		return nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.config.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting from collection %s: %w", s.config.Collection, err)
	}
	return nil
}

// buildFilter converts exact-match metadata filters into a Qdrant filter.
func buildFilter(filters map[string]string) *qdrant.Filter {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]*qdrant.Condition, 0, len(filters))
	for key, value := range filters {
		conditions = append(conditions, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: conditions}
}
