package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		wantHost string
		wantPort int
		wantTLS  bool
		wantErr  bool
	}{
		{name: "bare host port", uri: "localhost:6334", wantHost: "localhost", wantPort: 6334},
		{name: "grpc scheme", uri: "grpc://qdrant.internal:6334", wantHost: "qdrant.internal", wantPort: 6334},
		{name: "http scheme defaults grpc port", uri: "http://localhost", wantHost: "localhost", wantPort: 6334},
		{name: "https enables tls on 443", uri: "https://abc123.cloud.example.com", wantHost: "abc123.cloud.example.com", wantPort: 443, wantTLS: true},
		{name: "https with explicit port", uri: "https://abc123.cloud.example.com:6334", wantHost: "abc123.cloud.example.com", wantPort: 6334, wantTLS: true},
		{name: "missing host", uri: "grpc://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, useTLS, err := parseURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantTLS, useTLS)
		})
	}
}

func TestQdrantConfigValidate(t *testing.T) {
	valid := QdrantConfig{
		URI:        "localhost:6334",
		Collection: "documents",
		VectorSize: 1024,
	}
	assert.NoError(t, valid.Validate())

	t.Run("missing URI", func(t *testing.T) {
		cfg := valid
		cfg.URI = ""
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("missing collection", func(t *testing.T) {
		cfg := valid
		cfg.Collection = ""
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("zero vector size", func(t *testing.T) {
		cfg := valid
		cfg.VectorSize = 0
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
	})

	t.Run("bad collection name", func(t *testing.T) {
		cfg := valid
		cfg.Collection = "../escape"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidCollectionName)
	})
}

func TestQdrantConfigApplyDefaults(t *testing.T) {
	var cfg QdrantConfig
	cfg.ApplyDefaults()
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
}

func TestValidateCollectionName(t *testing.T) {
	assert.NoError(t, ValidateCollectionName("documents"))
	assert.NoError(t, ValidateCollectionName("My-Collection_01"))

	for _, name := range []string{"", "has space", "path/sep", "dot.dot", "a b"} {
		assert.ErrorIs(t, ValidateCollectionName(name), ErrInvalidCollectionName, name)
	}
}

func TestBuildFilter(t *testing.T) {
	t.Run("nil for empty filters", func(t *testing.T) {
		assert.Nil(t, buildFilter(nil))
		assert.Nil(t, buildFilter(map[string]string{}))
	})

	t.Run("keyword match per entry", func(t *testing.T) {
		f := buildFilter(map[string]string{MetaUploadID: "upload-1"})
		require.NotNil(t, f)
		require.Len(t, f.Must, 1)

		field := f.Must[0].GetField()
		require.NotNil(t, field)
		assert.Equal(t, MetaUploadID, field.Key)
		assert.Equal(t, "upload-1", field.Match.GetKeyword())
	})
}

func TestNewQdrantStoreRejectsBadConfig(t *testing.T) {
	_, err := NewQdrantStore(QdrantConfig{}, hashEmbedder{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
