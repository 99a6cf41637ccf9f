package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqa/internal/config"
	"github.com/fyrsmithlabs/docqa/internal/extract"
	"github.com/fyrsmithlabs/docqa/internal/rag"
)

// fakePipeline records the arguments handlers pass down and returns canned
// results.
type fakePipeline struct {
	ingestFilename string
	ingestSize     int
	ingestOv       config.Overrides
	ingestErr      error

	question  string
	uploadID  string
	answerOv  config.Overrides
	answerErr error

	deletedID string
	deleteOv  config.Overrides

	wipePassword string
	wipeOv       config.Overrides
	wipeErr      error
}

func (f *fakePipeline) Ingest(_ context.Context, filename string, content []byte, ov config.Overrides) (string, error) {
	f.ingestFilename = filename
	f.ingestSize = len(content)
	f.ingestOv = ov
	if f.ingestErr != nil {
		return "", f.ingestErr
	}
	return "11111111-2222-3333-4444-555555555555", nil
}

func (f *fakePipeline) Answer(_ context.Context, question, uploadID string, ov config.Overrides) (string, error) {
	f.question = question
	f.uploadID = uploadID
	f.answerOv = ov
	if f.answerErr != nil {
		return "", f.answerErr
	}
	return "the answer", nil
}

func (f *fakePipeline) DeleteUpload(_ context.Context, uploadID string, ov config.Overrides) error {
	f.deletedID = uploadID
	f.deleteOv = ov
	return nil
}

func (f *fakePipeline) DeleteAll(_ context.Context, password string, ov config.Overrides) error {
	f.wipePassword = password
	f.wipeOv = ov
	return f.wipeErr
}

func setupTestServer(t *testing.T) (*Server, *fakePipeline) {
	t.Helper()
	pipeline := &fakePipeline{}
	server, err := NewServer(pipeline, zap.NewNop(), config.ServerConfig{Host: "localhost", Port: 8000})
	require.NoError(t, err)
	return server, pipeline
}

func multipartUpload(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewServer(t *testing.T) {
	t.Run("returns error when pipeline is nil", func(t *testing.T) {
		_, err := NewServer(nil, zap.NewNop(), config.ServerConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline is required")
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&fakePipeline{}, nil, config.ServerConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})
}

func TestHandleActive(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/active", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ActiveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "API is Active", resp.Message)
}

func TestHandleUpload(t *testing.T) {
	t.Run("returns upload id", func(t *testing.T) {
		server, pipeline := setupTestServer(t)

		body, contentType := multipartUpload(t, "report.txt", []byte("quarterly numbers"), nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp UploadResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "11111111-2222-3333-4444-555555555555", resp.UploadID)
		assert.Equal(t, "report.txt", pipeline.ingestFilename)
		assert.Equal(t, len("quarterly numbers"), pipeline.ingestSize)
	})

	t.Run("passes form overrides", func(t *testing.T) {
		server, pipeline := setupTestServer(t)

		fields := map[string]string{
			"mistral_api_key": "mk",
			"zilliz_uri":      "grpc://other:6334",
			"zilliz_token":    "zt",
			"collection_name": "theirs",
		}
		body, contentType := multipartUpload(t, "report.txt", []byte("text"), fields)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, config.Overrides{
			MistralAPIKey: "mk",
			StoreURI:      "grpc://other:6334",
			StoreToken:    "zt",
			Collection:    "theirs",
		}, pipeline.ingestOv)
	})

	t.Run("missing file", func(t *testing.T) {
		server, _ := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file uploaded", decodeError(t, rec).Detail)
	})

	t.Run("too large", func(t *testing.T) {
		server, pipeline := setupTestServer(t)
		pipeline.ingestErr = rag.ErrPayloadTooLarge

		body, contentType := multipartUpload(t, "big.txt", []byte("x"), nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "File too large. Max size is 20MB.", decodeError(t, rec).Detail)
	})

	t.Run("unsupported file type", func(t *testing.T) {
		server, pipeline := setupTestServer(t)
		pipeline.ingestErr = fmt.Errorf("%w: .exe", extract.ErrUnsupportedFileType)

		body, contentType := multipartUpload(t, "tool.exe", []byte("x"), nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Detail, "Error extracting text:")
	})

	t.Run("empty extraction", func(t *testing.T) {
		server, pipeline := setupTestServer(t)
		pipeline.ingestErr = rag.ErrNoText

		body, contentType := multipartUpload(t, "blank.txt", []byte(" "), nil)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "text extraction failed", decodeError(t, rec).Detail)
	})
}

func TestHandleQuery(t *testing.T) {
	t.Run("returns answer", func(t *testing.T) {
		server, pipeline := setupTestServer(t)

		body, err := json.Marshal(QueryRequest{
			Question:       "what grew?",
			UploadID:       "u-1",
			MistralAPIKey:  "mk",
			CollectionName: "docs",
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp QueryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "the answer", resp.Answer)
		assert.Equal(t, "what grew?", pipeline.question)
		assert.Equal(t, "u-1", pipeline.uploadID)
		assert.Equal(t, "mk", pipeline.answerOv.MistralAPIKey)
		assert.Equal(t, "docs", pipeline.answerOv.Collection)
	})

	t.Run("missing fields", func(t *testing.T) {
		server, _ := setupTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`{"question":"q"}`)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("generation failure", func(t *testing.T) {
		server, pipeline := setupTestServer(t)
		pipeline.answerErr = fmt.Errorf("%w: %v", rag.ErrGenerationFailed, errors.New("upstream timeout"))

		req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader([]byte(`{"question":"q","upload_id":"u-1"}`)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Error generating response: upstream timeout", decodeError(t, rec).Detail)
	})
}

func TestHandleDelete(t *testing.T) {
	server, pipeline := setupTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/delete/u-42?zilliz_uri=grpc://other:6334", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "deleted", resp.Status)
	assert.Equal(t, "u-42", pipeline.deletedID)
	assert.Equal(t, "grpc://other:6334", pipeline.deleteOv.StoreURI)
}

func TestHandleDeleteAll(t *testing.T) {
	t.Run("wipes with password", func(t *testing.T) {
		server, pipeline := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/deleteall?password=hunter2", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp StatusResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "all_deleted", resp.Status)
		assert.Equal(t, "hunter2", pipeline.wipePassword)
	})

	t.Run("forbidden", func(t *testing.T) {
		server, pipeline := setupTestServer(t)
		pipeline.wipeErr = rag.ErrForbidden

		req := httptest.NewRequest(http.MethodGet, "/deleteall?password=wrong", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden: invalid password", decodeError(t, rec).Detail)
	})

	t.Run("passes query overrides", func(t *testing.T) {
		server, pipeline := setupTestServer(t)

		req := httptest.NewRequest(http.MethodGet, "/deleteall?collection_name=theirs&zilliz_token=zt", nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "theirs", pipeline.wipeOv.Collection)
		assert.Equal(t, "zt", pipeline.wipeOv.StoreToken)
	})
}

func TestCORSHeaders(t *testing.T) {
	server, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/active", nil)
	req.Header.Set(echo.HeaderOrigin, "https://app.example.com")
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Drive one request through the middleware so the counter has a
	// series to export.
	warm := httptest.NewRequest(http.MethodGet, "/active", nil)
	server.echo.ServeHTTP(httptest.NewRecorder(), warm)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "docqa_http_requests_total")
}

func TestStartShutsDownOnCancel(t *testing.T) {
	server, _ := setupTestServer(t)
	server.config.Port = 0
	server.config.ShutdownTimeout = config.Duration(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
