package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqa/internal/config"
	"github.com/fyrsmithlabs/docqa/internal/extract"
	"github.com/fyrsmithlabs/docqa/internal/rag"
)

// ErrorResponse is the error body for every failed request.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// UploadResponse is the response body for POST /upload.
type UploadResponse struct {
	UploadID string `json:"upload_id"`
}

// QueryRequest is the request body for POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	UploadID string `json:"upload_id"`

	MistralAPIKey  string `json:"mistral_api_key"`
	ZillizURI      string `json:"zilliz_uri"`
	ZillizToken    string `json:"zilliz_token"`
	CollectionName string `json:"collection_name"`
}

// QueryResponse is the response body for POST /query.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// StatusResponse is the response body for the delete endpoints.
type StatusResponse struct {
	Status string `json:"status"`
}

// ActiveResponse is the response body for GET /active.
type ActiveResponse struct {
	Message string `json:"message"`
}

// handleUpload ingests one multipart file and returns its upload id.
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "No file uploaded"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "No file uploaded"})
	}
	defer src.Close()

	// Read one byte past the cap so oversized uploads are detected without
	// buffering the whole body.
	content, err := io.ReadAll(io.LimitReader(src, rag.MaxUploadBytes+1))
	if err != nil {
		s.logger.Warn("reading upload", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "No file uploaded"})
	}

	ov := config.Overrides{
		MistralAPIKey: c.FormValue("mistral_api_key"),
		StoreURI:      c.FormValue("zilliz_uri"),
		StoreToken:    c.FormValue("zilliz_token"),
		Collection:    c.FormValue("collection_name"),
	}

	uploadID, err := s.pipeline.Ingest(c.Request().Context(), fileHeader.Filename, content, ov)
	if err != nil {
		return s.writeError(c, err)
	}

	UploadBytes.Observe(float64(len(content)))
	return c.JSON(http.StatusOK, UploadResponse{UploadID: uploadID})
}

// handleQuery answers a question against one upload's chunks.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "invalid request body"})
	}
	if req.Question == "" || req.UploadID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "question and upload_id are required"})
	}

	ov := config.Overrides{
		MistralAPIKey: req.MistralAPIKey,
		StoreURI:      req.ZillizURI,
		StoreToken:    req.ZillizToken,
		Collection:    req.CollectionName,
	}

	answer, err := s.pipeline.Answer(c.Request().Context(), req.Question, req.UploadID, ov)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, QueryResponse{Answer: answer})
}

// handleDelete removes one upload's chunks. Unknown ids succeed.
func (s *Server) handleDelete(c echo.Context) error {
	uploadID := c.Param("upload_id")

	err := s.pipeline.DeleteUpload(c.Request().Context(), uploadID, overridesFromQuery(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "deleted"})
}

// handleDeleteAll wipes the effective collection.
func (s *Server) handleDeleteAll(c echo.Context) error {
	err := s.pipeline.DeleteAll(c.Request().Context(), c.QueryParam("password"), overridesFromQuery(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "all_deleted"})
}

// handleActive is the liveness probe.
func (s *Server) handleActive(c echo.Context) error {
	return c.JSON(http.StatusOK, ActiveResponse{Message: "API is Active"})
}

func overridesFromQuery(c echo.Context) config.Overrides {
	return config.Overrides{
		MistralAPIKey: c.QueryParam("mistral_api_key"),
		StoreURI:      c.QueryParam("zilliz_uri"),
		StoreToken:    c.QueryParam("zilliz_token"),
		Collection:    c.QueryParam("collection_name"),
	}
}

// writeError maps pipeline errors onto the API's status codes and detail
// strings.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, rag.ErrPayloadTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Detail: "File too large. Max size is 20MB."})
	case errors.Is(err, extract.ErrUnsupportedFileType), errors.Is(err, extract.ErrExtractionFailed):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: fmt.Sprintf("Error extracting text: %v", err)})
	case errors.Is(err, rag.ErrNoText):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Detail: "text extraction failed"})
	case errors.Is(err, rag.ErrForbidden):
		return c.JSON(http.StatusForbidden, ErrorResponse{Detail: "Forbidden: invalid password"})
	case errors.Is(err, rag.ErrGenerationFailed):
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
	default:
		s.logger.Error("request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
	}
}
