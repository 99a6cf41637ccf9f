// Package rag implements the document question-answering pipeline: text
// extraction, chunking, embedding, retrieval and answer generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqa/internal/chunk"
	"github.com/fyrsmithlabs/docqa/internal/config"
	"github.com/fyrsmithlabs/docqa/internal/extract"
	"github.com/fyrsmithlabs/docqa/internal/vectorstore"
)

const (
	// MaxUploadBytes is the hard cap on uploaded file size.
	MaxUploadBytes = 20 * 1024 * 1024

	// retrievalK is the number of chunks retrieved per question.
	retrievalK = 4
)

// answerInstructions is the system prompt prefix. Retrieved context is
// appended verbatim. The refusal sentence is fixed so clients can detect
// off-document questions by string match.
const answerInstructions = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer " +
	"the question. If you don't know the answer, say that you " +
	"don't know. Use three sentences maximum and keep the " +
	"answer concise." +
	"If Anything out of data from file is asked then say " +
	"It is not related to uploaded document. Please ask Something Valid" +
	"\n\n"

var (
	// ErrPayloadTooLarge is returned when an upload exceeds MaxUploadBytes.
	ErrPayloadTooLarge = errors.New("file too large")

	// ErrNoText is returned when a file yields no usable text.
	ErrNoText = errors.New("text extraction failed")

	// ErrForbidden is returned when the admin password check fails.
	ErrForbidden = errors.New("invalid password")

	// ErrGenerationFailed wraps retrieval and completion failures while
	// answering a question. Its text is part of the API surface; clients
	// see it verbatim in error details.
	ErrGenerationFailed = errors.New("Error generating response")
)

// HandleFunc opens a store handle for one resolved configuration.
type HandleFunc func(cfg vectorstore.HandleConfig) (vectorstore.Store, error)

// Service owns the upload, query and delete pipelines.
//
// The handle built from process configuration is cached after its first
// successful open and shared by all requests that carry no overrides.
// Requests with overrides get an ephemeral handle that is closed when the
// operation finishes.
type Service struct {
	cfg        *config.Config
	llm        LLM
	extractors *extract.Registry
	splitter   *chunk.Splitter
	newHandle  HandleFunc
	logger     *zap.Logger

	mu           sync.Mutex
	defaultStore vectorstore.Store
}

// NewService creates the pipeline service. The default store handle is not
// opened here; it is opened lazily on first use so a misconfigured or
// unreachable store does not prevent startup.
func NewService(cfg *config.Config, llm LLM, newHandle HandleFunc, logger *zap.Logger) *Service {
	return &Service{
		cfg:        cfg,
		llm:        llm,
		extractors: extract.NewDefaultRegistry(),
		splitter:   chunk.NewSplitter(),
		newHandle:  newHandle,
		logger:     logger,
	}
}

// Ingest extracts, chunks and stores one uploaded file. It returns the
// upload id that scopes all later retrieval against this file.
func (s *Service) Ingest(ctx context.Context, filename string, content []byte, ov config.Overrides) (string, error) {
	if len(content) > MaxUploadBytes {
		return "", fmt.Errorf("%w: max size is 20MB", ErrPayloadTooLarge)
	}

	text, err := s.extractors.Extract(ctx, content, filename)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	chunks, err := s.splitter.Split(text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoText, err)
	}
	if len(chunks) == 0 {
		return "", ErrNoText
	}

	uploadID := uuid.NewString()
	now := time.Now().Unix()
	docs := make([]vectorstore.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, vectorstore.Document{
			Content: c,
			Metadata: map[string]interface{}{
				vectorstore.MetaUploadID:   uploadID,
				vectorstore.MetaSource:     filename,
				vectorstore.MetaUploadTime: now,
			},
		})
	}

	store, release, err := s.handleFor(ov)
	if err != nil {
		return "", err
	}
	defer release()

	if _, err := store.AddDocuments(ctx, docs); err != nil {
		return "", err
	}

	s.logger.Info("document ingested",
		zap.String("upload_id", uploadID),
		zap.String("source", filename),
		zap.Int("chunks", len(docs)))
	return uploadID, nil
}

// Answer retrieves the chunks of one upload most similar to the question
// and asks the LLM to answer from them. Retrieval and completion failures
// both surface as ErrGenerationFailed.
func (s *Service) Answer(ctx context.Context, question, uploadID string, ov config.Overrides) (string, error) {
	store, release, err := s.handleFor(ov)
	if err != nil {
		return "", err
	}
	defer release()

	results, err := store.Search(ctx, question, retrievalK, map[string]string{
		vectorstore.MetaUploadID: uploadID,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	contexts := make([]string, 0, len(results))
	for _, r := range results {
		contexts = append(contexts, r.Content)
	}

	answer, err := s.llm.Generate(ctx, answerInstructions+strings.Join(contexts, "\n\n"), question)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return answer, nil
}

// DeleteUpload removes every chunk stored under the upload id. Deleting an
// unknown id succeeds.
func (s *Service) DeleteUpload(ctx context.Context, uploadID string, ov config.Overrides) error {
	store, release, err := s.handleFor(ov)
	if err != nil {
		return err
	}
	defer release()

	if err := store.DeleteWhere(ctx, map[string]string{vectorstore.MetaUploadID: uploadID}); err != nil {
		return err
	}
	s.logger.Info("upload deleted", zap.String("upload_id", uploadID))
	return nil
}

// DeleteAll wipes the effective collection. The admin password is checked
// only when the request targets the server's own store; a caller supplying
// overrides is wiping a store it already holds credentials for.
func (s *Service) DeleteAll(ctx context.Context, password string, ov config.Overrides) error {
	if !ov.Any() && password != s.cfg.AdminPassword.Value() {
		return ErrForbidden
	}

	store, release, err := s.handleFor(ov)
	if err != nil {
		return err
	}
	defer release()

	if err := store.DeleteAll(ctx); err != nil {
		return err
	}
	s.logger.Info("collection wiped")
	return nil
}

// Close releases the cached default store handle.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaultStore == nil {
		return nil
	}
	err := s.defaultStore.Close()
	s.defaultStore = nil
	return err
}

// handleFor returns the store for one operation plus a release func the
// caller must run when done. Ephemeral handles are closed on release; the
// cached default handle is left open.
func (s *Service) handleFor(ov config.Overrides) (vectorstore.Store, func(), error) {
	if ov.Any() {
		store, err := s.newHandle(s.handleConfig(s.cfg.Resolve(ov)))
		if err != nil {
			return nil, nil, err
		}
		release := func() {
			if err := store.Close(); err != nil {
				s.logger.Warn("closing store handle", zap.Error(err))
			}
		}
		return store, release, nil
	}

	store, err := s.defaultHandle()
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}

// defaultHandle opens the process-configured store on first use. A failed
// open is not cached, so the next request retries.
func (s *Service) defaultHandle() (vectorstore.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.defaultStore != nil {
		return s.defaultStore, nil
	}

	store, err := s.newHandle(s.handleConfig(s.cfg.Resolve(config.Overrides{})))
	if err != nil {
		return nil, err
	}
	s.defaultStore = store
	return store, nil
}

func (s *Service) handleConfig(b config.Bundle) vectorstore.HandleConfig {
	return vectorstore.HandleConfig{
		URI:              b.StoreURI,
		Token:            b.StoreToken,
		Collection:       b.Collection,
		VectorSize:       s.cfg.Embedding.VectorSize,
		EmbeddingBaseURL: s.cfg.Embedding.BaseURL,
		EmbeddingModel:   s.cfg.Embedding.Model,
		EmbeddingAPIKey:  b.MistralAPIKey,
	}
}
