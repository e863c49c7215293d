// Package api exposes ingestion, question generation and chat over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ory/herodot"

	"pdf-quiz-rag/internal/document"
	apperrors "pdf-quiz-rag/internal/errors"
	"pdf-quiz-rag/internal/logger"
	"pdf-quiz-rag/internal/models"
)

// DefaultMaxUploadBytes caps an uploaded PDF when Options leaves it unset.
const DefaultMaxUploadBytes = 32 << 20

// QuizService is the pipeline the server drives.
type QuizService interface {
	Ingest(ctx context.Context, src document.Source) (string, error)
	GenerateDirect(ctx context.Context, key string) (*models.Envelope, error)
	GenerateGrounded(ctx context.Context, key string) (*models.Envelope, error)
	Answer(ctx context.Context, key, question string) (*models.ChatAnswer, error)
	Reset(ctx context.Context) error
}

// Options tunes the HTTP front end.
type Options struct {
	MaxUploadBytes int64
	DetailedErrors bool
	// Backend is reported by /health.
	Backend string
}

type Server struct {
	mux       *http.ServeMux
	svc       QuizService
	writer    *herodot.JSONWriter
	errors    *apperrors.Handler
	maxUpload int64
	backend   string
}

func NewServer(svc QuizService, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		mux:       http.NewServeMux(),
		svc:       svc,
		writer:    herodot.NewJSONWriter(nil),
		errors:    apperrors.NewHandler(opts.DetailedErrors),
		maxUpload: opts.MaxUploadBytes,
		backend:   opts.Backend,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/ingest_pdf", s.ingestPDF)
	s.mux.HandleFunc("/generate_level_1", s.generateLevel1)
	s.mux.HandleFunc("/generate_level_2", s.generateLevel2)
	s.mux.HandleFunc("/chat", s.chat)
	s.mux.HandleFunc("/reset_data", s.resetData)
	s.mux.HandleFunc("/health", s.healthCheck)
}

// Handler returns the routed handler wrapped in request logging.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.mux)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, `{"error": "Method not allowed"}`, http.StatusMethodNotAllowed)
}

// writeError logs err and writes it in the configured detail level.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	converted := s.errors.Convert(err)
	if converted.CodeField >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Warn("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	s.writer.WriteError(w, r, converted)
}

func (s *Server) ingestPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writer.WriteError(w, r, &herodot.DefaultError{
				CodeField:   http.StatusRequestEntityTooLarge,
				StatusField: http.StatusText(http.StatusRequestEntityTooLarge),
				ErrorField:  "Uploaded file is too large",
			})
			return
		}
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Expected a multipart form"))
		return
	}

	file, header, err := r.FormFile("pdf_file")
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Missing pdf_file"))
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		logger.Warn("Unsupported file type: %s", header.Filename)
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Only PDF files are supported"))
		return
	}

	src, err := document.FromReader(header.Filename, file)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	key, err := s.svc.Ingest(r.Context(), src)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writer.Write(w, r, &models.IngestResponse{CollectionName: key, Status: "success"})
}

func (s *Server) generateLevel1(w http.ResponseWriter, r *http.Request) {
	s.generate(w, r, s.svc.GenerateDirect)
}

func (s *Server) generateLevel2(w http.ResponseWriter, r *http.Request) {
	s.generate(w, r, s.svc.GenerateGrounded)
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (*models.Envelope, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}
	if req.CollectionName == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Collection name is required"))
		return
	}

	envelope, err := fn(r.Context(), req.CollectionName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writer.Write(w, r, envelope)
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	req, err := decodeChatRequest(r)
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Invalid request body"))
		return
	}
	if req.CollectionName == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Collection name is required"))
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("Question cannot be empty"))
		return
	}

	answer, err := s.svc.Answer(r.Context(), req.CollectionName, req.Question)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writer.Write(w, r, models.NewChatResponse(answer))
}

func (s *Server) resetData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if err := s.svc.Reset(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writer.Write(w, r, &models.StatusResponse{Status: "Data reset successfully"})
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	response := &models.HealthResponse{Status: "healthy", Backend: s.backend}
	s.writer.Write(w, r, response)
}

// decodeChatRequest reads collection_name and question from a JSON body or
// from form fields. Generation endpoints ignore the question.
func decodeChatRequest(r *http.Request) (models.ChatRequest, error) {
	var req models.ChatRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		if mediaType == "multipart/form-data" {
			if err := r.ParseMultipartForm(DefaultMaxUploadBytes); err != nil {
				return req, err
			}
		}
		req.CollectionName = r.FormValue("collection_name")
		req.Question = r.FormValue("question")
	}
	req.CollectionName = strings.TrimSpace(req.CollectionName)
	return req, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("%s %s %s %d %s", r.Method, r.RequestURI, r.RemoteAddr, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
