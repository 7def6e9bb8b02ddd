// Package api is the thin HTTP transport over the query-resolution
// pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/parithi/bankassist/internal/gemini"
	"github.com/parithi/bankassist/internal/modality"
	"github.com/parithi/bankassist/internal/pipeline"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB JSON bodies
	maxUploadSize      = 10 << 20 // 10MB image/audio/document uploads
)

// Resolver is the pipeline surface the transport layer consumes.
type Resolver interface {
	Login(accountNumber, password string) (pipeline.SessionSummary, error)
	ResolveText(ctx context.Context, accountNumber, text string) (pipeline.Answer, error)
	ResolveImage(ctx context.Context, accountNumber string, imageBytes []byte) (pipeline.Answer, error)
	ResolveAudio(ctx context.Context, accountNumber string, audioBytes []byte) (pipeline.Answer, error)
	ResolveDocument(ctx context.Context, accountNumber string, pdfBytes []byte) (pipeline.Answer, error)
}

// Deps holds the handler dependencies.
type Deps struct {
	Resolver Resolver
}

// NewHandler returns the HTTP handler for all assistant endpoints.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)
	r.Use(Metrics)

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/login", handleLogin(deps))
	r.Post("/query", handleTextQuery(deps))
	r.Post("/query/image", handleUploadQuery(deps, resolveImage))
	r.Post("/query/audio", handleUploadQuery(deps, resolveAudio))
	r.Post("/query/document", handleUploadQuery(deps, resolveDocument))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type loginRequest struct {
	AccountNumber string `json:"account_number"`
	Password      string `json:"password"`
}

func handleLogin(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.AccountNumber == "" || req.Password == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "account_number and password are required")
			return
		}

		summary, err := deps.Resolver.Login(req.AccountNumber, req.Password)
		if err != nil {
			writePipelineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"message": "Login successful",
			"session": summary,
		})
	}
}

type queryRequest struct {
	Query         string `json:"query"`
	AccountNumber string `json:"account_number"`
}

func handleTextQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		answer, err := deps.Resolver.ResolveText(r.Context(), req.AccountNumber, req.Query)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		writeAnswer(w, answer)
	}
}

// resolveFunc selects which Resolver upload method a route uses.
type resolveFunc func(deps Deps, r *http.Request, accountNumber string, payload []byte) (pipeline.Answer, error)

func resolveImage(deps Deps, r *http.Request, accountNumber string, payload []byte) (pipeline.Answer, error) {
	return deps.Resolver.ResolveImage(r.Context(), accountNumber, payload)
}

func resolveAudio(deps Deps, r *http.Request, accountNumber string, payload []byte) (pipeline.Answer, error) {
	return deps.Resolver.ResolveAudio(r.Context(), accountNumber, payload)
}

func resolveDocument(deps Deps, r *http.Request, accountNumber string, payload []byte) (pipeline.Answer, error) {
	return deps.Resolver.ResolveDocument(r.Context(), accountNumber, payload)
}

// handleUploadQuery accepts a multipart form with a "file" part and an
// optional "account_number" value.
func handleUploadQuery(deps Deps, resolve resolveFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
			return
		}
		defer file.Close()

		payload, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
			return
		}

		answer, err := resolve(deps, r, r.FormValue("account_number"), payload)
		if err != nil {
			writePipelineError(w, err)
			return
		}
		writeAnswer(w, answer)
	}
}

func writeAnswer(w http.ResponseWriter, answer pipeline.Answer) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(answer)
}

// writePipelineError maps pipeline errors to status codes and fixed
// user-facing messages. Collaborator detail goes to the log only.
func writePipelineError(w http.ResponseWriter, err error) {
	var (
		recErr *modality.RecognitionError
		svcErr *gemini.ServiceError
		trErr  *gemini.TransportError
	)
	switch {
	case errors.Is(err, pipeline.ErrInvalidCredentials):
		httpError(w, http.StatusUnauthorized, "authentication_error", "invalid credentials")
	case errors.Is(err, pipeline.ErrNoActiveSession):
		httpError(w, http.StatusForbidden, "no_active_session", "no active session. Please log in first.")
	case errors.Is(err, modality.ErrUnintelligibleAudio):
		httpError(w, http.StatusBadRequest, "unintelligible_audio", "could not understand the audio. Please try again.")
	case errors.Is(err, modality.ErrSpeechUnavailable):
		slog.Error("speech service unavailable", "error", err)
		httpError(w, http.StatusBadGateway, "speech_unavailable", "speech-to-text service is temporarily unavailable.")
	case errors.As(err, &recErr):
		slog.Warn("recognition failed", "error", err)
		httpError(w, http.StatusUnprocessableEntity, "recognition_error", "could not read the uploaded file.")
	case errors.As(err, &svcErr):
		slog.Error("model service error", "status", svcErr.Status, "body", svcErr.Body)
		httpError(w, http.StatusBadGateway, "model_error", "the assistant is temporarily unavailable. Please try again later.")
	case errors.As(err, &trErr):
		slog.Error("model transport failure", "attempts", trErr.Attempts, "error", trErr.Err)
		httpError(w, http.StatusBadGateway, "model_error", "the assistant is temporarily unavailable. Please try again later.")
	case errors.Is(err, gemini.ErrMalformedResponse):
		slog.Error("malformed model response", "error", err)
		httpError(w, http.StatusBadGateway, "model_error", "the assistant returned an unexpected response. Please try again.")
	default:
		slog.Error("query resolution failed", "error", err)
		httpError(w, http.StatusInternalServerError, "api_error", "internal error")
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
