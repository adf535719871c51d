// Package httpapi exposes the inference router over an OpenAI-compatible
// HTTP surface for `router serve`.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"modelkit/pkg/types"
)

// Defaults applied when a chat request omits them.
const (
	defaultMaxTokens   = 100
	defaultTemperature = 0.7
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Route(ctx context.Context, req types.ChatRequest) types.InferenceResult
	LocalModels() []types.LocalModelStatus
}

// NewMux builds the chi router.
func NewMux(svc Service, opts Options, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if opts.CORSEnabled {
		origins := opts.CORSAllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc, opts: opts, log: log}
	r.Post("/v1/chat/completions", h.chatCompletions)
	r.Get("/v1/models", h.models)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

type handlers struct {
	svc  Service
	opts Options
	log  zerolog.Logger
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.LocalModels()})
}

func (h *handlers) chatCompletions(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.maxBody())
	var body types.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, msg := toChatRequest(body)
	if msg != "" {
		writeJSONError(w, http.StatusBadRequest, msg)
		return
	}
	if body.Stream {
		h.log.Debug().Str("model", req.Model).Msg("stream requested, answering non-streamed")
	}

	start := time.Now()
	res := h.svc.Route(r.Context(), req)
	countRouted(res.Backend)

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusBadGateway
	}
	lvl := zerolog.InfoLevel
	if res.Failed() {
		lvl = zerolog.WarnLevel
	}
	ev := h.log.WithLevel(lvl)
	if res.Failed() {
		ev = ev.Str("error", res.Error)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Str("model", req.Model).Str("backend", res.Backend).Int("status", status).Dur("dur", time.Since(start)).Msg("chat completion")
	writeJSON(w, status, res)
}

// toChatRequest extracts the router input from an OpenAI-style body. The
// prompt is the content of the last user message.
func toChatRequest(body types.ChatCompletionRequest) (types.ChatRequest, string) {
	req := types.ChatRequest{
		Model:       strings.TrimSpace(body.Model),
		MaxTokens:   body.MaxTokens,
		Temperature: defaultTemperature,
	}
	if req.Model == "" {
		return req, "model is required"
	}
	for i := len(body.Messages) - 1; i >= 0; i-- {
		if body.Messages[i].Role == "user" {
			req.Prompt = body.Messages[i].Content
			break
		}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return req, "a user message is required"
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if body.Temperature != nil {
		req.Temperature = *body.Temperature
	}
	return req, ""
}
