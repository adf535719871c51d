// Package router picks the backend that serves an inference request.
//
// Backends are tried in order: every local model entry first, then the
// remote API. The first success wins. There are no retries and no state is
// kept between calls.
package router

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"modelkit/internal/config"
	"modelkit/internal/registry"
	"modelkit/pkg/types"
)

// Router walks an ordered list of backends.
type Router struct {
	backends []Backend
	log      zerolog.Logger
}

// New returns a Router over backends in the given order.
func New(log zerolog.Logger, backends ...Backend) *Router {
	return &Router{backends: append([]Backend(nil), backends...), log: log}
}

// NewFromConfig wires one LocalBackend per model followed by the remote backend.
func NewFromConfig(cfg config.RouterConfig, models []types.LocalModel, log zerolog.Logger) *Router {
	bs := make([]Backend, 0, len(models)+1)
	for _, m := range models {
		bs = append(bs, NewLocalBackend(m))
	}
	bs = append(bs, NewRemoteBackend(cfg.APIURL, cfg.APIKey, cfg.Timeout()))
	return New(log, bs...)
}

// Backends returns a copy of the chain.
func (r *Router) Backends() []Backend { return append([]Backend(nil), r.backends...) }

// LocalModels lists the local entries in chain order with their availability.
func (r *Router) LocalModels() []types.LocalModelStatus {
	var models []types.LocalModel
	for _, b := range r.backends {
		if lb, ok := b.(*LocalBackend); ok {
			models = append(models, lb.Model())
		}
	}
	return registry.Status(models)
}

// Route returns the first successful backend result. When every backend
// fails it returns a result whose Backend is types.BackendNone and whose
// Error holds the last failure. It never returns a Go error.
func (r *Router) Route(ctx context.Context, req types.ChatRequest) types.InferenceResult {
	r.log.Info().Str("model", req.Model).Str("prompt", truncate(req.Prompt, 30)).Msg("routing request")

	var lastErr error
	for _, b := range r.backends {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		start := time.Now()
		res, err := b.Attempt(ctx, req)
		switch {
		case IsNotConfigured(err):
			observeAttempt(b.Name(), outcomeSkipped, start)
			continue
		case err != nil:
			observeAttempt(b.Name(), outcomeFailure, start)
			lastErr = err
			ev := r.log.Warn().Str("backend", b.Label()).Str("model", req.Model).Err(err)
			if IsLocalUnavailable(err) {
				ev = ev.Bool("local_missing", true)
			}
			ev.Msg("backend failed, falling back")
			continue
		}
		observeAttempt(b.Name(), outcomeSuccess, start)
		res.Backend = b.Label()
		res.Error = ""
		r.log.Info().Str("backend", res.Backend).Str("model", req.Model).Dur("dur", time.Since(start)).Msg("routed")
		return *res
	}

	if lastErr == nil {
		lastErr = errors.New("no backend available")
	}
	fallbackFailedTotal.Inc()
	r.log.Error().Str("model", req.Model).Err(lastErr).Msg("all backends failed")
	return types.InferenceResult{Backend: types.BackendNone, Error: lastErr.Error()}
}
