package router

import (
	"context"

	"modelkit/pkg/types"
)

// Backend is one strategy in the router's fallback chain.
type Backend interface {
	// Name is a short, low-cardinality id used in logs and metrics.
	Name() string
	// Label is the value written to InferenceResult.Backend on success.
	Label() string
	// Attempt tries to serve req. It returns a NotConfigured error when the
	// backend does not handle req.Model at all, so the router can skip it quietly.
	Attempt(ctx context.Context, req types.ChatRequest) (*types.InferenceResult, error)
}
