package router

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"modelkit/internal/common/fsutil"
	"modelkit/pkg/types"
)

const (
	simulatedCompletionTokens = 20
	promptPreviewRunes        = 50
)

// LocalBackend serves one entry of the local model table. It never runs a
// model: when the model directory exists it returns a canned completion.
type LocalBackend struct {
	model types.LocalModel
	now   func() time.Time
	newID func() string
}

// NewLocalBackend returns a simulated backend for m. m.Path should already be expanded.
func NewLocalBackend(m types.LocalModel) *LocalBackend {
	return &LocalBackend{
		model: m,
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

func (b *LocalBackend) Name() string  { return "local" }
func (b *LocalBackend) Label() string { return types.BackendLocalSimulated }

// Model returns the table entry this backend serves.
func (b *LocalBackend) Model() types.LocalModel { return b.model }

func (b *LocalBackend) Attempt(ctx context.Context, req types.ChatRequest) (*types.InferenceResult, error) {
	if req.Model != b.model.Name {
		return nil, ErrNotConfigured(b.Name(), req.Model)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fsutil.PathExists(b.model.Path) {
		return nil, localUnavailableError{path: b.model.Path}
	}

	base := filepath.Base(b.model.Path)
	promptTokens := len(strings.Fields(req.Prompt))
	return &types.InferenceResult{
		ID:      "chatcmpl-" + b.newID(),
		Object:  "chat.completion",
		Created: b.now().Unix(),
		Model:   "local-" + base,
		Choices: []types.Choice{{
			Index: 0,
			Message: types.Message{
				Role:    "assistant",
				Content: fmt.Sprintf("This is a simulated response from local model %s for prompt: '%s...'.", base, truncate(req.Prompt, promptPreviewRunes)),
			},
			FinishReason: "stop",
		}},
		Usage: &types.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: simulatedCompletionTokens,
			TotalTokens:      promptTokens + simulatedCompletionTokens,
		},
		Backend: b.Label(),
	}, nil
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
