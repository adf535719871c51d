package types

import (
	"bytes"
	"encoding/json"
)

// Backend labels attached to every InferenceResult.
const (
	BackendLocalSimulated = "Local Model (Simulated)"
	BackendRemote         = "AIClient-2-API"
	BackendNone           = "None (Fallback failed)"
)

// ChatRequest is the router's input.
type ChatRequest struct {
	// Model name used for local lookup and forwarded to the remote API.
	// example: qwen3-1.7b-quantized
	Model string `json:"model" example:"qwen3-1.7b-quantized"`
	// Prompt sent as a single user message.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// example: 100
	MaxTokens int `json:"max_tokens" example:"100"`
	// example: 0.7
	Temperature float64 `json:"temperature" example:"0.7"`
}

// Message is a chat message in OpenAI wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the OpenAI-compatible body sent to the remote API
// and accepted by `router serve`.
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

// Choice is one completion alternative.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	Logprobs     any     `json:"logprobs"`
	FinishReason string  `json:"finish_reason"`
}

// Usage contains token accounting.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// InferenceResult is what the router returns for every request, successful or not.
type InferenceResult struct {
	ID      string   `json:"id,omitempty"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices,omitempty"`
	Usage   *Usage   `json:"usage,omitempty"`
	// Which path served the request. One of the Backend* constants.
	// example: AIClient-2-API
	Backend string `json:"backend" example:"AIClient-2-API"`
	// Set only when no backend could serve the request.
	Error string `json:"error,omitempty"`
	// Extra holds top-level fields from a remote body that have no field
	// above (system_fingerprint and the like). They are written back on marshal.
	Extra map[string]json.RawMessage `json:"-"`
}

// MarshalJSON adds the Extra keys that no known field already writes.
func (r InferenceResult) MarshalJSON() ([]byte, error) {
	type plain InferenceResult
	b, err := marshalNoEscape(plain(r))
	if err != nil || len(r.Extra) == 0 {
		return b, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return marshalNoEscape(m)
}

// marshalNoEscape keeps '<', '>' and '&' in prompts and completions readable.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Failed reports whether the result carries an error.
func (r InferenceResult) Failed() bool { return r.Error != "" }

// ModelsResponse wraps the local model table returned by GET /v1/models.
type ModelsResponse struct {
	Models []LocalModelStatus `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
