package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"modelkit/pkg/types"
)

// RemoteBackend calls an OpenAI-compatible chat-completions endpoint
// (AIClient-2-API by default) with bearer auth.
type RemoteBackend struct {
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewRemoteBackend constructs a remote backend. timeout bounds each request.
func NewRemoteBackend(url, apiKey string, timeout time.Duration) *RemoteBackend {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0 on the client; Attempt applies the deadline via context.
	return &RemoteBackend{
		url:        url,
		apiKey:     apiKey,
		timeout:    timeout,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

func (b *RemoteBackend) Name() string  { return "remote" }
func (b *RemoteBackend) Label() string { return types.BackendRemote }

// remoteBody decodes a chat completion. Error stays raw because providers
// send either a string or an object.
type remoteBody struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Created int64           `json:"created"`
	Model   string          `json:"model"`
	Choices []types.Choice  `json:"choices"`
	Usage   *types.Usage    `json:"usage"`
	Error   json.RawMessage `json:"error"`
}

func (b *RemoteBackend) Attempt(ctx context.Context, req types.ChatRequest) (*types.InferenceResult, error) {
	res, err := b.call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("AIClient-2-API call failed: %w", err)
	}
	return res, nil
}

func (b *RemoteBackend) call(ctx context.Context, req types.ChatRequest) (*types.InferenceResult, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	temp := req.Temperature
	payload := types.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []types.Message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: &temp,
		Stream:      false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{Status: resp.Status, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var rb remoteBody
	if err := json.Unmarshal(raw, &rb); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if e := bytes.TrimSpace(rb.Error); len(e) > 0 && !bytes.Equal(e, []byte("null")) {
		return nil, fmt.Errorf("remote error: %s", e)
	}
	return &types.InferenceResult{
		ID:      rb.ID,
		Object:  rb.Object,
		Created: rb.Created,
		Model:   rb.Model,
		Choices: rb.Choices,
		Usage:   rb.Usage,
		Backend: b.Label(),
		Extra:   extraFields(raw),
	}, nil
}

// knownFields are the body keys remoteBody already decodes.
var knownFields = map[string]bool{
	"id": true, "object": true, "created": true, "model": true,
	"choices": true, "usage": true, "error": true, "backend": true,
}

// extraFields returns the top-level keys of body not covered by remoteBody.
func extraFields(body []byte) map[string]json.RawMessage {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(body, &all); err != nil {
		return nil
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if knownFields[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra
}
