// Package inference defines the narrow interface to the model-serving
// backend and its HTTP implementation.
//
// The engine treats the backend as an opaque call: a payload goes in, a
// response comes out. It never interprets transport details beyond the
// response shape that result assembly needs.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/visionedge/engine/pkg/models"
)

// Backend executes one model forward pass.
type Backend interface {
	Predict(ctx context.Context, model, version string, payload models.Payload) (models.InferenceResponse, error)
}

// HTTPBackend calls a KServe-style REST serving endpoint:
// POST {baseURL}/v1/models/{name}:predict with the payload as JSON body.
type HTTPBackend struct {
	baseURL   string
	namespace string
	client    *http.Client
}

// NewHTTPBackend creates a backend client for the given serving base URL
// and model namespace.
func NewHTTPBackend(baseURL, namespace string) *HTTPBackend {
	return &HTTPBackend{
		baseURL:   baseURL,
		namespace: namespace,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type predictRequest struct {
	Namespace string        `json:"namespace,omitempty"`
	Version   string        `json:"version,omitempty"`
	Payload   models.Payload `json:"payload"`
}

func (b *HTTPBackend) Predict(ctx context.Context, model, version string, payload models.Payload) (models.InferenceResponse, error) {
	body, err := json.Marshal(predictRequest{
		Namespace: b.namespace,
		Version:   version,
		Payload:   payload,
	})
	if err != nil {
		return models.InferenceResponse{}, fmt.Errorf("marshal predict request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", b.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.InferenceResponse{}, fmt.Errorf("create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return models.InferenceResponse{}, fmt.Errorf("call model %s: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return models.InferenceResponse{}, fmt.Errorf("model %s returned status %d: %s", model, resp.StatusCode, msg)
	}

	var out models.InferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.InferenceResponse{}, fmt.Errorf("decode predict response: %w", err)
	}
	return out, nil
}
