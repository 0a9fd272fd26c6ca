// Package embedding talks to an OpenAI-compatible /embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/resilience"
)

var ErrMissingAPIKey = errors.New("embedding provider api key is not configured")

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model, apiKey string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.apiKey == "" {
		return nil, domain.WrapError(domain.ErrServer, "embed", ErrMissingAPIKey)
	}

	request := map[string]any{
		"model": c.model,
		"input": texts,
	}
	var response struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/embeddings", request, &response, "embed")
	}
	if err := c.executor.Execute(ctx, "embedding.embed", call, classifyEmbeddingError); err != nil {
		return nil, wrapKind("embed", err)
	}

	out := make([][]float32, len(texts))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, domain.WrapError(domain.ErrServer, "embed", fmt.Errorf("embedding index %d out of range", item.Index))
		}
		out[item.Index] = item.Embedding
	}
	for i, vec := range out {
		if len(vec) == 0 {
			return nil, domain.WrapError(domain.ErrServer, "embed", fmt.Errorf("missing embedding for input %d", i))
		}
	}
	return out, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrServer, "embed", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}
