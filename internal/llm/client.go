package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reasonloop/reasonloop/internal/circuitbreaker"
	"github.com/reasonloop/reasonloop/internal/config"
	"github.com/reasonloop/reasonloop/internal/metrics"
)

// Invoker is the language-model call boundary consumed by every pipeline
// stage. Implementations may fail with transport errors; callers treat any
// failure identically to a parse failure and fall back to their documented
// defaults.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, modelID string) (string, error)
}

// Client calls the model service over HTTP JSON. One Client is shared by all
// concurrent queries; it is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
	cache   *Cache
	logger  *zap.Logger
}

// NewClient builds a Client from config. The cache is optional and may be nil.
func NewClient(cfg config.LLMConfig, cache *Cache, logger *zap.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: circuitbreaker.New("llm", circuitbreaker.DefaultConfig(), logger),
		limiter: limiter,
		cache:   cache,
		logger:  logger,
	}
}

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type completionResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// Invoke sends the prompt to the model service and returns the raw
// completion text.
func (c *Client) Invoke(ctx context.Context, prompt string, modelID string) (string, error) {
	if c.cache != nil {
		if text, ok := c.cache.Get(ctx, modelID, prompt); ok {
			return text, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := time.Now()
	var text string
	err := c.breaker.Execute(ctx, func() error {
		var callErr error
		text, callErr = c.complete(ctx, prompt, modelID)
		return callErr
	})
	metrics.ModelCallDuration.WithLabelValues(modelID).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ModelCalls.WithLabelValues(modelID, "error").Inc()
		c.logger.Warn("Model call failed",
			zap.String("model", modelID),
			zap.Error(err),
		)
		return "", err
	}
	metrics.ModelCalls.WithLabelValues(modelID, "ok").Inc()

	if c.cache != nil {
		c.cache.Put(ctx, modelID, prompt, text)
	}
	return text, nil
}

func (c *Client) complete(ctx context.Context, prompt string, modelID string) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       modelID,
		Prompt:      prompt,
		MaxTokens:   4096,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/complete", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("model service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d from model service", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if out.Text == "" {
		return "", fmt.Errorf("model service returned empty completion")
	}
	return out.Text, nil
}
