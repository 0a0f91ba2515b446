// Package clients holds outbound HTTP clients for the hosted recommendation
// models. Responses are passed through to the caller untouched.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cineniche/catalog-api/internal/config"
	"github.com/cineniche/catalog-api/internal/metrics"
	apperrors "github.com/cineniche/catalog-api/pkg/errors"
)

// RecommenderClient calls the three hosted recommendation endpoints
type RecommenderClient struct {
	cfg        *config.RecommenderConfig
	httpClient *http.Client
	logger     *logrus.Logger
	breakers   map[string]*Breaker
}

// NewRecommenderClient creates a client for the recommendation endpoints
func NewRecommenderClient(cfg *config.RecommenderConfig, logger *logrus.Logger) *RecommenderClient {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxConnsPerHost:     10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &RecommenderClient{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		breakers: map[string]*Breaker{
			"title":  NewBreaker("title", logger),
			"genre":  NewBreaker("genre", logger),
			"hybrid": NewBreaker("hybrid", logger),
		},
	}
}

// SimilarByTitle returns titles similar to the given one
func (c *RecommenderClient) SimilarByTitle(ctx context.Context, request interface{}) (json.RawMessage, error) {
	return c.post(ctx, "title", c.cfg.TitleURL, request)
}

// TopByGenre returns top titles for a genre
func (c *RecommenderClient) TopByGenre(ctx context.Context, request interface{}) (json.RawMessage, error) {
	return c.post(ctx, "genre", c.cfg.GenreURL, request)
}

// HybridForUser returns personalized titles for a user and seed show
func (c *RecommenderClient) HybridForUser(ctx context.Context, request interface{}) (json.RawMessage, error) {
	return c.post(ctx, "hybrid", c.cfg.HybridURL, request)
}

func (c *RecommenderClient) post(ctx context.Context, model, url string, body interface{}) (json.RawMessage, error) {
	if url == "" {
		return nil, apperrors.NewAppError(apperrors.CodeUpstreamUnavailable,
			fmt.Sprintf("%s recommendation endpoint is not configured", model), nil)
	}

	var result json.RawMessage
	err := c.breakers[model].Execute(func() error {
		raw, err := c.doRequest(ctx, model, url, body)
		if err != nil {
			return err
		}
		result = raw
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*apperrors.AppError); ok {
			return nil, appErr
		}
		return nil, apperrors.NewAppError(apperrors.CodeUpstreamUnavailable,
			fmt.Sprintf("%s recommendation endpoint is unavailable", model), err)
	}

	return result, nil
}

func (c *RecommenderClient) doRequest(ctx context.Context, model, url string, body interface{}) (json.RawMessage, error) {
	start := time.Now()

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	// Routes the call to a specific model deployment behind the endpoint.
	req.Header.Set("azureml-model-deployment", c.cfg.Deployment)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRecommenderCall(model, 0, time.Since(start))
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewAppError(apperrors.CodeUpstreamTimeout,
				fmt.Sprintf("%s recommendation endpoint timed out", model), err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordRecommenderCall(model, resp.StatusCode, time.Since(start))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	duration := time.Since(start)
	metrics.RecordRecommenderCall(model, resp.StatusCode, duration)

	c.logger.WithFields(logrus.Fields{
		"model":       model,
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	}).Debug("Recommender call completed")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("recommendation endpoint returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if !json.Valid(respBody) {
		return nil, fmt.Errorf("recommendation endpoint returned invalid JSON")
	}

	return json.RawMessage(respBody), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
