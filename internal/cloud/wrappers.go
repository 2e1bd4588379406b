// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cloud provides components for interacting with Google Cloud services.
// This file wraps the Generative AI client with quota awareness. Vertex AI
// enforces per-minute quotas, so every call first waits on a token-bucket
// limiter, and transient failures are retried a bounded number of times with
// exponential backoff.
//
// Structs:
//   - QuotaAwareGenerativeAIModel: a configured LLM (name + generation config)
//     behind a rate limiter.
//   - QuotaAwareEmbeddingModel: an embedding model behind a rate limiter.
package cloud

import (
	"context"
	"fmt"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// DefaultRetryDelay is the first backoff interval of a failed model call.
const DefaultRetryDelay = 2 * time.Second

// GenerativeModel produces content from a multi-modal prompt.
type GenerativeModel interface {
	GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

// EmbeddingModel turns content into vectors. *genai.Models satisfies it.
type EmbeddingModel interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// QuotaAwareGenerativeAIModel decorates a genai model handle with a rate
// limiter and retries.
type QuotaAwareGenerativeAIModel struct {
	GenerativeContentConfig *genai.GenerateContentConfig
	ModelName               string
	ModelHandle             *genai.Models
	RateLimit               *rate.Limiter
	MaxRetries              int
	RetryDelay              time.Duration
}

// NewQuotaAwareModel creates a QuotaAwareGenerativeAIModel allowing
// requestsPerSecond calls per second (bursting to the same amount). Zero or a
// negative value disables limiting.
//
// Inputs:
//   - config: The generation settings sent with every request.
//   - name: The model name (e.g., "gemini-2.5-pro").
//   - handle: The genai models service.
//   - requestsPerSecond: The sustained request rate.
func NewQuotaAwareModel(config *genai.GenerateContentConfig, name string, handle *genai.Models, requestsPerSecond int) *QuotaAwareGenerativeAIModel {
	return &QuotaAwareGenerativeAIModel{
		GenerativeContentConfig: config,
		ModelName:               name,
		ModelHandle:             handle,
		RateLimit:               newLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		MaxRetries:              MaxRetries,
		RetryDelay:              DefaultRetryDelay,
	}
}

// GenerateContent waits for quota, then calls the model, retrying failures.
func (q *QuotaAwareGenerativeAIModel) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	err := withRetry(ctx, q.RateLimit, q.MaxRetries, q.RetryDelay, func() (err error) {
		resp, err = q.ModelHandle.GenerateContent(ctx, q.ModelName, contents, q.GenerativeContentConfig)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", q.ModelName, err)
	}
	return resp, nil
}

// QuotaAwareEmbeddingModel decorates an EmbeddingModel with a rate limiter.
type QuotaAwareEmbeddingModel struct {
	ModelHandle EmbeddingModel
	RateLimit   *rate.Limiter
	MaxRetries  int
	RetryDelay  time.Duration
}

// NewQuotaAwareEmbeddingModel limits handle to maxRequestsPerMinute calls.
func NewQuotaAwareEmbeddingModel(handle EmbeddingModel, maxRequestsPerMinute int) *QuotaAwareEmbeddingModel {
	limit := rate.Inf
	if maxRequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(maxRequestsPerMinute))
	}
	return &QuotaAwareEmbeddingModel{
		ModelHandle: handle,
		RateLimit:   newLimiter(limit, maxRequestsPerMinute),
		MaxRetries:  MaxRetries,
		RetryDelay:  DefaultRetryDelay,
	}
}

// EmbedContent waits for quota, then embeds contents, retrying failures.
func (q *QuotaAwareEmbeddingModel) EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	var resp *genai.EmbedContentResponse
	err := withRetry(ctx, q.RateLimit, q.MaxRetries, q.RetryDelay, func() (err error) {
		resp, err = q.ModelHandle.EmbedContent(ctx, model, contents, config)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embedding model %s: %w", model, err)
	}
	return resp, nil
}

func newLimiter(limit rate.Limit, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(limit, burst)
}

// retryBackoff returns the backoff of a call whose first retry waits about
// delay. Pauses are jittered and double up to 16 times delay.
func retryBackoff(delay time.Duration) gax.Backoff {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return gax.Backoff{Initial: delay, Max: 16 * delay, Multiplier: 2}
}

// withRetry runs call up to maxRetries+1 times. Each attempt waits on the
// limiter; failed attempts sleep for the next pause of retryBackoff(delay).
func withRetry(ctx context.Context, limiter *rate.Limiter, maxRetries int, delay time.Duration, call func() error) error {
	backoff := retryBackoff(delay)
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
		if err = call(); err == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		if sleepErr := gax.Sleep(ctx, backoff.Pause()); sleepErr != nil {
			return sleepErr
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", maxRetries+1, err)
}
