// Package llm is the chat-completion client used for enrichment and chat.
// It talks to any OpenAI-compatible endpoint and absorbs endpoint failures
// into a Result value: the client never panics and never returns a Go error
// from Complete — callers branch on Result.Outcome.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// defaultRetries is the maximum number of attempts per endpoint.
	defaultRetries = 3

	// defaultDelay is the base backoff applied after a rate-limit signal.
	defaultDelay = 5 * time.Second

	// maxBackoff clamps the exponential rate-limit backoff.
	maxBackoff = 15 * time.Second

	// attemptTimeout bounds a single HTTP attempt.
	attemptTimeout = 30 * time.Second
)

// Config configures the completion client.
type Config struct {
	Model       string   `json:"model" yaml:"model"`
	APIKey      string   `json:"api_key" yaml:"api_key"`
	Endpoints   []string `json:"endpoints" yaml:"endpoints"` // candidate chat-completion URLs, tried in order
	Temperature float64  `json:"temperature" yaml:"temperature"`
	Retries     int      `json:"retries" yaml:"retries"`
	DelaySec    int      `json:"delay_sec" yaml:"delay_sec"`

	// RequestsPerSecond enables proactive client-side throttling ahead of
	// the reactive 429 backoff. Zero disables it.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// Client sends chat-completion requests with per-endpoint retry and
// rate-limit backoff.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter

	// backoff is swapped out by tests to observe sleep durations.
	backoff func(ctx context.Context, d time.Duration) error
}

// New creates a completion client. Zero-valued retry settings get defaults.
func New(cfg Config) *Client {
	if cfg.Retries <= 0 {
		cfg.Retries = defaultRetries
	}
	if cfg.DelaySec <= 0 {
		cfg.DelaySec = int(defaultDelay / time.Second)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: attemptTimeout},
		limiter: limiter,
		backoff: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wire types for the OpenAI-compatible chat completion API.

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a single user message and returns the terminal
// Result. The state machine per request is
// ATTEMPT(n) -> {SUCCESS, RETRYABLE -> ATTEMPT(n+1), TERMINAL}:
//
//   - HTTP 404 skips to the next candidate endpoint without consuming a
//     retry.
//   - HTTP 429 sleeps min(delay * 2^attempt, 15s) and retries the same
//     endpoint, consuming one attempt.
//   - Any other transport or protocol error is terminal (Unavailable).
//   - A 200 with an empty choice list is terminal (Unavailable).
//   - Running out of endpoints and retries yields Exhausted, or
//     RateLimited when every consumed attempt was throttled.
func (c *Client) Complete(ctx context.Context, prompt string) Result {
	body, err := json.Marshal(completionRequest{
		Model:       c.cfg.Model,
		Messages:    []message{{Role: "user", Content: prompt}},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return failure(Unavailable, fmt.Errorf("encoding request: %w", err))
	}

	delay := time.Duration(c.cfg.DelaySec) * time.Second
	var lastErr error
	throttled := false

	for _, endpoint := range c.cfg.Endpoints {
	attempts:
		for attempt := 0; attempt < c.cfg.Retries; attempt++ {
			if c.limiter != nil {
				if err := c.limiter.Wait(ctx); err != nil {
					return failure(Unavailable, err)
				}
			}

			status, content, err := c.post(ctx, endpoint, body)
			switch {
			case err != nil:
				if ctx.Err() != nil {
					return failure(Unavailable, ctx.Err())
				}
				slog.Warn("llm: request failed", "endpoint", endpoint, "error", err)
				return failure(Unavailable, err)

			case status == http.StatusNotFound:
				// Endpoint does not serve this route; try the next
				// candidate without consuming a retry.
				slog.Debug("llm: endpoint not found, trying next", "endpoint", endpoint)
				break attempts

			case status == http.StatusTooManyRequests:
				throttled = true
				lastErr = fmt.Errorf("rate limited by %s", endpoint)
				wait := delay << attempt
				if wait > maxBackoff {
					wait = maxBackoff
				}
				slog.Warn("llm: rate limited, backing off",
					"endpoint", endpoint, "attempt", attempt+1,
					"retries", c.cfg.Retries, "delay", wait)
				if err := c.backoff(ctx, wait); err != nil {
					return failure(Unavailable, err)
				}
				continue

			case status != http.StatusOK:
				slog.Warn("llm: protocol error", "endpoint", endpoint, "status", status)
				return failure(Unavailable, fmt.Errorf("endpoint %s returned %d", endpoint, status))

			case content == "":
				return failure(Unavailable, fmt.Errorf("endpoint %s returned no choices", endpoint))

			default:
				return success(content)
			}
		}
	}

	// Non-retryable failures return inside the loop, so falling out means
	// every endpoint either 404'd or ran out of throttled attempts.
	if throttled {
		return failure(RateLimited, lastErr)
	}
	return failure(Exhausted, lastErr)
}

// post performs one HTTP attempt and returns the status code plus the first
// choice's content on 200.
func (c *Client) post(ctx context.Context, endpoint string, body []byte) (int, string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("reading response body: %w", err)
	}

	var decoded completionResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return resp.StatusCode, "", fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return resp.StatusCode, "", nil
	}
	return resp.StatusCode, decoded.Choices[0].Message.Content, nil
}
