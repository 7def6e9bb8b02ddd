// Package gemini calls the remote generateContent model service. It owns
// all retry, backoff, and timeout policy for the pipeline; no other
// component may retry a model call.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel       = "gemini-1.5-flash"
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 3
	initialBackoff     = 500 * time.Millisecond
)

// ServiceError is a well-formed non-success response from the model
// service. It is terminal: a service that answered with an error status is
// not retried.
type ServiceError struct {
	Status int
	Body   string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("model service returned status %d", e.Status)
}

// TransportError aggregates the transport failures of an exhausted retry
// sequence. Callers see one error, never partial attempt state.
type TransportError struct {
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("model call failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrMalformedResponse is returned when a success response lacks the
// expected candidate text.
var ErrMalformedResponse = errors.New("malformed model response")

// Client communicates with the generateContent API.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
}

// NewClient creates a client for the given API key and model. An empty
// model selects the default.
func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = defaultModel
	}
	return &Client{
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		model:       model,
		httpClient:  &http.Client{},
		timeout:     defaultTimeout,
		maxAttempts: defaultMaxAttempts,
		backoff:     initialBackoff,
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for
// testing).
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	c := NewClient(apiKey, model)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SetTimeout overrides the per-attempt timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.timeout = d
	}
}

// SetMaxAttempts overrides the retry bound.
func (c *Client) SetMaxAttempts(n int) {
	if n > 0 {
		c.maxAttempts = n
	}
}

// Wire types for the generateContent request/response shapes.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate submits the prompt and returns the model's text answer.
//
// Transport failures are retried up to the attempt bound with exponential
// backoff (base delay doubling each attempt); the backoff wait is
// cancellable through ctx so a disconnected caller does not hold the
// request slot. A non-success status (ServiceError) and a malformed success
// body (ErrMalformedResponse) are terminal.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range c.maxAttempts {
		text, err := c.doGenerate(ctx, body)
		if err == nil {
			return text, nil
		}

		var se *ServiceError
		if errors.As(err, &se) {
			return "", err
		}
		if errors.Is(err, ErrMalformedResponse) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if attempt < c.maxAttempts-1 {
			backoff := time.Duration(float64(c.backoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return "", &TransportError{Attempts: c.maxAttempts, Err: lastErr}
}

func (c *Client) doGenerate(ctx context.Context, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &ServiceError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", ErrMalformedResponse
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", ErrMalformedResponse
	}
	return text, nil
}
