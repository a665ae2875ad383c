// Package vision counts people in submission photos.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrVision marks any counting failure, including timeouts.
var ErrVision = errors.New("vision: person count unavailable")

// PersonCounter counts persons visible in an encoded image.
type PersonCounter interface {
	CountPersons(ctx context.Context, image []byte) (int, error)
}

// HTTPCounter posts the image to an inference service that answers
// {"persons": n}.
type HTTPCounter struct {
	URL        string
	httpClient *http.Client
}

func NewHTTPCounter(url string, timeout time.Duration) *HTTPCounter {
	return &HTTPCounter{URL: url, httpClient: &http.Client{Timeout: timeout}}
}

type countResponse struct {
	Persons *int `json:"persons"`
}

func (c *HTTPCounter) CountPersons(ctx context.Context, image []byte) (int, error) {
	if len(image) == 0 {
		return 0, fmt.Errorf("%w: empty image", ErrVision)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(image))
	if err != nil {
		return 0, fmt.Errorf("%w: creating request: %w", ErrVision, err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: inference request failed: %w", ErrVision, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: reading response body: %w", ErrVision, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: inference error %d: %s", ErrVision, resp.StatusCode, bytes.TrimSpace(body))
	}

	var out countResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("%w: decoding response: %w", ErrVision, err)
	}
	if out.Persons == nil || *out.Persons < 0 {
		return 0, fmt.Errorf("%w: response has no person count", ErrVision)
	}
	return *out.Persons, nil
}

// Disabled is used when no inference service is configured.
type Disabled struct{}

func (Disabled) CountPersons(context.Context, []byte) (int, error) {
	return 0, fmt.Errorf("%w: no vision service configured", ErrVision)
}
