// Package pincode resolves coordinates to postal pincodes through the
// external geocoding service.
package pincode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/domain"
)

// StatusError is a non-2xx reply from the pincode service.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pincode service: status %d", e.Code)
}

// Client calls the pincode service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a pincode client. Returns nil when no base URL is
// configured; the service area policy treats a nil resolver as "no pincode
// lookup available".
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type resolveResponse struct {
	Pincode string `json:"pincode"`
}

// Resolve looks the coordinate's pincode up.
func (c *Client) Resolve(ctx context.Context, p domain.GeoPoint) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(p.Lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/pincode?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call pincode service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return "", apperr.ErrNotFound
	default:
		return "", &StatusError{Code: resp.StatusCode}
	}

	var out resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Pincode == "" {
		return "", apperr.ErrNotFound
	}
	return out.Pincode, nil
}
