package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is a reverse geocoder for Nominatim-compatible services
// (GET /reverse?format=jsonv2&lat=..&lon=..).
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

// New creates a geocoder client. Nominatim rejects requests without a
// descriptive User-Agent.
func New(baseURL, userAgent string) *Client {
	return &Client{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   baseURL,
		userAgent: userAgent,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Name        string `json:"name"`
	Error       string `json:"error"`
}

func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	u, err := url.Parse(c.baseURL + "/reverse")
	if err != nil {
		return "", fmt.Errorf("invalid geocoder url: %w", err)
	}
	q := u.Query()
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create geocoder request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call geocoder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("geocoder returned non-successful status code: %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode geocoder response: %w", err)
	}
	if body.Error != "" {
		return "", fmt.Errorf("geocoder: %s", body.Error)
	}
	if body.DisplayName != "" {
		return body.DisplayName, nil
	}
	if body.Name != "" {
		return body.Name, nil
	}
	return "", fmt.Errorf("geocoder returned no label")
}
