package searchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"flightscout/internal/domain"
)

var (
	ErrTransport        = errors.New("search api unreachable")
	ErrRouteUnavailable = errors.New("route not available")
	ErrInvalidResponse  = errors.New("invalid response data")
)

// StatusError wraps non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Client issues search requests against the flight search API. It performs
// exactly one request per Search call and never retries.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewClient creates a client without a request timeout.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

// SearchURL renders the search.php URL for a query.
func (c *Client) SearchURL(q domain.Query) string {
	// url.Values would sort the keys; the API documents this order.
	return fmt.Sprintf("%s/search.php?from=%s&to=%s&depart=%s&return=%s",
		strings.TrimRight(c.BaseURL, "/"),
		url.QueryEscape(q.Origin), url.QueryEscape(q.Destination),
		url.QueryEscape(q.OutboundDate), url.QueryEscape(q.InboundDate))
}

// Search fetches and decodes the result set for q.
func (c *Client) Search(ctx context.Context, q domain.Query) (*Data, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	endpoint := c.SearchURL(q)
	c.logger().Info("fetching flight data", "url", endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return Decode(body)
}

// Decode parses a search.php body. HTML bodies short-circuit to
// ErrRouteUnavailable without attempting JSON decoding. Journeys with no
// legs or legs missing an airport object fail with ErrInvalidResponse.
func Decode(body []byte) (*Data, error) {
	if IsHTML(body) {
		return nil, ErrRouteUnavailable
	}
	var decoded Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if decoded.Body == nil || decoded.Body.Data == nil {
		return nil, fmt.Errorf("%w: missing body.data", ErrInvalidResponse)
	}
	if err := decoded.Body.Data.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return decoded.Body.Data, nil
}

// IsHTML reports whether the body looks like an HTML error page.
func IsHTML(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(body, " \t\r\n"), []byte("<"))
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
