package flightscoutsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal flightscout HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults. Searches wait on the upstream
// flight API, so the timeout is generous.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: token,
		Timeout:     60 * time.Second,
	}
}

// SearchRequest asks the server to run one search.
type SearchRequest struct {
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	OutboundDate string `json:"outbound_date"`
	InboundDate  string `json:"inbound_date"`
	Save         bool   `json:"save,omitempty"`
}

type Leg struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	FlightNumber  string `json:"flight_number"`
}

// Roundtrip is a priced offer. Amounts are decimal strings.
type Roundtrip struct {
	RecommendationID int    `json:"recommendation_id"`
	Outbound         []Leg  `json:"outbound"`
	Inbound          []Leg  `json:"inbound"`
	Price            string `json:"price"`
	Taxes            string `json:"taxes"`
	Total            string `json:"total"`
	Cheapest         bool   `json:"cheapest"`
}

type SearchResult struct {
	RunID                   string      `json:"run_id"`
	Status                  string      `json:"status"`
	Flights                 int         `json:"flights"`
	Roundtrips              []Roundtrip `json:"roundtrips"`
	Cheapest                []Roundtrip `json:"cheapest"`
	MinTotal                string      `json:"min_total"`
	SkippedJourneys         int         `json:"skipped_journeys"`
	UnpricedRecommendations []int       `json:"unpriced_recommendations"`
	DroppedLegs             int         `json:"dropped_legs"`
	OutputPath              string      `json:"output_path"`
}

// Run is a recorded search.
type Run struct {
	ID            string `json:"id"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	OutboundDate  string `json:"outbound_date"`
	InboundDate   string `json:"inbound_date"`
	Status        string `json:"status"`
	Flights       int    `json:"flights"`
	Roundtrips    int    `json:"roundtrips"`
	CheapestTotal string `json:"cheapest_total"`
	OutputPath    string `json:"output_path"`
	Error         string `json:"error"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
}

type Offer struct {
	Position         int    `json:"position"`
	RecommendationID int    `json:"recommendation_id"`
	FlightNumbers    string `json:"flight_numbers"`
	Price            string `json:"price"`
	Taxes            string `json:"taxes"`
	Total            string `json:"total"`
}

type RunDetail struct {
	Run    Run     `json:"run"`
	Offers []Offer `json:"offers"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Search runs a search on the server.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	var resp SearchResult
	err := c.do(ctx, http.MethodPost, "v0/searches", req, &resp)
	return resp, err
}

// Runs lists recorded searches, newest first. An empty status matches all.
func (c *Client) Runs(ctx context.Context, status string, limit int) ([]Run, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := "v0/runs"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Run `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// Run fetches a recorded search and its cheapest offers.
func (c *Client) Run(ctx context.Context, id string) (RunDetail, error) {
	var resp RunDetail
	err := c.do(ctx, http.MethodGet, "v0/runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
