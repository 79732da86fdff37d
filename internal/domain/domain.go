package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used for queries and file names.
const DateLayout = "2006-01-02"

// FlightLeg is one normalized flight segment.
type FlightLeg struct {
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	FlightNumber  string    `json:"flight_number"`
}

// Flight is a one-way itinerary. After reduction exactly one of the leg
// lists is populated.
type Flight struct {
	OutboundLegs     []FlightLeg     `json:"outbound_legs"`
	InboundLegs      []FlightLeg     `json:"inbound_legs"`
	Price            decimal.Decimal `json:"price"`
	Taxes            decimal.Decimal `json:"taxes"`
	RecommendationID int             `json:"recommendation_id"`
}

// RoundtripFlight is a priced outbound+inbound offer.
type RoundtripFlight struct {
	OutboundLegs     []FlightLeg     `json:"outbound_legs"`
	InboundLegs      []FlightLeg     `json:"inbound_legs"`
	Price            decimal.Decimal `json:"price"`
	Taxes            decimal.Decimal `json:"taxes"`
	RecommendationID int             `json:"recommendation_id"`
}

// Total is price plus taxes.
func (r RoundtripFlight) Total() decimal.Decimal {
	return r.Price.Add(r.Taxes)
}

// FlightNumbers joins outbound then inbound flight numbers with "-".
func (r RoundtripFlight) FlightNumbers() string {
	nums := make([]string, 0, len(r.OutboundLegs)+len(r.InboundLegs))
	for _, l := range r.OutboundLegs {
		nums = append(nums, l.FlightNumber)
	}
	for _, l := range r.InboundLegs {
		nums = append(nums, l.FlightNumber)
	}
	return strings.Join(nums, "-")
}

// Query is one search request. Dates are calendar dates in DateLayout.
type Query struct {
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	OutboundDate string `json:"outbound_date"`
	InboundDate  string `json:"inbound_date"`
}

// Run statuses.
const (
	RunOK           = "ok"
	RunNoFlights    = "no_flights"
	RunNoRoundtrips = "no_roundtrips"
	RunFailed       = "failed"
)

type Run struct {
	ID            string  `json:"id"`
	Origin        string  `json:"origin"`
	Destination   string  `json:"destination"`
	OutboundDate  string  `json:"outbound_date"`
	InboundDate   string  `json:"inbound_date"`
	Status        string  `json:"status" enum:"ok,no_flights,no_roundtrips,failed"`
	Flights       int     `json:"flights"`
	Roundtrips    int     `json:"roundtrips"`
	CheapestTotal *string `json:"cheapest_total,omitempty"`
	OutputPath    *string `json:"output_path,omitempty"`
	Error         *string `json:"error,omitempty"`
	StartedAt     string  `json:"started_at" format:"date-time"`
	FinishedAt    string  `json:"finished_at" format:"date-time"`
}

// Offer is a persisted cheapest offer of a run.
type Offer struct {
	RunID            string `json:"run_id"`
	Position         int    `json:"position"`
	RecommendationID int    `json:"recommendation_id"`
	FlightNumbers    string `json:"flight_numbers"`
	Price            string `json:"price"`
	Taxes            string `json:"taxes"`
	Total            string `json:"total"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
