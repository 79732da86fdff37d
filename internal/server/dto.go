package server

import (
	"encoding/json"

	"flightscout/internal/domain"
	"flightscout/internal/engine"
	"flightscout/internal/export"
)

// Money travels as decimal strings so totals compare exactly on the client.

type SearchRequest struct {
	Origin       string `json:"origin" example:"MAD"`
	Destination  string `json:"destination" example:"AUH"`
	OutboundDate string `json:"outbound_date" example:"2026-11-01"`
	InboundDate  string `json:"inbound_date" example:"2026-11-08"`
	Save         bool   `json:"save,omitempty" doc:"write the CSV export on the server"`
}

type LegResponse struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time" example:"2026-11-01 10:00"`
	ArrivalTime   string `json:"arrival_time" example:"2026-11-01 19:00"`
	FlightNumber  string `json:"flight_number"`
}

type RoundtripResponse struct {
	RecommendationID int           `json:"recommendation_id"`
	Outbound         []LegResponse `json:"outbound"`
	Inbound          []LegResponse `json:"inbound"`
	Price            string        `json:"price" example:"300.50"`
	Taxes            string        `json:"taxes" example:"25.00"`
	Total            string        `json:"total" example:"325.50"`
	Cheapest         bool          `json:"cheapest"`
}

type SearchResponse struct {
	RunID                   string              `json:"run_id"`
	Query                   domain.Query        `json:"query"`
	Status                  string              `json:"status" enum:"ok,no_flights,no_roundtrips,failed"`
	Flights                 int                 `json:"flights"`
	Roundtrips              []RoundtripResponse `json:"roundtrips"`
	Cheapest                []RoundtripResponse `json:"cheapest"`
	MinTotal                string              `json:"min_total,omitempty"`
	SkippedJourneys         int                 `json:"skipped_journeys"`
	UnpricedRecommendations []int               `json:"unpriced_recommendations"`
	DroppedLegs             int                 `json:"dropped_legs"`
	OutputPath              string              `json:"output_path,omitempty"`
}

type RunResponse struct {
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

type OfferResponse struct {
	RunID            string `json:"run_id"`
	Position         int    `json:"position"`
	RecommendationID int    `json:"recommendation_id"`
	FlightNumbers    string `json:"flight_numbers" example:"EY1-EY2"`
	Price            string `json:"price"`
	Taxes            string `json:"taxes"`
	Total            string `json:"total"`
}

type RunDetailResponse struct {
	Run    RunResponse     `json:"run"`
	Offers []OfferResponse `json:"offers"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type runList struct {
	Items []RunResponse `json:"items"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func legResponses(legs []domain.FlightLeg) []LegResponse {
	out := make([]LegResponse, 0, len(legs))
	for _, l := range legs {
		out = append(out, LegResponse{
			Origin:        l.Origin,
			Destination:   l.Destination,
			DepartureTime: l.DepartureTime.Format(export.TimeLayout),
			ArrivalTime:   l.ArrivalTime.Format(export.TimeLayout),
			FlightNumber:  l.FlightNumber,
		})
	}
	return out
}

func roundtripResponses(rts []domain.RoundtripFlight, res engine.Result) []RoundtripResponse {
	out := make([]RoundtripResponse, 0, len(rts))
	for _, rt := range rts {
		out = append(out, RoundtripResponse{
			RecommendationID: rt.RecommendationID,
			Outbound:         legResponses(rt.OutboundLegs),
			Inbound:          legResponses(rt.InboundLegs),
			Price:            rt.Price.StringFixed(2),
			Taxes:            rt.Taxes.StringFixed(2),
			Total:            rt.Total().StringFixed(2),
			Cheapest:         res.MinTotal != nil && rt.Total().Equal(*res.MinTotal),
		})
	}
	return out
}

func searchResponse(res engine.Result) SearchResponse {
	out := SearchResponse{
		RunID:                   res.RunID,
		Query:                   res.Query,
		Status:                  res.Status,
		Flights:                 len(res.Flights),
		Roundtrips:              roundtripResponses(res.Roundtrips, res),
		Cheapest:                roundtripResponses(res.Cheapest, res),
		SkippedJourneys:         res.Skipped,
		UnpricedRecommendations: []int{},
		DroppedLegs:             res.DroppedLegs,
		OutputPath:              res.OutputPath,
	}
	if res.MinTotal != nil {
		out.MinTotal = res.MinTotal.StringFixed(2)
	}
	if res.Unpriced != nil {
		out.UnpricedRecommendations = res.Unpriced
	}
	return out
}

func runResponse(r domain.Run) RunResponse {
	return RunResponse(r)
}

func offerResponses(offers []domain.Offer) []OfferResponse {
	out := make([]OfferResponse, 0, len(offers))
	for _, o := range offers {
		out = append(out, OfferResponse(o))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}
