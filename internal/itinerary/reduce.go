// Package itinerary turns raw search journeys into one-way flights, pairs
// them into roundtrip offers and selects the cheapest ones.
package itinerary

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"flightscout/internal/domain"
	"flightscout/internal/searchapi"
)

// LegTimeLayout is the API's leg timestamp format (yyyy/MM/dd HH:mm).
const LegTimeLayout = "2006/01/02 15:04"

// MaxConnections is the largest connection count a journey may have.
const MaxConnections = 1

var ErrTimestamp = errors.New("malformed leg timestamp")

// Reduction is the outcome of Reduce.
type Reduction struct {
	Flights []domain.Flight
	// Qualified is false when no journey had MaxConnections or fewer.
	Qualified bool
	// Skipped counts journeys dropped for too many connections.
	Skipped int
	// Unpriced lists recommendation ids priced at zero for lack of a total.
	Unpriced []int
	// DroppedLegs counts legs whose direction flag was not recognised.
	DroppedLegs int
}

// Reduce normalizes journeys with at most one connection into flights.
// A single malformed timestamp, a journey without legs or a leg without
// airports fails the whole reduction.
func Reduce(data searchapi.Data) (Reduction, error) {
	res := Reduction{Flights: []domain.Flight{}}
	prices := priceIndex(data.TotalAvailabilities)
	unpriced := map[int]bool{}

	for i, journey := range data.Journeys {
		if len(journey.Flights) == 0 {
			return Reduction{}, fmt.Errorf("journey %d: %w: no flights", i, searchapi.ErrInvalidResponse)
		}
		if journey.NumberOfConnections() > MaxConnections {
			res.Skipped++
			continue
		}
		res.Qualified = true

		price, ok := prices[journey.RecommendationID]
		if !ok {
			price = decimal.Zero
			if !unpriced[journey.RecommendationID] {
				unpriced[journey.RecommendationID] = true
				res.Unpriced = append(res.Unpriced, journey.RecommendationID)
			}
		}
		flight := domain.Flight{
			OutboundLegs:     []domain.FlightLeg{},
			InboundLegs:      []domain.FlightLeg{},
			Price:            price,
			Taxes:            journey.ImportTaxAdl,
			RecommendationID: journey.RecommendationID,
		}
		for j, raw := range journey.Flights {
			leg, err := normalizeLeg(raw)
			if err != nil {
				return Reduction{}, fmt.Errorf("journey %d leg %d: %w", i, j, err)
			}
			switch journey.Direction {
			case searchapi.DirectionOutbound:
				flight.OutboundLegs = append(flight.OutboundLegs, leg)
			case searchapi.DirectionInbound:
				flight.InboundLegs = append(flight.InboundLegs, leg)
			default:
				res.DroppedLegs++
			}
		}
		res.Flights = append(res.Flights, flight)
	}
	return res, nil
}

// priceIndex keeps the first total seen for each recommendation id.
func priceIndex(items []searchapi.TotalAvailability) map[int]decimal.Decimal {
	idx := make(map[int]decimal.Decimal, len(items))
	for _, t := range items {
		if _, ok := idx[t.RecommendationID]; ok {
			continue
		}
		idx[t.RecommendationID] = t.Total
	}
	return idx
}

func normalizeLeg(raw searchapi.RawLeg) (domain.FlightLeg, error) {
	if raw.AirportDeparture == nil || raw.AirportArrival == nil {
		return domain.FlightLeg{}, fmt.Errorf("%w: missing airport", searchapi.ErrInvalidResponse)
	}
	dep, err := ParseLegTime(raw.DateDeparture)
	if err != nil {
		return domain.FlightLeg{}, err
	}
	arr, err := ParseLegTime(raw.DateArrival)
	if err != nil {
		return domain.FlightLeg{}, err
	}
	return domain.FlightLeg{
		Origin:        raw.AirportDeparture.Code,
		Destination:   raw.AirportArrival.Code,
		DepartureTime: dep,
		ArrivalTime:   arr,
		FlightNumber:  raw.CompanyCode + raw.Number,
	}, nil
}

// ParseLegTime parses an API leg timestamp as a wall-clock UTC time.
func ParseLegTime(s string) (time.Time, error) {
	t, err := time.Parse(LegTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrTimestamp, s)
	}
	return t, nil
}
