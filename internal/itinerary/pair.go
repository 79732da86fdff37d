package itinerary

import (
	"errors"

	"github.com/shopspring/decimal"

	"flightscout/internal/domain"
)

var ErrNoOffers = errors.New("no roundtrip offers available")

// Pair cross-joins outbound and inbound flights sharing a recommendation id.
// N outbound and M inbound flights with the same id yield N*M offers; the
// offer carries the outbound price and the sum of both taxes.
func Pair(flights []domain.Flight) []domain.RoundtripFlight {
	var outbound, inbound []domain.Flight
	for _, f := range flights {
		if len(f.OutboundLegs) > 0 {
			outbound = append(outbound, f)
		}
		if len(f.InboundLegs) > 0 {
			inbound = append(inbound, f)
		}
	}

	out := []domain.RoundtripFlight{}
	for _, o := range outbound {
		for _, in := range inbound {
			if o.RecommendationID != in.RecommendationID {
				continue
			}
			out = append(out, domain.RoundtripFlight{
				OutboundLegs:     append([]domain.FlightLeg(nil), o.OutboundLegs...),
				InboundLegs:      append([]domain.FlightLeg(nil), in.InboundLegs...),
				Price:            o.Price,
				Taxes:            o.Taxes.Add(in.Taxes),
				RecommendationID: o.RecommendationID,
			})
		}
	}
	return out
}

// MinTotal returns the lowest price+taxes across offers.
func MinTotal(rts []domain.RoundtripFlight) (decimal.Decimal, error) {
	if len(rts) == 0 {
		return decimal.Zero, ErrNoOffers
	}
	lowest := rts[0].Total()
	for _, rt := range rts[1:] {
		if t := rt.Total(); t.LessThan(lowest) {
			lowest = t
		}
	}
	return lowest, nil
}

// Cheapest returns every offer whose total equals the minimum, in input order.
func Cheapest(rts []domain.RoundtripFlight) ([]domain.RoundtripFlight, error) {
	lowest, err := MinTotal(rts)
	if err != nil {
		return nil, err
	}
	var out []domain.RoundtripFlight
	for _, rt := range rts {
		if IsCheapest(rt, lowest) {
			out = append(out, rt)
		}
	}
	return out, nil
}

func IsCheapest(rt domain.RoundtripFlight, lowest decimal.Decimal) bool {
	return rt.Total().Equal(lowest)
}
