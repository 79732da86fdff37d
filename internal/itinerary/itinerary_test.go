package itinerary_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightscout/internal/domain"
	"flightscout/internal/itinerary"
	"flightscout/internal/searchapi"
)

func leg(from, to, carrier, number string) searchapi.RawLeg {
	return searchapi.RawLeg{
		CompanyCode:      carrier,
		Number:           number,
		AirportDeparture: &searchapi.AirportInfo{Code: from},
		AirportArrival:   &searchapi.AirportInfo{Code: to},
		DateDeparture:    "2024/12/01 14:30",
		DateArrival:      "2024/12/01 18:05",
	}
}

func journey(id int, dir string, legs ...searchapi.RawLeg) searchapi.RawJourney {
	return searchapi.RawJourney{
		RecommendationID: id,
		Direction:        dir,
		Flights:          legs,
		ImportTaxAdl:     decimal.NewFromInt(10),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReduce_ConnectionFilter(t *testing.T) {
	data := searchapi.Data{
		Journeys: []searchapi.RawJourney{
			journey(1, "I", leg("MAD", "AUH", "EY", "100")),
			journey(1, "I", leg("MAD", "FRA", "LH", "1"), leg("FRA", "AUH", "LH", "2")),
			journey(1, "I", leg("MAD", "FRA", "LH", "1"), leg("FRA", "IST", "TK", "2"), leg("IST", "AUH", "TK", "3")),
		},
	}

	red, err := itinerary.Reduce(data)

	require.NoError(t, err)
	assert.True(t, red.Qualified)
	assert.Equal(t, 1, red.Skipped)
	require.Len(t, red.Flights, 2)
	assert.Len(t, red.Flights[0].OutboundLegs, 1)
	assert.Len(t, red.Flights[1].OutboundLegs, 2)
}

func TestReduce_NoQualifyingJourneys(t *testing.T) {
	data := searchapi.Data{
		Journeys: []searchapi.RawJourney{
			journey(1, "I", leg("A", "B", "X", "1"), leg("B", "C", "X", "2"), leg("C", "D", "X", "3")),
		},
	}

	red, err := itinerary.Reduce(data)

	require.NoError(t, err)
	assert.False(t, red.Qualified)
	assert.Empty(t, red.Flights)
}

func TestReduce_EmptyInput(t *testing.T) {
	red, err := itinerary.Reduce(searchapi.Data{})

	require.NoError(t, err)
	assert.NotNil(t, red.Flights)
	assert.Empty(t, red.Flights)
	assert.False(t, red.Qualified)
}

func TestReduce_PriceJoin(t *testing.T) {
	data := searchapi.Data{
		Journeys: []searchapi.RawJourney{
			journey(1, "I", leg("MAD", "AUH", "EY", "100")),
			journey(2, "V", leg("AUH", "MAD", "EY", "101")),
		},
		TotalAvailabilities: []searchapi.TotalAvailability{
			{RecommendationID: 1, Total: dec("100.00")},
			{RecommendationID: 1, Total: dec("999.00")},
		},
	}

	red, err := itinerary.Reduce(data)

	require.NoError(t, err)
	require.Len(t, red.Flights, 2)
	assert.True(t, red.Flights[0].Price.Equal(dec("100")), "got %s", red.Flights[0].Price)
	assert.True(t, red.Flights[1].Price.IsZero())
	assert.Equal(t, []int{2}, red.Unpriced)
}

func TestReduce_LegNormalization(t *testing.T) {
	data := searchapi.Data{
		Journeys: []searchapi.RawJourney{journey(3, "I", leg("CPH", "FUE", "SK", "4321"))},
	}

	red, err := itinerary.Reduce(data)

	require.NoError(t, err)
	require.Len(t, red.Flights, 1)
	got := red.Flights[0].OutboundLegs[0]
	assert.Equal(t, "CPH", got.Origin)
	assert.Equal(t, "FUE", got.Destination)
	assert.Equal(t, "SK4321", got.FlightNumber)
	assert.Equal(t, time.Date(2024, 12, 1, 14, 30, 0, 0, time.UTC), got.DepartureTime)
	assert.Equal(t, time.Date(2024, 12, 1, 18, 5, 0, 0, time.UTC), got.ArrivalTime)
	assert.True(t, red.Flights[0].Taxes.Equal(decimal.NewFromInt(10)))
}

func TestReduce_DirectionRouting(t *testing.T) {
	data := searchapi.Data{
		Journeys: []searchapi.RawJourney{
			journey(1, "I", leg("MAD", "AUH", "EY", "1")),
			journey(1, "V", leg("AUH", "MAD", "EY", "2")),
			journey(1, "X", leg("AUH", "MAD", "EY", "3"), leg("MAD", "JFK", "IB", "4")),
		},
	}

	red, err := itinerary.Reduce(data)

	require.NoError(t, err)
	require.Len(t, red.Flights, 3)
	assert.Len(t, red.Flights[0].OutboundLegs, 1)
	assert.Empty(t, red.Flights[0].InboundLegs)
	assert.Empty(t, red.Flights[1].OutboundLegs)
	assert.Len(t, red.Flights[1].InboundLegs, 1)
	// unknown direction still yields a flight, just without legs
	assert.Empty(t, red.Flights[2].OutboundLegs)
	assert.Empty(t, red.Flights[2].InboundLegs)
	assert.Equal(t, 2, red.DroppedLegs)
}

func TestReduce_MalformedTimestampFails(t *testing.T) {
	bad := leg("MAD", "AUH", "EY", "1")
	bad.DateArrival = "01-12-2024 14:30"
	data := searchapi.Data{
		Journeys: []searchapi.RawJourney{
			journey(1, "I", leg("MAD", "AUH", "EY", "1")),
			journey(2, "I", bad),
		},
	}

	red, err := itinerary.Reduce(data)

	require.Error(t, err)
	assert.True(t, errors.Is(err, itinerary.ErrTimestamp))
	assert.Empty(t, red.Flights)
}

func TestReduce_CorruptJourneysFail(t *testing.T) {
	noAirports := leg("MAD", "AUH", "EY", "1")
	noAirports.AirportDeparture = nil
	noAirports.AirportArrival = nil
	cases := map[string]searchapi.RawJourney{
		"missing airports": journey(1, "I", noAirports),
		"null flights":     journey(2, "V"),
		"empty flights":    {RecommendationID: 3, Direction: "V", Flights: []searchapi.RawLeg{}},
	}
	for name, bad := range cases {
		t.Run(name, func(t *testing.T) {
			data := searchapi.Data{
				Journeys: []searchapi.RawJourney{journey(1, "I", leg("MAD", "AUH", "EY", "1")), bad},
			}

			red, err := itinerary.Reduce(data)

			require.Error(t, err)
			assert.ErrorIs(t, err, searchapi.ErrInvalidResponse)
			assert.Empty(t, red.Flights)
		})
	}
}

func TestParseLegTime_RendersInOutputFormat(t *testing.T) {
	got, err := itinerary.ParseLegTime("2024/12/01 14:30")

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 12, 1, 14, 30, 0, 0, time.UTC), got)
	assert.Equal(t, "2024-12-01 14:30", got.Format("2006-01-02 15:04"))
}

func flight(id int, outbound bool, price, taxes string) domain.Flight {
	l := domain.FlightLeg{FlightNumber: "XX1"}
	f := domain.Flight{RecommendationID: id, Price: dec(price), Taxes: dec(taxes)}
	if outbound {
		f.OutboundLegs = []domain.FlightLeg{l}
	} else {
		f.InboundLegs = []domain.FlightLeg{l}
	}
	return f
}

func TestPair_CrossJoinWithinID(t *testing.T) {
	flights := []domain.Flight{
		flight(7, true, "100", "1"),
		flight(7, true, "100", "2"),
		flight(7, false, "100", "10"),
		flight(7, false, "100", "20"),
		flight(7, false, "100", "30"),
		flight(8, false, "50", "5"),
	}

	rts := itinerary.Pair(flights)

	require.Len(t, rts, 6)
	wantTaxes := []string{"11", "21", "31", "12", "22", "32"}
	for i, rt := range rts {
		assert.Equal(t, 7, rt.RecommendationID)
		assert.True(t, rt.Price.Equal(dec("100")))
		assert.True(t, rt.Taxes.Equal(dec(wantTaxes[i])), "offer %d taxes %s", i, rt.Taxes)
		assert.Len(t, rt.OutboundLegs, 1)
		assert.Len(t, rt.InboundLegs, 1)
	}
}

func TestPair_UsesOutboundPrice(t *testing.T) {
	rts := itinerary.Pair([]domain.Flight{
		flight(1, true, "80", "5"),
		flight(1, false, "0", "7"),
	})

	require.Len(t, rts, 1)
	assert.True(t, rts[0].Price.Equal(dec("80")))
	assert.True(t, rts[0].Taxes.Equal(dec("12")))
}

func TestPair_CopiesLegs(t *testing.T) {
	out := flight(1, true, "80", "5")
	rts := itinerary.Pair([]domain.Flight{out, flight(1, false, "0", "7")})
	require.Len(t, rts, 1)

	out.OutboundLegs[0].FlightNumber = "CHANGED"

	assert.Equal(t, "XX1", rts[0].OutboundLegs[0].FlightNumber)
}

func TestPair_EmptyPartitions(t *testing.T) {
	assert.Empty(t, itinerary.Pair(nil))
	assert.NotNil(t, itinerary.Pair(nil))
	assert.Empty(t, itinerary.Pair([]domain.Flight{flight(1, true, "1", "1")}))
	assert.Empty(t, itinerary.Pair([]domain.Flight{flight(1, true, "1", "1"), flight(2, false, "1", "1")}))
}

func TestCheapest_KeepsTies(t *testing.T) {
	var rts []domain.RoundtripFlight
	for i, total := range []string{"150", "120", "120", "200"} {
		rts = append(rts, domain.RoundtripFlight{RecommendationID: i, Price: dec(total).Sub(dec("20")), Taxes: dec("20")})
	}

	got, err := itinerary.Cheapest(rts)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].RecommendationID)
	assert.Equal(t, 2, got[1].RecommendationID)
	lowest, err := itinerary.MinTotal(rts)
	require.NoError(t, err)
	assert.True(t, lowest.Equal(dec("120")))
}

func TestCheapest_EmptyInput(t *testing.T) {
	_, err := itinerary.Cheapest(nil)
	assert.ErrorIs(t, err, itinerary.ErrNoOffers)

	_, err = itinerary.MinTotal([]domain.RoundtripFlight{})
	assert.ErrorIs(t, err, itinerary.ErrNoOffers)
}
