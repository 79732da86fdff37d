package searchapi

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Response is the top-level search.php document.
type Response struct {
	Body *Body `json:"body"`
}

type Body struct {
	Data *Data `json:"data"`
}

// Data holds the journeys and the prices keyed by recommendation id.
type Data struct {
	Journeys            []RawJourney        `json:"journeys"`
	TotalAvailabilities []TotalAvailability `json:"totalAvailabilities"`
}

// TotalAvailability is the price quote for a recommendation.
type TotalAvailability struct {
	RecommendationID int             `json:"recommendationId"`
	Total            decimal.Decimal `json:"total"`
}

// Direction markers used by the API.
const (
	DirectionOutbound = "I"
	DirectionInbound  = "V"
)

// RawJourney is one directional itinerary candidate.
type RawJourney struct {
	RecommendationID int             `json:"recommendationId"`
	Direction        string          `json:"direction"`
	Flights          []RawLeg        `json:"flights"`
	ImportTaxAdl     decimal.Decimal `json:"importTaxAdl"`
}

// NumberOfConnections is the leg count minus one.
func (j RawJourney) NumberOfConnections() int {
	return len(j.Flights) - 1
}

// RawLeg is one flight segment. Dates use the "2006/01/02 15:04" layout.
type RawLeg struct {
	CompanyCode      string      `json:"companyCode"`
	Number           string      `json:"number"`
	AirportDeparture *AirportInfo `json:"airportDeparture"`
	AirportArrival   *AirportInfo `json:"airportArrival"`
	DateDeparture    string      `json:"dateDeparture"`
	DateArrival      string      `json:"dateArrival"`
}

type AirportInfo struct {
	Code string `json:"code"`
}

// validate rejects journeys without legs and legs without airport objects.
func (d *Data) validate() error {
	for i, j := range d.Journeys {
		if len(j.Flights) == 0 {
			return fmt.Errorf("journey %d: no flights", i)
		}
		for k, leg := range j.Flights {
			if leg.AirportDeparture == nil || leg.AirportArrival == nil {
				return fmt.Errorf("journey %d leg %d: missing airport", i, k)
			}
		}
	}
	return nil
}
