package searchapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightscout/internal/domain"
	"flightscout/internal/searchapi"
)

const samplePayload = `{
  "body": {
    "data": {
      "journeys": [
        {
          "recommendationId": 1,
          "direction": "I",
          "importTaxAdl": 12.5,
          "flights": [
            {
              "companyCode": "IB",
              "number": "3150",
              "airportDeparture": {"code": "MAD"},
              "airportArrival": {"code": "AUH"},
              "dateDeparture": "2024/12/01 14:30",
              "dateArrival": "2024/12/01 23:10"
            }
          ]
        }
      ],
      "totalAvailabilities": [
        {"recommendationId": 1, "total": 230.40}
      ]
    }
  }
}`

var query = domain.Query{Origin: "MAD", Destination: "AUH", OutboundDate: "2024-12-01", InboundDate: "2024-12-08"}

func TestSearchURL(t *testing.T) {
	c := searchapi.NewClient("http://example.test/")

	assert.Equal(t,
		"http://example.test/search.php?from=MAD&to=AUH&depart=2024-12-01&return=2024-12-08",
		c.SearchURL(query))
}

func TestSearch_DecodesPayload(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/search.php", r.URL.Path)
		assert.Equal(t, "MAD", r.URL.Query().Get("from"))
		assert.Equal(t, "AUH", r.URL.Query().Get("to"))
		assert.Equal(t, "2024-12-01", r.URL.Query().Get("depart"))
		assert.Equal(t, "2024-12-08", r.URL.Query().Get("return"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	data, err := searchapi.NewClient(srv.URL).Search(context.Background(), query)

	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, data.Journeys, 1)
	j := data.Journeys[0]
	assert.Equal(t, 1, j.RecommendationID)
	assert.Equal(t, searchapi.DirectionOutbound, j.Direction)
	assert.Equal(t, 0, j.NumberOfConnections())
	assert.Equal(t, "12.5", j.ImportTaxAdl.String())
	assert.Equal(t, "IB", j.Flights[0].CompanyCode)
	assert.Equal(t, "MAD", j.Flights[0].AirportDeparture.Code)
	require.Len(t, data.TotalAvailabilities, 1)
	assert.Equal(t, "230.4", data.TotalAvailabilities[0].Total.String())
}

func TestSearch_HTMLBodyIsRouteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>No route</body></html>"))
	}))
	defer srv.Close()

	_, err := searchapi.NewClient(srv.URL).Search(context.Background(), query)

	assert.ErrorIs(t, err, searchapi.ErrRouteUnavailable)
}

func TestSearch_NonSuccessStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := searchapi.NewClient(srv.URL).Search(context.Background(), query)

	var se *searchapi.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
	assert.Equal(t, int32(1), calls.Load(), "no retry expected")
}

func TestSearch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := searchapi.NewClient(url).Search(context.Background(), query)

	assert.ErrorIs(t, err, searchapi.ErrTransport)
}

func TestDecode_InvalidShapes(t *testing.T) {
	cases := map[string]string{
		"not json":     `{"body":`,
		"null":         `null`,
		"missing body": `{"other":{}}`,
		"missing data": `{"body":{}}`,
		"null data":    `{"body":{"data":null}}`,
		"null flights": `{"body":{"data":{"journeys":[{"recommendationId":1,"direction":"V","flights":null}]}}}`,
		"no flights":   `{"body":{"data":{"journeys":[{"recommendationId":1,"direction":"V","flights":[]}]}}}`,
		"no departure airport": `{"body":{"data":{"journeys":[{"recommendationId":1,"direction":"I","flights":[
			{"companyCode":"EY","number":"1","airportArrival":{"code":"AUH"},"dateDeparture":"2026/11/01 10:00","dateArrival":"2026/11/01 19:00"}]}]}}}`,
		"null arrival airport": `{"body":{"data":{"journeys":[{"recommendationId":1,"direction":"I","flights":[
			{"companyCode":"EY","number":"1","airportDeparture":{"code":"MAD"},"airportArrival":null,"dateDeparture":"2026/11/01 10:00","dateArrival":"2026/11/01 19:00"}]}]}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := searchapi.Decode([]byte(body))
			assert.ErrorIs(t, err, searchapi.ErrInvalidResponse)
		})
	}
}

func TestDecode_EmptyData(t *testing.T) {
	data, err := searchapi.Decode([]byte(`{"body":{"data":{}}}`))

	require.NoError(t, err)
	assert.Empty(t, data.Journeys)
	assert.Empty(t, data.TotalAvailabilities)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, searchapi.IsHTML([]byte("<!DOCTYPE html>")))
	assert.True(t, searchapi.IsHTML([]byte("\n  <html>")))
	assert.False(t, searchapi.IsHTML([]byte(`{"body":{}}`)))
	assert.False(t, searchapi.IsHTML(nil))
}
