package export_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightscout/internal/domain"
	"flightscout/internal/export"
	"flightscout/internal/itinerary"
)

var q = domain.Query{Origin: "MAD", Destination: "AUH", OutboundDate: "2026-11-01", InboundDate: "2026-11-08"}

func legAt(from, to, num string, dep time.Time) domain.FlightLeg {
	return domain.FlightLeg{Origin: from, Destination: to, DepartureTime: dep, ArrivalTime: dep.Add(3 * time.Hour), FlightNumber: num}
}

func fixtures() []domain.RoundtripFlight {
	dep := time.Date(2024, 12, 1, 14, 30, 0, 0, time.UTC)
	back := time.Date(2024, 12, 8, 9, 0, 0, 0, time.UTC)
	return []domain.RoundtripFlight{
		{
			OutboundLegs: []domain.FlightLeg{legAt("MAD", "FRA", "LH1", dep), legAt("FRA", "AUH", "LH2", dep.Add(5*time.Hour))},
			InboundLegs:  []domain.FlightLeg{legAt("AUH", "MAD", "EY3", back)},
			Price:        decimal.RequireFromString("200.50"),
			Taxes:        decimal.RequireFromString("20"),
		},
		{
			OutboundLegs: []domain.FlightLeg{legAt("MAD", "AUH", "EY1", dep)},
			InboundLegs:  []domain.FlightLeg{legAt("AUH", "MAD", "EY2", back)},
			Price:        decimal.RequireFromString("150"),
			Taxes:        decimal.RequireFromString("30"),
		},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "MAD-AUH_(2026-11-01)-(2026-11-08).csv", export.FileName(q))
}

func TestHeader(t *testing.T) {
	h := export.Header()

	require.Len(t, h, 3+4*5)
	assert.Equal(t, []string{"Cheapest", "Price", "Taxes"}, h[:3])
	assert.Equal(t, "outbound 1 airport departure", h[3])
	assert.Equal(t, "outbound 2 flight number", h[12])
	assert.Equal(t, "inbound 1 airport departure", h[13])
	assert.Equal(t, "inbound 2 flight number", h[22])
}

func TestWrite_Rows(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, export.Write(&buf, fixtures()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.Len(t, r, 23, "every row keeps the header width")
	}

	first := records[1]
	assert.Equal(t, "false", first[0])
	assert.Equal(t, "200.50", first[1])
	assert.Equal(t, "20.00", first[2])
	assert.Equal(t, []string{"MAD", "FRA", "2024-12-01 14:30", "2024-12-01 17:30", "LH1"}, first[3:8])
	assert.Equal(t, []string{"FRA", "AUH", "2024-12-01 19:30", "2024-12-01 22:30", "LH2"}, first[8:13])
	assert.Equal(t, []string{"AUH", "MAD", "2024-12-08 09:00", "2024-12-08 12:00", "EY3"}, first[13:18])
	assert.Equal(t, []string{"", "", "", "", ""}, first[18:23])

	second := records[2]
	assert.Equal(t, "true", second[0])
	assert.Equal(t, []string{"", "", "", "", ""}, second[8:13])
}

func TestWrite_EmptyIsNoOffers(t *testing.T) {
	var buf bytes.Buffer

	err := export.Write(&buf, nil)

	assert.ErrorIs(t, err, itinerary.ErrNoOffers)
	assert.Zero(t, buf.Len())
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Output")

	path, err := export.Save(dir, q, fixtures())

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "MAD-AUH_(2026-11-01)-(2026-11-08).csv"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Cheapest,Price,Taxes,outbound 1 airport departure")
}

func TestSave_NothingToSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Output")

	_, err := export.Save(dir, q, nil)

	assert.ErrorIs(t, err, itinerary.ErrNoOffers)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}
