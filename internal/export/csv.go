// Package export writes roundtrip offers as CSV files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"flightscout/internal/domain"
	"flightscout/internal/itinerary"
)

// DefaultDir is the output directory, relative to the working directory.
const DefaultDir = "Output"

// TimeLayout renders leg timestamps.
const TimeLayout = "2006-01-02 15:04"

// LegSlots is the number of leg column groups per direction.
const LegSlots = 2

var legFields = []string{"airport departure", "airport arrival", "time departure", "time arrival", "flight number"}

// Header returns the column names of the export.
func Header() []string {
	h := []string{"Cheapest", "Price", "Taxes"}
	for _, dir := range []string{"outbound", "inbound"} {
		for i := 1; i <= LegSlots; i++ {
			for _, f := range legFields {
				h = append(h, fmt.Sprintf("%s %d %s", dir, i, f))
			}
		}
	}
	return h
}

// FileName returns {origin}-{destination}_({outbound})-({inbound}).csv.
func FileName(q domain.Query) string {
	return fmt.Sprintf("%s-%s_(%s)-(%s).csv", q.Origin, q.Destination, q.OutboundDate, q.InboundDate)
}

// Write encodes one row per roundtrip, flagging those at the global minimum.
func Write(w io.Writer, rts []domain.RoundtripFlight) error {
	lowest, err := itinerary.MinTotal(rts)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, rt := range rts {
		if err := cw.Write(record(rt, itinerary.IsCheapest(rt, lowest))); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes the export for q into dir and returns the file path.
func Save(dir string, q domain.Query, rts []domain.RoundtripFlight) (string, error) {
	if len(rts) == 0 {
		return "", itinerary.ErrNoOffers
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, FileName(q))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}
	if err := Write(f, rts); err != nil {
		f.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func record(rt domain.RoundtripFlight, cheapest bool) []string {
	row := []string{strconv.FormatBool(cheapest), rt.Price.StringFixed(2), rt.Taxes.StringFixed(2)}
	row = appendLegs(row, rt.OutboundLegs)
	return appendLegs(row, rt.InboundLegs)
}

// appendLegs emits LegSlots groups; missing slots stay as empty fields.
func appendLegs(row []string, legs []domain.FlightLeg) []string {
	for i := 0; i < LegSlots; i++ {
		if i >= len(legs) {
			row = append(row, make([]string, len(legFields))...)
			continue
		}
		l := legs[i]
		row = append(row,
			l.Origin,
			l.Destination,
			l.DepartureTime.Format(TimeLayout),
			l.ArrivalTime.Format(TimeLayout),
			l.FlightNumber,
		)
	}
	return row
}
