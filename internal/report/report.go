// Package report renders search results as terminal tables.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"flightscout/internal/domain"
	"flightscout/internal/engine"
	"flightscout/internal/export"
)

// Roundtrips prints one row per offer, outbound legs before inbound legs.
func Roundtrips(w io.Writer, title string, rts []domain.RoundtripFlight) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if title != "" {
		tw.SetTitle(title)
	}
	tw.AppendHeader(table.Row{"Rec", "Flights", "Outbound", "Inbound", "Price", "Taxes", "Total"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	for _, rt := range rts {
		tw.AppendRow(table.Row{
			rt.RecommendationID,
			rt.FlightNumbers(),
			legs(rt.OutboundLegs),
			legs(rt.InboundLegs),
			rt.Price.StringFixed(2),
			rt.Taxes.StringFixed(2),
			rt.Total().StringFixed(2),
		})
	}
	tw.Render()
}

func legs(ls []domain.FlightLeg) string {
	lines := make([]string, 0, len(ls))
	for _, l := range ls {
		lines = append(lines, fmt.Sprintf("%s %s-%s %s / %s", l.FlightNumber, l.Origin, l.Destination,
			l.DepartureTime.Format(export.TimeLayout), l.ArrivalTime.Format(export.TimeLayout)))
	}
	return strings.Join(lines, "\n")
}

// Summary prints the outcome of a search and, when there are offers, the
// cheapest ones.
func Summary(w io.Writer, res engine.Result) {
	q := res.Query
	fmt.Fprintf(w, "%s -> %s, %s / %s\n", q.Origin, q.Destination, q.OutboundDate, q.InboundDate)
	switch res.Status {
	case domain.RunNoFlights:
		fmt.Fprintln(w, "No flights fetched.")
		return
	case domain.RunNoRoundtrips:
		fmt.Fprintf(w, "%d flights, no roundtrip combinations found.\n", len(res.Flights))
		return
	case domain.RunFailed:
		fmt.Fprintln(w, "Search failed.")
		return
	}
	fmt.Fprintf(w, "%d flights, %d roundtrips", len(res.Flights), len(res.Roundtrips))
	if res.MinTotal != nil {
		fmt.Fprintf(w, ", cheapest total %s", res.MinTotal.StringFixed(2))
	}
	fmt.Fprintln(w)
	if res.Skipped > 0 {
		fmt.Fprintf(w, "%d journeys with more than one connection skipped.\n", res.Skipped)
	}
	if len(res.Unpriced) > 0 {
		fmt.Fprintf(w, "No price for recommendations %v; priced at zero.\n", res.Unpriced)
	}
	Roundtrips(w, "Cheapest", res.Cheapest)
	if res.OutputPath != "" {
		fmt.Fprintf(w, "Saved to %s\n", res.OutputPath)
	}
}

// Runs prints history rows.
func Runs(w io.Writer, runs []domain.Run) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Route", "Depart", "Return", "Status", "Roundtrips", "Cheapest", "Started"})
	for _, r := range runs {
		cheapest := ""
		if r.CheapestTotal != nil {
			cheapest = *r.CheapestTotal
		}
		tw.AppendRow(table.Row{r.ID, r.Origin + "-" + r.Destination, r.OutboundDate, r.InboundDate, r.Status, r.Roundtrips, cheapest, r.StartedAt})
	}
	tw.Render()
}

// Offers prints the stored cheapest offers of a run.
func Offers(w io.Writer, offers []domain.Offer) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"#", "Rec", "Flights", "Price", "Taxes", "Total"})
	for _, o := range offers {
		tw.AppendRow(table.Row{o.Position, o.RecommendationID, o.FlightNumbers, o.Price, o.Taxes, o.Total})
	}
	tw.Render()
}
