package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"flightscout/internal/config"
	"flightscout/internal/domain"
	"flightscout/internal/events"
	"flightscout/internal/export"
	"flightscout/internal/itinerary"
	"flightscout/internal/repo"
	"flightscout/internal/searchapi"
)

// Searcher fetches the raw result set for a query.
type Searcher interface {
	Search(ctx context.Context, q domain.Query) (*searchapi.Data, error)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Searcher Searcher
	Logger   *slog.Logger
	Now      func() time.Time
}

// New wires an engine. db may be nil, which disables run history.
func New(db *sql.DB, cfg *config.Config, searcher Searcher) Engine {
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Config:   cfg,
		Searcher: searcher,
		Logger:   slog.Default(),
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) historyEnabled() bool {
	return e.DB != nil && (e.Config == nil || e.Config.History.Enabled)
}

// Result is the outcome of one search.
type Result struct {
	RunID       string                   `json:"run_id"`
	Query       domain.Query             `json:"query"`
	Status      string                   `json:"status"`
	Flights     []domain.Flight          `json:"flights"`
	Roundtrips  []domain.RoundtripFlight `json:"roundtrips"`
	Cheapest    []domain.RoundtripFlight `json:"cheapest"`
	MinTotal    *decimal.Decimal         `json:"min_total,omitempty"`
	Skipped     int                      `json:"skipped_journeys"`
	Unpriced    []int                    `json:"unpriced_recommendations,omitempty"`
	DroppedLegs int                      `json:"dropped_legs"`
	OutputPath  string                   `json:"output_path,omitempty"`
}

// Search runs fetch, reduce, pair and cheapest selection in sequence.
// Empty intermediate results end the pipeline with an informational status.
func (e Engine) Search(ctx context.Context, q domain.Query) (Result, error) {
	res := Result{
		Query:      q,
		Status:     domain.RunFailed,
		Flights:    []domain.Flight{},
		Roundtrips: []domain.RoundtripFlight{},
		Cheapest:   []domain.RoundtripFlight{},
	}
	log := e.logger().With("origin", q.Origin, "destination", q.Destination, "depart", q.OutboundDate, "return", q.InboundDate)

	data, err := e.Searcher.Search(ctx, q)
	if err != nil {
		return res, fmt.Errorf("fetch flight data: %w", err)
	}
	if data == nil {
		data = &searchapi.Data{}
	}
	red, err := itinerary.Reduce(*data)
	if err != nil {
		return res, fmt.Errorf("reduce journeys: %w", err)
	}
	res.Skipped, res.Unpriced, res.DroppedLegs = red.Skipped, red.Unpriced, red.DroppedLegs
	if red.Skipped > 0 {
		log.Info("skipped journeys with more than one connection", "count", red.Skipped)
	}
	if !red.Qualified {
		log.Info("no direct or one-stop journeys in response")
	}
	if len(red.Unpriced) > 0 {
		log.Warn("no total availability for recommendations, priced at zero", "recommendation_ids", red.Unpriced)
	}
	if red.DroppedLegs > 0 {
		log.Warn("dropped legs with unrecognised direction", "count", red.DroppedLegs)
	}

	res.Flights = red.Flights
	if len(res.Flights) == 0 {
		res.Status = domain.RunNoFlights
		log.Info("no flights fetched")
		return res, nil
	}

	res.Roundtrips = itinerary.Pair(res.Flights)
	if len(res.Roundtrips) == 0 {
		res.Status = domain.RunNoRoundtrips
		log.Info("no roundtrip combinations found", "flights", len(res.Flights))
		return res, nil
	}
	cheapest, err := itinerary.Cheapest(res.Roundtrips)
	if err != nil {
		return res, err
	}
	lowest := cheapest[0].Total()
	res.Cheapest = cheapest
	res.MinTotal = &lowest
	res.Status = domain.RunOK
	log.Info("roundtrip combinations found", "flights", len(res.Flights), "roundtrips", len(res.Roundtrips), "cheapest_total", lowest.String())
	return res, nil
}

// RunOptions control what Run does with a successful search.
type RunOptions struct {
	Save      bool
	OutputDir string
}

// Run performs a search, saves the CSV export when there are offers and
// records the run in the workspace history.
func (e Engine) Run(ctx context.Context, q domain.Query, opts RunOptions) (Result, error) {
	started := e.now()
	res, err := e.Search(ctx, q)
	res.RunID = uuid.NewString()
	if err == nil && res.Status == domain.RunOK && opts.Save {
		dir := opts.OutputDir
		if dir == "" && e.Config != nil {
			dir = e.Config.Output.Dir
		}
		path, saveErr := export.Save(dir, q, res.Roundtrips)
		if saveErr != nil {
			res.Status = domain.RunFailed
			err = fmt.Errorf("save export: %w", saveErr)
		} else {
			res.OutputPath = path
			e.logger().Info("flights data saved", "path", path)
		}
	}
	if !e.historyEnabled() {
		return res, err
	}
	if recErr := e.record(ctx, res, started, err); recErr != nil {
		if err != nil {
			e.logger().Error("record run", "run_id", res.RunID, "error", recErr)
			return res, err
		}
		return res, fmt.Errorf("record run: %w", recErr)
	}
	return res, err
}

func (e Engine) record(ctx context.Context, res Result, started time.Time, runErr error) error {
	run := domain.Run{
		ID:           res.RunID,
		Origin:       res.Query.Origin,
		Destination:  res.Query.Destination,
		OutboundDate: res.Query.OutboundDate,
		InboundDate:  res.Query.InboundDate,
		Status:       res.Status,
		Flights:      len(res.Flights),
		Roundtrips:   len(res.Roundtrips),
		StartedAt:    started.UTC().Format(time.RFC3339),
		FinishedAt:   e.now().UTC().Format(time.RFC3339),
	}
	if res.MinTotal != nil {
		total := res.MinTotal.String()
		run.CheapestTotal = &total
	}
	if res.OutputPath != "" {
		run.OutputPath = &res.OutputPath
	}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := e.Repo.InsertOffers(ctx, tx, offers(run.ID, res.Cheapest)); err != nil {
		return err
	}
	evtType := events.SearchCompleted
	payload := events.EventPayload{"status": run.Status, "roundtrips": run.Roundtrips}
	if runErr != nil {
		evtType = events.SearchFailed
		payload["error"] = *run.Error
		payload["kind"] = ErrorKind(runErr)
	}
	if err := e.Events.Append(ctx, tx, evtType, "run", run.ID, payload); err != nil {
		return err
	}
	if run.OutputPath != nil {
		if err := e.Events.Append(ctx, tx, events.ExportSaved, "run", run.ID, events.EventPayload{"path": *run.OutputPath}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func offers(runID string, cheapest []domain.RoundtripFlight) []domain.Offer {
	out := make([]domain.Offer, 0, len(cheapest))
	for i, rt := range cheapest {
		out = append(out, domain.Offer{
			RunID:            runID,
			Position:         i,
			RecommendationID: rt.RecommendationID,
			FlightNumbers:    rt.FlightNumbers(),
			Price:            rt.Price.String(),
			Taxes:            rt.Taxes.String(),
			Total:            rt.Total().String(),
		})
	}
	return out
}

// ErrorKind classifies a pipeline error for diagnostics.
func ErrorKind(err error) string {
	var se *searchapi.StatusError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, searchapi.ErrTransport):
		return "transport"
	case errors.As(err, &se):
		return "http_status"
	case errors.Is(err, searchapi.ErrRouteUnavailable):
		return "route_unavailable"
	case errors.Is(err, searchapi.ErrInvalidResponse):
		return "invalid_response"
	case errors.Is(err, itinerary.ErrTimestamp):
		return "timestamp"
	default:
		return "internal"
	}
}
