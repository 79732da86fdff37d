package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"flightscout/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// RunFilters narrows ListRuns. Empty fields match everything.
type RunFilters struct {
	Status      string
	Origin      string
	Destination string
	Limit       int
}

const runColumns = `id,origin,destination,outbound_date,inbound_date,status,flights,roundtrips,cheapest_total,output_path,error,started_at,finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (domain.Run, error) {
	var r domain.Run
	var cheapest, output, runErr sql.NullString
	err := row.Scan(&r.ID, &r.Origin, &r.Destination, &r.OutboundDate, &r.InboundDate, &r.Status,
		&r.Flights, &r.Roundtrips, &cheapest, &output, &runErr, &r.StartedAt, &r.FinishedAt)
	if err == sql.ErrNoRows {
		return r, ErrNotFound
	}
	if err != nil {
		return r, err
	}
	r.CheapestTotal = nullString(cheapest)
	r.OutputPath = nullString(output)
	r.Error = nullString(runErr)
	return r, nil
}

func (r Repo) InsertRun(ctx context.Context, tx *sql.Tx, run domain.Run) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO runs(`+runColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Origin, run.Destination, run.OutboundDate, run.InboundDate, run.Status,
		run.Flights, run.Roundtrips, ptrValue(run.CheapestTotal), ptrValue(run.OutputPath), ptrValue(run.Error),
		run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.Run, error) {
	return scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id))
}

// ListRuns returns runs newest first.
func (r Repo) ListRuns(ctx context.Context, f RunFilters) ([]domain.Run, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.Origin != "" {
		clauses = append(clauses, "origin=?")
		args = append(args, strings.ToUpper(f.Origin))
	}
	if f.Destination != "" {
		clauses = append(clauses, "destination=?")
		args = append(args, strings.ToUpper(f.Destination))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE %s ORDER BY started_at DESC, id DESC LIMIT ?`, runColumns, strings.Join(clauses, " AND "))
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}

func (r Repo) InsertOffers(ctx context.Context, tx *sql.Tx, offers []domain.Offer) error {
	for _, o := range offers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO offers(run_id,position,recommendation_id,flight_numbers,price,taxes,total) VALUES (?,?,?,?,?,?,?)`,
			o.RunID, o.Position, o.RecommendationID, o.FlightNumbers, o.Price, o.Taxes, o.Total); err != nil {
			return fmt.Errorf("insert offer %d: %w", o.Position, err)
		}
	}
	return nil
}

func (r Repo) ListOffers(ctx context.Context, runID string) ([]domain.Offer, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT run_id,position,recommendation_id,flight_numbers,price,taxes,total FROM offers WHERE run_id=? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Offer{}
	for rows.Next() {
		var o domain.Offer
		if err := rows.Scan(&o.RunID, &o.Position, &o.RecommendationID, &o.FlightNumbers, &o.Price, &o.Taxes, &o.Total); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

func (r Repo) LatestEvents(ctx context.Context, limit int, evtType, entityKind, entityID string) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, evtType, entityKind, entityID)
}

// LatestEventsFrom lists events newest first, strictly older than cursor when set.
func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, evtType, entityKind, entityID string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	if entityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, entityKind)
	}
	if entityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, entityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func ptrValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
