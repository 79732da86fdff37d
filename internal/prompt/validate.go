// Package prompt collects and validates search input from the console.
package prompt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"flightscout/internal/domain"
)

var (
	ErrAirportNotAllowed = errors.New("airport not allowed")
	ErrSameAirport       = errors.New("origin and destination cannot be the same")
	ErrDateFormat        = errors.New("invalid date format, use yyyy-mm-dd")
	ErrPastDate          = errors.New("date cannot be in the past")
	ErrStayTooShort      = errors.New("inbound date too close to outbound date")
)

// Rules are the acceptance rules for a query.
type Rules struct {
	Origins      []string
	Destinations []string
	MinStayDays  int
}

// Today returns now's calendar date at UTC midnight, comparable with ParseDate.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeAirport trims and upper-cases an airport code.
func NormalizeAirport(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateAirport checks code against an allow-list.
func ValidateAirport(code string, allowed []string) error {
	if !slices.Contains(allowed, NormalizeAirport(code)) {
		return fmt.Errorf("%w: %q, acceptable airports are: %s", ErrAirportNotAllowed, code, strings.Join(allowed, ", "))
	}
	return nil
}

// ParseDate parses a yyyy-mm-dd calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrDateFormat, s)
	}
	return t, nil
}

// ValidateOutbound rejects dates before today.
func ValidateOutbound(outbound, today time.Time) error {
	if outbound.Before(today) {
		return fmt.Errorf("outbound date %w", ErrPastDate)
	}
	return nil
}

// ValidateInbound requires inbound >= today and >= outbound + minStayDays.
func ValidateInbound(inbound, outbound, today time.Time, minStayDays int) error {
	if inbound.Before(today) {
		return fmt.Errorf("inbound date %w", ErrPastDate)
	}
	earliest := outbound.AddDate(0, 0, minStayDays)
	if inbound.Before(earliest) {
		return fmt.Errorf("%w: inbound date must be at least %d days after %s", ErrStayTooShort, minStayDays, outbound.Format(domain.DateLayout))
	}
	return nil
}

// ValidateQuery applies every rule to a complete query.
func ValidateQuery(q domain.Query, rules Rules, today time.Time) error {
	if err := ValidateAirport(q.Origin, rules.Origins); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if err := ValidateAirport(q.Destination, rules.Destinations); err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if NormalizeAirport(q.Origin) == NormalizeAirport(q.Destination) {
		return ErrSameAirport
	}
	outbound, err := ParseDate(q.OutboundDate)
	if err != nil {
		return fmt.Errorf("outbound date: %w", err)
	}
	if err := ValidateOutbound(outbound, today); err != nil {
		return err
	}
	inbound, err := ParseDate(q.InboundDate)
	if err != nil {
		return fmt.Errorf("inbound date: %w", err)
	}
	return ValidateInbound(inbound, outbound, today, rules.MinStayDays)
}

// Normalize upper-cases airports and trims dates.
func Normalize(q domain.Query) domain.Query {
	return domain.Query{
		Origin:       NormalizeAirport(q.Origin),
		Destination:  NormalizeAirport(q.Destination),
		OutboundDate: strings.TrimSpace(q.OutboundDate),
		InboundDate:  strings.TrimSpace(q.InboundDate),
	}
}
