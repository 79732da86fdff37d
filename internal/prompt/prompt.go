package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"flightscout/internal/domain"
)

var ErrTooManyAttempts = errors.New("too many invalid attempts")

// Prompter asks for missing query fields, re-prompting on invalid input.
// MaxAttempts bounds the attempts per field; zero means unbounded.
type Prompter struct {
	Rules       Rules
	MaxAttempts int
	Today       time.Time

	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer, rules Rules, maxAttempts int, today time.Time) *Prompter {
	return &Prompter{
		Rules:       rules,
		MaxAttempts: maxAttempts,
		Today:       today,
		in:          bufio.NewScanner(in),
		out:         out,
	}
}

// Complete fills in the empty fields of partial and validates the result.
func (p *Prompter) Complete(partial domain.Query) (domain.Query, error) {
	q := Normalize(partial)
	var err error
	if q.Origin == "" {
		if q.Origin, err = p.Airport("origin", p.Rules.Origins, ""); err != nil {
			return q, err
		}
	}
	if q.Destination == "" {
		if q.Destination, err = p.Airport("destination", p.Rules.Destinations, q.Origin); err != nil {
			return q, err
		}
	}
	if q.OutboundDate == "" {
		if q.OutboundDate, err = p.OutboundDate(); err != nil {
			return q, err
		}
	}
	if q.InboundDate == "" {
		outbound, err := ParseDate(q.OutboundDate)
		if err != nil {
			return q, err
		}
		if q.InboundDate, err = p.InboundDate(outbound); err != nil {
			return q, err
		}
	}
	return q, ValidateQuery(q, p.Rules, p.Today)
}

// Airport asks for an airport from allowed, rejecting exclude.
func (p *Prompter) Airport(kind string, allowed []string, exclude string) (string, error) {
	label := fmt.Sprintf("Enter %s airport, acceptable airports: %s.", kind, strings.Join(allowed, ", "))
	answer, err := p.ask(label, func(s string) error {
		if err := ValidateAirport(s, allowed); err != nil {
			return fmt.Errorf("invalid %s airport: %w", kind, err)
		}
		if exclude != "" && NormalizeAirport(s) == exclude {
			return ErrSameAirport
		}
		return nil
	})
	return NormalizeAirport(answer), err
}

func (p *Prompter) OutboundDate() (string, error) {
	return p.ask("Enter outbound date (yyyy-mm-dd):", func(s string) error {
		d, err := ParseDate(s)
		if err != nil {
			return err
		}
		return ValidateOutbound(d, p.Today)
	})
}

func (p *Prompter) InboundDate(outbound time.Time) (string, error) {
	return p.ask("Enter inbound date (yyyy-mm-dd):", func(s string) error {
		d, err := ParseDate(s)
		if err != nil {
			return err
		}
		return ValidateInbound(d, outbound, p.Today, p.Rules.MinStayDays)
	})
}

func (p *Prompter) ask(label string, validate func(string) error) (string, error) {
	for attempt := 1; p.MaxAttempts <= 0 || attempt <= p.MaxAttempts; attempt++ {
		fmt.Fprintln(p.out, label)
		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		answer := strings.TrimSpace(p.in.Text())
		if err := validate(answer); err != nil {
			fmt.Fprintln(p.out, err)
			continue
		}
		return answer, nil
	}
	return "", fmt.Errorf("%w (%d)", ErrTooManyAttempts, p.MaxAttempts)
}
