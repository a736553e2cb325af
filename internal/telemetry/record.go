// Package telemetry records finished practice questions and delivers them
// to local and remote sinks.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoCredential  = errors.New("no credential")
	ErrInvalidRecord = errors.New("invalid record")
)

// Record is the statistics entry submitted after a successful run.
type Record struct {
	ID             string    `json:"id"`
	Question       string    `json:"question"`
	TimeTaken      string    `json:"timeTaken"`
	HintsUsed      int       `json:"hintsUsed"`
	SolutionViewed bool      `json:"solutionViewed"`
	Language       string    `json:"language"`
	Date           time.Time `json:"date"`
}

// NewRecord stamps a record with a fresh ID and the current time.
func NewRecord(question, timeTaken string, hintsUsed int, solutionViewed bool, language string) Record {
	return Record{
		ID:             uuid.NewString(),
		Question:       question,
		TimeTaken:      timeTaken,
		HintsUsed:      hintsUsed,
		SolutionViewed: solutionViewed,
		Language:       language,
		Date:           time.Now().UTC(),
	}
}

// Validate checks the fields every sink relies on.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case r.Language == "":
		return fmt.Errorf("%w: missing language", ErrInvalidRecord)
	case r.HintsUsed < 0:
		return fmt.Errorf("%w: negative hints", ErrInvalidRecord)
	}
	if _, err := ParseElapsed(r.TimeTaken); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Seconds returns TimeTaken in seconds, or 0 if it does not parse.
func (r Record) Seconds() int {
	s, _ := ParseElapsed(r.TimeTaken)
	return s
}

// ParseElapsed parses an "MM:SS" display string. Minutes may exceed two
// digits.
func ParseElapsed(s string) (int, error) {
	mm, ss, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("elapsed %q: want MM:SS", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("elapsed %q: bad minutes", s)
	}
	sec, err := strconv.Atoi(ss)
	if err != nil || sec < 0 || sec > 59 || len(ss) != 2 {
		return 0, fmt.Errorf("elapsed %q: bad seconds", s)
	}
	return m*60 + sec, nil
}

// Sink accepts practice records. credential identifies the learner to
// remote sinks and is ignored by local ones.
type Sink interface {
	Submit(ctx context.Context, credential string, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, credential string, rec Record) error

func (f SinkFunc) Submit(ctx context.Context, credential string, rec Record) error {
	return f(ctx, credential, rec)
}

// MultiSink submits to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Submit(ctx context.Context, credential string, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Submit(ctx, credential, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
