// Package output holds the append-only record sinks a crawl streams into.
package output

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alvmarrod/contact-weaver/internal/storage"
)

// Sink is an append-only, order-preserving record store
type Sink interface {
	Append(ctx context.Context, rec storage.Record) error
	Close() error
}

var _ Sink = (*storage.Storage)(nil)

// Encode renders a record as one flat JSON object tagged with its kind, e.g.
// {"kind":"email","url":...,"email":...,"foundOn":...}.
func Encode(rec storage.Record) ([]byte, error) {
	var v any
	switch {
	case rec.Email != nil:
		v = struct {
			Kind storage.RecordKind `json:"kind"`
			*storage.EmailRecord
		}{rec.Kind, rec.Email}
	case rec.Target != nil:
		v = struct {
			Kind storage.RecordKind `json:"kind"`
			*storage.RunSummary
		}{rec.Kind, rec.Target}
	case rec.Final != nil:
		v = struct {
			Kind storage.RecordKind `json:"kind"`
			*storage.FinalSummary
		}{rec.Kind, rec.Final}
	default:
		return nil, fmt.Errorf("empty %s record", rec.Kind)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", rec.Kind, err)
	}
	return data, nil
}

// Multi fans every record out to all sinks in order
type Multi []Sink

// Append writes rec to every sink. Every sink is tried; the first error is returned.
func (m Multi) Append(ctx context.Context, rec storage.Record) error {
	var firstErr error
	for _, s := range m {
		if err := s.Append(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every sink and returns the first error
func (m Multi) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
