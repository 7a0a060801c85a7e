// Package numbering issues sequential human-readable document numbers
// scoped per business concept (requests, purchase orders, delivery challans).
package numbering

import (
	"context"
	"errors"
	"fmt"
)

// Scope identifies an independent counter.
type Scope string

const (
	// ScopeRequest numbers material requests (REQ-xxxx).
	ScopeRequest Scope = "REQ"
	// ScopePurchaseOrder numbers purchase orders (PO-xxxx).
	ScopePurchaseOrder Scope = "PO"
	// ScopeChallan numbers delivery challans (DC-xxxx).
	ScopeChallan Scope = "DC"
)

// ErrUnknownScope indicates a scope without a registered counter format.
var ErrUnknownScope = errors.New("numbering: unknown scope")

// Sequencer atomically increments and returns the counter value for a scope.
// Implementations must guarantee that concurrent callers never observe the
// same value for the same scope.
type Sequencer interface {
	NextValue(ctx context.Context, scope Scope) (int64, error)
}

// Service formats counter values into document numbers.
type Service struct {
	seq Sequencer
}

// NewService constructs a numbering service on top of a sequencer.
func NewService(seq Sequencer) *Service {
	return &Service{seq: seq}
}

// Next allocates the next number for scope. A sequencer failure propagates
// unchanged so the enclosing creation fails as a whole.
func (s *Service) Next(ctx context.Context, scope Scope) (string, error) {
	switch scope {
	case ScopeRequest, ScopePurchaseOrder, ScopeChallan:
	default:
		return "", ErrUnknownScope
	}
	value, err := s.seq.NextValue(ctx, scope)
	if err != nil {
		return "", err
	}
	return Format(scope, value), nil
}

// Format renders a counter value as a document number, e.g. PO-0042.
func Format(scope Scope, value int64) string {
	return fmt.Sprintf("%s-%04d", scope, value)
}
