// Package mock provides test doubles for reconcile interfaces using function fields.
package mock

import (
	"context"

	"github.com/fwojciec/reconcile"
)

// Interface compliance checks.
var (
	_ reconcile.Sink      = (*Sink)(nil)
	_ reconcile.Parser    = (*Parser)(nil)
	_ reconcile.Validator = (*Validator)(nil)
)

// Sink is a test double for reconcile.Sink.
// Set UpsertFn before calling Upsert.
type Sink struct {
	UpsertFn func(ctx context.Context, sessionID string, p reconcile.Progress) error
}

// Upsert delegates to UpsertFn.
func (s *Sink) Upsert(ctx context.Context, sessionID string, p reconcile.Progress) error {
	return s.UpsertFn(ctx, sessionID, p)
}

// Parser is a test double for reconcile.Parser.
// Set ParseFn before calling Parse.
type Parser struct {
	ParseFn func(text string) reconcile.ParseResult
}

// Parse delegates to ParseFn.
func (p *Parser) Parse(text string) reconcile.ParseResult {
	return p.ParseFn(text)
}

// Validator is a test double for reconcile.Validator.
// Validate returns nil when ValidateFn is not set.
type Validator struct {
	ValidateFn func(payload []byte) error
}

// Validate delegates to ValidateFn.
func (v *Validator) Validate(payload []byte) error {
	if v.ValidateFn == nil {
		return nil
	}
	return v.ValidateFn(payload)
}
