// Package numerator adapts the sequence allocator to the posting engine.
package numerator

import (
	"context"
	"time"

	"khata/internal/domain/posting"
	"khata/pkg/numerator"
)

// DocumentNumberer allocates human-readable document numbers
// (PREFIX-YEAR-XXXXX) from business-scoped sequences. Allocation runs
// outside the posting transaction; a rolled-back posting leaves a gap.
type DocumentNumberer struct {
	seq *numerator.Service
}

var _ posting.Numberer = (*DocumentNumberer)(nil)

// NewDocumentNumberer creates a numberer backed by the context pool.
// Sequence keys include the business id, so one instance serves all
// businesses.
func NewDocumentNumberer() *DocumentNumberer {
	return &DocumentNumberer{seq: numerator.NewFromContext()}
}

// Next allocates the next number for the given document prefix.
func (n *DocumentNumberer) Next(ctx context.Context, prefix string) (string, error) {
	return n.seq.GetNextNumber(ctx, numerator.DefaultConfig(prefix), nil, time.Now().UTC())
}
