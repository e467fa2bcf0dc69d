// Package fetch resolves (number, year) case identifiers against the public
// registry site. The crawl loops only depend on the Fetcher interface; the
// HTML extraction lives behind it.
package fetch

import (
	"context"
	"errors"

	"github.com/case-scanner/internal/models"
)

// ErrNotFound signals that the registry confirmed no case exists at the
// probed identifier. It is an expected outcome, distinct from transport
// failure: the crawl loop counts it toward the consecutive-skip budget and
// marks the persisted case not-found.
var ErrNotFound = errors.New("case not found")

// Fetcher resolves one (number, year) pair to a case record. Implementations
// return ErrNotFound for a confirmed absence and any other error for
// transport or parse failures.
type Fetcher interface {
	Fetch(ctx context.Context, number, year int) (*models.CaseRecord, error)
}

// IsNotFound reports whether err is the confirmed-absence signal.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
