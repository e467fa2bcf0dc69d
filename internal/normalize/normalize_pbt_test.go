package normalize

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestDateProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: any day/month/year triple renders to a canonical string that
	// normalizes to itself (idempotence through the canonical branch).
	properties.Property("slash form normalizes and is a fixed point", prop.ForAll(
		func(day, month, year int) bool {
			raw := fmt.Sprintf("%d/%d/%d", day, month, year)
			canonical, ok := Date(raw)
			if !ok {
				return false
			}
			again, ok := Date(canonical)
			return ok && again == canonical
		},
		gen.IntRange(1, 28),
		gen.IntRange(1, 12),
		gen.IntRange(1900, 2099),
	))

	// Property: normalized output always has the fixed canonical width.
	properties.Property("canonical output is zero-padded", prop.ForAll(
		func(day, month, year int) bool {
			canonical, ok := Date(fmt.Sprintf("%d/%d/%d", day, month, year))
			return ok && len(canonical) == 10 && canonical[4] == '-' && canonical[7] == '-'
		},
		gen.IntRange(1, 28),
		gen.IntRange(1, 12),
		gen.IntRange(1900, 2099),
	))

	properties.TestingRun(t)
}
