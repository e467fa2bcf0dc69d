package storage

import (
	"context"
	"fmt"

	"github.com/case-scanner/internal/cache"
	"github.com/case-scanner/internal/models"
)

// repNameCacheSize bounds the per-run name→id cache. A full-year segment
// rarely sees more than a few thousand distinct representatives.
const repNameCacheSize = 4096

// RepresentativeRepository handles the deduplicated-by-name representative
// entities. Resolution results are cached in a bounded LRU for the lifetime
// of the repository, which is one crawl run.
type RepresentativeRepository struct {
	db    *PostgresDB
	names *cache.NameCache
}

// NewRepresentativeRepository creates a new representative repository
func NewRepresentativeRepository(db *PostgresDB) *RepresentativeRepository {
	return &RepresentativeRepository{
		db:    db,
		names: cache.NewNameCache(repNameCacheSize),
	}
}

// EnsureByName returns the id for a representative name, inserting the row on
// first encounter. The no-op conflict update makes RETURNING yield the id of
// a pre-existing row as well.
func (r *RepresentativeRepository) EnsureByName(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("representative name cannot be empty")
	}
	if id, ok := r.names.Get(name); ok {
		return id, nil
	}

	query := `
		INSERT INTO representatives (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	var id int64
	if err := r.db.Pool().QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure representative %q: %w", name, err)
	}

	r.names.Put(name, id)
	return id, nil
}

// GetByName looks up a representative without creating it.
func (r *RepresentativeRepository) GetByName(ctx context.Context, name string) (*models.Representative, error) {
	query := `SELECT id, name FROM representatives WHERE name = $1`

	var rep models.Representative
	if err := r.db.Pool().QueryRow(ctx, query, name).Scan(&rep.ID, &rep.Name); err != nil {
		return nil, fmt.Errorf("failed to get representative %q: %w", name, err)
	}
	return &rep, nil
}

// ClearCache drops the name→id cache, releasing memory mid-run.
func (r *RepresentativeRepository) ClearCache() {
	r.names.Clear()
}
