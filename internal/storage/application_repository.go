package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/case-scanner/internal/logging"
	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/normalize"
)

// NotFoundSkipThreshold is the not-found count at which a case's skip flag is
// set permanently and the weekly loop stops re-checking it.
const NotFoundSkipThreshold = 60

// ErrMalformedRecord marks a fetched record missing fields required for
// persistence. Such records are skipped, never fatal.
var ErrMalformedRecord = errors.New("malformed case record")

// ErrApplicationNotFound signals an absent row on lookup.
var ErrApplicationNotFound = errors.New("application not found")

// upsertApplicationSQL inserts or refreshes a case. A successful refetch
// overwrites every derived field and resets not_found_count to zero; the
// skip flag is deliberately left alone so it never reverts.
const upsertApplicationSQL = `
	INSERT INTO applications (
		application_number, application_title, country, date_introduction,
		representative_id, representative_name, last_major_event,
		last_major_event_date, is_closed, not_found_count,
		last_checked_date, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, CURRENT_DATE, NOW())
	ON CONFLICT (application_number) DO UPDATE SET
		application_title     = EXCLUDED.application_title,
		country               = EXCLUDED.country,
		date_introduction     = EXCLUDED.date_introduction,
		representative_id     = EXCLUDED.representative_id,
		representative_name   = EXCLUDED.representative_name,
		last_major_event      = EXCLUDED.last_major_event,
		last_major_event_date = EXCLUDED.last_major_event_date,
		is_closed             = EXCLUDED.is_closed,
		not_found_count       = 0,
		last_checked_date     = EXCLUDED.last_checked_date,
		updated_at            = NOW()
	RETURNING id
`

// upsertApplicationByNameSQL is the batch variant: the representative row is
// resolved by name lookup at execution time instead of a prior round trip.
// The subquery yields NULL for a NULL name, so unrepresented cases work too.
const upsertApplicationByNameSQL = `
	INSERT INTO applications (
		application_number, application_title, country, date_introduction,
		representative_id, representative_name, last_major_event,
		last_major_event_date, is_closed, not_found_count,
		last_checked_date, updated_at
	)
	VALUES ($1, $2, $3, $4,
		(SELECT id FROM representatives WHERE name = $5::text),
		$5, $6, $7, $8, 0, CURRENT_DATE, NOW())
	ON CONFLICT (application_number) DO UPDATE SET
		application_title     = EXCLUDED.application_title,
		country               = EXCLUDED.country,
		date_introduction     = EXCLUDED.date_introduction,
		representative_id     = EXCLUDED.representative_id,
		representative_name   = EXCLUDED.representative_name,
		last_major_event      = EXCLUDED.last_major_event,
		last_major_event_date = EXCLUDED.last_major_event_date,
		is_closed             = EXCLUDED.is_closed,
		not_found_count       = 0,
		last_checked_date     = EXCLUDED.last_checked_date,
		updated_at            = NOW()
`

const bulkInsertRepresentativesSQL = `
	INSERT INTO representatives (name)
	SELECT unnest($1::text[])
	ON CONFLICT (name) DO NOTHING
`

const deleteEventsSQL = `DELETE FROM events WHERE application_id = $1`

const deleteEventsByNumberSQL = `
	DELETE FROM events
	WHERE application_id = (SELECT id FROM applications WHERE application_number = $1)
`

const insertEventSQL = `
	INSERT INTO events (application_id, event_date, description, is_last_event, sort_order)
	VALUES ($1, $2, $3, $4, $5)
`

const insertEventByNumberSQL = `
	INSERT INTO events (application_id, event_date, description, is_last_event, sort_order)
	SELECT id, $2, $3, $4, $5 FROM applications WHERE application_number = $1
`

const markNotFoundSQL = `
	UPDATE applications
	SET not_found_count   = not_found_count + 1,
	    skip_scraping     = skip_scraping OR not_found_count + 1 >= $2,
	    last_checked_date = CURRENT_DATE,
	    updated_at        = NOW()
	WHERE application_number = $1
`

// ApplicationRepository handles case persistence. Its statements are
// idempotent: re-applying the same record leaves the persisted state
// unchanged (no duplicate events, no field drift).
type ApplicationRepository struct {
	db   *PostgresDB
	reps *RepresentativeRepository
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *PostgresDB, reps *RepresentativeRepository) *ApplicationRepository {
	return &ApplicationRepository{db: db, reps: reps}
}

// applicationRow carries the normalized, derived column values for one record.
type applicationRow struct {
	number             string
	title              string
	country            *string
	dateIntroduction   *time.Time
	representativeName *string
	lastMajorEvent     *string
	lastMajorEventDate *time.Time
	isClosed           bool
}

// newApplicationRow derives the persisted columns from a fetched record.
func newApplicationRow(rec *models.CaseRecord) applicationRow {
	row := applicationRow{
		number:           rec.ApplicationNumber,
		title:            rec.Title,
		dateIntroduction: normalize.DateValue(rec.IntroductionDate),
	}
	if country, ok := normalize.Jurisdiction(rec.Title); ok {
		row.country = &country
	}
	if rec.RepresentativeName != "" {
		name := rec.RepresentativeName
		row.representativeName = &name
	}
	if last, ok := rec.LastEvent(); ok {
		desc := last.Description
		row.lastMajorEvent = &desc
		row.lastMajorEventDate = normalize.DateValue(last.Date)
		row.isClosed = normalize.IsClosed(desc)
	}
	return row
}

// Upsert persists one record through the single-record path: case upsert plus
// wholesale event replacement, atomically in one transaction.
func (r *ApplicationRepository) Upsert(ctx context.Context, rec *models.CaseRecord) error {
	if !rec.Valid() {
		return fmt.Errorf("%w: application number and title are required", ErrMalformedRecord)
	}
	row := newApplicationRow(rec)

	var repID *int64
	if row.representativeName != nil {
		id, err := r.reps.EnsureByName(ctx, *row.representativeName)
		if err != nil {
			return err
		}
		repID = &id
	}

	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	var appID int64
	err = tx.QueryRow(ctx, upsertApplicationSQL,
		row.number, row.title, row.country, row.dateIntroduction,
		repID, row.representativeName, row.lastMajorEvent,
		row.lastMajorEventDate, row.isClosed,
	).Scan(&appID)
	if err != nil {
		return fmt.Errorf("failed to upsert application %s: %w", row.number, err)
	}

	if _, err := tx.Exec(ctx, deleteEventsSQL, appID); err != nil {
		return fmt.Errorf("failed to clear events for %s: %w", row.number, err)
	}
	for i, ev := range rec.Events {
		_, err := tx.Exec(ctx, insertEventSQL,
			appID, normalize.DateValue(ev.Date), ev.Description,
			i == len(rec.Events)-1, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %d for %s: %w", i, row.number, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit upsert of %s: %w", row.number, err)
	}
	return nil
}

// UpsertBatch persists many records in one round trip over the bulk
// transport. Statement order matters: representatives first (case upserts
// resolve them by name), then all case upserts (event inserts resolve cases
// by application number), then all event delete/insert pairs. Malformed
// records are skipped with a warning and do not abort the batch.
func (r *ApplicationRepository) UpsertBatch(ctx context.Context, records []*models.CaseRecord) error {
	logger := logging.FromContext(ctx)

	valid := make([]*models.CaseRecord, 0, len(records))
	for _, rec := range records {
		if !rec.Valid() {
			logger.WithField("record", fmt.Sprintf("%+v", rec)).Warn("skipping malformed case record")
			continue
		}
		valid = append(valid, rec)
	}
	if len(valid) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	if names := collectRepresentativeNames(valid); len(names) > 0 {
		batch.Queue(bulkInsertRepresentativesSQL, names)
	}

	for _, rec := range valid {
		row := newApplicationRow(rec)
		batch.Queue(upsertApplicationByNameSQL,
			row.number, row.title, row.country, row.dateIntroduction,
			row.representativeName, row.lastMajorEvent,
			row.lastMajorEventDate, row.isClosed,
		)
	}

	for _, rec := range valid {
		batch.Queue(deleteEventsByNumberSQL, rec.ApplicationNumber)
		for i, ev := range rec.Events {
			batch.Queue(insertEventByNumberSQL,
				rec.ApplicationNumber, normalize.DateValue(ev.Date), ev.Description,
				i == len(rec.Events)-1, i,
			)
		}
	}

	results := r.db.Pool().SendBatch(ctx, batch)
	defer results.Close() // nolint:errcheck

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch statement %d failed: %w", i, err)
		}
	}
	return nil
}

// collectRepresentativeNames deduplicates representative names across a
// batch. Sorted for deterministic statement construction.
func collectRepresentativeNames(records []*models.CaseRecord) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		if rec.RepresentativeName != "" {
			seen[rec.RepresentativeName] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarkNotFound eagerly increments the not-found counter for a probed case
// that the registry no longer answers for. Once the counter crosses the skip
// threshold the skip flag is set and never reverts. Unknown application
// numbers are a no-op.
func (r *ApplicationRepository) MarkNotFound(ctx context.Context, applicationNumber string) error {
	_, err := r.db.Pool().Exec(ctx, markNotFoundSQL, applicationNumber, NotFoundSkipThreshold)
	if err != nil {
		return fmt.Errorf("failed to mark %s not found: %w", applicationNumber, err)
	}
	return nil
}

// GetByNumber retrieves a persisted case by application number.
func (r *ApplicationRepository) GetByNumber(ctx context.Context, applicationNumber string) (*models.Application, error) {
	query := `
		SELECT id, application_number, application_title, country,
		       date_introduction, representative_id, representative_name,
		       last_major_event, last_major_event_date, is_closed,
		       not_found_count, skip_scraping, last_checked_date, updated_at
		FROM applications
		WHERE application_number = $1
	`

	var app models.Application
	err := r.db.Pool().QueryRow(ctx, query, applicationNumber).Scan(
		&app.ID,
		&app.ApplicationNumber,
		&app.Title,
		&app.Country,
		&app.DateIntroduction,
		&app.RepresentativeID,
		&app.RepresentativeName,
		&app.LastMajorEvent,
		&app.LastMajorEventDate,
		&app.IsClosed,
		&app.NotFoundCount,
		&app.SkipScraping,
		&app.LastCheckedDate,
		&app.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application %s: %w", applicationNumber, err)
	}
	return &app, nil
}

// GetEvents retrieves the persisted event mirror for a case, in fetch order.
func (r *ApplicationRepository) GetEvents(ctx context.Context, applicationID int64) ([]models.Event, error) {
	query := `
		SELECT id, application_id, event_date, description, is_last_event, sort_order
		FROM events
		WHERE application_id = $1
		ORDER BY sort_order
	`

	rows, err := r.db.Pool().Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for application %d: %w", applicationID, err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.ApplicationID, &ev.EventDate, &ev.Description, &ev.IsLastEvent, &ev.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
