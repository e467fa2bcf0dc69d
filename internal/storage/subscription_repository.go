package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/case-scanner/internal/models"
	"github.com/case-scanner/internal/types"
)

// SubscriptionRepository handles the cases marked for the weekly re-check.
type SubscriptionRepository struct {
	db *PostgresDB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *PostgresDB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Create subscribes a persisted case to the weekly loop. The case must
// already exist; subscribing re-activates a previously disabled subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, applicationNumber string) (*models.Subscription, error) {
	query := `
		INSERT INTO subscriptions (case_id, application_number, is_active, created_at)
		SELECT id, application_number, TRUE, NOW()
		FROM applications
		WHERE application_number = $1
		ON CONFLICT (application_number) DO UPDATE SET is_active = TRUE
		RETURNING id, case_id, application_number, is_active, created_at
	`

	var sub models.Subscription
	var active bool
	err := r.db.Pool().QueryRow(ctx, query, applicationNumber).Scan(
		&sub.ID, &sub.CaseID, &sub.ApplicationNumber, &active, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to create subscription for %s: %w", applicationNumber, err)
	}
	sub.Status = statusFromActive(active)
	return &sub, nil
}

// Deactivate disables a subscription without deleting its history.
func (r *SubscriptionRepository) Deactivate(ctx context.Context, applicationNumber string) error {
	tag, err := r.db.Pool().Exec(ctx,
		`UPDATE subscriptions SET is_active = FALSE WHERE application_number = $1`,
		applicationNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate subscription for %s: %w", applicationNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

// ListActive returns the cases the weekly loop should re-check. Cases whose
// skip flag is set are excluded: the registry has stopped answering for them.
func (r *SubscriptionRepository) ListActive(ctx context.Context) ([]models.Subscription, error) {
	query := `
		SELECT s.id, s.case_id, s.application_number, s.is_active, s.created_at
		FROM subscriptions s
		JOIN applications a ON a.id = s.case_id
		WHERE s.is_active AND NOT a.skip_scraping
		ORDER BY s.id
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var active bool
		if err := rows.Scan(&sub.ID, &sub.CaseID, &sub.ApplicationNumber, &active, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		sub.Status = statusFromActive(active)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subscriptions: %w", err)
	}
	return subs, nil
}

func statusFromActive(active bool) types.SubscriptionStatus {
	if active {
		return types.SubscriptionActive
	}
	return types.SubscriptionInactive
}
