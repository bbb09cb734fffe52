package store

import (
	"context"
	"fmt"

	"github.com/gamewake/gamewake/internal/domain"
)

// SaveSubscription upserts a push subscription keyed by endpoint. A
// re-registration from the same endpoint overwrites keys, location and
// owner; the endpoint never yields more than one row. Ownership transfer
// to a different user is allowed — it is what a device re-login looks like.
func (s *PostgresStore) SaveSubscription(ctx context.Context, userID string, sub domain.Subscription) (*domain.Subscription, error) {
	if sub.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if sub.P256dh == "" || sub.Auth == "" {
		return nil, fmt.Errorf("subscription keys are required")
	}

	var saved domain.Subscription
	err := s.pool.QueryRow(ctx, `
		INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()
		RETURNING id, user_id, endpoint, p256dh, auth, latitude, longitude, created_at, updated_at
	`, userID, sub.Endpoint, sub.P256dh, sub.Auth, sub.Latitude, sub.Longitude).Scan(
		&saved.ID, &saved.UserID, &saved.Endpoint, &saved.P256dh, &saved.Auth,
		&saved.Latitude, &saved.Longitude, &saved.CreatedAt, &saved.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting subscription: %w", err)
	}

	return &saved, nil
}

// RemoveSubscription deletes the (user, endpoint) row if present. Removing
// a row that does not exist is a no-op success so that cleanup after a dead
// endpoint never needs an existence check first.
func (s *PostgresStore) RemoveSubscription(ctx context.Context, userID, endpoint string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM push_subscriptions WHERE user_id = $1 AND endpoint = $2
	`, userID, endpoint)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}

// RemoveByEndpoint deletes whatever row holds the endpoint, regardless of
// owner. Used by fanout cleanup when the push service reports the endpoint
// gone.
func (s *PostgresStore) RemoveByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM push_subscriptions WHERE endpoint = $1
	`, endpoint)
	if err != nil {
		return fmt.Errorf("deleting subscription by endpoint: %w", err)
	}
	return nil
}

// SubscriptionsWithinRadius returns every subscription with a known
// location whose great-circle distance to the center is at most radiusKm,
// excluding rows owned by excludeUserID. The SQL haversine uses the same
// 6371 km Earth radius as internal/geo and the boundary is inclusive. The
// asin argument is clamped: rounding can push it fractionally above 1 for
// near-antipodal rows, and Postgres asin raises out-of-range instead of
// saturating.
func (s *PostgresStore) SubscriptionsWithinRadius(ctx context.Context, lat, lon, radiusKm float64, excludeUserID string) ([]domain.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, endpoint, p256dh, auth, latitude, longitude, created_at, updated_at
		FROM push_subscriptions
		WHERE latitude IS NOT NULL
		  AND longitude IS NOT NULL
		  AND user_id <> $4
		  AND 6371 * 2 * asin(least(1.0, sqrt(
				power(sin(radians(latitude - $1) / 2), 2) +
				cos(radians($1)) * cos(radians(latitude)) *
				power(sin(radians(longitude - $2) / 2), 2)
			))) <= $3
		ORDER BY created_at
	`, lat, lon, radiusKm, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions within radius: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		err := rows.Scan(
			&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dh, &sub.Auth,
			&sub.Latitude, &sub.Longitude, &sub.CreatedAt, &sub.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}

	if subs == nil {
		subs = []domain.Subscription{}
	}

	return subs, nil
}

// CountSubscriptions returns the total number of stored subscriptions.
func (s *PostgresStore) CountSubscriptions(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM push_subscriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting subscriptions: %w", err)
	}
	return n, nil
}
