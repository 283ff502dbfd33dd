/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * Locations, transactions and notification settings are written by other services;
 * the proximity-service only reads them.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transfa/proximity-service/internal/domain"
)

// maxBoxRows bounds a single candidate query. Rows are ordered by approximate distance
// from the box center first, so the cap drops the farthest candidates.
const maxBoxRows = 500

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserIDByClerkUserID resolves the internal UUID from a Clerk user id.
func (r *PostgresRepository) FindUserIDByClerkUserID(ctx context.Context, clerkUserID string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE clerk_user_id = $1", clerkUserID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return id, nil
}

// FindLocationsInBox returns the locations inside box together with their completed
// transactions. nameFilter must already be normalized; it is compared against the same
// normalization applied in SQL.
func (r *PostgresRepository) FindLocationsInBox(ctx context.Context, box domain.BoundingBox, nameFilter string, activeOnly bool) ([]domain.LocationWithTransactions, error) {
	query := `
		SELECT id, name, COALESCE(address, ''), COALESCE(city, ''), COALESCE(state, ''),
		       COALESCE(country, ''), latitude, longitude, COALESCE(location_type, ''),
		       is_active, created_at, updated_at
		FROM locations
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		  AND ($5 = '' OR btrim(regexp_replace(regexp_replace(lower(name), '[^[:alnum:][:space:]]', '', 'g'), '\s+', ' ', 'g')) LIKE '%' || $5 || '%')
		  AND (NOT $6 OR is_active)
		ORDER BY power(latitude - $7, 2)
		       + power(LEAST(abs(longitude - $8), 360 - abs(longitude - $8)) * $9, 2),
		         id
		LIMIT $10
	`
	rows, err := r.db.Query(ctx, query,
		box.MinLatitude, box.MaxLatitude, box.MinLongitude, box.MaxLongitude,
		nameFilter, activeOnly,
		box.CenterLatitude, box.CenterLongitude, longitudeScale(box.CenterLatitude),
		maxBoxRows,
	)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var locations []domain.LocationWithTransactions
	for rows.Next() {
		var loc domain.LocationWithTransactions
		if err := rows.Scan(
			&loc.ID, &loc.Name, &loc.Address, &loc.City, &loc.State, &loc.Country,
			&loc.Latitude, &loc.Longitude, &loc.LocationType, &loc.IsActive,
			&loc.CreatedAt, &loc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	if len(locations) == 0 {
		return locations, nil
	}

	ids := make([]string, len(locations))
	for i, loc := range locations {
		ids[i] = loc.ID
	}
	txs, err := r.completedTransactionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	return attachTransactions(locations, txs), nil
}

func (r *PostgresRepository) completedTransactionsFor(ctx context.Context, locationIDs []string) ([]domain.Transaction, error) {
	query := `
		SELECT t.id, t.location_id, t.amount, t.status, t.created_at,
		       d.account_number, d.bank_name, d.account_name, d.is_business
		FROM transactions t
		LEFT JOIN payment_destinations d ON d.id = t.payment_destination_id
		WHERE t.location_id = ANY($1::uuid[])
		  AND t.status = $2
		ORDER BY t.created_at DESC
	`
	rows, err := r.db.Query(ctx, query, locationIDs, domain.TransactionStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("query location transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx            domain.Transaction
			locationID    string
			createdAt     time.Time
			accountNumber *string
			bankName      *string
			accountName   *string
			isBusiness    *bool
		)
		if err := rows.Scan(&tx.ID, &locationID, &tx.Amount, &tx.Status, &createdAt,
			&accountNumber, &bankName, &accountName, &isBusiness); err != nil {
			return nil, fmt.Errorf("scan location transaction: %w", err)
		}
		tx.CreatedAt = createdAt
		tx.LocationID = &locationID
		if accountNumber != nil {
			tx.Destination = &domain.DestinationAccount{
				AccountNumber: *accountNumber,
				BankName:      derefString(bankName),
				AccountName:   derefString(accountName),
				IsBusiness:    isBusiness,
			}
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate location transactions: %w", err)
	}
	return txs, nil
}

// GetNotificationPreferences reads the user's push notification toggles.
func (r *PostgresRepository) GetNotificationPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	var prefs domain.NotificationPreferences
	query := `
		SELECT notifications_enabled, location_notifications_enabled
		FROM user_settings
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(&prefs.NotificationsEnabled, &prefs.LocationNotificationsEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferencesNotFound
		}
		return nil, err
	}
	return &prefs, nil
}

// attachTransactions distributes transactions onto their locations, preserving the
// location order and dropping transactions whose location is not in the set.
func attachTransactions(locations []domain.LocationWithTransactions, txs []domain.Transaction) []domain.LocationWithTransactions {
	index := make(map[string]int, len(locations))
	for i, loc := range locations {
		index[loc.ID] = i
	}
	for _, tx := range txs {
		if tx.LocationID == nil {
			continue
		}
		i, ok := index[*tx.LocationID]
		if !ok {
			continue
		}
		locations[i].Transactions = append(locations[i].Transactions, tx)
	}
	return locations
}

// longitudeScale converts degrees of longitude into latitude-equivalent degrees at lat,
// which makes the ORDER BY expression an equirectangular distance approximation.
func longitudeScale(lat float64) float64 {
	return math.Cos(lat * math.Pi / 180)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
