/**
 * @description
 * This file defines the location-side domain models read by the proximity-service.
 * Locations, their transactions and the destination accounts those transactions paid
 * are owned by other services; this service only reads active rows.
 *
 * @notes
 * - Amounts are stored in kobo, matching the rest of the transfa backend.
 * - DestinationAccount.IsBusiness is tri-state: nil means "not set, classify by name".
 */
package domain

import "time"

// TransactionStatusCompleted is the only status that produces payment suggestions.
const TransactionStatusCompleted = "completed"

// Location is a physical place payments have been made at.
type Location struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      string    `json:"address"`
	City         string    `json:"city,omitempty"`
	State        string    `json:"state,omitempty"`
	Country      string    `json:"country,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	LocationType string    `json:"location_type,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DestinationAccount is the receiving side of a transaction ("toAccount").
type DestinationAccount struct {
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	IsBusiness    *bool  `json:"is_business,omitempty"`
}

// Transaction is a payment recorded at a location.
type Transaction struct {
	ID          string              `json:"id"`
	Amount      int64               `json:"amount"`
	Status      string              `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	LocationID  *string             `json:"location_id,omitempty"`
	Destination *DestinationAccount `json:"to_account,omitempty"`
}

// LocationWithTransactions is what the location store hands back for a spatial query.
type LocationWithTransactions struct {
	Location
	Transactions []Transaction `json:"transactions"`
}

// BoundingBox is an inclusive latitude/longitude rectangle used to pre-filter candidates.
// CenterLatitude/CenterLongitude hold the query point so stores can return the closest
// rows first when they cap the result size.
type BoundingBox struct {
	MinLatitude     float64 `json:"min_latitude"`
	MaxLatitude     float64 `json:"max_latitude"`
	MinLongitude    float64 `json:"min_longitude"`
	MaxLongitude    float64 `json:"max_longitude"`
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLatitude && lat <= b.MaxLatitude && lon >= b.MinLongitude && lon <= b.MaxLongitude
}
