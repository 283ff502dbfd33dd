package domain

import "time"

// PaymentSuggestion is a previously paid destination account surfaced at a location.
type PaymentSuggestion struct {
	AccountNumber       string    `json:"account_number"`
	BankName            string    `json:"bank_name"`
	AccountName         string    `json:"account_name"`
	Frequency           int       `json:"frequency"`
	LastTransactionDate time.Time `json:"last_transaction_date"`
}

// LocationMatch is a scored location together with its payment suggestions.
type LocationMatch struct {
	LocationID         string              `json:"location_id"`
	Name               string              `json:"name"`
	Address            string              `json:"address"`
	Latitude           float64             `json:"latitude"`
	Longitude          float64             `json:"longitude"`
	Distance           float64             `json:"distance"`
	Confidence         float64             `json:"confidence"`
	PaymentSuggestions []PaymentSuggestion `json:"payment_suggestions"`
}

// ProximityResult is returned for every live location update.
type ProximityResult struct {
	IsNearby           bool                `json:"is_nearby"`
	LocationName       string              `json:"location_name,omitempty"`
	Distance           *float64            `json:"distance,omitempty"`
	LocationAddress    string              `json:"location_address,omitempty"`
	LocationID         string              `json:"location_id,omitempty"`
	PaymentSuggestions []PaymentSuggestion `json:"payment_suggestions,omitempty"`
}

// NotNearby is the zero result handed back whenever matching degrades.
func NotNearby() ProximityResult {
	return ProximityResult{IsNearby: false}
}
