package proximity

import (
	"context"
	"errors"
	"time"

	"github.com/transfa/proximity-service/internal/domain"
)

type locationStoreStub struct {
	rows  []domain.LocationWithTransactions
	err   error
	calls int
	box   domain.BoundingBox
	name  string
}

func (s *locationStoreStub) FindLocationsInBox(ctx context.Context, box domain.BoundingBox, nameFilter string, activeOnly bool) ([]domain.LocationWithTransactions, error) {
	s.calls++
	s.box = box
	s.name = nameFilter
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.LocationWithTransactions
	for _, row := range s.rows {
		if activeOnly && !row.IsActive {
			continue
		}
		if !box.Contains(row.Latitude, row.Longitude) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

var errStoreDown = errors.New("store down")

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func boolPtr(v bool) *bool { return &v }

func location(id, name string, lat, lon float64, txs ...domain.Transaction) domain.LocationWithTransactions {
	return domain.LocationWithTransactions{
		Location: domain.Location{
			ID:        id,
			Name:      name,
			Address:   name + " address",
			Latitude:  lat,
			Longitude: lon,
			IsActive:  true,
		},
		Transactions: txs,
	}
}

func paid(id, accountNumber, bank, accountName string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		Amount:    150000,
		Status:    domain.TransactionStatusCompleted,
		CreatedAt: at,
		Destination: &domain.DestinationAccount{
			AccountNumber: accountNumber,
			BankName:      bank,
			AccountName:   accountName,
		},
	}
}

// offsetNorth moves a point roughly meters north.
func offsetNorth(lat, meters float64) float64 {
	return lat + meters/MetersPerDegreeLatitude
}
