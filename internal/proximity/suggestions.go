package proximity

import (
	"sort"
	"strings"

	"github.com/transfa/proximity-service/internal/domain"
)

// SuggestionExtractor turns a location's transaction history into payment suggestions.
type SuggestionExtractor struct {
	classifier *Classifier
}

// NewSuggestionExtractor creates an extractor using the given classifier.
func NewSuggestionExtractor(classifier *Classifier) *SuggestionExtractor {
	if classifier == nil {
		classifier = NewClassifier(AccountBusiness)
	}
	return &SuggestionExtractor{classifier: classifier}
}

// SuggestionKey identifies a destination account across locations.
func SuggestionKey(accountNumber, bankName string) string {
	return strings.TrimSpace(accountNumber) + "|" + strings.ToLower(strings.Join(strings.Fields(bankName), " "))
}

// Extract groups completed, business-classified transactions by destination account.
// The result is sorted by frequency desc, then most recent payment first.
func (e *SuggestionExtractor) Extract(transactions []domain.Transaction) []domain.PaymentSuggestion {
	grouped := make(map[string]*domain.PaymentSuggestion)
	latestName := make(map[string]string)
	order := make([]string, 0)

	for _, tx := range transactions {
		if !strings.EqualFold(strings.TrimSpace(tx.Status), domain.TransactionStatusCompleted) {
			continue
		}
		dest := tx.Destination
		if dest == nil || strings.TrimSpace(dest.AccountNumber) == "" {
			continue
		}
		if !e.classifier.IsBusiness(*dest) {
			continue
		}

		key := SuggestionKey(dest.AccountNumber, dest.BankName)
		s, ok := grouped[key]
		if !ok {
			s = &domain.PaymentSuggestion{
				AccountNumber:       strings.TrimSpace(dest.AccountNumber),
				BankName:            strings.TrimSpace(dest.BankName),
				AccountName:         strings.TrimSpace(dest.AccountName),
				LastTransactionDate: tx.CreatedAt,
			}
			grouped[key] = s
			order = append(order, key)
		}
		s.Frequency++

		if !tx.CreatedAt.Before(s.LastTransactionDate) {
			s.LastTransactionDate = tx.CreatedAt
			if name := strings.TrimSpace(dest.AccountName); name != "" {
				latestName[key] = name
			}
			if bank := strings.TrimSpace(dest.BankName); bank != "" {
				s.BankName = bank
			}
		}
	}

	suggestions := make([]domain.PaymentSuggestion, 0, len(order))
	for _, key := range order {
		s := grouped[key]
		if name, ok := latestName[key]; ok {
			s.AccountName = name
		}
		suggestions = append(suggestions, *s)
	}
	SortSuggestions(suggestions)
	return suggestions
}

// SortSuggestions orders by frequency desc, then recency desc, then account number.
func SortSuggestions(suggestions []domain.PaymentSuggestion) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		if !a.LastTransactionDate.Equal(b.LastTransactionDate) {
			return a.LastTransactionDate.After(b.LastTransactionDate)
		}
		return a.AccountNumber < b.AccountNumber
	})
}
