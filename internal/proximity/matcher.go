/**
 * @description
 * The Matcher answers the two request/response style proximity queries:
 *
 * - FindExact: the single closest place that confidently matches the caller's position
 *   (and optional name) and has at least one business payment suggestion.
 * - FindNearby: a ranked list of places around the caller, with each destination account
 *   suggested at most once across the whole list.
 *
 * Neither query holds state; the live tracker builds on FindNearby.
 */
package proximity

import (
	"context"
	"math"
	"sort"

	"github.com/transfa/proximity-service/internal/domain"
)

// Options holds the tunable thresholds of the matcher.
type Options struct {
	ExactRadiusMeters  float64
	NearbyRadiusMeters float64
	MaxRadiusMeters    float64
	NearbyLimit        int
	MaxNearbyLimit     int
	MinConfidence      float64
	TieWindowMeters    float64
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		ExactRadiusMeters:  50,
		NearbyRadiusMeters: 1000,
		MaxRadiusMeters:    5000,
		NearbyLimit:        10,
		MaxNearbyLimit:     50,
		MinConfidence:      0.70,
		TieWindowMeters:    10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ExactRadiusMeters <= 0 {
		o.ExactRadiusMeters = d.ExactRadiusMeters
	}
	if o.NearbyRadiusMeters <= 0 {
		o.NearbyRadiusMeters = d.NearbyRadiusMeters
	}
	if o.MaxRadiusMeters <= 0 {
		o.MaxRadiusMeters = d.MaxRadiusMeters
	}
	if o.ExactRadiusMeters > o.MaxRadiusMeters {
		o.ExactRadiusMeters = o.MaxRadiusMeters
	}
	if o.NearbyRadiusMeters > o.MaxRadiusMeters {
		o.NearbyRadiusMeters = o.MaxRadiusMeters
	}
	if o.NearbyLimit <= 0 {
		o.NearbyLimit = d.NearbyLimit
	}
	if o.MaxNearbyLimit <= 0 {
		o.MaxNearbyLimit = d.MaxNearbyLimit
	}
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		o.MinConfidence = d.MinConfidence
	}
	if o.TieWindowMeters < 0 {
		o.TieWindowMeters = d.TieWindowMeters
	}
	return o
}

// Matcher scores spatial candidates and attaches payment suggestions.
type Matcher struct {
	searcher  *Searcher
	extractor *SuggestionExtractor
	opts      Options
}

// NewMatcher creates a Matcher. Non-positive radii and limits fall back to DefaultOptions.
func NewMatcher(searcher *Searcher, extractor *SuggestionExtractor, opts Options) *Matcher {
	return &Matcher{
		searcher:  searcher,
		extractor: extractor,
		opts:      opts.withDefaults(),
	}
}

// Options returns the effective thresholds.
func (m *Matcher) Options() Options {
	return m.opts
}

type scored struct {
	candidate  Candidate
	confidence float64
}

// FindExact returns the closest confident match with at least one suggestion, or nil.
// radiusMeters <= 0 selects the configured exact-match radius; larger values are capped
// at MaxRadiusMeters.
func (m *Matcher) FindExact(ctx context.Context, lat, lon float64, nameHint string, radiusMeters float64) *domain.LocationMatch {
	radiusMeters = m.clampRadius(radiusMeters, m.opts.ExactRadiusMeters)

	var survivors []domain.LocationMatch
	for _, c := range m.searcher.Candidates(ctx, lat, lon, radiusMeters, nameHint) {
		confidence := Confidence(c.Distance, c.Location.Name, nameHint)
		if confidence < m.opts.MinConfidence {
			continue
		}
		suggestions := m.extractor.Extract(c.Location.Transactions)
		if len(suggestions) == 0 {
			continue
		}
		survivors = append(survivors, buildMatch(c, confidence, suggestions))
	}
	if len(survivors) == 0 {
		return nil
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.LocationID < b.LocationID
	})
	best := survivors[0]
	return &best
}

// FindNearby returns up to limit matches within radiusMeters, closest first, with each
// (account number, bank) suggested only under the closest location that carries it.
func (m *Matcher) FindNearby(ctx context.Context, lat, lon float64, radiusMeters float64, limit int) []domain.LocationMatch {
	radiusMeters = m.clampRadius(radiusMeters, m.opts.NearbyRadiusMeters)
	if limit <= 0 {
		limit = m.opts.NearbyLimit
	}
	if limit > m.opts.MaxNearbyLimit {
		limit = m.opts.MaxNearbyLimit
	}

	candidates := m.searcher.Candidates(ctx, lat, lon, radiusMeters, "")
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{candidate: c, confidence: Confidence(c.Distance, c.Location.Name, "")})
	}
	rankByDistance(ranked, m.opts.TieWindowMeters)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	seen := make(map[string]struct{})
	matches := make([]domain.LocationMatch, 0, len(ranked))
	for _, r := range ranked {
		suggestions := m.extractor.Extract(r.candidate.Location.Transactions)
		kept := suggestions[:0]
		for _, s := range suggestions {
			key := SuggestionKey(s.AccountNumber, s.BankName)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			kept = append(kept, s)
		}
		if len(kept) == 0 {
			continue
		}
		matches = append(matches, buildMatch(r.candidate, r.confidence, kept))
	}
	return matches
}

func (m *Matcher) clampRadius(radiusMeters, fallback float64) float64 {
	if !(radiusMeters > 0) {
		return fallback
	}
	return math.Min(radiusMeters, m.opts.MaxRadiusMeters)
}

// rankByDistance sorts by distance and then reorders runs of candidates that sit within
// tieWindow meters of the run's closest member by confidence, highest first.
func rankByDistance(ranked []scored, tieWindow float64) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].candidate.Distance != ranked[j].candidate.Distance {
			return ranked[i].candidate.Distance < ranked[j].candidate.Distance
		}
		return ranked[i].candidate.Location.ID < ranked[j].candidate.Location.ID
	})

	for start := 0; start < len(ranked); {
		end := start + 1
		for end < len(ranked) && ranked[end].candidate.Distance-ranked[start].candidate.Distance <= tieWindow {
			end++
		}
		run := ranked[start:end]
		sort.SliceStable(run, func(i, j int) bool {
			return run[i].confidence > run[j].confidence
		})
		start = end
	}
}

func buildMatch(c Candidate, confidence float64, suggestions []domain.PaymentSuggestion) domain.LocationMatch {
	return domain.LocationMatch{
		LocationID:         c.Location.ID,
		Name:               c.Location.Name,
		Address:            c.Location.Address,
		Latitude:           c.Location.Latitude,
		Longitude:          c.Location.Longitude,
		Distance:           c.Distance,
		Confidence:         confidence,
		PaymentSuggestions: suggestions,
	}
}
