package proximity

import (
	"math"
	"strings"
)

const (
	distanceWeight = 0.7
	nameWeight     = 0.3

	// DistanceConfidenceScale is the distance at which distance confidence reaches zero.
	DistanceConfidenceScale = 1000.0
	// DefaultNameConfidence is used when the caller supplied no name hint.
	DefaultNameConfidence = 0.5

	maxWordOverlapConfidence = 0.7
)

// nameRule scores a normalized candidate name against a normalized hint.
// ok=false means the rule does not apply and the next one is tried.
type nameRule struct {
	name  string
	score func(candidate, hint string) (float64, bool)
}

var nameRules = []nameRule{
	{
		name: "equal",
		score: func(candidate, hint string) (float64, bool) {
			return 1.0, candidate == hint
		},
	},
	{
		name: "contains",
		score: func(candidate, hint string) (float64, bool) {
			if candidate == "" || hint == "" {
				return 0, false
			}
			return 0.8, strings.Contains(candidate, hint) || strings.Contains(hint, candidate)
		},
	},
	{
		name: "word_overlap",
		score: func(candidate, hint string) (float64, bool) {
			return wordOverlap(candidate, hint), true
		},
	},
}

// DistanceConfidence decays linearly from 1 at the query point to 0 at one kilometre.
func DistanceConfidence(distanceMeters float64) float64 {
	if math.IsNaN(distanceMeters) || distanceMeters < 0 {
		return 0
	}
	return math.Max(0, 1-distanceMeters/DistanceConfidenceScale)
}

// NameConfidence compares a location name to the caller's hint.
func NameConfidence(locationName, nameHint string) float64 {
	hint := NormalizeName(nameHint)
	if hint == "" {
		return DefaultNameConfidence
	}
	candidate := NormalizeName(locationName)
	for _, rule := range nameRules {
		if score, ok := rule.score(candidate, hint); ok {
			return score
		}
	}
	return 0
}

// Confidence blends distance and name similarity into a 0..1 score.
func Confidence(distanceMeters float64, locationName, nameHint string) float64 {
	return distanceWeight*DistanceConfidence(distanceMeters) + nameWeight*NameConfidence(locationName, nameHint)
}

func wordOverlap(candidate, hint string) float64 {
	a := nameWords(candidate)
	b := nameWords(hint)
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	if larger == 0 {
		return 0
	}

	seen := make(map[string]struct{}, len(a))
	for _, w := range a {
		seen[w] = struct{}{}
	}
	overlap := 0
	counted := make(map[string]struct{}, len(b))
	for _, w := range b {
		if _, dup := counted[w]; dup {
			continue
		}
		counted[w] = struct{}{}
		if _, ok := seen[w]; ok {
			overlap++
		}
	}
	return math.Min(float64(overlap)/float64(larger), maxWordOverlapConfidence)
}
