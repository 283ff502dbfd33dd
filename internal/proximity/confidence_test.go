package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfidence_NonIncreasingInDistance(t *testing.T) {
	hints := []string{"", "Kings Store", "Mama Put"}
	for _, hint := range hints {
		prev := Confidence(0, "Kings Store", hint)
		for d := 1.0; d <= 1500; d += 7 {
			cur := Confidence(d, "Kings Store", hint)
			assert.LessOrEqual(t, cur, prev, "hint=%q distance=%f", hint, d)
			prev = cur
		}
	}
}

func TestConfidence_IdenticalNameTenMeters(t *testing.T) {
	assert.GreaterOrEqual(t, Confidence(10, "Kings Store", "kings store."), 0.95)
}

func TestNameConfidence(t *testing.T) {
	tests := []struct {
		name, location, hint string
		want                 float64
	}{
		{"no hint", "Kings Store", "", DefaultNameConfidence},
		{"punctuation only hint", "Kings Store", "...", DefaultNameConfidence},
		{"equal after normalization", "Kings Store", "KINGS store!", 1.0},
		{"hint inside name", "Kings Store Ikeja", "kings store", 0.8},
		{"name inside hint", "Kings Store", "the kings store ikeja", 0.8},
		{"half the words overlap", "Kings Store", "Kings Pharmacy", 0.5},
		{"overlap is capped", "Alpha Beta Gamma Delta Epsilon", "Beta Alpha Gamma Delta Epsilon", 0.7},
		{"nothing in common", "Kings Store", "Mama Put", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NameConfidence(tt.location, tt.hint), 1e-9)
		})
	}
}

func TestDistanceConfidence(t *testing.T) {
	assert.Equal(t, 1.0, DistanceConfidence(0))
	assert.InDelta(t, 0.5, DistanceConfidence(500), 1e-9)
	assert.Equal(t, 0.0, DistanceConfidence(1000))
	assert.Equal(t, 0.0, DistanceConfidence(4000))
	assert.Equal(t, 0.0, DistanceConfidence(-1))
}
