package proximity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// NormalizeName folds case, strips punctuation and symbols and collapses whitespace.
// "Kings  Store, Ltd." and "kings store ltd" normalize to the same value.
func NormalizeName(name string) string {
	folded := folder.String(name)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped: "st.mary's" -> "stmarys"
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func nameWords(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}
