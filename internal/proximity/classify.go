package proximity

import (
	"regexp"
	"strings"

	"github.com/transfa/proximity-service/internal/domain"
)

// AccountKind is the outcome of classifying a destination account.
type AccountKind string

const (
	AccountBusiness   AccountKind = "business"
	AccountIndividual AccountKind = "individual"
)

// ParseAccountKind maps a config value onto an AccountKind, defaulting to business.
func ParseAccountKind(raw string) AccountKind {
	if strings.EqualFold(strings.TrimSpace(raw), string(AccountIndividual)) {
		return AccountIndividual
	}
	return AccountBusiness
}

// businessKeywords are matched against whole words of the normalized account name.
var businessKeywords = map[string]struct{}{
	"store": {}, "stores": {}, "shop": {}, "shops": {}, "supermarket": {}, "mart": {}, "market": {},
	"enterprise": {}, "enterprises": {}, "ltd": {}, "limited": {}, "plc": {}, "inc": {}, "llc": {},
	"company": {}, "co": {}, "restaurant": {}, "kitchen": {}, "eatery": {}, "cafe": {}, "bakery": {},
	"foods": {}, "bank": {}, "pharmacy": {}, "pharmaceuticals": {}, "chemist": {}, "hospital": {},
	"clinic": {}, "school": {}, "schools": {}, "academy": {}, "college": {}, "transport": {},
	"logistics": {}, "services": {}, "service": {}, "trading": {}, "traders": {}, "ventures": {},
	"group": {}, "international": {}, "global": {}, "industries": {}, "investments": {},
	"solutions": {}, "technologies": {}, "hotel": {}, "lounge": {}, "boutique": {}, "salon": {},
	"motors": {}, "autos": {}, "agency": {}, "farms": {}, "concepts": {}, "collections": {},
	"station": {}, "energy": {}, "nig": {}, "nigeria": {},
}

// businessPatterns are matched against the lower-cased raw name so "&" survives.
var businessPatterns = []*regexp.Regexp{
	regexp.MustCompile(`&\s*sons?\b`),
	regexp.MustCompile(`&\s*co\b`),
	regexp.MustCompile(`\band\s+sons\b`),
	regexp.MustCompile(`\benterprises?\b`),
	regexp.MustCompile(`\b(nig|nigeria)\.?\s+(ltd|limited)\b`),
	regexp.MustCompile(`\bbn\s*\d+`),
	regexp.MustCompile(`\brc\s*\d+`),
}

// AccountFacts are the precomputed inputs the classification rules look at.
type AccountFacts struct {
	Explicit   *bool
	Raw        string
	Words      []string
	HasKeyword bool
	HasPattern bool
}

// ClassificationRule maps a predicate over the account facts to a verdict.
// Rules are evaluated in order and the first match wins.
type ClassificationRule struct {
	Name    string
	Matches func(f AccountFacts) bool
	Verdict AccountKind
}

// DefaultClassificationRules is the ordered rule table used by NewClassifier.
var DefaultClassificationRules = []ClassificationRule{
	{
		Name:    "explicit_business_flag",
		Matches: func(f AccountFacts) bool { return f.Explicit != nil && *f.Explicit },
		Verdict: AccountBusiness,
	},
	{
		Name:    "explicit_individual_flag",
		Matches: func(f AccountFacts) bool { return f.Explicit != nil && !*f.Explicit },
		Verdict: AccountIndividual,
	},
	{
		Name:    "business_keyword",
		Matches: func(f AccountFacts) bool { return f.HasKeyword },
		Verdict: AccountBusiness,
	},
	{
		Name:    "business_pattern",
		Matches: func(f AccountFacts) bool { return f.HasPattern },
		Verdict: AccountBusiness,
	},
	{
		Name:    "personal_name_shape",
		Matches: func(f AccountFacts) bool { return len(f.Words) >= 2 && len(f.Words) <= 4 },
		Verdict: AccountIndividual,
	},
}

// Classifier decides whether a destination account may be surfaced publicly.
type Classifier struct {
	rules    []ClassificationRule
	fallback AccountKind
}

// NewClassifier builds a classifier over the default rule table. fallback is the
// verdict for names no rule decides (single words, five or more words).
func NewClassifier(fallback AccountKind) *Classifier {
	return NewClassifierWithRules(DefaultClassificationRules, fallback)
}

// NewClassifierWithRules builds a classifier over a custom rule table.
func NewClassifierWithRules(rules []ClassificationRule, fallback AccountKind) *Classifier {
	if fallback != AccountIndividual {
		fallback = AccountBusiness
	}
	return &Classifier{rules: rules, fallback: fallback}
}

// Classify returns the verdict and the name of the rule that produced it.
func (c *Classifier) Classify(account domain.DestinationAccount) (AccountKind, string) {
	facts := factsFor(account)
	for _, rule := range c.rules {
		if rule.Matches(facts) {
			return rule.Verdict, rule.Name
		}
	}
	return c.fallback, "fallback_policy"
}

// IsBusiness is a convenience wrapper around Classify.
func (c *Classifier) IsBusiness(account domain.DestinationAccount) bool {
	kind, _ := c.Classify(account)
	return kind == AccountBusiness
}

func factsFor(account domain.DestinationAccount) AccountFacts {
	raw := strings.ToLower(strings.TrimSpace(account.AccountName))
	words := nameWords(NormalizeName(account.AccountName))

	f := AccountFacts{Explicit: account.IsBusiness, Raw: raw, Words: words}
	for _, w := range words {
		if _, ok := businessKeywords[w]; ok {
			f.HasKeyword = true
			break
		}
	}
	for _, p := range businessPatterns {
		if p.MatchString(raw) {
			f.HasPattern = true
			break
		}
	}
	return f
}
