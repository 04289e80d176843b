package normalize

import "strings"

// family groups the keyword spellings (French and English) that all mean the
// same severity bucket, together with the domain values that bucket prefers.
// Keywords are accent-folded; the incoming value is folded before matching.
type family struct {
	keywords []string // substrings matched against the raw value
	targets  []string // preferred domain values, in order
}

var severityFamilies = []family{
	{
		keywords: []string{"crit", "majeur", "major", "high", "elev", "sever", "haut"},
		targets:  []string{"critical", "high", "majeur", "major", "haute", "elevee"},
	},
	{
		keywords: []string{"moy", "medium", "moder", "interm"},
		targets:  []string{"medium", "moderate", "moyen", "moyenne"},
	},
	{
		keywords: []string{"faible", "low", "minor", "mineur", "min"},
		targets:  []string{"low", "minor", "faible", "mineur"},
	},
}

// Enum maps a free-text categorical value onto one of the allowed domain
// values. The precedence chain is deliberate and ordered:
//
//  1. exact case-insensitive match
//  2. keyword-family match (multilingual severity synonyms)
//  3. substring containment of a domain value in the raw value
//  4. the caller's fallback, when it is itself a legal domain value
//  5. the first domain entry
//
// The bias is toward returning some valid value rather than rejecting the
// row; callers treat a missing categorical value as worse than an
// approximately-correct one. An empty domain returns raw unchanged.
func Enum(raw string, domain []string, fallback string) string {
	if len(domain) == 0 {
		return raw
	}

	v := Fold(strings.ToLower(strings.TrimSpace(raw)))
	lower := make([]string, len(domain))
	for i, d := range domain {
		lower[i] = strings.ToLower(d)
	}

	// Exact match, preserving the domain's canonical spelling.
	for i, d := range lower {
		if v == d {
			return domain[i]
		}
	}

	pick := func(targets []string) (string, bool) {
		for _, t := range targets {
			for i, d := range lower {
				if d == t {
					return domain[i], true
				}
			}
		}
		return "", false
	}

	fall := func() string {
		if fallback != "" {
			f := strings.ToLower(fallback)
			for i, d := range lower {
				if d == f {
					return domain[i]
				}
			}
		}
		return domain[0]
	}

	for _, fam := range severityFamilies {
		for _, kw := range fam.keywords {
			if strings.Contains(v, kw) {
				if got, ok := pick(fam.targets); ok {
					return got
				}
				return fall()
			}
		}
	}

	// Partial containment: a domain value embedded in the raw text.
	for i, d := range lower {
		if d != "" && strings.Contains(v, d) {
			return domain[i]
		}
	}

	return fall()
}
