// Package world answers the planner's questions about where an agent can go
// and what it can use there.
package world

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// Tier says which rule matched a name. Lower tiers win.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierCaseInsensitive
	TierBareName
	TierSubstring
	TierFuzzy
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierCaseInsensitive:
		return "case-insensitive"
	case TierBareName:
		return "bare-name"
	case TierSubstring:
		return "substring"
	case TierFuzzy:
		return "fuzzy"
	}
	return "none"
}

// BareName is the part of a "Sector:Area" name after the last colon.
func BareName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return strings.TrimSpace(name[i+1:])
	}
	return strings.TrimSpace(name)
}

// Resolve maps a possibly sloppy name onto one of candidates. Tiers are tried
// in order and the first candidate (in list order) matching a tier wins:
//
//  1. exact full name
//  2. case-insensitive full name
//  3. case-insensitive bare name (after the last ':') on either side
//  4. substring either way, full name first, then bare name
//  5. fuzzy subsequence match, best score
func Resolve(query string, candidates []string) (string, Tier) {
	q := strings.TrimSpace(query)
	if q == "" || len(candidates) == 0 {
		return "", TierNone
	}
	for _, c := range candidates {
		if c == q {
			return c, TierExact
		}
	}
	for _, c := range candidates {
		if strings.EqualFold(c, q) {
			return c, TierCaseInsensitive
		}
	}
	qBare := BareName(q)
	for _, c := range candidates {
		if strings.EqualFold(BareName(c), qBare) {
			return c, TierBareName
		}
	}
	lq, lqBare := strings.ToLower(q), strings.ToLower(qBare)
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if strings.Contains(lc, lq) || strings.Contains(lq, lc) {
			return c, TierSubstring
		}
		lb := strings.ToLower(BareName(c))
		if lb != "" && lqBare != "" && (strings.Contains(lb, lqBare) || strings.Contains(lqBare, lb)) {
			return c, TierSubstring
		}
	}
	if matches := fuzzy.Find(lq, lowerAll(candidates)); len(matches) > 0 {
		return candidates[matches[0].Index], TierFuzzy
	}
	return "", TierNone
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
