package main

import "strings"

// Pairwise similarity between two profiles. Each rule is evaluated
// independently and appends one human-readable reason; a pair "matches"
// when at least one rule fired. Missing fields on either side skip that
// rule without affecting the others.

const similarAgeYears = 5

// similarityReasons compares profile a (the viewer) against profile b (the
// candidate) and returns the accumulated reasons.
//
// Casing conventions, kept stable for the frontend:
//   - location reasons echo the candidate's stored value ("Same city: Austin")
//   - common languages echo the viewer's order and casing
func similarityReasons(a, b *MatchProfile) []string {
	var reasons []string

	if r, ok := sharedInterestsReason(a, b); ok {
		reasons = append(reasons, r)
	}
	if similarAge(a.Age, b.Age) {
		reasons = append(reasons, "Similar age")
	}
	if r, ok := locationReason(a.Location, b.Location); ok {
		reasons = append(reasons, r)
	}
	if r, ok := commonLanguagesReason(a.Languages, b.Languages); ok {
		reasons = append(reasons, r)
	}
	if r, ok := travelStyleReason(a.TravelStyle, b.TravelStyle); ok {
		reasons = append(reasons, r)
	}

	return reasons
}

func hasSimilarity(a, b *MatchProfile) bool {
	return len(similarityReasons(a, b)) > 0
}

// sharedInterestsReason intersects the two interest sets by id and names the
// overlap using the candidate's tag names.
func sharedInterestsReason(a, b *MatchProfile) (string, bool) {
	if len(a.Interests) == 0 || len(b.Interests) == 0 {
		return "", false
	}
	mine := make(map[int]bool, len(a.Interests))
	for _, in := range a.Interests {
		mine[in.ID] = true
	}
	var shared []string
	for _, in := range b.Interests {
		if mine[in.ID] {
			shared = append(shared, in.Name)
		}
	}
	if len(shared) == 0 {
		return "", false
	}
	return "Shared interests: " + strings.Join(shared, ", "), true
}

func similarAge(a, b *int) bool {
	if a == nil || b == nil {
		return false
	}
	diff := *a - *b
	if diff < 0 {
		diff = -diff
	}
	return diff <= similarAgeYears
}

// locationReason checks city first, then state, then country, and emits only
// the most specific matching granularity.
func locationReason(a, b *Location) (string, bool) {
	if a == nil || b == nil {
		return "", false
	}
	switch {
	case a.City != "" && b.City != "" && strings.EqualFold(a.City, b.City):
		return "Same city: " + b.City, true
	case a.State != "" && b.State != "" && strings.EqualFold(a.State, b.State):
		return "Same state: " + b.State, true
	case a.Country != "" && b.Country != "" && strings.EqualFold(a.Country, b.Country):
		return "Same country: " + b.Country, true
	}
	return "", false
}

// splitLanguages splits a comma-separated language field and trims each
// entry. Empty entries are dropped.
func splitLanguages(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func commonLanguagesReason(a, b string) (string, bool) {
	mine := splitLanguages(a)
	theirs := splitLanguages(b)
	if len(mine) == 0 || len(theirs) == 0 {
		return "", false
	}
	theirSet := make(map[string]bool, len(theirs))
	for _, l := range theirs {
		theirSet[l] = true
	}
	// Exact intersection, preserving the viewer's order.
	var common []string
	seen := make(map[string]bool)
	for _, l := range mine {
		if theirSet[l] && !seen[l] {
			common = append(common, l)
			seen[l] = true
		}
	}
	if len(common) == 0 {
		return "", false
	}
	return "Common languages: " + strings.Join(common, ", "), true
}

// travelStyleReason matches equal styles case-insensitively; "flexible" and
// "mixed" act as wildcards that match anything.
func travelStyleReason(a, b string) (string, bool) {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == "" || b == "" {
		return "", false
	}
	if !strings.EqualFold(a, b) && !isWildcardStyle(a) && !isWildcardStyle(b) {
		return "", false
	}
	return "Travel style: " + travelStyleLabel(b), true
}

func isWildcardStyle(s string) bool {
	return strings.EqualFold(s, "flexible") || strings.EqualFold(s, "mixed")
}

// travelStyleLabel maps the stored value to a human-friendly label; unknown
// values pass through untouched.
func travelStyleLabel(s string) string {
	switch strings.ToLower(s) {
	case "solo":
		return "Solo traveler"
	case "group":
		return "Group traveler"
	case "mixed":
		return "Mix of both"
	case "flexible":
		return "Flexible"
	default:
		return s
	}
}
