// Package identity compares human names that arrive from several channels
// (manual entry, messaging display names) with inconsistent formatting.
//
// Matching is deliberately loose: two names match when their normalized forms
// are equal or when either contains the other. That tolerates nicknames and
// partial entry, and it also means "Anna" matches "Banana". When two
// employees' names are substrings of one another, the first match wins and
// nothing here disambiguates them.
package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lower = cases.Lower(language.Und)

// Normalize composes the name to NFC, trims it, collapses internal runs of
// whitespace to one space and lowercases it.
func Normalize(name string) string {
	composed := norm.NFC.String(name)
	return lower.String(strings.Join(strings.Fields(composed), " "))
}

// IsMatch reports whether a and b refer to the same person under the
// containment policy. Blank names never match anything.
func IsMatch(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// MatchesAny reports whether name matches at least one of candidates.
func MatchesAny(name string, candidates ...string) bool {
	for _, c := range candidates {
		if IsMatch(name, c) {
			return true
		}
	}
	return false
}

// Candidates returns the distinct entries of names that match name, in their
// original spelling and order.
func Candidates(name string, names []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, n := range names {
		if !IsMatch(name, n) {
			continue
		}
		key := Normalize(n)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// Suggestions is a looser Candidates for typo hints: besides matching
// names it also returns names that share a whole word with name, so
// "Somchai Jonez" suggests "Somchai Jones".
func Suggestions(name string, names []string) []string {
	words := strings.Fields(Normalize(name))
	seen := make(map[string]struct{})
	var out []string
	for _, n := range names {
		key := Normalize(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		if !IsMatch(name, n) && !sharesWord(words, strings.Fields(key)) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

func sharesWord(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
