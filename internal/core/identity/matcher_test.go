package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Somchai   Jones ": "somchai jones",
		"ANNA\tMaria":       "anna maria",
		"":                  "",
		"   ":               "",
		"สมชาย  ใจดี":       "สมชาย ใจดี",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "%q", in)
	}
}

func TestIsMatch(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Somchai Jones", "somchai  jones", true},
		{"Som", "Somchai", true},
		{"Somchai", "Som", true},
		// Accepted false positive of the containment policy.
		{"Anna", "Banana", true},
		{"Anna", "Bob", false},
		{"", "Anna", false},
		{"  ", "  ", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsMatch(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func TestMatchesAny(t *testing.T) {
	assert.True(t, MatchesAny("somchai", "", "Somchai Jones"))
	assert.False(t, MatchesAny("somchai"))
}

func TestCandidates(t *testing.T) {
	names := []string{"Somchai Jones", "somchai  jones", "Somsak", "Anna"}
	assert.Equal(t, []string{"Somchai Jones"}, Candidates("somchai", names))
	assert.Equal(t, []string{"Somchai Jones", "Somsak"}, Candidates("Som", names))
	assert.Empty(t, Candidates("Zed", names))
}

func TestSuggestions(t *testing.T) {
	names := []string{"Somchai Jones", "somchai  jones", "Anna Lee", "", "Dee Jonas"}

	assert.Equal(t, []string{"Somchai Jones"}, Suggestions("Somchai Jonez", names))
	assert.Equal(t, []string{"Somchai Jones", "Anna Lee"}, Suggestions("Lee Somchai", names))
	assert.Empty(t, Suggestions("Nobody", names))
	assert.Empty(t, Suggestions("  ", names))
}
