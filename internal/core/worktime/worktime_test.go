package worktime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bangkok(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	require.NoError(t, err)
	return loc
}

func TestHours(t *testing.T) {
	loc := bangkok(t)

	h, neg, err := Hours("2025-01-01 08:00:00", "2025-01-01 17:30:00", loc)
	require.NoError(t, err)
	assert.False(t, neg)
	assert.Equal(t, 9.5, h)
	assert.Equal(t, "9.50", FormatHours(h))

	h, neg, err = Hours("01/01/2025 17:30:00", "01/01/2025 08:00:00", loc)
	require.NoError(t, err)
	assert.True(t, neg)
	assert.Equal(t, 0.0, h, "never negative")

	_, _, err = Hours("garbage", "01/01/2025 08:00:00", loc)
	assert.Error(t, err)
}

func TestParse_Layouts(t *testing.T) {
	loc := bangkok(t)
	want := time.Date(2025, 3, 4, 9, 5, 0, 0, loc)

	for _, v := range []string{
		"04/03/2025 09:05:00",
		"04/03/2025 09:05",
		"2025-03-04 09:05:00",
		"2025-03-04T09:05",
		"4/3/2025 09:05:00",
		"2025-03-04T02:05:00Z",
	} {
		got, err := Parse(v, loc)
		require.NoError(t, err, v)
		assert.True(t, want.Equal(got), "%s parsed as %s", v, got)
	}

	_, err := Parse("  ", loc)
	assert.Error(t, err)
}

func TestFormatRoundTrip(t *testing.T) {
	loc := bangkok(t)
	at := time.Date(2025, 1, 2, 1, 2, 3, 0, time.UTC)
	s := Format(at, loc)
	assert.Equal(t, "02/01/2025 08:02:03", s)

	back, err := Parse(s, loc)
	require.NoError(t, err)
	assert.True(t, at.Equal(back))
}

func TestElapsedRounding(t *testing.T) {
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	h, _ := Elapsed(start, start.Add(20*time.Minute))
	assert.Equal(t, 0.33, h)
}

func TestSameDay(t *testing.T) {
	loc := bangkok(t)
	a := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC) // 06:00 on the 2nd in Bangkok
	b := time.Date(2025, 1, 2, 10, 0, 0, 0, loc)
	assert.True(t, SameDay(a, b, loc))
	assert.False(t, SameDay(a, b, time.UTC))
}
