package reconcile

import (
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledger builds entries with sheet row numbers starting at 2.
func ledger(entries ...model.LedgerEntry) []model.LedgerEntry {
	for i := range entries {
		entries[i].Row = i + 2
	}
	return entries
}

func open(name, clockIn string) model.LedgerEntry {
	return model.LedgerEntry{Employee: name, ClockIn: clockIn}
}

func closed(name, clockIn string) model.LedgerEntry {
	return model.LedgerEntry{Employee: name, ClockIn: clockIn, ClockOut: "01/01/2025 17:00:00"}
}

func hint(name, clockIn string, ledgerRow int) Hint {
	return Hint{
		Name:     name,
		Location: time.UTC,
		Session:  model.WorkSession{SystemName: name, ClockIn: clockIn, LedgerRow: ledgerRow},
	}
}

func TestByIndex(t *testing.T) {
	l := ledger(closed("Anna", "01/01/2025 08:00:00"), open("Somchai", "01/01/2025 08:00:00"))

	e, ok := ByIndex(l, hint("somchai", "", 3))
	require.True(t, ok)
	assert.Equal(t, 3, e.Row)

	_, ok = ByIndex(l, hint("somchai", "", 2))
	assert.False(t, ok, "row belongs to someone else")

	_, ok = ByIndex(l, hint("somchai", "", 40))
	assert.False(t, ok, "out of range")

	_, ok = ByIndex(l, hint("somchai", "", 0))
	assert.False(t, ok, "no index stored")
}

func TestByIndex_SkipsClosedRow(t *testing.T) {
	l := ledger(closed("Anna", "01/01/2025 08:00:00"), open("Anna", "01/01/2025 12:00:00"))

	_, ok := ByIndex(l, hint("Anna", "01/01/2025 08:00:00", 2))
	assert.False(t, ok, "a closed row is never rewritten")

	e, stage, ok := Locate(l, hint("Anna", "01/01/2025 08:00:00", 2))
	require.True(t, ok)
	assert.Equal(t, "unique-open", stage)
	assert.Equal(t, 3, e.Row)
}

func TestAlreadyClosed(t *testing.T) {
	l := ledger(closed("Anna", "01/01/2025 08:00:00"), open("Somchai", "01/01/2025 08:00:00"))

	e, ok := AlreadyClosed(l, hint("anna", "01/01/2025 08:00:00", 2))
	require.True(t, ok)
	assert.Equal(t, "01/01/2025 17:00:00", e.ClockOut)

	_, ok = AlreadyClosed(l, hint("Somchai", "", 3))
	assert.False(t, ok, "open row")

	_, ok = AlreadyClosed(l, hint("Somchai", "", 2))
	assert.False(t, ok, "row belongs to someone else")
}

func TestUniqueOpen(t *testing.T) {
	l := ledger(closed("Somchai", "01/01/2025 07:00:00"), open("Somchai", "01/01/2025 08:00:00"), open("Anna", "01/01/2025 08:00:00"))
	e, ok := UniqueOpen(l, hint("Somchai", "", 0))
	require.True(t, ok)
	assert.Equal(t, 3, e.Row)

	l = append(l, model.LedgerEntry{Row: 5, Employee: "somchai", ClockIn: "01/01/2025 09:00:00"})
	_, ok = UniqueOpen(l, hint("Somchai", "", 0))
	assert.False(t, ok, "two candidates is not unique")
}

func TestClosestInTime(t *testing.T) {
	l := ledger(
		open("Somchai", "01/01/2025 06:00:00"),
		open("Somchai", "01/01/2025 08:02:00"),
		open("Somchai", "01/01/2025 08:10:00"),
	)

	e, ok := ClosestInTime(l, hint("Somchai", "01/01/2025 08:00:00", 0))
	require.True(t, ok)
	assert.Equal(t, 3, e.Row)

	_, ok = ClosestInTime(l, hint("Somchai", "01/01/2025 12:00:00", 0))
	assert.False(t, ok, "nearest is more than five minutes away")

	_, ok = ClosestInTime(l[:1], hint("Somchai", "01/01/2025 06:00:00", 0))
	assert.False(t, ok, "single candidate belongs to the unique strategy")

	_, ok = ClosestInTime(l, hint("Somchai", "not a time", 0))
	assert.False(t, ok)
}

func TestLatestOpen(t *testing.T) {
	l := ledger(
		open("Somchai", "01/01/2025 06:00:00"),
		open("Somchai", "01/01/2025 12:00:00"),
		closed("Somchai", "01/01/2025 13:00:00"),
	)
	e, ok := LatestOpen(l, hint("Somchai", "", 0))
	require.True(t, ok)
	assert.Equal(t, 3, e.Row)

	_, ok = LatestOpen(l, hint("Nobody", "", 0))
	assert.False(t, ok)
}

func TestLocate_StageOrder(t *testing.T) {
	l := ledger(
		open("Somchai", "01/01/2025 06:00:00"),
		open("Somchai", "01/01/2025 12:00:00"),
	)

	_, stage, ok := Locate(l, hint("Somchai", "01/01/2025 12:01:00", 2))
	require.True(t, ok)
	assert.Equal(t, "index", stage)

	e, stage, ok := Locate(l, hint("Somchai", "01/01/2025 12:01:00", 0))
	require.True(t, ok)
	assert.Equal(t, "closest-in-time", stage)
	assert.Equal(t, 3, e.Row)

	e, stage, ok = Locate(l, hint("Somchai", "01/01/2025 09:00:00", 0))
	require.True(t, ok)
	assert.Equal(t, "latest-open", stage)
	assert.Equal(t, 3, e.Row)

	_, _, ok = Locate(l, hint("Anna", "", 0))
	assert.False(t, ok)
}

// With exactly one open row for the employee, every way into the search
// lands on that row.
func TestLocate_SingleOpenRowIsDeterministic(t *testing.T) {
	l := ledger(
		closed("Somchai", "31/12/2024 08:00:00"),
		open("Anna", "01/01/2025 08:00:00"),
		open("Somchai", "01/01/2025 08:00:00"),
	)
	hints := []Hint{
		hint("Somchai", "01/01/2025 08:00:00", 4),  // good index
		hint("Somchai", "01/01/2025 08:00:00", 3),  // index points at Anna
		hint("Somchai", "01/01/2025 08:00:00", 99), // index out of range
		hint("Somchai", "garbage", 0),              // no index, bad time
	}
	for _, h := range hints {
		e, _, ok := Locate(l, h)
		require.True(t, ok)
		assert.Equal(t, 4, e.Row)
	}

	// Even when only the index or only the scan can see it, each stage
	// agrees on the same row.
	for _, s := range Strategies {
		if s.Name == "closest-in-time" {
			continue
		}
		e, ok := s.Locate(l, hint("Somchai", "01/01/2025 08:00:00", 4))
		require.True(t, ok, s.Name)
		assert.Equal(t, 4, e.Row, s.Name)
	}
}
