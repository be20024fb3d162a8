// Package reconcile finds the ledger row that an open work session should
// close. The open-session table and the ledger are only loosely linked, so
// the search runs an ordered list of strategies and stops at the first hit.
package reconcile

import (
	"time"

	"attendance.service/internal/core/identity"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/worktime"
)

// ProximityWindow bounds how far apart a session's clock-in and a ledger
// row's clock-in may be for the closest-in-time strategy to accept the row.
const ProximityWindow = 5 * time.Minute

// Hint is what the caller knows about the record to close.
type Hint struct {
	Name     string
	Session  model.WorkSession
	Location *time.Location
}

// Strategy locates a ledger entry for hint. It must not mutate ledger.
type Strategy struct {
	Name   string
	Locate func(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool)
}

// Strategies are tried in order.
var Strategies = []Strategy{
	{Name: "index", Locate: ByIndex},
	{Name: "unique-open", Locate: UniqueOpen},
	{Name: "closest-in-time", Locate: ClosestInTime},
	{Name: "latest-open", Locate: LatestOpen},
}

// Locate runs Strategies in order and returns the first hit together with
// the name of the strategy that found it.
func Locate(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, string, bool) {
	for _, s := range Strategies {
		if e, ok := s.Locate(ledger, hint); ok {
			return e, s.Name, true
		}
	}
	return model.LedgerEntry{}, "", false
}

// ByIndex trusts the ledger row stored on the session, but only if the row
// at that position is still open and belongs to the same person. Stale or
// wrong indices fall through to the next strategy.
func ByIndex(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool) {
	e, ok := atIndex(ledger, hint)
	if !ok || !e.Open() {
		return model.LedgerEntry{}, false
	}
	return e, true
}

// AlreadyClosed returns the session's indexed ledger row when it belongs to
// the same person and already carries a clock-out. A session left behind
// after its ledger row was closed looks like this.
func AlreadyClosed(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool) {
	e, ok := atIndex(ledger, hint)
	if !ok || e.Open() {
		return model.LedgerEntry{}, false
	}
	return e, true
}

func atIndex(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool) {
	if hint.Session.LedgerRow <= model.HeaderRows {
		return model.LedgerEntry{}, false
	}
	pos := hint.Session.LedgerRow - model.HeaderRows - 1
	if pos >= len(ledger) {
		return model.LedgerEntry{}, false
	}
	e := ledger[pos]
	if !identity.IsMatch(e.Employee, hint.Name) {
		return model.LedgerEntry{}, false
	}
	return e, true
}

// UniqueOpen accepts the only open ledger row whose name matches.
func UniqueOpen(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool) {
	c := openCandidates(ledger, hint.Name)
	if len(c) != 1 {
		return model.LedgerEntry{}, false
	}
	return c[0], true
}

// ClosestInTime picks, among several matching open rows, the one whose
// clock-in is nearest to the session's, within ProximityWindow.
func ClosestInTime(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool) {
	c := openCandidates(ledger, hint.Name)
	if len(c) < 2 {
		return model.LedgerEntry{}, false
	}
	loc := hint.Location
	if loc == nil {
		loc = time.Local
	}
	target, err := worktime.Parse(hint.Session.ClockIn, loc)
	if err != nil {
		return model.LedgerEntry{}, false
	}

	var best model.LedgerEntry
	bestDiff := time.Duration(-1)
	for _, e := range c {
		at, err := worktime.Parse(e.ClockIn, loc)
		if err != nil {
			continue
		}
		diff := at.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = e, diff
		}
	}
	if bestDiff < 0 || bestDiff >= ProximityWindow {
		return model.LedgerEntry{}, false
	}
	return best, true
}

// LatestOpen scans from the end for the most recent open row that matches.
func LatestOpen(ledger []model.LedgerEntry, hint Hint) (model.LedgerEntry, bool) {
	for i := len(ledger) - 1; i >= 0; i-- {
		e := ledger[i]
		if e.Open() && identity.IsMatch(e.Employee, hint.Name) {
			return e, true
		}
	}
	return model.LedgerEntry{}, false
}

func openCandidates(ledger []model.LedgerEntry, name string) []model.LedgerEntry {
	var out []model.LedgerEntry
	for _, e := range ledger {
		if e.Open() && identity.IsMatch(e.Employee, name) {
			out = append(out, e)
		}
	}
	return out
}
