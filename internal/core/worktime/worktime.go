// Package worktime formats and parses attendance timestamps and turns
// clock-in/clock-out pairs into worked hours.
package worktime

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Layout is how timestamps are written to the spreadsheet: local time,
// no zone suffix, DD/MM/YYYY HH:mm:ss.
const Layout = "02/01/2006 15:04:05"

// DateLayout is the date part of Layout.
const DateLayout = "02/01/2006"

// accepted lists every layout Parse understands. Cells edited by hand or
// backfilled through the API do not always follow Layout.
var accepted = []string{
	Layout,
	"02/01/2006 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2/1/2006 15:04:05",
	"2/1/2006, 15:04:05",
	DateLayout,
	"2006-01-02",
}

// Format renders t in loc using Layout.
func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

// Parse reads a timestamp in any accepted layout. Values without a zone are
// interpreted in loc; RFC 3339 values keep their own offset.
func Parse(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	for _, layout := range accepted {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// Elapsed is the fractional hours between two instants, rounded to two
// places and floored at zero. Both the live "working for" display and the
// clock-out calculation use it. negative reports whether flooring happened.
func Elapsed(from, to time.Time) (hours float64, negative bool) {
	d := to.Sub(from)
	if d < 0 {
		return 0, true
	}
	return math.Round(d.Hours()*100) / 100, false
}

// Hours parses both timestamps and returns Elapsed between them.
func Hours(clockIn, clockOut string, loc *time.Location) (hours float64, negative bool, err error) {
	in, err := Parse(clockIn, loc)
	if err != nil {
		return 0, false, fmt.Errorf("clock-in: %w", err)
	}
	out, err := Parse(clockOut, loc)
	if err != nil {
		return 0, false, fmt.Errorf("clock-out: %w", err)
	}
	hours, negative = Elapsed(in, out)
	return hours, negative, nil
}

// FormatHours renders hours with two decimals, the way the ledger stores them.
func FormatHours(h float64) string {
	return fmt.Sprintf("%.2f", h)
}

// SameDay reports whether a and b fall on the same calendar date in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
