package model

import "strconv"

// Column is a zero-based column index in a remote table.
type Column int

// Ledger columns, A through K.
const (
	LedgerEmployee Column = iota
	LedgerMessagingID
	LedgerClockIn
	LedgerNote
	LedgerClockOut
	LedgerEntryCoords
	LedgerEntryLocation
	LedgerExitCoords
	LedgerExitLocation
	LedgerWorkingHours
	LedgerExitNote
	ledgerWidth
)

// Open-session columns, A through I.
const (
	SessionSystemName Column = iota
	SessionEmployeeName
	SessionClockIn
	SessionNote
	SessionCoordinates
	SessionLocation
	SessionMessagingID
	SessionMessagingName
	SessionLedgerRow
	sessionWidth
)

const RosterName Column = 0

// HeaderRows is the number of rows above the first data row.
const HeaderRows = 1

// Letter renders the column the way the spreadsheet addresses it (0 -> A).
func (c Column) Letter() string {
	n := int(c)
	s := ""
	for n >= 0 {
		s = string(rune('A'+n%26)) + s
		n = n/26 - 1
	}
	return s
}

func cell(cells []string, c Column) string {
	if int(c) < len(cells) {
		return cells[c]
	}
	return ""
}

// LedgerFromRow decodes a ledger row.
func LedgerFromRow(r Row) LedgerEntry {
	return LedgerEntry{
		Row:           r.Number,
		Employee:      cell(r.Cells, LedgerEmployee),
		MessagingID:   cell(r.Cells, LedgerMessagingID),
		ClockIn:       cell(r.Cells, LedgerClockIn),
		Note:          cell(r.Cells, LedgerNote),
		ClockOut:      cell(r.Cells, LedgerClockOut),
		EntryCoords:   cell(r.Cells, LedgerEntryCoords),
		EntryLocation: cell(r.Cells, LedgerEntryLocation),
		ExitCoords:    cell(r.Cells, LedgerExitCoords),
		ExitLocation:  cell(r.Cells, LedgerExitLocation),
		WorkingHours:  cell(r.Cells, LedgerWorkingHours),
		ExitNote:      cell(r.Cells, LedgerExitNote),
	}
}

// Cells encodes the entry in column order.
func (e LedgerEntry) Cells() []string {
	cells := make([]string, ledgerWidth)
	cells[LedgerEmployee] = e.Employee
	cells[LedgerMessagingID] = e.MessagingID
	cells[LedgerClockIn] = e.ClockIn
	cells[LedgerNote] = e.Note
	cells[LedgerClockOut] = e.ClockOut
	cells[LedgerEntryCoords] = e.EntryCoords
	cells[LedgerEntryLocation] = e.EntryLocation
	cells[LedgerExitCoords] = e.ExitCoords
	cells[LedgerExitLocation] = e.ExitLocation
	cells[LedgerWorkingHours] = e.WorkingHours
	cells[LedgerExitNote] = e.ExitNote
	return cells
}

// SessionFromRow decodes an open-session row. An unparsable ledger
// reference decodes as zero, which the index strategy treats as absent.
func SessionFromRow(r Row) WorkSession {
	ledgerRow, _ := strconv.Atoi(cell(r.Cells, SessionLedgerRow))
	return WorkSession{
		Row:           r.Number,
		SystemName:    cell(r.Cells, SessionSystemName),
		EmployeeName:  cell(r.Cells, SessionEmployeeName),
		ClockIn:       cell(r.Cells, SessionClockIn),
		Note:          cell(r.Cells, SessionNote),
		Coordinates:   cell(r.Cells, SessionCoordinates),
		Location:      cell(r.Cells, SessionLocation),
		MessagingID:   cell(r.Cells, SessionMessagingID),
		MessagingName: cell(r.Cells, SessionMessagingName),
		LedgerRow:     ledgerRow,
	}
}

// Cells encodes the session in column order.
func (s WorkSession) Cells() []string {
	cells := make([]string, sessionWidth)
	cells[SessionSystemName] = s.SystemName
	cells[SessionEmployeeName] = s.EmployeeName
	cells[SessionClockIn] = s.ClockIn
	cells[SessionNote] = s.Note
	cells[SessionCoordinates] = s.Coordinates
	cells[SessionLocation] = s.Location
	cells[SessionMessagingID] = s.MessagingID
	cells[SessionMessagingName] = s.MessagingName
	if s.LedgerRow > 0 {
		cells[SessionLedgerRow] = strconv.Itoa(s.LedgerRow)
	}
	return cells
}

// EmployeeFromRow decodes a roster row.
func EmployeeFromRow(r Row) Employee {
	return Employee{Name: cell(r.Cells, RosterName)}
}

func LedgerEntries(rows []Row) []LedgerEntry {
	out := make([]LedgerEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, LedgerFromRow(r))
	}
	return out
}

func WorkSessions(rows []Row) []WorkSession {
	out := make([]WorkSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, SessionFromRow(r))
	}
	return out
}

func Employees(rows []Row) []Employee {
	out := make([]Employee, 0, len(rows))
	for _, r := range rows {
		if e := EmployeeFromRow(r); e.Name != "" {
			out = append(out, e)
		}
	}
	return out
}
