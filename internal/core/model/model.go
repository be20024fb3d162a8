package model

import (
	"time"
)

// WorkState is the per-employee position in the clock-in/out state machine.
type WorkState string

const (
	StateNotWorking WorkState = "NOT_WORKING"
	StateWorking    WorkState = "WORKING"
)

// Dataset identifies a remote table or a derived dataset held in the cache.
type Dataset string

const (
	DatasetRoster   Dataset = "roster"
	DatasetSessions Dataset = "sessions"
	DatasetLedger   Dataset = "ledger"
	DatasetStats    Dataset = "stats"
)

// Row is one data row of a remote table. Number is the 1-based sheet row,
// so the first data row below the header is row 2.
type Row struct {
	Number int      `json:"row"`
	Cells  []string `json:"cells"`
}

// Employee is a roster entry.
type Employee struct {
	Name string `json:"name"`
}

// WorkSession is an open clock-in waiting to be closed.
type WorkSession struct {
	Row           int    `json:"row"`
	SystemName    string `json:"systemName"`
	EmployeeName  string `json:"employeeName"`
	ClockIn       string `json:"clockIn"`
	Note          string `json:"note,omitempty"`
	Coordinates   string `json:"coordinates,omitempty"`
	Location      string `json:"location,omitempty"`
	MessagingID   string `json:"messagingId,omitempty"`
	MessagingName string `json:"messagingName,omitempty"`
	LedgerRow     int    `json:"ledgerRow,omitempty"`
}

// LedgerEntry is one attendance event in the append-only ledger.
type LedgerEntry struct {
	Row           int    `json:"row"`
	Employee      string `json:"employee"`
	MessagingID   string `json:"messagingId,omitempty"`
	ClockIn       string `json:"clockIn"`
	Note          string `json:"note,omitempty"`
	ClockOut      string `json:"clockOut,omitempty"`
	EntryCoords   string `json:"entryCoords,omitempty"`
	EntryLocation string `json:"entryLocation,omitempty"`
	ExitCoords    string `json:"exitCoords,omitempty"`
	ExitLocation  string `json:"exitLocation,omitempty"`
	WorkingHours  string `json:"workingHours,omitempty"`
	ExitNote      string `json:"exitNote,omitempty"`
}

// Open reports whether the entry still waits for a clock-out.
func (e LedgerEntry) Open() bool {
	return e.ClockOut == ""
}

// ClockRequest carries what the caller knows about a clock-in or clock-out.
type ClockRequest struct {
	Name          string   `json:"name"`
	MessagingID   string   `json:"messagingId,omitempty"`
	MessagingName string   `json:"messagingName,omitempty"`
	Note          string   `json:"note,omitempty"`
	Lat           *float64 `json:"lat,omitempty"`
	Lon           *float64 `json:"lon,omitempty"`
	// TimeOverride replaces "now" for backfill and testing.
	TimeOverride string `json:"timeOverride,omitempty"`
}

// ClockResult is the structured outcome of a clock-in or clock-out. Write
// paths never return raw errors to the route layer.
type ClockResult struct {
	Success    bool     `json:"success"`
	Code       string   `json:"code,omitempty"`
	Message    string   `json:"message"`
	Time       string   `json:"time,omitempty"`
	Hours      float64  `json:"hours,omitempty"`
	Stage      string   `json:"stage,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// Status answers "is this employee on work right now".
type Status struct {
	Name     string       `json:"name"`
	State    WorkState    `json:"state"`
	Session  *WorkSession `json:"session,omitempty"`
	Elapsed  float64      `json:"elapsedHours,omitempty"`
	Degraded bool         `json:"degraded,omitempty"`
}

// WorkingNow is one line of the admin dashboard.
type WorkingNow struct {
	Name     string  `json:"name"`
	ClockIn  string  `json:"clockIn"`
	Location string  `json:"location,omitempty"`
	Hours    float64 `json:"hours"`
}

// AdminStats is the computed dashboard dataset.
type AdminStats struct {
	GeneratedAt    time.Time    `json:"generatedAt"`
	TotalEmployees int          `json:"totalEmployees"`
	WorkingCount   int          `json:"workingCount"`
	ClockInsToday  int          `json:"clockInsToday"`
	CompletedToday int          `json:"completedToday"`
	HoursToday     float64      `json:"hoursToday"`
	NotClockedIn   []string     `json:"notClockedIn"`
	Working        []WorkingNow `json:"working"`
	Degraded       bool         `json:"degraded,omitempty"`
	Warning        string       `json:"warning,omitempty"`
	EmergencyMode  bool         `json:"emergencyMode"`
}

// ReportKind selects the slice of the ledger a report contains.
type ReportKind string

const (
	ReportDaily    ReportKind = "daily"
	ReportMonthly  ReportKind = "monthly"
	ReportEmployee ReportKind = "employee"
	ReportOpen     ReportKind = "open"
)

// ReportParams narrows a report. Dates use YYYY-MM-DD, months YYYY-MM.
type ReportParams struct {
	Date  string `json:"date,omitempty"`
	Month string `json:"month,omitempty"`
	Name  string `json:"name,omitempty"`
	From  string `json:"from,omitempty"`
	To    string `json:"to,omitempty"`
}

// Report is the plain record array handed to the workbook renderer.
type Report struct {
	Kind       ReportKind    `json:"kind"`
	Params     ReportParams  `json:"params"`
	Records    []LedgerEntry `json:"records"`
	Sessions   []WorkSession `json:"sessions,omitempty"`
	TotalHours float64       `json:"totalHours"`
	Degraded   bool          `json:"degraded,omitempty"`
	Warning    string        `json:"warning,omitempty"`
}

// AutoCheckoutNote is written into the ledger note of every session the
// sweeper closes.
const AutoCheckoutNote = "ลืมลงเวลาออก (auto checkout)"

// SweepSummary aggregates one missed-checkout sweep.
type SweepSummary struct {
	RunAt     time.Time `json:"runAt"`
	Cutoff    string    `json:"cutoff"`
	Processed int       `json:"processed"`
	Exempted  int       `json:"exempted"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Closed    []string  `json:"closed,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
}
