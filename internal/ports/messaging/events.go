package messaging

import "time"

// Actions carried by Notification.
const (
	ActionClockIn             = "clock_in"
	ActionClockOut            = "clock_out"
	ActionAutoCheckoutSummary = "auto_checkout_summary"
)

// Notification is the JSON body posted downstream for every attendance
// event: {"action", "data", "timestamp"}.
type Notification struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ClockEvent is the Data of clock_in and clock_out notifications.
type ClockEvent struct {
	Employee    string  `json:"employeeId"`
	Time        string  `json:"time"`
	Hours       float64 `json:"hours,omitempty"`
	Coordinates string  `json:"coordinates,omitempty"`
	Location    string  `json:"location,omitempty"`
	LedgerRow   int     `json:"ledgerRow"`
	Note        string  `json:"note,omitempty"`
}
