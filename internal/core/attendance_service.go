package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"attendance.service/internal/cache"
	"attendance.service/internal/core/identity"
	"attendance.service/internal/core/model"
	"attendance.service/internal/core/reconcile"
	"attendance.service/internal/core/worktime"
	"attendance.service/internal/gateway"
	"attendance.service/internal/ports/geocoding"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ratelimit"
	"attendance.service/pkg/besteffort"
	"attendance.service/pkg/clock"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DataGateway is the subset of *gateway.Gateway the service depends on.
type DataGateway interface {
	Fetch(ctx context.Context, ds model.Dataset) (gateway.Snapshot, error)
	Refresh(ctx context.Context, ds model.Dataset) (gateway.Snapshot, error)
	SafeFetch(ctx context.Context, ds model.Dataset) gateway.Snapshot
	AppendRow(ctx context.Context, table model.Dataset, cells []string) (int, error)
	UpdateCells(ctx context.Context, table model.Dataset, row int, cells map[model.Column]string) error
	DeleteRow(ctx context.Context, table model.Dataset, row int) error
	Invalidate(datasets ...model.Dataset)
	SetEmergencyMode(on bool)
	EmergencyMode() bool
	Cache() *cache.Cache
	CacheStatus() []cache.EntryStatus
	QuotaStatus() ratelimit.Status
	BreakerState() string
}

// geocodeTimeout bounds the reverse lookup inside a clock-in or clock-out.
const geocodeTimeout = 5 * time.Second

type AttendanceService struct {
	gw       DataGateway
	geocoder geocoding.Geocoder
	notifier messaging.Notifier
	tasks    *besteffort.Runner
	clock    clock.Clock
	loc      *time.Location
	locks    *keyedMutex

	// tableMu serializes every session-table delete together with the
	// read that found its row number. Taken after a per-name lock.
	tableMu sync.Mutex
}

// StageAlreadyClosed names a close that found the ledger row already
// closed and only removed the leftover session.
const StageAlreadyClosed = "already-closed"

// NewAttendanceService wires the reconciler. A nil geocoder or notifier
// disables that side effect.
func NewAttendanceService(gw DataGateway, geo geocoding.Geocoder, n messaging.Notifier, tasks *besteffort.Runner, clk clock.Clock, loc *time.Location) *AttendanceService {
	if geo == nil {
		geo = geocoding.Nop{}
	}
	if n == nil {
		n = messaging.Nop{}
	}
	if tasks == nil {
		tasks = besteffort.New(0)
	}
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		gw:       gw,
		geocoder: geo,
		notifier: n,
		tasks:    tasks,
		clock:    clk,
		loc:      loc,
		locks:    newKeyedMutex(),
	}
}

// Location is the zone every timestamp is written and read in.
func (s *AttendanceService) Location() *time.Location {
	return s.loc
}

// GetStatus reports whether name is on work. It never fails: when the
// sessions table cannot be read, the best stale copy is used and the result
// is flagged Degraded.
func (s *AttendanceService) GetStatus(ctx context.Context, name string) model.Status {
	snap := s.gw.SafeFetch(ctx, model.DatasetSessions)
	st := model.Status{Name: name, State: model.StateNotWorking, Degraded: snap.Stale}

	session, ok := findSession(model.WorkSessions(snap.Rows), name)
	if !ok {
		return st
	}
	st.State = model.StateWorking
	st.Session = &session
	st.Elapsed = s.elapsed(session)
	return st
}

// ClockIn opens a session for req.Name and appends its ledger row.
func (s *AttendanceService) ClockIn(ctx context.Context, req model.ClockRequest) model.ClockResult {
	ctx, span := otel.Tracer("attendance-service").Start(ctx, "attendance.clock_in")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	key := identity.Normalize(name)
	if key == "" {
		return failure(fmt.Errorf("%w: name is required", model.ErrValidation))
	}
	span.SetAttributes(attribute.String("app.employeeId", name))

	unlock := s.locks.Lock(key)
	defer unlock()

	snap, err := s.gw.Fetch(ctx, model.DatasetSessions)
	if err != nil {
		return failure(err)
	}
	if open, ok := findSession(model.WorkSessions(snap.Rows), name); ok {
		return model.ClockResult{
			Code:    model.CodeAlreadyClockedIn,
			Message: fmt.Sprintf("%s is already clocked in since %s", name, open.ClockIn),
			Time:    open.ClockIn,
		}
	}

	at, err := s.resolveTime(req.TimeOverride)
	if err != nil {
		return failure(err)
	}
	ts := worktime.Format(at, s.loc)
	coords, place := s.place(ctx, req.Lat, req.Lon)

	entry := model.LedgerEntry{
		Employee:      name,
		MessagingID:   req.MessagingID,
		ClockIn:       ts,
		Note:          req.Note,
		EntryCoords:   coords,
		EntryLocation: place,
	}
	ledgerRow, err := s.gw.AppendRow(ctx, model.DatasetLedger, entry.Cells())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("employee", name).Msg("Failed to append ledger row")
		return failure(err)
	}

	session := model.WorkSession{
		SystemName:    name,
		EmployeeName:  s.rosterName(ctx, name),
		ClockIn:       ts,
		Note:          req.Note,
		Coordinates:   coords,
		Location:      place,
		MessagingID:   req.MessagingID,
		MessagingName: req.MessagingName,
		LedgerRow:     ledgerRow,
	}
	if _, err := s.gw.AppendRow(ctx, model.DatasetSessions, session.Cells()); err != nil {
		// The ledger row stays open; a later clock-out finds it through the
		// name-based strategies once the session is re-created.
		log.Ctx(ctx).Error().Err(err).Str("employee", name).Int("ledger_row", ledgerRow).Msg("Failed to append session row, ledger row left open")
		s.gw.Invalidate(model.DatasetLedger, model.DatasetStats)
		return failure(err)
	}
	s.gw.Invalidate(model.DatasetSessions, model.DatasetLedger, model.DatasetStats)

	log.Ctx(ctx).Info().Str("employee", name).Int("ledger_row", ledgerRow).Str("time", ts).Msg("Clocked in")
	s.notify(ctx, messaging.ActionClockIn, messaging.ClockEvent{
		Employee:    name,
		Time:        ts,
		Coordinates: coords,
		Location:    place,
		LedgerRow:   ledgerRow,
		Note:        req.Note,
	})

	return model.ClockResult{Success: true, Message: "clocked in", Time: ts}
}

// ClockOut closes name's open session: it locates the paired ledger row,
// fills in the clock-out cells and deletes the session.
func (s *AttendanceService) ClockOut(ctx context.Context, req model.ClockRequest) model.ClockResult {
	ctx, span := otel.Tracer("attendance-service").Start(ctx, "attendance.clock_out")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	key := identity.Normalize(name)
	if key == "" {
		return failure(fmt.Errorf("%w: name is required", model.ErrValidation))
	}
	span.SetAttributes(attribute.String("app.employeeId", name))

	unlock := s.locks.Lock(key)
	defer unlock()

	snap, err := s.gw.Fetch(ctx, model.DatasetSessions)
	if err != nil {
		return failure(err)
	}
	sessions := model.WorkSessions(snap.Rows)
	session, ok := findSession(sessions, name)
	if !ok {
		return model.ClockResult{
			Code:       model.CodeNotClockedIn,
			Message:    fmt.Sprintf("%s is not clocked in", name),
			Candidates: identity.Suggestions(name, sessionNames(sessions)),
		}
	}

	at, err := s.resolveTime(req.TimeOverride)
	if err != nil {
		return failure(err)
	}
	ts := worktime.Format(at, s.loc)
	hours := s.hours(ctx, session, ts)
	coords, place := s.place(ctx, req.Lat, req.Lon)

	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	defer s.gw.Invalidate(model.DatasetSessions, model.DatasetLedger, model.DatasetStats)

	current, err := s.refind(ctx, session)
	if errors.Is(err, model.ErrNotFound) {
		return model.ClockResult{Code: model.CodeNotClockedIn, Message: fmt.Sprintf("%s is not clocked in", name)}
	}
	if err != nil {
		return failure(err)
	}
	ledger, err := s.ledgerEntries(ctx)
	if err != nil {
		return failure(err)
	}

	entry, stage, err := s.closeSession(ctx, ledger, current, map[model.Column]string{
		model.LedgerClockOut:     ts,
		model.LedgerExitCoords:   coords,
		model.LedgerExitLocation: place,
		model.LedgerWorkingHours: worktime.FormatHours(hours),
		model.LedgerExitNote:     req.Note,
	})
	if err != nil {
		return failure(err)
	}
	span.SetAttributes(attribute.String("app.stage", stage), attribute.Int("app.ledger_row", entry.Row))
	if stage == StageAlreadyClosed {
		return model.ClockResult{
			Success: true,
			Message: "session removed, ledger row was already closed",
			Time:    entry.ClockOut,
			Stage:   stage,
		}
	}

	log.Ctx(ctx).Info().Str("employee", name).Str("stage", stage).Int("ledger_row", entry.Row).Float64("hours", hours).Msg("Clocked out")
	s.notify(ctx, messaging.ActionClockOut, messaging.ClockEvent{
		Employee:    name,
		Time:        ts,
		Hours:       hours,
		Coordinates: coords,
		Location:    place,
		LedgerRow:   entry.Row,
		Note:        req.Note,
	})

	return model.ClockResult{
		Success: true,
		Message: "clocked out",
		Time:    ts,
		Hours:   hours,
		Stage:   stage,
	}
}

// OpenSessions returns every open session. Unlike GetStatus it fails when
// the table cannot be read at all.
func (s *AttendanceService) OpenSessions(ctx context.Context) ([]model.WorkSession, error) {
	snap, err := s.gw.Fetch(ctx, model.DatasetSessions)
	if err != nil {
		return nil, err
	}
	return model.WorkSessions(snap.Rows), nil
}

// ForceClose closes session at the given instant with note written into the
// ledger note cell. session may come from an older read: it is matched
// against the current table before anything is written.
func (s *AttendanceService) ForceClose(ctx context.Context, session model.WorkSession, at time.Time, note string) error {
	return s.CloseSessions(ctx, []model.WorkSession{session}, at, note)[0]
}

// CloseSessions force-closes every session at the given instant and returns
// one error per session, nil for those that closed. The sessions and ledger
// tables are each read once for the whole batch, so the call budget spent
// does not grow with the number of sessions beyond their writes.
func (s *AttendanceService) CloseSessions(ctx context.Context, sessions []model.WorkSession, at time.Time, note string) []error {
	errs := make([]error, len(sessions))
	if len(sessions) == 0 {
		return errs
	}
	fail := func(i int, err error) {
		errs[i] = fmt.Errorf("force close %s: %w", sessionName(sessions[i]), err)
	}

	s.tableMu.Lock()
	defer s.tableMu.Unlock()
	defer s.gw.Invalidate(model.DatasetSessions, model.DatasetLedger, model.DatasetStats)

	snap, err := s.gw.Refresh(ctx, model.DatasetSessions)
	if err != nil {
		for i := range sessions {
			fail(i, err)
		}
		return errs
	}
	ledger, err := s.ledgerEntries(ctx)
	if err != nil {
		for i := range sessions {
			fail(i, err)
		}
		return errs
	}

	type target struct {
		idx     int
		current model.WorkSession
	}
	current := model.WorkSessions(snap.Rows)
	targets := make([]target, 0, len(sessions))
	for i, ss := range sessions {
		cur, ok := matchSession(current, ss)
		if !ok {
			fail(i, model.ErrNotFound)
			continue
		}
		targets = append(targets, target{idx: i, current: cur})
	}
	// Deleting a row shifts the rows below it up, so go bottom-up.
	sort.Slice(targets, func(i, j int) bool { return targets[i].current.Row > targets[j].current.Row })

	ts := worktime.Format(at, s.loc)
	for _, t := range targets {
		name := sessionName(t.current)
		hours := s.hours(ctx, t.current, ts)
		entry, stage, err := s.closeSession(ctx, ledger, t.current, map[model.Column]string{
			model.LedgerNote:         note,
			model.LedgerClockOut:     ts,
			model.LedgerWorkingHours: worktime.FormatHours(hours),
		})
		if err != nil {
			fail(t.idx, err)
			continue
		}
		log.Ctx(ctx).Info().Str("employee", name).Str("stage", stage).Int("ledger_row", entry.Row).Float64("hours", hours).Msg("Session force closed")
	}
	return errs
}

// closeSession writes cells into the session's ledger row, then deletes the
// session. session must carry its row number from a read taken under
// tableMu. The closed row is marked in ledger so later lookups against the
// same snapshot skip it.
func (s *AttendanceService) closeSession(ctx context.Context, ledger []model.LedgerEntry, session model.WorkSession, cells map[model.Column]string) (model.LedgerEntry, string, error) {
	name := sessionName(session)
	hint := reconcile.Hint{Name: name, Session: session, Location: s.loc}

	entry, stage, ok := reconcile.Locate(ledger, hint)
	if ok {
		if err := s.gw.UpdateCells(ctx, model.DatasetLedger, entry.Row, cells); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("employee", name).Int("ledger_row", entry.Row).Msg("Failed to update ledger row")
			return model.LedgerEntry{}, "", err
		}
		markClosed(ledger, entry.Row, cells[model.LedgerClockOut])
	} else {
		entry, ok = reconcile.AlreadyClosed(ledger, hint)
		if !ok {
			return model.LedgerEntry{}, "", model.ErrNotFound
		}
		stage = StageAlreadyClosed
		log.Ctx(ctx).Warn().Str("employee", name).Int("ledger_row", entry.Row).Msg("Ledger row already closed, removing leftover session")
	}

	if err := s.gw.DeleteRow(ctx, model.DatasetSessions, session.Row); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("employee", name).Int("session_row", session.Row).Msg("Ledger closed but session row could not be deleted")
		return model.LedgerEntry{}, "", err
	}
	return entry, stage, nil
}

// refind reads the sessions table afresh and returns session at its current
// row, or ErrNotFound once it has been closed. Callers hold tableMu.
func (s *AttendanceService) refind(ctx context.Context, session model.WorkSession) (model.WorkSession, error) {
	snap, err := s.gw.Refresh(ctx, model.DatasetSessions)
	if err != nil {
		return model.WorkSession{}, err
	}
	cur, ok := matchSession(model.WorkSessions(snap.Rows), session)
	if !ok {
		return model.WorkSession{}, model.ErrNotFound
	}
	return cur, nil
}

// Notify sends n through the configured notifier without waiting for it.
func (s *AttendanceService) Notify(ctx context.Context, n messaging.Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = s.clock.Now()
	}
	s.tasks.Go(ctx, "notify "+n.Action, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, n)
	})
}

func (s *AttendanceService) notify(ctx context.Context, action string, ev messaging.ClockEvent) {
	s.Notify(ctx, messaging.Notification{Action: action, Data: ev})
}

// ledgerEntries reads the ledger strictly.
func (s *AttendanceService) ledgerEntries(ctx context.Context) ([]model.LedgerEntry, error) {
	snap, err := s.gw.Fetch(ctx, model.DatasetLedger)
	if err != nil {
		return nil, err
	}
	if snap.Stale {
		log.Ctx(ctx).Warn().Msg("Locating ledger row on stale data")
	}
	return model.LedgerEntries(snap.Rows), nil
}

// hours is the worked time between the session's clock-in and clockOut,
// floored at zero.
func (s *AttendanceService) hours(ctx context.Context, session model.WorkSession, clockOut string) float64 {
	h, negative, err := worktime.Hours(session.ClockIn, clockOut, s.loc)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("clock_in", session.ClockIn).Msg("Cannot compute worked hours")
		return 0
	}
	if negative {
		log.Ctx(ctx).Warn().Str("clock_in", session.ClockIn).Str("clock_out", clockOut).Msg("Clock-out precedes clock-in, hours set to 0")
	}
	return h
}

func (s *AttendanceService) elapsed(session model.WorkSession) float64 {
	in, err := worktime.Parse(session.ClockIn, s.loc)
	if err != nil {
		return 0
	}
	h, _ := worktime.Elapsed(in, s.clock.Now())
	return h
}

func (s *AttendanceService) resolveTime(override string) (time.Time, error) {
	if strings.TrimSpace(override) == "" {
		return s.clock.Now(), nil
	}
	t, err := worktime.Parse(override, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time override: %w", model.ErrValidation, err)
	}
	return t, nil
}

// place returns the coordinate literal and a place label. A failed or slow
// lookup falls back to the literal; no coordinates means no label.
func (s *AttendanceService) place(ctx context.Context, lat, lon *float64) (coords, label string) {
	if lat == nil || lon == nil {
		return "", ""
	}
	coords = geocoding.CoordinateLabel(*lat, *lon)

	gctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()
	label, err := s.geocoder.Reverse(gctx, *lat, *lon)
	if err != nil || strings.TrimSpace(label) == "" {
		if err != nil && !errors.Is(err, geocoding.ErrDisabled) {
			log.Ctx(ctx).Warn().Err(err).Str("coords", coords).Msg("Reverse geocoding failed")
		}
		return coords, coords
	}
	return coords, label
}

// rosterName returns the roster spelling of name when exactly one roster
// entry matches it.
func (s *AttendanceService) rosterName(ctx context.Context, name string) string {
	snap := s.gw.SafeFetch(ctx, model.DatasetRoster)
	names := make([]string, 0, len(snap.Rows))
	for _, e := range model.Employees(snap.Rows) {
		names = append(names, e.Name)
	}
	if c := identity.Candidates(name, names); len(c) == 1 {
		return c[0]
	}
	return name
}

func findSession(sessions []model.WorkSession, name string) (model.WorkSession, bool) {
	for _, ss := range sessions {
		if identity.IsMatch(ss.SystemName, name) || identity.IsMatch(ss.EmployeeName, name) {
			return ss, true
		}
	}
	return model.WorkSession{}, false
}

// matchSession finds target in sessions by its content, ignoring the row
// number it was read at.
func matchSession(sessions []model.WorkSession, target model.WorkSession) (model.WorkSession, bool) {
	for _, ss := range sessions {
		if ss.LedgerRow == target.LedgerRow &&
			ss.ClockIn == target.ClockIn &&
			identity.Normalize(ss.SystemName) == identity.Normalize(target.SystemName) &&
			identity.Normalize(ss.EmployeeName) == identity.Normalize(target.EmployeeName) {
			return ss, true
		}
	}
	return model.WorkSession{}, false
}

// markClosed records a clock-out on the entry at row so it no longer reads
// as open.
func markClosed(ledger []model.LedgerEntry, row int, clockOut string) {
	for i := range ledger {
		if ledger[i].Row == row {
			ledger[i].ClockOut = clockOut
			return
		}
	}
}

func sessionNames(sessions []model.WorkSession) []string {
	names := make([]string, 0, 2*len(sessions))
	for _, ss := range sessions {
		names = append(names, ss.SystemName, ss.EmployeeName)
	}
	return names
}

func sessionName(session model.WorkSession) string {
	if strings.TrimSpace(session.SystemName) != "" {
		return session.SystemName
	}
	return session.EmployeeName
}

func failure(err error) model.ClockResult {
	return model.ClockResult{Code: model.CodeFor(err), Message: err.Error()}
}
