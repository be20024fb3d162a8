package memstore

import (
	"context"
	"fmt"
	"sync"

	"attendance.service/internal/core/model"
)

// Store is an in-process SheetStore. It keeps sheet row semantics so the
// reconciler sees the same row numbers it would see remotely.
type Store struct {
	mu     sync.Mutex
	tables map[model.Dataset][][]string
	// failNext, when set, is returned (and cleared) by the next call.
	failNext error
	reads    map[model.Dataset]int
}

func New() *Store {
	return &Store{
		tables: make(map[model.Dataset][][]string),
		reads:  make(map[model.Dataset]int),
	}
}

// Seed replaces a table's data rows.
func (s *Store) Seed(table model.Dataset, rows ...[]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	s.tables[table] = cp
}

// FailNext makes the next call of any kind return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Reads returns how many times table was read.
func (s *Store) Reads(table model.Dataset) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[table]
}

func (s *Store) ReadRows(_ context.Context, table model.Dataset) ([]model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	s.reads[table]++
	data := s.tables[table]
	out := make([]model.Row, 0, len(data))
	for i, cells := range data {
		out = append(out, model.Row{
			Number: i + model.HeaderRows + 1,
			Cells:  append([]string(nil), cells...),
		})
	}
	return out, nil
}

func (s *Store) AppendRow(_ context.Context, table model.Dataset, cells []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return 0, err
	}
	s.tables[table] = append(s.tables[table], append([]string(nil), cells...))
	return len(s.tables[table]) + model.HeaderRows, nil
}

func (s *Store) UpdateCells(_ context.Context, table model.Dataset, row int, cells map[model.Column]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	idx, err := s.index(table, row)
	if err != nil {
		return err
	}
	r := s.tables[table][idx]
	for col, v := range cells {
		for int(col) >= len(r) {
			r = append(r, "")
		}
		r[col] = v
	}
	s.tables[table][idx] = r
	return nil
}

func (s *Store) DeleteRow(_ context.Context, table model.Dataset, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	idx, err := s.index(table, row)
	if err != nil {
		return err
	}
	data := s.tables[table]
	s.tables[table] = append(data[:idx], data[idx+1:]...)
	return nil
}

func (s *Store) index(table model.Dataset, row int) (int, error) {
	idx := row - model.HeaderRows - 1
	if idx < 0 || idx >= len(s.tables[table]) {
		return 0, fmt.Errorf("row %d out of range for %s", row, table)
	}
	return idx, nil
}

func (s *Store) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}
