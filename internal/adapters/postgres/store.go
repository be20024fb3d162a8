package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"attendance.service/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Store keeps each dataset as ordered rows of a single table, so row
// numbers behave as on a sheet: rank by id, offset by the header row.
// Deleting a row shifts every row below it up by one.
type Store struct {
	DB *sql.DB
}

// NewStore create new instance
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

const schema = `CREATE TABLE IF NOT EXISTS sheet_rows (
    id         BIGSERIAL PRIMARY KEY,
    table_name TEXT NOT NULL,
    cells      JSONB NOT NULL DEFAULT '[]'::jsonb
);
CREATE INDEX IF NOT EXISTS sheet_rows_table_id_idx ON sheet_rows (table_name, id);`

// Migrate creates the backing table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sheet_rows: %w", err)
	}
	return nil
}

func (s *Store) ReadRows(ctx context.Context, table model.Dataset) ([]model.Row, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.dataset", string(table)))

	query := `SELECT cells FROM sheet_rows WHERE table_name = $1 ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, string(table))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		cells, err := decodeCells(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		out = append(out, model.Row{Number: rowNumber(len(out)), Cells: cells})
	}
	return out, rows.Err()
}

func (s *Store) AppendRow(ctx context.Context, table model.Dataset, cells []string) (int, error) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.dataset", string(table)))

	raw, err := encodeCells(cells)
	if err != nil {
		return 0, err
	}

	// Rows inserted concurrently with a lower id are counted, so the
	// returned number is the row's position at commit time.
	query := `WITH ins AS (
                INSERT INTO sheet_rows (table_name, cells) VALUES ($1, $2) RETURNING id
              )
              SELECT count(r.id) FROM ins LEFT JOIN sheet_rows r
                ON r.table_name = $1 AND r.id < ins.id`

	var before int
	if err := s.DB.QueryRowContext(ctx, query, string(table), raw).Scan(&before); err != nil {
		return 0, fmt.Errorf("append %s: %w", table, err)
	}
	return rowNumber(before), nil
}

func (s *Store) UpdateCells(ctx context.Context, table model.Dataset, row int, cells map[model.Column]string) error {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("app.dataset", string(table)),
		attribute.Int("app.row", row),
	)

	offset, err := rowOffset(table, row)
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id  int64
		raw []byte
	)
	query := `SELECT id, cells FROM sheet_rows WHERE table_name = $1
              ORDER BY id OFFSET $2 LIMIT 1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, query, string(table), offset).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("row %d out of range for %s", row, table)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}

	current, err := decodeCells(raw)
	if err != nil {
		return fmt.Errorf("decode %s row %d: %w", table, row, err)
	}
	merged, err := encodeCells(mergeCells(current, cells))
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sheet_rows SET cells = $1 WHERE id = $2`, merged, id); err != nil {
		return fmt.Errorf("update %s row %d: %w", table, row, err)
	}
	return tx.Commit()
}

func (s *Store) DeleteRow(ctx context.Context, table model.Dataset, row int) error {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("app.dataset", string(table)),
		attribute.Int("app.row", row),
	)

	offset, err := rowOffset(table, row)
	if err != nil {
		return err
	}

	query := `DELETE FROM sheet_rows WHERE id = (
                SELECT id FROM sheet_rows WHERE table_name = $1 ORDER BY id OFFSET $2 LIMIT 1
              )`
	res, err := s.DB.ExecContext(ctx, query, string(table), offset)
	if err != nil {
		return fmt.Errorf("delete %s row %d: %w", table, row, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s row %d: %w", table, row, err)
	}
	if n == 0 {
		return fmt.Errorf("row %d out of range for %s", row, table)
	}
	return nil
}

func rowNumber(index int) int {
	return index + model.HeaderRows + 1
}

func rowOffset(table model.Dataset, row int) (int, error) {
	offset := row - model.HeaderRows - 1
	if offset < 0 {
		return 0, fmt.Errorf("row %d out of range for %s", row, table)
	}
	return offset, nil
}

// mergeCells writes cells over current, padding with blanks when a column
// lies past the end of the row.
func mergeCells(current []string, cells map[model.Column]string) []string {
	out := append([]string(nil), current...)
	for col, v := range cells {
		for int(col) >= len(out) {
			out = append(out, "")
		}
		out[col] = v
	}
	return out
}

func encodeCells(cells []string) ([]byte, error) {
	if cells == nil {
		cells = []string{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cells: %w", err)
	}
	return b, nil
}

func decodeCells(raw []byte) ([]string, error) {
	var cells []string
	if len(raw) == 0 {
		return []string{}, nil
	}
	if err := json.Unmarshal(raw, &cells); err != nil {
		return nil, err
	}
	if cells == nil {
		cells = []string{}
	}
	return cells, nil
}
