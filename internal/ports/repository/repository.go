package repository

import (
	"context"
	"errors"

	"attendance.service/internal/core/model"
)

// SheetStore is the contract of the remote spreadsheet backend. Row numbers
// are 1-based sheet rows; row 1 is the header. Deleting a row shifts every
// row below it up by one, as a spreadsheet does.
type SheetStore interface {
	ReadRows(ctx context.Context, table model.Dataset) ([]model.Row, error)
	AppendRow(ctx context.Context, table model.Dataset, cells []string) (int, error)
	// UpdateCells writes only the given columns of one row.
	UpdateCells(ctx context.Context, table model.Dataset, row int, cells map[model.Column]string) error
	DeleteRow(ctx context.Context, table model.Dataset, row int) error
}

// ErrQuotaExceeded is wrapped by adapters when the backend reports that a
// quota or rate limit was hit.
var ErrQuotaExceeded = errors.New("remote quota exceeded")
