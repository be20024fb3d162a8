package memstore

import (
	"context"
	"errors"
	"testing"

	"attendance.service/internal/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendUpdateDeleteKeepsSheetRows(t *testing.T) {
	ctx := context.Background()
	s := New()

	r1, err := s.AppendRow(ctx, model.DatasetSessions, []string{"a"})
	require.NoError(t, err)
	r2, err := s.AppendRow(ctx, model.DatasetSessions, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, 2, r1)
	assert.Equal(t, 3, r2)

	require.NoError(t, s.UpdateCells(ctx, model.DatasetSessions, 3, map[model.Column]string{2: "x"}))
	require.NoError(t, s.DeleteRow(ctx, model.DatasetSessions, 2))

	rows, err := s.ReadRows(ctx, model.DatasetSessions)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Number, "rows below a deleted row shift up")
	assert.Equal(t, []string{"b", "", "x"}, rows[0].Cells)
}

func TestStore_OutOfRange(t *testing.T) {
	s := New()
	err := s.DeleteRow(context.Background(), model.DatasetLedger, 2)
	assert.Error(t, err)
}

func TestStore_FailNextIsOneShot(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailNext(boom)

	_, err := s.ReadRows(context.Background(), model.DatasetRoster)
	assert.ErrorIs(t, err, boom)
	_, err = s.ReadRows(context.Background(), model.DatasetRoster)
	assert.NoError(t, err)
	assert.Equal(t, 1, s.Reads(model.DatasetRoster))
}
