package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

var titles = map[model.Dataset]string{
	model.DatasetSessions: "OnWork",
	model.DatasetLedger:   "Attendance",
}

type request struct {
	method string
	path   string
	body   string
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []request
	handler  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, request{method: r.Method, path: r.URL.Path, body: string(b)})
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	f.handler(w, r)
}

func newStore(t *testing.T, h func(w http.ResponseWriter, r *http.Request)) (*Store, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handler: h}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	svc, err := sheetsapi.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return NewWithService(svc, "sheet-1", titles), api
}

func TestReadRows_NumbersFromBelowHeader(t *testing.T) {
	s, api := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"range":"'Attendance'!A2:Z4","values":[["Anna","","10/03/2025 08:00:00"],[],["Malee"]]}`))
	})

	rows, err := s.ReadRows(context.Background(), model.DatasetLedger)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[0].Number)
	assert.Equal(t, "Anna", rows[0].Cells[0])
	assert.Empty(t, rows[1].Cells)
	assert.Equal(t, 4, rows[2].Number)

	require.Len(t, api.requests, 1)
	assert.Equal(t, "/v4/spreadsheets/sheet-1/values/'Attendance'!A2:Z", api.requests[0].path)
}

func TestAppendRow_ReturnsRowNumber(t *testing.T) {
	s, api := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"))
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'OnWork'!A7:I7"}}`))
	})

	row, err := s.AppendRow(context.Background(), model.DatasetSessions, []string{"Anna", "Anna", "10/03/2025 08:00:00"})
	require.NoError(t, err)
	assert.Equal(t, 7, row)

	var body sheetsapi.ValueRange
	require.NoError(t, json.Unmarshal([]byte(api.requests[0].body), &body))
	assert.Equal(t, []interface{}{"Anna", "Anna", "10/03/2025 08:00:00"}, body.Values[0])
}

func TestUpdateCells_AddressesEachCell(t *testing.T) {
	s, api := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	err := s.UpdateCells(context.Background(), model.DatasetLedger, 5, map[model.Column]string{
		model.LedgerClockOut:     "10/03/2025 17:30:00",
		model.LedgerWorkingHours: "9.50",
	})
	require.NoError(t, err)

	var body sheetsapi.BatchUpdateValuesRequest
	require.NoError(t, json.Unmarshal([]byte(api.requests[0].body), &body))
	ranges := map[string]interface{}{}
	for _, d := range body.Data {
		ranges[d.Range] = d.Values[0][0]
	}
	assert.Equal(t, map[string]interface{}{
		"'Attendance'!E5": "10/03/2025 17:30:00",
		"'Attendance'!J5": "9.50",
	}, ranges)
}

func TestDeleteRow_ResolvesSheetIDOnce(t *testing.T) {
	s, api := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"OnWork","sheetId":0}},{"properties":{"title":"Attendance","sheetId":42}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	ctx := context.Background()

	require.NoError(t, s.DeleteRow(ctx, model.DatasetSessions, 3))
	require.NoError(t, s.DeleteRow(ctx, model.DatasetSessions, 2))
	require.Len(t, api.requests, 3)

	var body sheetsapi.BatchUpdateSpreadsheetRequest
	require.NoError(t, json.Unmarshal([]byte(api.requests[1].body), &body))
	rng := body.Requests[0].DeleteDimension.Range
	assert.Equal(t, int64(0), rng.SheetId)
	assert.Equal(t, "ROWS", rng.Dimension)
	assert.Equal(t, int64(2), rng.StartIndex)
	assert.Equal(t, int64(3), rng.EndIndex)
	assert.Contains(t, api.requests[1].body, `"sheetId":0`)

	assert.Error(t, s.DeleteRow(ctx, model.DatasetSessions, 1), "header row")
}

func TestQuotaErrorsAreClassified(t *testing.T) {
	s, _ := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for quota metric 'Read requests'","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := s.ReadRows(context.Background(), model.DatasetLedger)
	assert.ErrorIs(t, err, repository.ErrQuotaExceeded)
}

func TestIsQuota(t *testing.T) {
	assert.True(t, IsQuota(&googleapi.Error{Code: 429}))
	assert.True(t, IsQuota(&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}))
	assert.False(t, IsQuota(&googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}))
	assert.False(t, IsQuota(&googleapi.Error{Code: 500}))
	assert.False(t, IsQuota(errors.New("429")))
}

func TestUnknownTable(t *testing.T) {
	s, _ := newStore(t, func(http.ResponseWriter, *http.Request) {})
	_, err := s.ReadRows(context.Background(), model.DatasetRoster)
	assert.Error(t, err)
}

func TestUpdatedRow(t *testing.T) {
	cases := map[string]int{
		"'OnWork'!A5:I5":       5,
		"Attendance!A120:K120": 120,
		"'It''s'!B3":           3,
	}
	for in, want := range cases {
		got, err := UpdatedRow(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := UpdatedRow("Attendance")
	assert.Error(t, err)
}
