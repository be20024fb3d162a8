// Package sheets stores the attendance tables in a Google spreadsheet, one
// tab per table, with a header row above the data.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// lastColumn bounds reads; every table fits in A..Z.
const lastColumn = "Z"

type Store struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	titles        map[model.Dataset]string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// New authenticates with the service account in credentialsFile, or with
// application default credentials when it is empty.
func New(ctx context.Context, spreadsheetID, credentialsFile string, titles map[model.Dataset]string) (*Store, error) {
	var creds *google.Credentials
	var err error
	if credentialsFile != "" {
		data, rerr := os.ReadFile(credentialsFile)
		if rerr != nil {
			return nil, fmt.Errorf("reading sheets credentials: %w", rerr)
		}
		creds, err = google.CredentialsFromJSON(ctx, data, sheetsapi.SpreadsheetsScope)
	} else {
		creds, err = google.FindDefaultCredentials(ctx, sheetsapi.SpreadsheetsScope)
	}
	if err != nil {
		return nil, fmt.Errorf("loading sheets credentials: %w", err)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: otelhttp.NewTransport(&oauth2.Transport{
			Source: creds.TokenSource,
			Base:   http.DefaultTransport,
		}),
	}
	svc, err := sheetsapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, titles), nil
}

// NewWithService wraps an existing client.
func NewWithService(svc *sheetsapi.Service, spreadsheetID string, titles map[model.Dataset]string) *Store {
	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		titles:        titles,
		sheetIDs:      make(map[string]int64),
	}
}

func (s *Store) ReadRows(ctx context.Context, table model.Dataset) ([]model.Row, error) {
	title, err := s.title(table)
	if err != nil {
		return nil, err
	}
	rng := fmt.Sprintf("%s!A%d:%s", quote(title), model.HeaderRows+1, lastColumn)
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Sprintf("read %s", table), err)
	}

	rows := make([]model.Row, 0, len(resp.Values))
	for i, values := range resp.Values {
		cells := make([]string, len(values))
		for j, v := range values {
			cells[j] = fmt.Sprint(v)
		}
		rows = append(rows, model.Row{Number: i + model.HeaderRows + 1, Cells: cells})
	}
	return rows, nil
}

func (s *Store) AppendRow(ctx context.Context, table model.Dataset, cells []string) (int, error) {
	title, err := s.title(table)
	if err != nil {
		return 0, err
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	resp, err := s.svc.Spreadsheets.Values.
		Append(s.spreadsheetID, quote(title)+"!A1", &sheetsapi.ValueRange{Values: [][]interface{}{values}}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return 0, classify(fmt.Sprintf("append %s", table), err)
	}
	if resp.Updates == nil {
		return 0, fmt.Errorf("append %s: response has no updated range", table)
	}
	return UpdatedRow(resp.Updates.UpdatedRange)
}

func (s *Store) UpdateCells(ctx context.Context, table model.Dataset, row int, cells map[model.Column]string) error {
	title, err := s.title(table)
	if err != nil {
		return err
	}
	data := make([]*sheetsapi.ValueRange, 0, len(cells))
	for col, v := range cells {
		data = append(data, &sheetsapi.ValueRange{
			Range:  fmt.Sprintf("%s!%s%d", quote(title), col.Letter(), row),
			Values: [][]interface{}{{v}},
		})
	}
	_, err = s.svc.Spreadsheets.Values.BatchUpdate(s.spreadsheetID, &sheetsapi.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	if err != nil {
		return classify(fmt.Sprintf("update %s row %d", table, row), err)
	}
	return nil
}

// DeleteRow removes the row and shifts everything below it up by one.
func (s *Store) DeleteRow(ctx context.Context, table model.Dataset, row int) error {
	if row <= model.HeaderRows {
		return fmt.Errorf("delete %s: row %d is a header row", table, row)
	}
	title, err := s.title(table)
	if err != nil {
		return err
	}
	sheetID, err := s.sheetID(ctx, title)
	if err != nil {
		return err
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			DeleteDimension: &sheetsapi.DeleteDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
					// SheetId 0 is a valid tab id
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return classify(fmt.Sprintf("delete %s row %d", table, row), err)
	}
	return nil
}

// sheetID resolves a tab title to the numeric id row deletion needs.
func (s *Store) sheetID(ctx context.Context, title string) (int64, error) {
	s.mu.Lock()
	id, ok := s.sheetIDs[title]
	s.mu.Unlock()
	if ok {
		return id, nil
	}

	resp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, classify("resolve sheet ids", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sh := range resp.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok = s.sheetIDs[title]
	if !ok {
		return 0, fmt.Errorf("sheet %q not found in spreadsheet", title)
	}
	return id, nil
}

func (s *Store) title(table model.Dataset) (string, error) {
	t, ok := s.titles[table]
	if !ok || t == "" {
		return "", fmt.Errorf("no sheet configured for table %s", table)
	}
	return t, nil
}

func quote(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

var updatedRowRE = regexp.MustCompile(`![A-Z]+(\d+)`)

// UpdatedRow extracts the first row number from an A1 range such as
// "'OnWork'!A5:I5".
func UpdatedRow(a1 string) (int, error) {
	m := updatedRowRE.FindStringSubmatch(a1)
	if m == nil {
		return 0, fmt.Errorf("cannot read row from range %q", a1)
	}
	return strconv.Atoi(m[1])
}

// classify marks Google quota and rate-limit responses with
// repository.ErrQuotaExceeded.
func classify(what string, err error) error {
	if IsQuota(err) {
		return fmt.Errorf("%s: %w: %w", what, repository.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func IsQuota(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return true
	}
	if gerr.Code == http.StatusForbidden {
		for _, e := range gerr.Errors {
			switch e.Reason {
			case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
				return true
			}
		}
	}
	return false
}
