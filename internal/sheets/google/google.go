package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"tracker/internal/core"
	ports "tracker/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const defaultSheetName = "Expenses"

var header = []any{"ID", "Expense", "Price", "Date"}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.ExpenseExporter = (*Client)(nil)

// Options configures New. One of CredentialsJSON or CredentialsFile is
// required; CredentialsFile falls back to GOOGLE_APPLICATION_CREDENTIALS.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets exporter authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	credentialsJSON, err := loadCredentials(ctx, opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully",
		"spreadsheet_id", opts.SpreadsheetID,
		"sheet", opts.SheetName)

	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = defaultSheetName
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func loadCredentials(ctx context.Context, opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(inline), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// UpsertExpense rewrites the row whose column A holds e.ID, or appends a new
// row. An empty sheet gets a header row first.
func (c *Client) UpsertExpense(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}

	row := []any{e.ID, e.Name, e.Price.Float64(), e.Date.String()}

	if n := findRow(ids, e.ID); n > 0 {
		rng := fmt.Sprintf("%s!A%d:D%d", c.quotedSheet(), n, n)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{row}}).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		slog.DebugContext(ctx, "Expense row updated in sheet", "id", e.ID, "row", n)
		return nil
	}

	values := [][]any{row}
	if len(ids) == 0 {
		values = [][]any{header, row}
	}
	rng := fmt.Sprintf("%s!A:D", c.quotedSheet())
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Expense row appended to sheet", "id", e.ID)
	return nil
}

// RemoveExpense clears the row holding id. A missing row is ignored.
func (c *Client) RemoveExpense(ctx context.Context, id int64) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}

	n := findRow(ids, id)
	if n == 0 {
		slog.DebugContext(ctx, "Expense not present in sheet, nothing to remove", "id", id)
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:D%d", c.quotedSheet(), n, n)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	slog.DebugContext(ctx, "Expense row cleared in sheet", "id", id, "row", n)
	return nil
}

// ExportedIDs lists the expense ids in column A, skipping the header and
// rows cleared by RemoveExpense.
func (c *Client) ExportedIDs(ctx context.Context) ([]int64, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	cells, err := c.readIDs(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(cells))
	for _, v := range cells {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// readIDs returns column A as strings, one entry per sheet row.
func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	rng := fmt.Sprintf("%s!A:A", c.quotedSheet())
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out, nil
}

func (c *Client) quotedSheet() string {
	return "'" + strings.ReplaceAll(c.sheetName, "'", "''") + "'"
}

// findRow returns the 1-based sheet row holding id, or 0.
func findRow(ids []string, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, v := range ids {
		if v == want {
			return i + 1
		}
	}
	return 0
}
