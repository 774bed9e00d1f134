// Package google keeps the section document in one cell of a Google
// Spreadsheet. Cell A1 of the configured sheet holds the whole JSON array,
// written with the RAW input option so Sheets never reinterprets it.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"networth/internal/core"
	applog "networth/internal/log"
	"networth/internal/sections"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// MaxCellLength is the Sheets limit on characters in a single cell.
const MaxCellLength = 50000

// DefaultSheetName is used when GOOGLE_SHEET_NAME is unset.
const DefaultSheetName = "NetWorth"

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger

	mu sync.Mutex
}

var _ sections.Store = (*Client)(nil)

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if sheetName == "" {
		sheetName = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        slog.Default().With(applog.FieldComponent, applog.ComponentSheets, "spreadsheet_id", spreadsheetID),
	}
}

// Options locate the spreadsheet and its service account credentials.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional: GOOGLE_SHEET_NAME (default "NetWorth").
func NewFromEnv(ctx context.Context) (*Client, error) {
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return NewWithOptions(ctx, Options{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:       strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: file,
	})
}

// NewWithOptions creates a Sheets client authenticated with a service account.
func NewWithOptions(ctx context.Context, opts Options) (*Client, error) {
	if opts.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, opts.SpreadsheetID, opts.SheetName), nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", applog.FieldComponent, applog.ComponentSheets)
	return service, nil
}

func (c *Client) cell() string {
	return fmt.Sprintf("'%s'!A1", strings.ReplaceAll(c.sheetName, "'", "''"))
}

// ReadAll implements sections.SectionReader
func (c *Client) ReadAll(ctx context.Context) ([]core.Section, error) {
	return c.read(ctx)
}

// ReadByName implements sections.SectionReader
func (c *Client) ReadByName(ctx context.Context, name string) (core.Section, error) {
	all, err := c.read(ctx)
	if err != nil {
		return core.Section{}, err
	}
	return sections.FindByName(all, name)
}

// SaveSection implements sections.SectionWriter
func (c *Client) SaveSection(ctx context.Context, index int, s core.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	all, err := c.read(ctx)
	if err != nil {
		return err
	}
	next, err := sections.Replace(all, index, s)
	if err != nil {
		return err
	}
	return c.write(ctx, next)
}

// SaveAll implements sections.SectionWriter
func (c *Client) SaveAll(ctx context.Context, all []core.Section) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(ctx, all)
}

func (c *Client) read(ctx context.Context) ([]core.Section, error) {
	if c.svc == nil {
		return nil, fmt.Errorf("sheets service not initialized: %w", sections.ErrIOFailure)
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.cell()).Context(ctx).Do()
	if err != nil {
		return nil, c.classify(ctx, "read document", err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, fmt.Errorf("sheet %s: %w", c.sheetName, sections.ErrNotFound)
	}
	body := fmt.Sprint(resp.Values[0][0])
	return sections.Decode([]byte(body))
}

func (c *Client) write(ctx context.Context, all []core.Section) error {
	if c.svc == nil {
		return fmt.Errorf("sheets service not initialized: %w", sections.ErrIOFailure)
	}
	body, err := sections.Encode(all)
	if err != nil {
		return fmt.Errorf("%v: %w", err, sections.ErrIOFailure)
	}
	if len(body) > MaxCellLength {
		return fmt.Errorf("document is %d bytes, a sheet cell holds %d: %w", len(body), MaxCellLength, sections.ErrIOFailure)
	}
	vr := &gsheet.ValueRange{Values: [][]any{{string(body)}}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, c.cell(), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return c.classify(ctx, "write document", err)
	}
	c.logger.InfoContext(ctx, "Document written to sheet", "sheet", c.sheetName, "bytes", len(body))
	return nil
}

func (c *Client) classify(ctx context.Context, op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %v: %w", op, err, sections.ErrNotFound)
	}
	c.logger.ErrorContext(ctx, "Sheets request failed", applog.FieldOperation, op, applog.FieldError, err)
	return fmt.Errorf("%s: %v: %w", op, err, sections.ErrIOFailure)
}
