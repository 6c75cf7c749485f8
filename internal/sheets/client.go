// Package sheets mirrors bot state into a Google Sheets spreadsheet. The
// spreadsheet is a best-effort convenience mirror: local JSON state is
// authoritative, every sync is an explicit upsert-by-key reconciliation,
// and a missing or broken Sheets setup degrades to a disabled reconciler
// that never blocks bot operations.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// ErrSheetsDisabled is returned by every operation when the reconciler
// could not be configured. Callers treat it as "mirroring is off".
var ErrSheetsDisabled = errors.New("sheets mirroring is disabled")

// Remote is the minimal spreadsheet surface the reconciler needs. The
// production implementation talks to the Sheets API; tests substitute an
// in-memory fake.
type Remote interface {
	// Read returns every row of the tab, header included.
	Read(ctx context.Context, tab string) ([][]string, error)
	// Update overwrites one row (1-based, header is row 1).
	Update(ctx context.Context, tab string, row int, values []string) error
	// Append adds a row after the last non-empty one.
	Append(ctx context.Context, tab string, values []string) error
}

// googleRemote implements Remote over the Sheets v4 API.
type googleRemote struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

// NewRemote builds the API-backed Remote from a service-account
// credentials file. Any construction failure is reported to the caller,
// which is expected to fall back to a disabled reconciler.
func NewRemote(ctx context.Context, credentialsFile, spreadsheetID string) (Remote, error) {
	if credentialsFile == "" || spreadsheetID == "" {
		return nil, fmt.Errorf("%w: credentials file and spreadsheet id required", ErrSheetsDisabled)
	}
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets credentials unreadable: %w", err)
	}
	jwt, err := google.JWTConfigFromJSON(raw, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("sheets credentials invalid: %w", err)
	}
	svc, err := sheetsapi.NewService(ctx, option.WithTokenSource(jwt.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	log.Info().Str("spreadsheet_id", spreadsheetID).Msg("Sheets client ready")
	return &googleRemote{svc: svc, spreadsheetID: spreadsheetID}, nil
}

func (g *googleRemote) Read(ctx context.Context, tab string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", tab, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (g *googleRemote) Update(ctx context.Context, tab string, row int, values []string) error {
	rng := fmt.Sprintf("%s!A%d", tab, row)
	_, err := g.svc.Spreadsheets.Values.
		Update(g.spreadsheetID, rng, valueRange(values)).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", tab, row, err)
	}
	return nil
}

func (g *googleRemote) Append(ctx context.Context, tab string, values []string) error {
	_, err := g.svc.Spreadsheets.Values.
		Append(g.spreadsheetID, tab, valueRange(values)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", tab, err)
	}
	return nil
}

func valueRange(values []string) *sheetsapi.ValueRange {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return &sheetsapi.ValueRange{Values: [][]interface{}{row}}
}
