// Package export writes the admin applicant list to a Google spreadsheet.
package export

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/review"
)

// Header is the first row of every export.
var Header = []any{"Applicant ID", "Name", "Email", "Status", "Last activity", "Documents uploaded", "Documents verified", "Documents total"}

// Rows renders the list as sheet values, header first.
func Rows(list []review.ApplicantSummary) [][]any {
	values := make([][]any, 0, len(list)+1)
	values = append(values, Header)
	for _, a := range list {
		values = append(values, []any{
			a.ID.String(),
			a.Name,
			a.Email,
			a.Status.Label(),
			a.LastActivity.UTC().Format(time.DateTime),
			a.Uploaded,
			a.Verified,
			a.Total,
		})
	}
	return values
}

// Sheets replaces the content of one sheet on every export.
type Sheets struct {
	service       *sheets.Service
	spreadsheetID string
	sheet         string
}

// NewSheets builds the exporter. Options go to the API client; production
// passes option.WithCredentialsFile.
func NewSheets(ctx context.Context, spreadsheetID, sheet string, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	if sheet == "" {
		sheet = "Applicants"
	}
	return &Sheets{service: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

// Export clears the sheet and writes the list. It returns the number of
// applicant rows written.
func (s *Sheets) Export(ctx context.Context, list []review.ApplicantSummary) (int, error) {
	if _, err := s.service.Spreadsheets.Values.
		Clear(s.spreadsheetID, s.sheet, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return 0, apperr.Unavailable(fmt.Errorf("clear sheet: %w", err))
	}
	values := Rows(list)
	_, err := s.service.Spreadsheets.Values.
		Update(s.spreadsheetID, s.sheet+"!A1", &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return 0, apperr.Unavailable(fmt.Errorf("write sheet: %w", err))
	}
	return len(list), nil
}
