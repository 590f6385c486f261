// Package export writes directory snapshots as JSON or CSV.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/referral-os/directory/internal/model"
)

// Format selects the snapshot encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat accepts "json" or "csv" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV:
		return f, nil
	default:
		return "", eris.Errorf("export: unsupported format %q", s)
	}
}

// Row is the flat CSV shape of a Professional. Nil fields encode as empty cells.
type Row struct {
	ID             string   `csv:"id"`
	Slug           string   `csv:"slug"`
	Name           string   `csv:"name"`
	Company        string   `csv:"company"`
	OfficeName     *string  `csv:"office_name"`
	Category       string   `csv:"category"`
	City           string   `csv:"city"`
	State          string   `csv:"state"`
	Zip            string   `csv:"zip"`
	County         string   `csv:"county"`
	LicenseNumber  string   `csv:"license_number"`
	LicenseType    string   `csv:"license_type"`
	LicensedSince  string   `csv:"licensed_since"`
	Expires        string   `csv:"expires"`
	Disciplined    bool     `csv:"disciplined"`
	Phone          *string  `csv:"phone"`
	Email          *string  `csv:"email"`
	Website        *string  `csv:"website"`
	Rating         *float64 `csv:"rating"`
	ReviewCount    *int     `csv:"review_count"`
	PhotoURL       *string  `csv:"photo_url"`
	Claimed        bool     `csv:"claimed"`
	ClaimedByProID *string  `csv:"claimed_by_pro_id"`
	Source         string   `csv:"source"`
}

// RowOf flattens p.
func RowOf(p *model.Professional) Row {
	return Row{
		ID:             p.ID,
		Slug:           p.Slug,
		Name:           p.Name,
		Company:        p.Company,
		OfficeName:     p.OfficeName,
		Category:       string(p.Category),
		City:           p.City,
		State:          p.State,
		Zip:            p.Zip,
		County:         p.County,
		LicenseNumber:  p.LicenseNumber,
		LicenseType:    p.LicenseType,
		LicensedSince:  p.LicensedSince,
		Expires:        p.Expires,
		Disciplined:    p.Disciplined,
		Phone:          p.Phone,
		Email:          p.Email,
		Website:        p.Website,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		PhotoURL:       p.PhotoURL,
		Claimed:        p.Claimed,
		ClaimedByProID: p.ClaimedByProID,
		Source:         string(p.Source),
	}
}

// Write encodes records to w in the given format. An empty input still
// produces a valid document: "[]" for JSON and a header line for CSV.
func Write(w io.Writer, format Format, records []*model.Professional) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatCSV:
		return writeCSV(w, records)
	default:
		return eris.Errorf("export: unsupported format %q", format)
	}
}

func writeJSON(w io.Writer, records []*model.Professional) error {
	if records == nil {
		records = []*model.Professional{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(records), "export: encode json")
}

func writeCSV(w io.Writer, records []*model.Professional) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	if len(records) == 0 {
		if err := enc.EncodeHeader(Row{}); err != nil {
			return eris.Wrap(err, "export: encode csv header")
		}
	}
	for _, p := range records {
		if err := enc.Encode(RowOf(p)); err != nil {
			return eris.Wrap(err, "export: encode csv")
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: write csv")
}
