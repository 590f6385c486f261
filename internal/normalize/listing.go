package normalize

import (
	"regexp"
	"strings"

	"github.com/referral-os/directory/internal/model"
)

// ListingRow is one scraped business listing as exported by the scraper.
type ListingRow struct {
	PlaceID    string `json:"place_id"`
	Name       string `json:"name"`
	City       string `json:"city"`
	State      string `json:"state"`
	StateCode  string `json:"state_code"`
	PostalCode string `json:"postal_code"`
	County     string `json:"county"`
	Phone      string `json:"phone"`
	Website    string `json:"website"`
	Site       string `json:"site"`
	Photo      string `json:"photo"`
	Logo       string `json:"logo"`
	Rating     Number `json:"rating"`
	Reviews    Number `json:"reviews"`
}

// ListingRowFromCSV reads a listing from a CSV row with the scraper's column names.
func ListingRowFromCSV(row map[string]string) ListingRow {
	return ListingRow{
		PlaceID:    row["place_id"],
		Name:       row["name"],
		City:       row["city"],
		State:      row["state"],
		StateCode:  row["state_code"],
		PostalCode: row["postal_code"],
		County:     row["county"],
		Phone:      row["phone"],
		Website:    row["website"],
		Site:       row["site"],
		Photo:      row["photo"],
		Logo:       row["logo"],
		Rating:     Number{Value: ParseOptionalNumber(row["rating"])},
		Reviews:    Number{Value: ParseOptionalNumber(row["reviews"])},
	}
}

var twoLetterState = regexp.MustCompile(`^[A-Za-z]{2}$`)

// NormalizeListing maps a scraped listing onto a Professional. The caller
// must skip rows without a place id. The place id doubles as id and slug.
func NormalizeListing(l ListingRow, category model.Category, defaultState string) *model.Professional {
	placeID := strings.TrimSpace(l.PlaceID)
	raw := strings.TrimSpace(l.Name)
	cleaned := CleanDisplayName(raw)

	name := firstNonEmpty(cleaned, raw, "Unknown")
	state := firstNonEmpty(strings.TrimSpace(l.StateCode), strings.TrimSpace(l.State), defaultState)
	if !twoLetterState.MatchString(state) {
		state = defaultState
	}

	return &model.Professional{
		ID:          placeID,
		Slug:        placeID,
		Name:        name,
		Company:     firstNonEmpty(raw, cleaned),
		Category:    category,
		City:        strings.TrimSpace(l.City),
		State:       state,
		Zip:         strings.TrimSpace(l.PostalCode),
		County:      strings.TrimSpace(l.County),
		Phone:       stringPtr(l.Phone),
		Website:     stringPtr(firstNonEmpty(l.Website, l.Site)),
		PhotoURL:    stringPtr(firstNonEmpty(l.Photo, l.Logo)),
		Rating:      l.Rating.Value,
		ReviewCount: l.Reviews.Int(),
		Source:      model.SourceListing,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var (
	nameSeparator    = regexp.MustCompile(`(?i)\s*\||\s+[-–—]\s+|\s+at\s+|\s+@\s+`)
	businessSuffix   = regexp.MustCompile(`(?i)\b(inc|llc|ltd|co|company|corp|corporation|pllc|pc)\b`)
	nameOnlyChars    = regexp.MustCompile(`^[A-Za-z\s.'-]+$`)
	trailingCityPart = regexp.MustCompile(`(?i)\s+[-–—]\s+(Chicago|Naperville|Aurora|Joliet|Rockford|Peoria)\b`)
)

// CleanDisplayName prefers the individual's name in a listing title such as
// "Jane Doe | Keller Realty" or "Jane Doe at Acme". When the left side does
// not look like a person's name it only drops a " - <city>" fragment.
func CleanDisplayName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	primary := strings.TrimSpace(nameSeparator.Split(raw, 2)[0])
	if looksLikePersonName(primary) {
		return primary
	}

	if loc := trailingCityPart.FindStringIndex(raw); loc != nil {
		raw = raw[:loc[0]] + raw[loc[1]:]
	}
	return strings.TrimSpace(raw)
}

func looksLikePersonName(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if businessSuffix.MatchString(s) || strings.ContainsAny(s, "|@/") {
		return false
	}
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 4 {
		return false
	}
	return nameOnlyChars.MatchString(s)
}
