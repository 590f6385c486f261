package model

import "time"

// Category is the service category a professional is listed under.
type Category string

const (
	CategoryRealtor        Category = "Realtor"
	CategoryHomeInspector  Category = "Home Inspector"
	CategoryMortgageLender Category = "Mortgage Lender"
	CategoryAttorney       Category = "Attorney"
	CategoryInsuranceAgent Category = "Insurance Agent"
)

// CategoryAll is the search sentinel that disables category filtering.
const CategoryAll = "All"

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryRealtor,
	CategoryHomeInspector,
	CategoryMortgageLender,
	CategoryAttorney,
	CategoryInsuranceAgent,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Source identifies which dataset family a record was built from.
type Source string

const (
	SourceLicense Source = "license" // state license registries
	SourceListing Source = "listing" // scraped business listings
)

// Professional is the canonical directory record shared by every source.
type Professional struct {
	ID         string   `json:"id"`
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	Company    string   `json:"company"`
	OfficeName *string  `json:"officeName"`
	Category   Category `json:"category"`

	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
	County string `json:"county"`

	LicenseNumber string `json:"licenseNumber"`
	LicenseType   string `json:"licenseType"`
	LicensedSince string `json:"licensedSince"`
	Expires       string `json:"expires"`
	Disciplined   bool   `json:"disciplined"`

	Phone       *string  `json:"phone"`
	Email       *string  `json:"email"`
	Website     *string  `json:"website"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"reviewCount"`
	PhotoURL    *string  `json:"photoUrl"`

	Claimed        bool    `json:"claimed"`
	ClaimedByProID *string `json:"claimedByProId"`

	Source Source `json:"source"`
}

// HasPhoto reports whether the record carries a non-empty photo URL.
func (p *Professional) HasPhoto() bool {
	return p.PhotoURL != nil && *p.PhotoURL != ""
}

// HasRating reports whether the record carries a non-zero rating.
func (p *Professional) HasRating() bool {
	return p.Rating != nil && *p.Rating != 0
}

// SearchParams filters and paginates a directory search.
type SearchParams struct {
	Q        string `json:"q,omitempty"`
	Category string `json:"category,omitempty"`
	City     string `json:"city,omitempty"`
	Zip      string `json:"zip,omitempty"`
	County   string `json:"county,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// SearchResult is one page of search hits plus the pre-pagination total.
type SearchResult struct {
	Data   []*Professional `json:"data"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// Stats summarizes a loaded collection.
type Stats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"byCategory"`
	LastLoaded *time.Time     `json:"lastLoaded"`
}

// Merge folds other into s. Totals and category counts are summed and the
// most recent LastLoaded wins.
func (s Stats) Merge(other Stats) Stats {
	out := Stats{
		Total:      s.Total + other.Total,
		ByCategory: make(map[string]int, len(s.ByCategory)+len(other.ByCategory)),
		LastLoaded: s.LastLoaded,
	}
	for k, v := range s.ByCategory {
		out.ByCategory[k] += v
	}
	for k, v := range other.ByCategory {
		out.ByCategory[k] += v
	}
	if other.LastLoaded != nil && (out.LastLoaded == nil || other.LastLoaded.After(*out.LastLoaded)) {
		out.LastLoaded = other.LastLoaded
	}
	return out
}
