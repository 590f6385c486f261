package normalize

import (
	"strings"

	"github.com/referral-os/directory/internal/model"
)

// Enrichment is contact and rating data scraped for one license number.
type Enrichment struct {
	Phone         *string `json:"phone"`
	Email         *string `json:"email"`
	Website       *string `json:"website"`
	Rating        Number  `json:"rating"`
	ReviewCount   Number  `json:"reviewCount"`
	PhotoURL      *string `json:"photoUrl"`
	OfficeName    *string `json:"officeName"`
	GooglePlaceID *string `json:"googlePlaceId"`
}

// EnrichmentFile is the on-disk enrichment lookup keyed by license number.
type EnrichmentFile struct {
	GeneratedAt     string                `json:"generatedAt,omitempty"`
	ByLicenseNumber map[string]Enrichment `json:"byLicenseNumber"`
}

// ApplyEnrichment overlays every field e provides onto p. Absent fields keep
// the base value.
func ApplyEnrichment(p *model.Professional, e Enrichment) {
	if e.Phone != nil {
		p.Phone = e.Phone
	}
	if e.Email != nil {
		p.Email = e.Email
	}
	if e.Website != nil {
		p.Website = e.Website
	}
	if e.Rating.Value != nil {
		p.Rating = e.Rating.Value
	}
	if n := e.ReviewCount.Int(); n != nil {
		p.ReviewCount = n
	}
	if e.PhotoURL != nil {
		p.PhotoURL = e.PhotoURL
	}
	if e.OfficeName != nil {
		p.OfficeName = e.OfficeName
	}
}

// LinkedPlaceIDs returns the listing place ids already represented by an
// enriched license record.
func (f *EnrichmentFile) LinkedPlaceIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	if f == nil {
		return ids
	}
	for _, e := range f.ByLicenseNumber {
		if e.GooglePlaceID == nil {
			continue
		}
		if id := strings.TrimSpace(*e.GooglePlaceID); id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// Lookup returns the enrichment for a license number.
func (f *EnrichmentFile) Lookup(licenseNumber string) (Enrichment, bool) {
	if f == nil {
		return Enrichment{}, false
	}
	e, ok := f.ByLicenseNumber[licenseNumber]
	return e, ok
}
