package normalize

import (
	"regexp"
	"strings"

	"github.com/referral-os/directory/internal/model"
)

// LicenseRules maps upper-cased raw license types to categories and lists
// the types that never enter the directory.
type LicenseRules struct {
	Categories map[string]model.Category
	Skip       map[string]struct{}
}

// DefaultLicenseRules returns the built-in type table and skip-set.
func DefaultLicenseRules() LicenseRules {
	return LicenseRules{
		Categories: map[string]model.Category{
			"LICENSED REAL ESTATE BROKER":          model.CategoryRealtor,
			"LICENSED REAL ESTATE MANAGING BROKER": model.CategoryRealtor,
			"LICENSED HOME INSPECTOR":              model.CategoryHomeInspector,
		},
		Skip: map[string]struct{}{
			"CERTIFIED RESIDENTIAL REAL ESTATE APPRAISER": {},
			"CERTIFIED GENERAL REAL ESTATE APPRAISER":     {},
			"ASSOCIATE REAL ESTATE TRAINEE APPRAISER":     {},
			"LICENSED REAL ESTATE BROKER CORPORATION":     {},
			"LICENSED REAL ESTATE BROKER PARTNERSHIP":     {},
			"LICENSED REAL ESTATE BROKER LLC":             {},
		},
	}
}

// Extend returns a copy of r with extra type mappings and skipped types added.
// Keys are upper-cased and trimmed.
func (r LicenseRules) Extend(categories map[string]model.Category, skip []string) LicenseRules {
	out := LicenseRules{
		Categories: make(map[string]model.Category, len(r.Categories)+len(categories)),
		Skip:       make(map[string]struct{}, len(r.Skip)+len(skip)),
	}
	for k, v := range r.Categories {
		out.Categories[k] = v
	}
	for k := range r.Skip {
		out.Skip[k] = struct{}{}
	}
	for k, v := range categories {
		out.Categories[typeKey(k)] = v
	}
	for _, k := range skip {
		out.Skip[typeKey(k)] = struct{}{}
	}
	return out
}

// Skipped reports whether the raw type is in the skip-set.
func (r LicenseRules) Skipped(rawType string) bool {
	_, ok := r.Skip[typeKey(rawType)]
	return ok
}

// Category resolves a raw type. Skipped and unmapped types report false.
func (r LicenseRules) Category(rawType string) (model.Category, bool) {
	if r.Skipped(rawType) {
		return "", false
	}
	c, ok := r.Categories[typeKey(rawType)]
	return c, ok
}

func typeKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// LicenseSource describes one license dataset.
type LicenseSource struct {
	Prefix       string
	DefaultState string
	Rules        LicenseRules
}

var realtorType = regexp.MustCompile(`(?i)(broker|sales|realtor|agent)`)

// NormalizeLicense maps a license or directory row onto a Professional.
// It returns nil when the row has no license number, is a business entity,
// has a skipped or unmapped type, or (directory rows only) is not active or
// not realtor-like. The slug is left empty.
func NormalizeLicense(row map[string]string, src LicenseSource) *model.Professional {
	licenseNumber := strings.TrimSpace(row["license_number"])
	if licenseNumber == "" {
		return nil
	}
	if strings.EqualFold(strings.TrimSpace(row["is_business"]), "true") {
		return nil
	}

	shape := DetectShape(row)
	p := &model.Professional{
		ID:            src.Prefix + licenseNumber,
		LicenseNumber: licenseNumber,
		Company:       strings.TrimSpace(row["company"]),
		City:          strings.TrimSpace(row["city"]),
		State:         strings.TrimSpace(row["state"]),
		Zip:           strings.TrimSpace(row["zip"]),
		County:        strings.TrimSpace(row["county"]),
		LicensedSince: strings.TrimSpace(row["licensed_since"]),
		Expires:       strings.TrimSpace(row["expires"]),
		Source:        model.SourceLicense,
	}
	if p.State == "" {
		p.State = src.DefaultState
	}

	switch shape {
	case ShapeDirectory:
		rawType := strings.TrimSpace(row["license_type"])
		if src.Rules.Skipped(rawType) {
			return nil
		}
		status := strings.ToLower(strings.TrimSpace(row["status"]))
		if status != "" && !strings.Contains(status, "active") {
			return nil
		}
		if !realtorType.MatchString(rawType) {
			return nil
		}
		p.Name = strings.TrimSpace(row["full_name"])
		p.LicenseType = rawType
		p.Category = model.CategoryRealtor
		p.Phone = stringPtr(row["phone"])
		p.Email = stringPtr(row["email"])

	default:
		rawType := strings.TrimSpace(row["type"])
		category, ok := src.Rules.Category(rawType)
		if !ok {
			return nil
		}
		p.Name = strings.TrimSpace(row["name"])
		p.LicenseType = rawType
		p.Category = category
		p.Disciplined = strings.EqualFold(strings.TrimSpace(row["disciplined"]), "Y")
	}

	return p
}
