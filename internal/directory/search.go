package directory

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/referral-os/directory/internal/model"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// A query with two adjacent letters is treated as a name search and ignores zip.
var nameQuery = regexp.MustCompile(`[a-zA-Z]{2,}`)

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// page slices records to [offset, offset+limit). The result is never nil.
func page(records []*model.Professional, offset, limit int) []*model.Professional {
	if offset >= len(records) {
		return []*model.Professional{}
	}
	end := offset + limit
	if end > len(records) {
		end = len(records)
	}
	out := make([]*model.Professional, end-offset)
	copy(out, records[offset:end])
	return out
}

func categoryFilter(c string) bool {
	return c != "" && c != model.CategoryAll
}

// filterAndRank applies the category, city, zip and county filters in that
// order, then the free-text match. With a query the survivors are sorted by
// relevance. Without one the source order is kept.
func filterAndRank(records []*model.Professional, params model.SearchParams, keyField func(*model.Professional) string) []*model.Professional {
	q := strings.ToLower(strings.TrimSpace(params.Q))
	city := strings.ToLower(strings.TrimSpace(params.City))
	zip := strings.TrimSpace(params.Zip)
	county := strings.ToLower(strings.TrimSpace(params.County))
	if q != "" && nameQuery.MatchString(q) {
		zip = ""
	}
	terms := strings.Fields(q)

	type hit struct {
		p     *model.Professional
		score float64
	}
	var hits []hit
	filtered := make([]*model.Professional, 0)

	for _, p := range records {
		if categoryFilter(params.Category) && string(p.Category) != params.Category {
			continue
		}
		if city != "" && !strings.Contains(strings.ToLower(p.City), city) {
			continue
		}
		if zip != "" && !strings.HasPrefix(p.Zip, zip) {
			continue
		}
		if county != "" && !strings.Contains(strings.ToLower(p.County), county) {
			continue
		}
		if q == "" {
			filtered = append(filtered, p)
			continue
		}

		haystack := strings.ToLower(strings.Join([]string{p.Name, p.Company, p.City, p.County, keyField(p)}, " "))
		if !containsAll(haystack, terms) {
			continue
		}
		hits = append(hits, hit{p: p, score: relevance(p, q, terms)})
	}

	if q == "" {
		return filtered
	}

	names := collate.New(language.Und)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return names.CompareString(hits[i].p.Name, hits[j].p.Name) < 0
	})
	for _, h := range hits {
		filtered = append(filtered, h.p)
	}
	return filtered
}

func containsAll(s string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(s, t) {
			return false
		}
	}
	return true
}

// relevance scores how well the name answers the query, plus small bonuses
// for records with a photo or a rating.
func relevance(p *model.Professional, q string, terms []string) float64 {
	name := strings.ToLower(p.Name)

	var score float64
	switch {
	case name == q:
		score = 100
	case strings.HasPrefix(name, q):
		score = 80
	case containsAll(name, terms):
		score = 60
	default:
		n := 0
		for _, t := range terms {
			if strings.Contains(name, t) {
				n++
			}
		}
		score = float64(n) / float64(len(terms)) * 40
	}

	if p.HasPhoto() {
		score += 3
	}
	if p.HasRating() {
		score += 2
	}
	return score
}

// sortByQuality orders merged results by rating, review count and photo
// presence, all descending, then by name. Missing ratings and review counts
// sort below any real value.
func sortByQuality(records []*model.Professional) {
	names := collate.New(language.Und)
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if ar, br := ratingOf(a), ratingOf(b); ar != br {
			return ar > br
		}
		if ac, bc := reviewsOf(a), reviewsOf(b); ac != bc {
			return ac > bc
		}
		if ap, bp := a.HasPhoto(), b.HasPhoto(); ap != bp {
			return ap
		}
		return names.CompareString(a.Name, b.Name) < 0
	})
}

func ratingOf(p *model.Professional) float64 {
	if p.Rating == nil {
		return -1
	}
	return *p.Rating
}

func reviewsOf(p *model.Professional) int {
	if p.ReviewCount == nil {
		return -1
	}
	return *p.ReviewCount
}
