package directory

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/fetcher"
	"github.com/referral-os/directory/internal/manifest"
	"github.com/referral-os/directory/internal/model"
	"github.com/referral-os/directory/internal/normalize"
)

// EnrichmentCache lazily reads the enrichment file shared by both sources.
type EnrichmentCache struct {
	path string

	mu     sync.Mutex
	loaded bool
	file   *normalize.EnrichmentFile
}

// NewEnrichmentCache returns a cache for the enrichment file at path.
func NewEnrichmentCache(path string) *EnrichmentCache {
	return &EnrichmentCache{path: path}
}

// Get returns the enrichment file, reading it on first use. A missing or
// malformed file yields nil, which behaves as an empty lookup.
func (c *EnrichmentCache) Get() *normalize.EnrichmentFile {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.file
	}
	c.loaded = true

	if c.path == "" {
		return nil
	}
	f, err := fetcher.ReadJSONObjectFile[normalize.EnrichmentFile](c.path)
	if err != nil {
		zap.L().Warn("directory: enrichment file unreadable, continuing without it",
			zap.String("path", c.path), zap.Error(err))
		return nil
	}
	c.file = f
	return f
}

// Invalidate forces the next Get to re-read the file.
func (c *EnrichmentCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.file = nil
	c.mu.Unlock()
}

// LicenseBuilder returns the build function for the license source. Datasets
// are read in manifest order and the first record seen for an id wins.
func LicenseBuilder(dataDir string, m *manifest.Manifest, enrichment *EnrichmentCache) BuildFunc {
	return func(ctx context.Context) ([]*model.Professional, error) {
		log := zap.L().With(zap.String("source", string(model.SourceLicense)))
		enrich := enrichment.Get()

		var out []*model.Professional
		seen := make(map[string]bool)
		slugs := make(map[string]bool)

		for i := range m.License.Datasets {
			ds := &m.License.Datasets[i]
			src := m.Source(ds)

			files, err := ds.ResolveFiles(dataDir)
			if err != nil {
				return nil, err
			}

			for _, path := range files {
				rows, err := fetcher.ReadRowsFile(ctx, path)
				if err != nil {
					log.Warn("directory: partial read", zap.String("file", path), zap.Error(err))
				}

				var kept, rejected, dupes, enriched int
				for _, row := range rows {
					p := normalize.NormalizeLicense(row, src)
					if p == nil {
						rejected++
						continue
					}
					if seen[p.ID] {
						dupes++
						continue
					}
					seen[p.ID] = true

					p.Slug = licenseSlug(p, slugs)
					slugs[p.Slug] = true

					if ds.Enrich {
						if e, ok := enrich.Lookup(p.LicenseNumber); ok {
							normalize.ApplyEnrichment(p, e)
							enriched++
						}
					}
					out = append(out, p)
					kept++
				}

				log.Debug("directory: file loaded",
					zap.String("dataset", ds.Name),
					zap.String("file", path),
					zap.Int("rows", len(rows)),
					zap.Int("kept", kept),
					zap.Int("rejected", rejected),
					zap.Int("duplicates", dupes),
					zap.Int("enriched", enriched),
				)
			}
		}
		return out, nil
	}
}

// licenseSlug derives a slug from name and city. On collision the license
// number is appended.
func licenseSlug(p *model.Professional, taken map[string]bool) string {
	base := normalize.Slugify(strings.TrimSpace(p.Name + " " + p.City))
	if base == "" {
		base = "professional-" + p.LicenseNumber
	}
	if taken[base] {
		return base + "-" + p.LicenseNumber
	}
	return base
}

// ListingBuilder returns the build function for the listing source. Listings
// already linked to an enriched license record are skipped.
func ListingBuilder(dataDir string, m *manifest.Manifest, enrichment *EnrichmentCache) BuildFunc {
	return func(ctx context.Context) ([]*model.Professional, error) {
		log := zap.L().With(zap.String("source", string(model.SourceListing)))
		linked := enrichment.Get().LinkedPlaceIDs()

		var out []*model.Professional
		seen := make(map[string]bool)

		for _, lf := range m.Listing.Files {
			path := filepath.Join(dataDir, lf.Path)
			rows, err := readListingFile(ctx, path)
			if err != nil {
				log.Warn("directory: partial read", zap.String("file", path), zap.Error(err))
			}

			var kept, skipped, suppressed int
			for _, row := range rows {
				id := strings.TrimSpace(row.PlaceID)
				switch {
				case id == "" || seen[id]:
					skipped++
					continue
				case hasKey(linked, id):
					suppressed++
					continue
				}
				seen[id] = true
				out = append(out, normalize.NormalizeListing(row, lf.Category, m.Listing.State))
				kept++
			}

			log.Debug("directory: file loaded",
				zap.String("file", path),
				zap.String("category", string(lf.Category)),
				zap.Int("rows", len(rows)),
				zap.Int("kept", kept),
				zap.Int("skipped", skipped),
				zap.Int("linked", suppressed),
			)
		}
		return out, nil
	}
}

func hasKey(set map[string]struct{}, k string) bool {
	_, ok := set[k]
	return ok
}

// readListingFile reads a scraper export. JSON arrays are the native format
// and CSV exports with the same column names are accepted too.
func readListingFile(ctx context.Context, path string) ([]normalize.ListingRow, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		rows, err := fetcher.ReadRowsFile(ctx, path)
		out := make([]normalize.ListingRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, normalize.ListingRowFromCSV(r))
		}
		return out, err
	}
	return fetcher.ReadJSONArrayFile[normalize.ListingRow](ctx, path)
}
