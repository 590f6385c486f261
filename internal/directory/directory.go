package directory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/referral-os/directory/internal/fetcher"
	"github.com/referral-os/directory/internal/manifest"
	"github.com/referral-os/directory/internal/model"
	"github.com/referral-os/directory/internal/normalize"
)

// Options locates the raw data a Directory is built from.
type Options struct {
	DataDir        string
	Manifest       *manifest.Manifest
	EnrichmentFile string // relative to DataDir
	ImportDir      string // relative to DataDir
	ImportDataset  string // manifest dataset whose prefix and state imports use
}

// Directory merges the license and listing sources behind one query surface.
type Directory struct {
	license    *Index
	listing    *Index
	enrichment *EnrichmentCache

	importDir     string
	importDataset string
	importSrc     normalize.LicenseSource
}

// New wires both source indexes from opts. Nothing is read until first use.
func New(opts Options) (*Directory, error) {
	m := opts.Manifest
	if m == nil {
		m = manifest.Default()
	}

	name := opts.ImportDataset
	if name == "" {
		name = "idfpr"
	}
	ds := m.Dataset(name)
	if ds == nil {
		return nil, eris.Errorf("directory: import dataset %q not in manifest", name)
	}

	var enrichPath string
	if opts.EnrichmentFile != "" {
		enrichPath = filepath.Join(opts.DataDir, opts.EnrichmentFile)
	}
	enrichment := NewEnrichmentCache(enrichPath)

	return &Directory{
		license:       NewIndex(model.SourceLicense, LicenseBuilder(opts.DataDir, m, enrichment)),
		listing:       NewIndex(model.SourceListing, ListingBuilder(opts.DataDir, m, enrichment)),
		enrichment:    enrichment,
		importDir:     filepath.Join(opts.DataDir, opts.ImportDir),
		importDataset: name,
		importSrc:     m.Source(ds),
	}, nil
}

func (d *Directory) sources() []*Index {
	return []*Index{d.license, d.listing}
}

// Search runs params against every source and merges the results.
//
// Each source is searched for its first offset+limit matches, clamped like
// any other per-source search, so no source contributes more than 200
// records. The union is re-sorted by rating, review count, photo and name,
// which replaces each source's relevance order, and then sliced at the global
// offset. Total is the sum of the per-source match counts.
func (d *Directory) Search(ctx context.Context, params model.SearchParams) (*model.SearchResult, error) {
	limit, offset := clampPage(params.Limit, params.Offset)
	window := offset + limit

	var (
		merged []*model.Professional
		total  int
	)
	sourceParams := params
	sourceParams.Limit = window
	sourceParams.Offset = 0
	for _, ix := range d.sources() {
		res, err := ix.Search(ctx, sourceParams)
		if err != nil {
			return nil, err
		}
		total += res.Total
		merged = append(merged, res.Data...)
	}

	sortByQuality(merged)
	return &model.SearchResult{
		Data:   page(merged, offset, limit),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// ByID resolves id against the license source, then the listing source.
func (d *Directory) ByID(ctx context.Context, id string) (*model.Professional, error) {
	for _, ix := range d.sources() {
		p, err := ix.ByID(ctx, id)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}

// BySlug resolves slug against the license source, then the listing source.
func (d *Directory) BySlug(ctx context.Context, slug string) (*model.Professional, error) {
	for _, ix := range d.sources() {
		p, err := ix.BySlug(ctx, slug)
		if err != nil || p != nil {
			return p, err
		}
	}
	return nil, nil
}

// Stats merges the per-source stats.
func (d *Directory) Stats(ctx context.Context) (model.Stats, error) {
	out := model.Stats{ByCategory: map[string]int{}}
	for _, ix := range d.sources() {
		s, err := ix.Stats(ctx)
		if err != nil {
			return model.Stats{}, err
		}
		out = out.Merge(s)
	}
	return out, nil
}

// Reload rebuilds both sources from disk.
func (d *Directory) Reload(ctx context.Context) error {
	d.enrichment.Invalidate()
	g, gctx := errgroup.WithContext(ctx)
	for _, ix := range d.sources() {
		g.Go(func() error {
			return ix.Reload(gctx)
		})
	}
	return g.Wait()
}

// All returns license records followed by listing records.
func (d *Directory) All(ctx context.Context) ([]*model.Professional, error) {
	var out []*model.Professional
	for _, ix := range d.sources() {
		records, err := ix.All(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// Source returns the index for one source, or nil.
func (d *Directory) Source(s model.Source) *Index {
	for _, ix := range d.sources() {
		if ix.Source() == s {
			return ix
		}
	}
	return nil
}

// ImportTarget names the dataset and default state uploaded files are read as.
func (d *Directory) ImportTarget() (dataset, state string) {
	return d.importDataset, d.importSrc.DefaultState
}

// Import writes content to the import directory under the base name of
// filename and invalidates the license source so the next query sees it. It
// returns how many rows would normalize into records.
func (d *Directory) Import(ctx context.Context, filename string, content []byte) (int, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return 0, eris.Errorf("directory: invalid import filename %q", filename)
	}

	if err := os.MkdirAll(d.importDir, 0o755); err != nil {
		return 0, eris.Wrap(err, "directory: create import dir")
	}
	path := filepath.Join(d.importDir, base)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return 0, eris.Wrapf(err, "directory: write %s", path)
	}

	d.license.Invalidate()
	d.enrichment.Invalidate()

	rows, err := fetcher.ReadRows(ctx, bytes.NewReader(content))
	if err != nil {
		zap.L().Warn("directory: import parsed partially", zap.String("file", path), zap.Error(err))
	}
	count := 0
	for _, row := range rows {
		if normalize.NormalizeLicense(row, d.importSrc) != nil {
			count++
		}
	}

	zap.L().Info("directory: imported file",
		zap.String("file", path),
		zap.Int("rows", len(rows)),
		zap.Int("valid", count),
	)
	return count, nil
}
