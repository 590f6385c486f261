// Package directory builds the per-source professional indexes and serves
// unified search across them.
package directory

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/referral-os/directory/internal/model"
)

// BuildFunc produces the full, ordered record collection for one source.
// Records must already carry unique ids and slugs.
type BuildFunc func(ctx context.Context) ([]*model.Professional, error)

// snapshot is one immutable build of a source.
type snapshot struct {
	records  []*model.Professional
	byID     map[string]*model.Professional
	bySlug   map[string]*model.Professional
	loadedAt time.Time
}

// Index is the lazily built, cached collection for one source. The first
// caller builds it; concurrent callers share that build. Reload and
// Invalidate drop the cache.
type Index struct {
	source model.Source
	build  BuildFunc
	// keyField returns the source-specific natural key added to the search haystack.
	keyField func(*model.Professional) string
	now      func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	snap  *snapshot
	gen   uint64
}

// NewIndex creates an unloaded index for source.
func NewIndex(source model.Source, build BuildFunc) *Index {
	ix := &Index{source: source, build: build, now: time.Now}
	switch source {
	case model.SourceListing:
		ix.keyField = func(p *model.Professional) string { return p.Zip }
	default:
		ix.keyField = func(p *model.Professional) string { return p.LicenseNumber }
	}
	return ix
}

// Source returns the source this index serves.
func (ix *Index) Source() model.Source { return ix.source }

func (ix *Index) cached() (*snapshot, uint64) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.snap, ix.gen
}

// load returns the current snapshot, building it if needed.
func (ix *Index) load(ctx context.Context) (*snapshot, error) {
	if snap, _ := ix.cached(); snap != nil {
		return snap, nil
	}

	v, err, _ := ix.group.Do("load", func() (any, error) {
		snap, gen := ix.cached()
		if snap != nil {
			return snap, nil
		}

		start := ix.now()
		// The build is shared, so one caller giving up must not fail the others.
		records, err := ix.build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, eris.Wrapf(err, "directory: build %s index", ix.source)
		}
		snap = newSnapshot(records, ix.now())

		ix.mu.Lock()
		if ix.gen == gen {
			ix.snap = snap
		}
		ix.mu.Unlock()

		zap.L().Info("directory: index loaded",
			zap.String("source", string(ix.source)),
			zap.Int("records", len(records)),
			zap.Duration("elapsed", ix.now().Sub(start)),
		)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func newSnapshot(records []*model.Professional, at time.Time) *snapshot {
	snap := &snapshot{
		records:  records,
		byID:     make(map[string]*model.Professional, len(records)),
		bySlug:   make(map[string]*model.Professional, len(records)),
		loadedAt: at,
	}
	for _, p := range records {
		snap.byID[p.ID] = p
		snap.bySlug[p.Slug] = p
	}
	return snap
}

// Load builds the index if it is not loaded yet. It is idempotent.
func (ix *Index) Load(ctx context.Context) error {
	_, err := ix.load(ctx)
	return err
}

// Invalidate drops the cached collection. The next access rebuilds it.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	ix.snap = nil
	ix.gen++
	ix.mu.Unlock()
	ix.group.Forget("load")
}

// Reload drops the cache and rebuilds it from disk.
func (ix *Index) Reload(ctx context.Context) error {
	ix.Invalidate()
	return ix.Load(ctx)
}

// All returns the ordered collection.
func (ix *Index) All(ctx context.Context) ([]*model.Professional, error) {
	snap, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.records, nil
}

// ByID returns the record with id, or nil.
func (ix *Index) ByID(ctx context.Context, id string) (*model.Professional, error) {
	snap, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.byID[id], nil
}

// BySlug returns the record with slug, or nil.
func (ix *Index) BySlug(ctx context.Context, slug string) (*model.Professional, error) {
	snap, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.bySlug[slug], nil
}

// Stats reports totals and per-category counts, loading the index first.
func (ix *Index) Stats(ctx context.Context) (model.Stats, error) {
	snap, err := ix.load(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	stats := model.Stats{Total: len(snap.records), ByCategory: map[string]int{}}
	for _, p := range snap.records {
		stats.ByCategory[string(p.Category)]++
	}
	at := snap.loadedAt
	stats.LastLoaded = &at
	return stats, nil
}

// Loaded reports whether the index currently holds a built collection.
func (ix *Index) Loaded() bool {
	snap, _ := ix.cached()
	return snap != nil
}

// Search filters, ranks and paginates this source.
func (ix *Index) Search(ctx context.Context, params model.SearchParams) (*model.SearchResult, error) {
	limit, offset := clampPage(params.Limit, params.Offset)
	matches, err := ix.match(ctx, params)
	if err != nil {
		return nil, err
	}
	return &model.SearchResult{
		Data:   page(matches, offset, limit),
		Total:  len(matches),
		Limit:  limit,
		Offset: offset,
	}, nil
}

// match returns every record passing the filters, in result order.
func (ix *Index) match(ctx context.Context, params model.SearchParams) ([]*model.Professional, error) {
	snap, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}
	return filterAndRank(snap.records, params, ix.keyField), nil
}
