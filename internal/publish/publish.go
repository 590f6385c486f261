// Package publish pushes normalized directory records to the hosted
// Postgres table the web app reads from.
package publish

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/referral-os/directory/internal/db"
	"github.com/referral-os/directory/internal/model"
	"github.com/referral-os/directory/internal/normalize"
	"github.com/referral-os/directory/internal/resilience"
)

// Options configures batching, pacing and retry.
type Options struct {
	Table      string
	BatchSize  int
	RatePerSec float64 // batches per second; 0 disables pacing
	Retry      resilience.RetryConfig
}

// Result summarizes one publish run.
type Result struct {
	Batches  int   `json:"batches"`
	Rows     int   `json:"rows"`
	Affected int64 `json:"affected"`
	Skipped  int   `json:"skipped"`
}

// Publisher writes records in paced, retried batches.
type Publisher struct {
	pool    db.Pool
	opts    Options
	limiter *rate.Limiter
}

// New returns a Publisher writing through pool.
func New(pool db.Pool, opts Options) *Publisher {
	if opts.Table == "" {
		opts.Table = "licensed_professionals"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger(opts.Table, "publish")
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	return &Publisher{pool: pool, opts: opts, limiter: rate.NewLimiter(limit, 1)}
}

// Columns is the column order of published rows.
var Columns = []string{
	"id", "slug", "name", "category",
	"license_number", "license_type", "company", "office_name",
	"city", "state", "zip", "county",
	"licensed_since", "expires", "disciplined",
	"phone", "email", "website", "rating", "review_count", "photo_url",
	"source",
}

// Row maps a record onto Columns. Empty optional text becomes NULL.
func Row(p *model.Professional) []any {
	return []any{
		p.ID, p.Slug, p.Name, string(p.Category),
		text(p.LicenseNumber), text(p.LicenseType), text(p.Company), deref(p.OfficeName),
		text(p.City), p.State, text(p.Zip), text(p.County),
		text(p.LicensedSince), text(p.Expires), p.Disciplined,
		deref(p.Phone), deref(p.Email), deref(p.Website), deref(p.Rating), deref(p.ReviewCount), deref(p.PhotoURL),
		string(p.Source),
	}
}

func text(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}

// batches calls fn for consecutive slices of at most size items, waiting on
// the limiter before each.
func (p *Publisher) batches(ctx context.Context, n int, fn func(lo, hi int) error) (int, error) {
	count := 0
	for lo := 0; lo < n; lo += p.opts.BatchSize {
		hi := min(lo+p.opts.BatchSize, n)
		if err := p.limiter.Wait(ctx); err != nil {
			return count, eris.Wrap(err, "publish: rate limiter wait")
		}
		if err := fn(lo, hi); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Publish upserts pros keyed on id.
func (p *Publisher) Publish(ctx context.Context, pros []*model.Professional) (Result, error) {
	cfg := db.UpsertConfig{Table: p.opts.Table, Columns: Columns, ConflictKeys: []string{"id"}}
	log := zap.L().With(zap.String("table", p.opts.Table))

	var res Result
	n, err := p.batches(ctx, len(pros), func(lo, hi int) error {
		rows := make([][]any, 0, hi-lo)
		for _, pro := range pros[lo:hi] {
			rows = append(rows, Row(pro))
		}

		affected, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) (int64, error) {
			return db.BulkUpsert(ctx, p.pool, cfg, rows)
		})
		if err != nil {
			return eris.Wrapf(err, "publish: batch at %d", lo)
		}
		res.Rows += len(rows)
		res.Affected += affected
		log.Info("publish: batch upserted", zap.Int("done", hi), zap.Int("total", len(pros)))
		return nil
	})
	res.Batches = n
	return res, err
}

// enrichmentUpdate keeps existing values where the enrichment has none.
func enrichmentUpdate(table string) db.UpdateConfig {
	return db.UpdateConfig{
		Table: table,
		Key:   db.Column{Name: "id", Type: "text"},
		Columns: []db.Column{
			{Name: "office_name", Type: "text"},
			{Name: "phone", Type: "text"},
			{Name: "email", Type: "text"},
			{Name: "website", Type: "text"},
			{Name: "rating", Type: "float8"},
			{Name: "review_count", Type: "int4"},
			{Name: "photo_url", Type: "text"},
		},
		KeepExisting: true,
	}
}

// enrichmentArrays holds one batch of enrichment in column-major form.
type enrichmentArrays struct {
	ids                                  []string
	office, phone, email, website, photo []*string
	rating                               []*float64
	reviews                              []*int
}

func buildEnrichmentArrays(prefix string, numbers []string, f *normalize.EnrichmentFile) enrichmentArrays {
	a := enrichmentArrays{}
	for _, ln := range numbers {
		e, _ := f.Lookup(ln)
		a.ids = append(a.ids, prefix+ln)
		a.office = append(a.office, e.OfficeName)
		a.phone = append(a.phone, e.Phone)
		a.email = append(a.email, e.Email)
		a.website = append(a.website, e.Website)
		a.rating = append(a.rating, e.Rating.Value)
		a.reviews = append(a.reviews, e.ReviewCount.Int())
		a.photo = append(a.photo, e.PhotoURL)
	}
	return a
}

// ApplyEnrichment copies enrichment onto rows that already exist, matched on
// prefix plus license number. Unknown ids are counted as skipped.
func (p *Publisher) ApplyEnrichment(ctx context.Context, f *normalize.EnrichmentFile, prefix string) (Result, error) {
	if f == nil || len(f.ByLicenseNumber) == 0 {
		return Result{}, nil
	}
	numbers := make([]string, 0, len(f.ByLicenseNumber))
	for ln := range f.ByLicenseNumber {
		numbers = append(numbers, ln)
	}
	sort.Strings(numbers)

	cfg := enrichmentUpdate(p.opts.Table)
	log := zap.L().With(zap.String("table", p.opts.Table), zap.String("prefix", prefix))

	var res Result
	n, err := p.batches(ctx, len(numbers), func(lo, hi int) error {
		a := buildEnrichmentArrays(prefix, numbers[lo:hi], f)
		affected, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context) (int64, error) {
			return db.BulkUpdate(ctx, p.pool, cfg, a.ids,
				a.office, a.phone, a.email, a.website, a.rating, a.reviews, a.photo)
		})
		if err != nil {
			return eris.Wrapf(err, "publish: enrichment batch at %d", lo)
		}
		res.Rows += hi - lo
		res.Affected += affected
		res.Skipped += hi - lo - int(affected)
		log.Info("publish: enrichment applied", zap.Int("done", hi), zap.Int("total", len(numbers)),
			zap.Int64("updated", affected))
		return nil
	})
	res.Batches = n
	return res, err
}
