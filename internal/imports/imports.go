// Package imports runs raw file uploads through the directory and keeps
// a history of each attempt.
package imports

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/model"
	"github.com/referral-os/directory/internal/store"
)

// Importer writes an uploaded file into the raw data tree.
// *directory.Directory satisfies it.
type Importer interface {
	Import(ctx context.Context, filename string, content []byte) (int, error)
	ImportTarget() (dataset, state string)
}

// Request is one upload.
type Request struct {
	Filename   string
	Category   string
	ImportedBy string
	Content    []byte
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonFileChar   = regexp.MustCompile(`[^a-z0-9_]`)
)

// Filename derives the stored name of an upload from its category and time,
// e.g. "home_inspector_import_1700000000000.csv".
func Filename(category string, at time.Time) string {
	sanitized := whitespaceRun.ReplaceAllString(strings.ToLower(category), "_")
	sanitized = nonFileChar.ReplaceAllString(sanitized, "")
	return fmt.Sprintf("%s_import_%d.csv", sanitized, at.UnixMilli())
}

// Service imports files and records each attempt in the history store.
type Service struct {
	dir   Importer
	store store.Store
}

// NewService creates a Service. A nil history store disables bookkeeping.
func NewService(dir Importer, st store.Store) *Service {
	return &Service{dir: dir, store: st}
}

// Import writes req into the directory. The returned record reflects the
// final state of the attempt even when the import itself fails.
func (s *Service) Import(ctx context.Context, req Request) (*model.ImportRecord, error) {
	dataset, state := s.dir.ImportTarget()
	rec := &model.ImportRecord{
		Filename:   req.Filename,
		Dataset:    dataset,
		State:      state,
		Category:   req.Category,
		ImportedBy: req.ImportedBy,
	}
	log := zap.L().With(zap.String("filename", req.Filename), zap.String("dataset", dataset))

	if s.store != nil {
		if err := s.store.StartImport(ctx, rec); err != nil {
			return nil, eris.Wrap(err, "imports: record start")
		}
	} else {
		rec.Status = model.ImportStatusRunning
		rec.StartedAt = time.Now().UTC()
	}

	start := time.Now()
	count, importErr := s.dir.Import(ctx, req.Filename, req.Content)
	elapsed := time.Since(start)
	rec.DurationMs = elapsed.Milliseconds()

	if importErr != nil {
		rec.Status = model.ImportStatusFailed
		rec.Error = importErr.Error()
		log.Error("imports: import failed", zap.Int64("duration_ms", rec.DurationMs), zap.Error(importErr))
		if s.store != nil {
			if err := s.store.FailImport(ctx, rec.ID, importErr, elapsed); err != nil {
				log.Warn("imports: failed to record failure", zap.Error(err))
			}
		}
		return rec, eris.Wrap(importErr, "imports: import")
	}

	rec.Status = model.ImportStatusCompleted
	rec.RecordCount = count
	log.Info("imports: import complete",
		zap.Int("records", count),
		zap.Int64("duration_ms", rec.DurationMs),
	)
	if s.store != nil {
		if err := s.store.CompleteImport(ctx, rec.ID, count, elapsed); err != nil {
			log.Warn("imports: failed to record completion", zap.Error(err))
		}
	}
	return rec, nil
}

// History returns the most recent imports first.
func (s *Service) History(ctx context.Context, limit int) ([]model.ImportRecord, error) {
	if s.store == nil {
		return []model.ImportRecord{}, nil
	}
	recs, err := s.store.ListImports(ctx, limit)
	if err != nil {
		return nil, eris.Wrap(err, "imports: history")
	}
	return recs, nil
}
