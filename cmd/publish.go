package main

import (
	"context"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/db"
	"github.com/referral-os/directory/internal/fetcher"
	"github.com/referral-os/directory/internal/model"
	"github.com/referral-os/directory/internal/normalize"
	"github.com/referral-os/directory/internal/publish"
	"github.com/referral-os/directory/internal/resilience"
)

var publishSource string

// newPublisher connects to the publish database. The caller closes the pool.
func newPublisher(ctx context.Context) (*publish.Publisher, db.Pool, error) {
	if err := cfg.Validate("publish"); err != nil {
		return nil, nil, err
	}
	pool, err := db.Connect(ctx, cfg.Publish.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.Publish.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.Publish.MaxAttempts
	}
	p := publish.New(pool, publish.Options{
		Table:      cfg.Publish.Table,
		BatchSize:  cfg.Publish.BatchSize,
		RatePerSec: cfg.Publish.RatePerSec,
		Retry:      retry,
	})
	return p, pool, nil
}

// recordsFor loads the records of one source, or every record for "all".
func recordsFor(ctx context.Context, env *appEnv, source string) ([]*model.Professional, error) {
	switch source {
	case "all", "":
		return env.Directory.All(ctx)
	case string(model.SourceLicense), string(model.SourceListing):
		return env.Directory.Source(model.Source(source)).All(ctx)
	default:
		return nil, eris.Errorf("unknown source %q (want license, listing or all)", source)
	}
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upsert directory records into the hosted Postgres table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initDirectory()
		if err != nil {
			return err
		}
		records, err := recordsFor(ctx, env, publishSource)
		if err != nil {
			return err
		}

		p, pool, err := newPublisher(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		res, err := p.Publish(ctx, records)
		if err != nil {
			return err
		}
		zap.L().Info("publish complete",
			zap.String("source", publishSource),
			zap.Int("batches", res.Batches),
			zap.Int("rows", res.Rows),
			zap.Int64("affected", res.Affected),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Apply the enrichment file to rows already in the hosted table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initDirectory()
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.Data.Dir, cfg.Data.EnrichmentFile)
		f, err := fetcher.ReadJSONObjectFile[normalize.EnrichmentFile](path)
		if err != nil {
			return eris.Wrap(err, "read enrichment file")
		}
		if f == nil {
			return eris.Errorf("enrichment file not found: %s", path)
		}

		p, pool, err := newPublisher(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		var total publish.Result
		for _, ds := range env.Manifest.License.Datasets {
			if !ds.Enrich {
				continue
			}
			res, err := p.ApplyEnrichment(ctx, f, ds.Prefix)
			if err != nil {
				return eris.Wrapf(err, "enrich %s", ds.Name)
			}
			zap.L().Info("enrichment applied",
				zap.String("dataset", ds.Name),
				zap.Int64("updated", res.Affected),
				zap.Int("skipped", res.Skipped),
			)
			total.Batches += res.Batches
			total.Rows += res.Rows
			total.Affected += res.Affected
			total.Skipped += res.Skipped
		}
		return printJSON(cmd.OutOrStdout(), total)
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishSource, "source", "all", "license, listing or all")
	rootCmd.AddCommand(publishCmd, enrichCmd)
}
