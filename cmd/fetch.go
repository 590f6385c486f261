package main

import (
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/fetcher"
	"github.com/referral-os/directory/internal/manifest"
)

var fetchDataset string

// remoteFile is one manifest entry with a download URL.
type remoteFile struct {
	dataset string
	url     string
	path    string
}

// remoteFiles lists the manifest files that declare a URL. dataset filters
// to one license dataset by name, or the listing files with "listing".
func remoteFiles(m *manifest.Manifest, dataset string) []remoteFile {
	var out []remoteFile
	for _, ds := range m.License.Datasets {
		if dataset != "" && dataset != ds.Name {
			continue
		}
		for _, f := range ds.Files {
			if f.URL != "" {
				out = append(out, remoteFile{dataset: ds.Name, url: f.URL, path: f.Path})
			}
		}
	}
	if dataset == "" || dataset == "listing" {
		for _, f := range m.Listing.Files {
			if f.URL != "" {
				out = append(out, remoteFile{dataset: "listing", url: f.URL, path: f.Path})
			}
		}
	}
	return out
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download raw source files that declare a URL in the manifest",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		m, err := loadManifest()
		if err != nil {
			return err
		}
		files := remoteFiles(m, fetchDataset)
		if len(files) == 0 {
			return eris.Errorf("no remote files for dataset %q", fetchDataset)
		}

		timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second
		mux := &fetcher.Mux{
			HTTP: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
				UserAgent:  cfg.Fetch.UserAgent,
				Timeout:    timeout,
				MaxRetries: cfg.Fetch.MaxRetries,
			}),
			FTP: fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
		}

		var failed int
		for _, f := range files {
			dest := filepath.Join(cfg.Data.Dir, f.path)
			if _, err := fetcher.Retrieve(ctx, mux, f.url, dest); err != nil {
				failed++
				zap.L().Error("fetch failed",
					zap.String("dataset", f.dataset),
					zap.String("url", f.url),
					zap.Error(err),
				)
				continue
			}
		}
		if failed > 0 {
			return eris.Errorf("%d of %d downloads failed", failed, len(files))
		}
		zap.L().Info("fetch complete", zap.Int("files", len(files)))
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDataset, "dataset", "", "license dataset name, or \"listing\" (default all)")
	rootCmd.AddCommand(fetchCmd)
}
