package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Mux routes downloads to the HTTP or FTP fetcher by URL scheme.
type Mux struct {
	HTTP Fetcher
	FTP  Fetcher
}

func (m *Mux) forURL(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: parse url")
	}
	switch u.Scheme {
	case "http", "https":
		if m.HTTP != nil {
			return m.HTTP, nil
		}
	case "ftp":
		if m.FTP != nil {
			return m.FTP, nil
		}
	}
	return nil, eris.Errorf("fetch: no fetcher for scheme %q", u.Scheme)
}

// Download fetches rawURL with the fetcher registered for its scheme.
func (m *Mux) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := m.forURL(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile fetches rawURL into path with the fetcher registered for its scheme.
func (m *Mux) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	f, err := m.forURL(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// Retrieve downloads rawURL and installs it at dest. ZIP archives are
// unpacked and XLSX workbooks are converted to CSV when dest is not itself
// a workbook. The file at dest is only replaced once the download succeeded.
func Retrieve(ctx context.Context, f Fetcher, rawURL, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, eris.Wrap(err, "fetch: create destination directory")
	}

	work, err := os.MkdirTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return 0, eris.Wrap(err, "fetch: create work directory")
	}
	defer os.RemoveAll(work) //nolint:errcheck

	src := filepath.Join(work, "download"+remoteExt(rawURL))
	if _, err := f.DownloadToFile(ctx, rawURL, src); err != nil {
		return 0, eris.Wrapf(err, "fetch: download %s", rawURL)
	}

	if strings.EqualFold(filepath.Ext(src), ".zip") {
		src, err = ExtractZIPSingle(src, filepath.Join(work, "unzipped"))
		if err != nil {
			return 0, err
		}
	}

	if IsXLSX(src) && !IsXLSX(dest) {
		content, err := os.ReadFile(src)
		if err != nil {
			return 0, eris.Wrap(err, "fetch: read workbook")
		}
		csvText, err := XLSXToCSV(content, XLSXOptions{})
		if err != nil {
			return 0, err
		}
		src = filepath.Join(work, "converted.csv")
		if err := os.WriteFile(src, csvText, 0o644); err != nil {
			return 0, eris.Wrap(err, "fetch: write converted csv")
		}
	}

	if err := os.Rename(src, dest); err != nil {
		return 0, eris.Wrap(err, "fetch: install file")
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: stat installed file")
	}
	zap.L().Info("fetch: installed raw file",
		zap.String("url", rawURL),
		zap.String("path", dest),
		zap.Int64("bytes", info.Size()),
	)
	return info.Size(), nil
}

func remoteExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(path.Ext(u.Path))
}
