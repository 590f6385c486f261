package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/fetcher"
	"github.com/referral-os/directory/internal/imports"
	"github.com/referral-os/directory/internal/model"
)

const notFound = "Professional not found"

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return 0
	}
	return n
}

func fallbackLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return min(limit, 200)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := model.SearchParams{
		Q:        strings.TrimSpace(q.Get("q")),
		Category: strings.TrimSpace(q.Get("category")),
		City:     strings.TrimSpace(q.Get("city")),
		Zip:      strings.TrimSpace(q.Get("zip")),
		County:   strings.TrimSpace(q.Get("county")),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}

	res, err := s.dir.Search(r.Context(), params)
	if err != nil {
		// Search degrades to an empty page rather than an error status.
		zap.L().Error("api: search failed", zap.Error(err))
		res = &model.SearchResult{Data: []*model.Professional{}, Limit: fallbackLimit(params.Limit), Offset: max(params.Offset, 0)}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.dir.Stats(r.Context())
	if err != nil {
		zap.L().Error("api: stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleByID(w http.ResponseWriter, r *http.Request) {
	p, err := s.dir.ByID(r.Context(), chi.URLParam(r, "id"))
	s.writeProfessional(w, p, err)
}

func (s *Server) handleBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := s.dir.BySlug(r.Context(), chi.URLParam(r, "slug"))
	s.writeProfessional(w, p, err)
}

func (s *Server) writeProfessional(w http.ResponseWriter, p *model.Professional, err error) {
	if err != nil {
		zap.L().Error("api: lookup failed", zap.Error(err))
	}
	if p == nil {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.dir.Reload(r.Context()); err != nil {
		zap.L().Error("api: reload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to reload")
		return
	}
	s.handleStats(w, r)
}

type importResponse struct {
	Success       bool   `json:"success"`
	Filename      string `json:"filename"`
	ImportedCount int    `json:"importedCount"`
	Message       string `json:"message"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	if err := r.ParseMultipartForm(s.opts.MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close() //nolint:errcheck

	category := r.FormValue("category")
	if category == "" {
		writeError(w, http.StatusBadRequest, "No category provided")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		zap.L().Error("api: read upload", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to import CSV")
		return
	}
	if fetcher.IsXLSX(header.Filename) {
		content, err = fetcher.XLSXToCSV(content, fetcher.XLSXOptions{})
		if err != nil {
			zap.L().Error("api: convert workbook", zap.String("upload", header.Filename), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to import CSV")
			return
		}
	}

	filename := imports.Filename(category, s.now())
	rec, err := s.imports.Import(r.Context(), imports.Request{
		Filename:   filename,
		Category:   category,
		ImportedBy: r.FormValue("importedBy"),
		Content:    content,
	})
	if err != nil {
		zap.L().Error("api: import failed", zap.String("filename", filename), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to import CSV")
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		Success:       true,
		Filename:      filename,
		ImportedCount: rec.RecordCount,
		Message:       fmt.Sprintf("Successfully imported %d records", rec.RecordCount),
	})
}

func (s *Server) handleImportHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.imports.History(r.Context(), queryInt(r, "limit"))
	if err != nil {
		zap.L().Error("api: import history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load import history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": recs})
}
