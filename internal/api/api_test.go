package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/imports"
	"github.com/referral-os/directory/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeDirectory struct {
	records   []*model.Professional
	lastQuery model.SearchParams
	searchErr error
	reloads   int
}

func (f *fakeDirectory) Search(_ context.Context, params model.SearchParams) (*model.SearchResult, error) {
	f.lastQuery = params
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &model.SearchResult{Data: f.records, Total: len(f.records), Limit: 50, Offset: params.Offset}, nil
}

func (f *fakeDirectory) ByID(_ context.Context, id string) (*model.Professional, error) {
	for _, p := range f.records {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) BySlug(_ context.Context, slug string) (*model.Professional, error) {
	for _, p := range f.records {
		if p.Slug == slug {
			return p, nil
		}
	}
	return nil, errors.New("index unavailable")
}

func (f *fakeDirectory) Stats(context.Context) (model.Stats, error) {
	return model.Stats{Total: len(f.records), ByCategory: map[string]int{"Realtor": len(f.records)}}, nil
}

func (f *fakeDirectory) Reload(context.Context) error {
	f.reloads++
	return nil
}

type fakeImporter struct {
	filename string
	content  []byte
	err      error
}

func (f *fakeImporter) Import(_ context.Context, filename string, content []byte) (int, error) {
	f.filename = filename
	f.content = content
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func (f *fakeImporter) ImportTarget() (string, string) { return "idfpr", "IL" }

func newTestServer(t *testing.T) (*Server, *fakeDirectory, *fakeImporter) {
	t.Helper()
	dir := &fakeDirectory{records: []*model.Professional{
		{ID: "idfpr_471.1", Slug: "jane-doe-chicago", Name: "Jane Doe", Category: model.CategoryRealtor},
	}}
	imp := &fakeImporter{}
	srv := NewServer(dir, imports.NewService(imp, nil), Options{})
	srv.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return srv, dir, imp
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, "ok", decode(t, rr)["status"])
}

func TestSearch_ParsesQuery(t *testing.T) {
	srv, dir, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/professionals?q=+jane+&category=Realtor&city=Chicago&zip=606&county=Cook&limit=10&offset=abc", nil)
	rr := do(t, srv.Handler(), req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, model.SearchParams{
		Q: "jane", Category: "Realtor", City: "Chicago", Zip: "606", County: "Cook", Limit: 10, Offset: 0,
	}, dir.lastQuery)

	body := decode(t, rr)
	assert.EqualValues(t, 1, body["total"])
	assert.Len(t, body["data"], 1)
}

func TestSearch_FailsSoft(t *testing.T) {
	srv, dir, _ := newTestServer(t)
	dir.searchErr = errors.New("boom")

	rr := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/professionals/?limit=500", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.EqualValues(t, 0, body["total"])
	assert.EqualValues(t, 200, body["limit"])
	assert.Equal(t, []any{}, body["data"])
}

func TestLookup(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name string
		path string
		code int
	}{
		{name: "by id", path: "/api/professionals/idfpr_471.1", code: http.StatusOK},
		{name: "unknown id", path: "/api/professionals/nope", code: http.StatusNotFound},
		{name: "by slug", path: "/api/professionals/by-slug/jane-doe-chicago", code: http.StatusOK},
		{name: "slug lookup error", path: "/api/professionals/by-slug/missing", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.code, rr.Code)
			body := decode(t, rr)
			if tt.code == http.StatusNotFound {
				assert.Equal(t, "Professional not found", body["error"])
				return
			}
			assert.Equal(t, "idfpr_471.1", body["id"])
		})
	}
}

func TestStatsAndReload(t *testing.T) {
	srv, dir, _ := newTestServer(t)
	h := srv.Handler()

	rr := do(t, h, httptest.NewRequest(http.MethodGet, "/api/professionals/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, decode(t, rr)["total"])

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/professionals/reload", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, dir.reloads)
	assert.Contains(t, decode(t, rr), "byCategory")
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/professionals/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestImport(t *testing.T) {
	srv, _, imp := newTestServer(t)
	content := []byte("name,license_number\nJane,471.1\n")

	rr := do(t, srv.Handler(), multipartRequest(t, map[string]string{"category": "Home Inspector!"}, "upload.csv", content))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "home_inspector_import_1700000000000.csv", body["filename"])
	assert.EqualValues(t, 2, body["importedCount"])
	assert.Equal(t, "Successfully imported 2 records", body["message"])
	assert.Equal(t, "home_inspector_import_1700000000000.csv", imp.filename)
	assert.Equal(t, content, imp.content)
}

func TestImport_BadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rr := do(t, h, multipartRequest(t, map[string]string{"category": "Realtor"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No file provided", decode(t, rr)["error"])

	rr = do(t, h, multipartRequest(t, nil, "a.csv", []byte("x")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "No category provided", decode(t, rr)["error"])

	rr = do(t, h, httptest.NewRequest(http.MethodPost, "/api/professionals/import", bytes.NewReader([]byte("{}"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestImport_Failure(t *testing.T) {
	srv, _, imp := newTestServer(t)
	imp.err = errors.New("read-only file system")

	rr := do(t, srv.Handler(), multipartRequest(t, map[string]string{"category": "Realtor"}, "a.csv", []byte("x")))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Failed to import CSV", decode(t, rr)["error"])
}

func TestImportHistory(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rr := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/imports?limit=5", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []any{}, decode(t, rr)["data"])
}

func TestImportRoutesDisabledWithoutService(t *testing.T) {
	srv := NewServer(&fakeDirectory{}, nil, Options{})

	rr := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/professionals", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := do(t, srv.Handler(), req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
