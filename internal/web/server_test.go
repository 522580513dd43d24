package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/PriceImport/internal/config"
	"github.com/JonMunkholm/PriceImport/internal/core"
)

// catalog is an in-memory core.Repository.
type catalog struct {
	mu     sync.Mutex
	ids    map[string]int64
	prices map[string]string
}

func newCatalog(skus ...string) *catalog {
	c := &catalog{ids: make(map[string]int64), prices: make(map[string]string)}
	for i, sku := range skus {
		c.ids[sku] = int64(i + 1)
	}
	return c
}

func (c *catalog) GetBySKU(_ context.Context, sku string, store core.StoreID) (*core.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.ids[sku]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &core.Product{ID: id, SKU: sku, StoreID: store}, nil
}

func (c *catalog) UpdateAttributes(_ context.Context, ids []int64, attrs map[string]any, store core.StoreID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		c.prices[fmt.Sprintf("%d@%d", id, store)] = fmt.Sprint(attrs[core.ColumnPrice])
	}
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{UploadDir: t.TempDir()},
		Import: config.ImportConfig{
			BunchSize:          2,
			Behavior:           "append",
			Scoped:             false,
			ValidationStrategy: "skip-errors",
			MaxErrors:          100,
			MaxConcurrent:      2,
			MaxWaitTime:        time.Second,
			Timeout:            time.Minute,
			MaxFileSize:        1 << 20,
			Retention:          time.Minute,
		},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, db Pinger) (*Server, *core.Service, *catalog) {
	t.Helper()
	repo := newCatalog("A1", "B2")
	svc := core.NewService(repo, nil, cfg.Import)
	return NewServer(svc, db, cfg), svc, repo
}

func multipartUpload(t *testing.T, fileName, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestUploadLifecycle(t *testing.T) {
	srv, svc, repo := newTestServer(t, testConfig(t), nil)
	csvBody := "sku,price,store_id\nA1,10.50,1\n,3.00,1\nB2,$7,2\nC3,1,1\n"

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "prices.csv", csvBody, map[string]string{"scoped": "true"}))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	accepted := decode[UploadResponse](t, rec)
	require.NotEmpty(t, accepted.ImportID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := svc.WaitImport(ctx, accepted.ImportID)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, accepted.StatusURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[core.ImportRun](t, rec)
	assert.Equal(t, core.StatusCompleted, run.Status)
	require.NotNil(t, run.Summary)
	assert.Equal(t, 2, run.Summary.ItemsUpdated)
	assert.Equal(t, 1, run.Summary.NotFound)
	assert.Equal(t, "10.50", repo.prices["1@1"])
	assert.Equal(t, "7", repo.prices["2@2"])

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, accepted.StatusURL+"/errors?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"row", "line", "code", "message"},
		{"1", "3", "SkuIsRequired", "The SKU is required."},
	}, records)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, accepted.ReportURL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prices.csv")
	assert.Contains(t, rec.Body.String(), "The SKU is required.")

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ImportList](t, rec)
	assert.Len(t, list.Active, 1)
	assert.Empty(t, list.History)
}

func TestUploadDryRunMissingColumn(t *testing.T) {
	srv, svc, repo := newTestServer(t, testConfig(t), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "prices.csv", "sku,price\nA1,1\n",
		map[string]string{"scoped": "true", "dry_run": "true"}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decode[UploadResponse](t, rec).ImportID

	run, err := svc.WaitImport(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, run.Status)
	assert.Contains(t, run.Error, "VAL005")
	assert.True(t, run.DryRun)
	assert.Empty(t, repo.prices)
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		fields   map[string]string
		wantCode int
		wantErr  string
	}{
		{"no file", "", nil, http.StatusBadRequest, "FILE003"},
		{"unsupported format", "prices.pdf", nil, http.StatusBadRequest, "FILE002"},
		{"unknown behavior", "prices.csv", map[string]string{"behavior": "merge"}, http.StatusBadRequest, "VAL006"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, testConfig(t), nil)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, multipartUpload(t, tt.fileName, "sku,price\nA1,1\n", tt.fields))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestUploadTooLarge(t *testing.T) {
	cfg := testConfig(t)
	cfg.Import.MaxFileSize = 10
	srv, _, _ := newTestServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, multipartUpload(t, "prices.csv", "sku,price\nA1,1\nB2,2\n", nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decode[ErrorResponse](t, rec).Code)
}

func TestUnknownImport(t *testing.T) {
	srv, _, _ := newTestServer(t, testConfig(t), nil)

	for _, path := range []string{"/api/imports/nope", "/api/imports/nope/errors"} {
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "IMP002", decode[ErrorResponse](t, rec).Code, path)
	}

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		wantCode int
		wantDB   string
	}{
		{"no database", nil, http.StatusOK, "disabled"},
		{"database up", pinger{}, http.StatusOK, "ok"},
		{"database down", pinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, testConfig(t), tt.db)
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			resp := decode[HealthResponse](t, rec)
			assert.Equal(t, tt.wantDB, resp.Database)
			assert.Equal(t, 2, resp.Imports.MaxConcurrent)
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIKeys = []string{"secret"}
	srv, _, _ := newTestServer(t, cfg, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/imports", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("1.1.1.1"))
	assert.False(t, rl.allow("1.1.1.1"))
	assert.True(t, rl.allow("2.2.2.2"), "limits are per ip")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("1.1.1.1"), "window resets")
}
