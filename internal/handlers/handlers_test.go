package handlers

import (
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	_ "github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nicepg/internal/config"
	"nicepg/internal/database"
	"nicepg/internal/metrics"
	"nicepg/internal/migration"
)

const testAPIKey = "test-api-key-123"

func setupRouter(t *testing.T, fsys fstest.MapFS) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sqlDB, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	db := database.FromDuckDB(sqlDB)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewCollector()
	engine := migration.NewEngine(db, fsys, migration.WithLogger(logger), migration.WithMetrics(m))

	cfg := config.ServerConfig{APIKey: testAPIKey}
	return NewRouter(cfg, NewHandler(engine, db, logger), m, logger)
}

func sqlFile(s string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(s)}
}

func do(t *testing.T, r http.Handler, method, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-API-Key", testAPIKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w
}

func TestHealth(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{})

	// Public, no key needed.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMigrationsRequireAPIKey(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/migrations/up", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUpDownStatus(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{
		"1_users.up.sql":   sqlFile(`CREATE TABLE users (id integer)`),
		"1_users.down.sql": sqlFile(`DROP TABLE users`),
		"2_posts.up.sql":   sqlFile(`CREATE TABLE posts (id integer)`),
		"2_posts.down.sql": sqlFile(`DROP TABLE posts`),
	})

	var status migration.Status
	w := do(t, r, "GET", "/api/migrations/status", &status)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), status.CurrentVersion)
	assert.Len(t, status.Pending, 2)
	assert.False(t, status.CanRollback)

	var up struct {
		Applied []struct {
			Version   int64  `json:"version"`
			Direction string `json:"direction"`
		} `json:"applied"`
		CurrentVersion int64 `json:"current_version"`
	}
	w = do(t, r, "POST", "/api/migrations/up", &up)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, up.Applied, 2)
	assert.Equal(t, int64(1), up.Applied[0].Version)
	assert.Equal(t, "up", up.Applied[0].Direction)
	assert.Equal(t, int64(2), up.CurrentVersion)

	// Nothing left to apply.
	w = do(t, r, "POST", "/api/migrations/up", &up)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, up.Applied)
	assert.Equal(t, int64(2), up.CurrentVersion)

	var down struct {
		Reverted       *migration.Migration `json:"reverted"`
		CurrentVersion int64                `json:"current_version"`
	}
	w = do(t, r, "POST", "/api/migrations/down", &down)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, down.Reverted)
	assert.Equal(t, int64(2), down.Reverted.Version)
	assert.Equal(t, int64(1), down.CurrentVersion)

	w = do(t, r, "GET", "/api/migrations/status", &status)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), status.CurrentVersion)
	assert.Len(t, status.Applied, 1)
	assert.True(t, status.CanRollback)
}

func TestDownWithoutScriptReturnsNull(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{
		"1_users.up.sql": sqlFile(`CREATE TABLE users (id integer)`),
	})

	w := do(t, r, "POST", "/api/migrations/up", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var down map[string]any
	w = do(t, r, "POST", "/api/migrations/down", &down)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, down["reverted"])
	assert.Equal(t, float64(1), down["current_version"])
}

func TestDuplicateVersionIsConflict(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{
		"07_a.up.sql": sqlFile(`CREATE TABLE a (id integer)`),
		"7_b.up.sql":  sqlFile(`CREATE TABLE b (id integer)`),
	})

	var body map[string]any
	w := do(t, r, "POST", "/api/migrations/up", &body)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []any{"version"}, body["columns"])

	var status migration.Status
	do(t, r, "GET", "/api/migrations/status", &status)
	assert.Equal(t, int64(0), status.CurrentVersion)
}

func TestBrokenScriptIsServerError(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{
		"1_broken.up.sql": sqlFile(`CREATE TABLEE broken (`),
	})

	var body map[string]any
	w := do(t, r, "POST", "/api/migrations/up", &body)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, body["details"], "1_broken.up.sql")
}

func TestMetricsEndpoint(t *testing.T) {
	r := setupRouter(t, fstest.MapFS{
		"1_users.up.sql": sqlFile(`CREATE TABLE users (id integer)`),
	})
	do(t, r, "POST", "/api/migrations/up", nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "metrics need the API key")

	w = do(t, r, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `nicepg_migrations_total{direction="up",status="success"} 1`), body)
	assert.Contains(t, body, "nicepg_schema_version 1")
	assert.Contains(t, body, "nicepg_http_requests_total")
}
