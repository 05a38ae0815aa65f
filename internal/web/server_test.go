package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/flightlog/internal/config"
	"github.com/JonMunkholm/flightlog/internal/core"
	_ "github.com/JonMunkholm/flightlog/internal/core/formats"
	"github.com/JonMunkholm/flightlog/internal/importer"
	"github.com/JonMunkholm/flightlog/internal/store"
)

// =============================================================================
// Helpers
// =============================================================================

const canonicalCSV = `date,plane_registration,pilot_first_name,pilot_last_name,copilot_first_name,copilot_last_name,flight_type,num_landings,flight_mode,departure_time,landing_time,launch_method,departure_location,landing_location,comments,accounting_notes
2024-05-01,D-1234,John,Doe,,,normal,1,local,10:00,11:00,Winch,Home,Home,,
2024-05-01,D-1234,John,Doe,,,normal,1,local,12:00,13:00,Winch,Home,Home,,
`

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, ShutdownTimeout: time.Second},
		Import: config.ImportConfig{
			Format: "startkladde-en", Delimiter: ",", Encoding: "utf-8",
			DateFormat: "%Y-%m-%d", TimeFormat: "%H:%M", Mode: "interactive",
			MergeTowflights: true, PromptRetries: 10,
		},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxWaitTime: time.Second, Timeout: time.Minute},
	}
}

type testServer struct {
	*Server
	db *store.DB
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	require.NoError(t, db.CreatePilot(ctx, &core.Pilot{LastName: "Doe", FirstName: "John"}))
	require.NoError(t, db.CreatePlane(ctx, &core.Airplane{Registration: "D-1234"}))
	require.NoError(t, db.CreateLaunchMethod(ctx, &core.LaunchMethod{Name: "Winch", Type: core.LaunchWinch}))

	svc := importer.NewService(db, core.NewImportLimiter(1, 50*time.Millisecond))
	return &testServer{Server: NewServer(cfg, db, svc), db: db}
}

func upload(t *testing.T, target, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// POST /api/imports
// =============================================================================

func TestHandleImport(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(upload(t, "/api/imports", "may.csv", canonicalCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ImportResponse](t, rec)
	assert.Equal(t, "may.csv", resp.Run.FileName)
	assert.Equal(t, "reject", resp.Run.Mode)
	assert.Equal(t, core.RunCommitted, resp.Run.Status)
	assert.Equal(t, 2, resp.Run.Stats.Inserted)

	n, err := s.db.CountFlights(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	t.Run("re-import reports duplicates", func(t *testing.T) {
		rec := s.do(upload(t, "/api/imports?mode=ignore", "may.csv", canonicalCSV))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[ImportResponse](t, rec)
		assert.Equal(t, 2, resp.Run.Stats.Duplicates)
		assert.Equal(t, "ignore", resp.Run.Mode)
	})
}

func TestHandleImport_DryRunAndRejected(t *testing.T) {
	s := newTestServer(t, testConfig())
	data := canonicalCSV + "2024-05-01,D-9999,John,Doe,,,normal,many,local,14:00,15:00,Winch,Home,Home,,\n" +
		"2024-05-01,D-9999,John,Doe,,,normal,1,local,16:00,17:00,Winch,Home,Home,,\n"

	rec := s.do(upload(t, "/api/imports?dry_run=true", "may.csv", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ImportResponse](t, rec)
	assert.Equal(t, core.RunDryRun, resp.Run.Status)
	assert.Equal(t, 2, resp.Run.Stats.Inserted)
	require.Len(t, resp.RowErrors, 1)
	assert.Equal(t, 4, resp.RowErrors[0].Line)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "Unknown plane: 'D-9999'", resp.Rejected[0].Reason)
	assert.Equal(t, []string{"D-9999"}, resp.Run.Missing.Planes)

	n, err := s.db.CountFlights(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHandleImport_Errors(t *testing.T) {
	s := newTestServer(t, testConfig())

	tests := []struct {
		name       string
		req        func() *http.Request
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no file",
			req:        func() *http.Request { return upload(t, "/api/imports", "", "") },
			wantStatus: http.StatusBadRequest,
			wantBody:   "no file provided",
		},
		{
			name:       "interactive mode",
			req:        func() *http.Request { return upload(t, "/api/imports?mode=interactive", "a.csv", canonicalCSV) },
			wantStatus: http.StatusBadRequest,
			wantBody:   "not available over HTTP",
		},
		{
			name:       "unknown mode",
			req:        func() *http.Request { return upload(t, "/api/imports?mode=maybe", "a.csv", canonicalCSV) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad separator",
			req:        func() *http.Request { return upload(t, "/api/imports?separator=ab", "a.csv", canonicalCSV) },
			wantStatus: http.StatusBadRequest,
			wantBody:   "single character",
		},
		{
			name:       "bad dry_run",
			req:        func() *http.Request { return upload(t, "/api/imports?dry_run=perhaps", "a.csv", canonicalCSV) },
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown format",
			req:        func() *http.Request { return upload(t, "/api/imports?format=nope", "a.csv", canonicalCSV) },
			wantStatus: http.StatusBadRequest,
			wantBody:   "IMP003",
		},
		{
			name:       "empty file",
			req:        func() *http.Request { return upload(t, "/api/imports", "a.csv", "") },
			wantStatus: http.StatusBadRequest,
			wantBody:   "FILE005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.req())
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestHandleImport_Busy(t *testing.T) {
	s := newTestServer(t, testConfig())
	limiter := s.importer.Limiter()
	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	rec := s.do(upload(t, "/api/imports", "a.csv", canonicalCSV))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "IMP002", decode[ErrorResponse](t, rec).Code)
}

func TestHandleImport_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, cfg)

	rec := s.do(upload(t, "/api/imports", "a.csv", canonicalCSV))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file too large")
}

// =============================================================================
// GET endpoints
// =============================================================================

func TestHandleListRuns(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, s.do(upload(t, "/api/imports", "a.csv", canonicalCSV)).Code)
	}

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/imports?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]core.ImportRun](t, rec)
	assert.Len(t, runs, 2)
}

func TestHandleListFormats(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	formats := decode[[]FormatInfo](t, rec)
	keys := make([]string, len(formats))
	for i, f := range formats {
		keys[i] = f.Key
	}
	assert.Contains(t, keys, "startkladde-de")
	assert.Contains(t, keys, "startkladde-en")

	for _, f := range formats {
		if f.Key == "startkladde-de" {
			assert.Contains(t, f.Headers, "pilot nachname")
		}
	}
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, testConfig())

	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, store.DriverSQLite, resp.Database)
	assert.Equal(t, 1, resp.Imports.Slots)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	require.NoError(t, s.db.Close())
	rec = s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// =============================================================================
// Middleware
// =============================================================================

func TestAPIKeyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	s := newTestServer(t, cfg)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusForbidden, s.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/formats", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, s.do(req).Code)

	// Health checks stay open.
	assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = 2
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 1, window: time.Minute, now: func() time.Time { return now }}

	assert.True(t, rl.allow("1.2.3.4"))
	assert.False(t, rl.allow("1.2.3.4"))
	assert.True(t, rl.allow("5.6.7.8"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("1.2.3.4"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{"IMP002", http.StatusServiceUnavailable},
		{"IMP003", http.StatusBadRequest},
		{"FILE002", http.StatusBadRequest},
		{"VAL003", http.StatusBadRequest},
		{"REQ002", http.StatusGatewayTimeout},
		{"DB004", http.StatusInternalServerError},
		{"ERR000", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.code), tt.code)
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	s := newTestServer(t, testConfig())
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.True(t, strings.HasPrefix(s.cfg.Server.Addr(), ":"))
}
