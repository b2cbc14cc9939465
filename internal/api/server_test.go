package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ssot-registry/internal/audit"
	"github.com/ajitpratap0/ssot-registry/internal/conflict"
	"github.com/ajitpratap0/ssot-registry/internal/models"
	"github.com/ajitpratap0/ssot-registry/internal/registry"
	"github.com/ajitpratap0/ssot-registry/internal/store"
)

type testEnv struct {
	ts  *httptest.Server
	reg *registry.Registry
}

// newTestServer wires a registry, detector and SQLite audit engine behind
// an httptest server.
func newTestServer(t *testing.T, authToken string) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	eng, err := audit.Open(ctx, audit.Options{
		Path:      filepath.Join(t.TempDir(), "audit.db"),
		ReportDir: t.TempDir(),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	reg := registry.New(store.NewMockStore(), nil, eng, nil, logger, registry.Options{})
	det := conflict.NewDetector(reg, reg, reg, conflict.DefaultConfig(), logger)
	srv := NewServer(reg, det, eng, logger, authToken)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, reg: reg}
}

func doRequest(t *testing.T, method, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	var rdr io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/metrics", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestAuth(t *testing.T) {
	env := newTestServer(t, "secret")

	resp := doRequest(t, http.MethodGet, env.ts.URL+"/v1/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/stats", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, env.ts.URL+"/v1/stats", nil, map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAliasLifecycleOverHTTP(t *testing.T) {
	env := newTestServer(t, "")
	base := env.ts.URL
	actor := map[string]string{HeaderActor: "u1", HeaderSessionID: "sess-9"}

	resp := doRequest(t, http.MethodPost, base+"/v1/anchors", map[string]any{"id": "A1", "owner": "team1", "family": "api"}, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	anchor := decodeBody[models.Anchor](t, resp)
	assert.Equal(t, "team1", anchor.Owner)

	resp = doRequest(t, http.MethodPost, base+"/v1/anchors", map[string]any{"id": "A1"}, actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	add := map[string]any{"name": "checkout", "canonical": "A1", "context": "frontend", "type": "permanent"}
	resp = doRequest(t, http.MethodPost, base+"/v1/aliases", add, actor)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	alias := decodeBody[models.AliasDefinition](t, resp)
	assert.Equal(t, "u1", alias.CreatedBy, "creator defaults to the caller")

	resp = doRequest(t, http.MethodPost, base+"/v1/aliases", add, actor)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/v1/aliases/frontend/checkout/resolve", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, resolveResponse{Name: "checkout", Context: "frontend", Canonical: "A1"}, decodeBody[resolveResponse](t, resp))

	resp = doRequest(t, http.MethodGet, base+"/v1/aliases/backend/checkout/resolve", nil, actor)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/v1/aliases?context=frontend", nil, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[map[string][]models.AliasDefinition](t, resp)
	assert.Len(t, list["aliases"], 1)

	resp = doRequest(t, http.MethodPost, base+"/v1/aliases/frontend/checkout/deprecate", map[string]any{"reason": "replaced"}, actor)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, http.MethodGet, base+"/v1/aliases/frontend/checkout/resolve", nil, actor)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodDelete, base+"/v1/aliases/frontend/checkout", nil, actor)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, http.MethodGet, base+"/v1/aliases/frontend/checkout", nil, actor)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidationAndExpiry(t *testing.T) {
	env := newTestServer(t, "")
	base := env.ts.URL
	_, err := env.reg.RegisterAnchor(context.Background(), "A1", models.AnchorAttributes{Owner: "team1"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, base+"/v1/aliases",
		map[string]any{"name": "tmp", "canonical": "A1", "context": "global", "type": "temporary"}, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "no_temporary_in_reserved_context", body["rule"])

	resp = doRequest(t, http.MethodPost, base+"/v1/aliases",
		map[string]any{"name": "flash", "canonical": "A1", "context": "sale", "type": "permanent", "expires_in_days": 0}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = doRequest(t, http.MethodGet, base+"/v1/aliases/sale/flash/resolve", nil, nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/v1/anchors/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, base+"/v1/aliases", strings.NewReader("{bad"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestPendingApprovalOverHTTP(t *testing.T) {
	env := newTestServer(t, "")
	base := env.ts.URL
	_, err := env.reg.RegisterAnchor(context.Background(), "A1", models.AnchorAttributes{Owner: "team1"})
	require.NoError(t, err)

	resp := doRequest(t, http.MethodPost, base+"/v1/aliases",
		map[string]any{"name": "beta", "canonical": "A1", "context": "web", "type": "permanent", "requires_approval": true}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/v1/aliases/web/beta/approve", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "approver required")

	resp = doRequest(t, http.MethodPost, base+"/v1/aliases/web/beta/approve", nil, map[string]string{HeaderActor: "lead"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lead", decodeBody[models.AliasDefinition](t, resp).ApprovedBy)
}

func TestConflictsOverHTTP(t *testing.T) {
	env := newTestServer(t, "")
	base := env.ts.URL
	ctx := context.Background()
	for _, id := range []string{"A1", "A2"} {
		_, err := env.reg.RegisterAnchor(ctx, id, models.AnchorAttributes{Owner: "team"})
		require.NoError(t, err)
	}
	for _, c := range []struct{ context, canonical string }{{"frontend", "A1"}, {"backend", "A2"}} {
		_, err := env.reg.AddAlias(ctx, registry.AddAliasRequest{
			Name: "checkout", Canonical: c.canonical, Context: c.context, Type: models.AliasTypePermanent,
		})
		require.NoError(t, err)
	}

	resp := doRequest(t, http.MethodPost, base+"/v1/conflicts/scan", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	found := decodeBody[map[string][]models.ConflictDetection](t, resp)["conflicts"]
	require.Len(t, found, 1)

	resp = doRequest(t, http.MethodPost, base+"/v1/conflicts/"+found[0].ID+"/resolve",
		map[string]any{"strategy": "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/v1/conflicts/"+found[0].ID+"/resolve",
		map[string]any{"strategy": "first_wins", "approved_by": "alice"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decodeBody[models.ConflictResolution](t, resp)
	assert.True(t, res.Success)

	resp = doRequest(t, http.MethodPost, base+"/v1/conflicts/"+found[0].ID+"/resolve",
		map[string]any{"strategy": "first_wins"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, http.MethodPost, base+"/v1/conflicts/nope/resolve", map[string]any{}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuditOverHTTP(t *testing.T) {
	env := newTestServer(t, "")
	base := env.ts.URL
	headers := map[string]string{HeaderActor: "ops", "User-Agent": "ssot-test/1", HeaderSessionID: "s-42"}

	resp := doRequest(t, http.MethodPost, base+"/v1/anchors", map[string]any{"id": "A1", "owner": "team1"}, headers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, base+"/v1/audit?operation=register_anchor&performed_by=ops", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeBody[audit.QueryResult](t, resp)
	require.EqualValues(t, 1, result.Total)
	entry := result.Entries[0]
	assert.Equal(t, "A1", entry.EntityID)
	assert.Equal(t, "ssot-test/1", entry.UserAgent)
	assert.Equal(t, "s-42", entry.SessionID)
	assert.Equal(t, "127.0.0.1", entry.IPAddress)

	resp = doRequest(t, http.MethodGet, base+"/v1/audit/stats", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[audit.Statistics](t, resp)
	assert.EqualValues(t, 1, stats.TotalEntries)

	resp = doRequest(t, http.MethodGet, base+"/v1/audit?level=loud", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = doRequest(t, http.MethodGet, base+"/v1/audit/stats?top=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", registry.ErrAliasNotFound), http.StatusNotFound},
		{conflict.ErrConflictNotFound, http.StatusNotFound},
		{registry.ErrConflict, http.StatusConflict},
		{conflict.ErrAlreadyResolved, http.StatusConflict},
		{conflict.ErrResolutionInProgress, http.StatusConflict},
		{&registry.ValidationError{Rule: "r", Message: "m"}, http.StatusBadRequest},
		{conflict.ErrInvalidStrategy, http.StatusBadRequest},
		{conflict.ErrStrategyNotApplicable, http.StatusBadRequest},
		{fmt.Errorf("x: %w", registry.ErrExpiredAlias), http.StatusGone},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}
