package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubilitics/kubilitics-topology/internal/models"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/topologycache"
	"github.com/kubilitics/kubilitics-topology/internal/repository"
	"github.com/kubilitics/kubilitics-topology/internal/service"
	"github.com/kubilitics/kubilitics-topology/internal/source"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()
	builtin, err := source.Builtin()
	require.NoError(t, err)
	repo, err := repository.NewSQLiteRepository(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	svc := service.NewViewService(source.NewRegistry(builtin...), topologycache.New(8, time.Minute), repo, zap.NewNop(),
		service.Options{DefaultLayout: "stack", MaxViews: 10})

	router := mux.NewRouter()
	SetupHealthRoutes(router, NewHealthzHandler(repo))
	api := router.PathPrefix("/api/v1").Subrouter()
	SetupRoutes(api, NewHandler(svc, zap.NewNop()))
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.ViewModel {
	t.Helper()
	var vm models.ViewModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vm), rec.Body.String())
	return vm
}

func createView(t *testing.T, router http.Handler, body string) models.ViewModel {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/v1/views", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeView(t, rec)
}

func TestAPI_GET_Layouts(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/api/v1/layouts", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, []string{"stack", "star"}, out["layouts"])
}

func TestAPI_Health(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/health", "/healthz/live", "/healthz/ready"} {
		rec := do(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk gone") }

func TestAPI_Ready_DatabaseDown(t *testing.T) {
	router := mux.NewRouter()
	SetupHealthRoutes(router, NewHealthzHandler(failingPinger{}))
	rec := do(t, router, http.MethodGet, "/healthz/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database_unavailable")
}

func TestAPI_ViewLifecycle(t *testing.T) {
	router := newTestRouter(t)

	vm := createView(t, router, `{"layout":"stack","scope":{"kind":"pod","id":"pod-payments-1"}}`)
	require.NotNil(t, vm.Selection)
	assert.Equal(t, "pod-payments-1", *vm.Selection)
	require.NotNil(t, vm.Detail)
	base := "/api/v1/views/" + vm.ViewID

	rec := do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	tag := rec.Header().Get("ETag")
	require.NotEmpty(t, tag)

	req := httptest.NewRequest(http.MethodGet, base, nil)
	req.Header.Set("If-None-Match", tag)
	notModified := httptest.NewRecorder()
	router.ServeHTTP(notModified, req)
	assert.Equal(t, http.StatusNotModified, notModified.Code)

	rec = do(t, router, http.MethodPost, base+"/filters/toggle", `{"key":"ns:default"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	vm = decodeView(t, rec)
	assert.Equal(t, []string{"ns:default"}, vm.ActiveFilters)
	for _, n := range vm.Nodes {
		assert.NotContains(t, n.ID, "system")
	}
	assert.NotEqual(t, tag, rec.Header().Get("ETag"))

	rec = do(t, router, http.MethodPost, base+"/select", `{"node_id":"svc-frontend"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	vm = decodeView(t, rec)
	require.NotNil(t, vm.Selection)
	assert.Equal(t, "svc-frontend", *vm.Selection)

	rec = do(t, router, http.MethodGet, base+"/detail", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail models.TopologyNode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "svc-frontend", detail.ID)

	rec = do(t, router, http.MethodPost, base+"/deselect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	vm = decodeView(t, rec)
	assert.Nil(t, vm.Selection)
	for _, n := range vm.Nodes {
		assert.Equal(t, 1.0, n.Visual.Opacity)
	}

	rec = do(t, router, http.MethodGet, base+"/detail", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodPut, base+"/scope", `{"kind":"cluster","refresh":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	vm = decodeView(t, rec)
	assert.Equal(t, models.ScopeCluster, vm.Scope.Kind)
	assert.Equal(t, []string{"ns:default"}, vm.ActiveFilters)

	rec = do(t, router, http.MethodGet, base+"/snapshots?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snaps []models.TopologySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "stack", snaps[0].Layout)

	rec = do(t, router, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_Errors(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown layout", http.MethodPost, "/api/v1/views", `{"layout":"mesh"}`, http.StatusNotFound, ErrCodeNotFound},
		{"invalid scope", http.MethodPost, "/api/v1/views", `{"scope":{"kind":"galaxy"}}`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"malformed body", http.MethodPost, "/api/v1/views", `{"layout":`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"missing view", http.MethodGet, "/api/v1/views/nope", "", http.StatusNotFound, ErrCodeNotFound},
		{"missing view select", http.MethodPost, "/api/v1/views/nope/select", `{"node_id":"x"}`, http.StatusNotFound, ErrCodeNotFound},
		{"empty filter key", http.MethodPost, "/api/v1/views/nope/filters/toggle", `{}`, http.StatusBadRequest, ErrCodeInvalidRequest},
		{"bad limit", http.MethodGet, "/api/v1/views/nope/snapshots?limit=-1", "", http.StatusBadRequest, ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			var apiErr APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
			assert.Equal(t, tt.code, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestAPI_DefaultsLayoutAndScope(t *testing.T) {
	router := newTestRouter(t)
	vm := createView(t, router, "")
	assert.Equal(t, "stack", vm.Layout)
	assert.Equal(t, models.ScopeGlobal, vm.Scope.Kind)
	assert.Nil(t, vm.Selection)
}
