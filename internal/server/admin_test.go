package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyroute/polyroute/internal/admin"
	"github.com/polyroute/polyroute/internal/dispatch"
	"github.com/polyroute/polyroute/internal/invoke"
	"github.com/polyroute/polyroute/internal/observability"
	"github.com/polyroute/polyroute/internal/route"
	"github.com/polyroute/polyroute/internal/util"
)

// fakeStore is an in-memory AdminStore keeping per-project insertion
// order.
type fakeStore struct {
	mu       sync.Mutex
	projects map[string][]route.RouteDefinition
	getErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{projects: make(map[string][]route.RouteDefinition)}
}

func (s *fakeStore) ListRoutes(_ context.Context, projectID string) ([]route.RouteDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := s.projects[projectID]
	out := make([]route.RouteDefinition, len(defs))
	copy(out, defs)
	return out, nil
}

func (s *fakeStore) GetRoute(_ context.Context, projectID, routeID string) (*route.RouteDefinition, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range s.projects[projectID] {
		if def.ID == routeID {
			copied := def
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("route %s of project %s: %w", routeID, projectID, util.ErrNotFound)
}

func (s *fakeStore) PutRoute(_ context.Context, projectID string, def route.RouteDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.projects[projectID] {
		if existing.ID == def.ID {
			s.projects[projectID][i] = def
			return nil
		}
	}
	s.projects[projectID] = append(s.projects[projectID], def)
	return nil
}

func (s *fakeStore) DeleteRoute(_ context.Context, projectID, routeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defs := s.projects[projectID]
	for i, def := range defs {
		if def.ID == routeID {
			s.projects[projectID] = append(defs[:i], defs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("route %s of project %s: %w", routeID, projectID, util.ErrNotFound)
}

func newAdminEngine(fs *fakeStore) *gin.Engine {
	engine := gin.New()
	service := admin.NewService(fs, observability.NopLogger())
	registerAdminRoutes(engine, service, observability.NopLogger())
	return engine
}

// newTestServerWithAdmin builds a full server with the admin surface
// mounted next to the tenant catch-all.
func newTestServerWithAdmin(t *testing.T, fs *fakeStore) (*Server, *srvInvoker) {
	t.Helper()

	ix, err := route.NewIndex("my-app", "prod", []route.RouteDefinition{serverRouteDef()})
	require.NoError(t, err)

	inv := &srvInvoker{result: &invoke.Result{Status: http.StatusOK, Body: "ok"}}
	d, err := dispatch.NewDispatcher(dispatch.Config{
		Routes:  &srvRoutes{ix: ix},
		Invoker: inv,
		Logger:  observability.NopLogger(),
	})
	require.NoError(t, err)

	s, err := NewServer(Options{}, Deps{
		Dispatcher: d,
		Admin:      admin.NewService(fs, observability.NopLogger()),
		Logger:     observability.NopLogger(),
	})
	require.NoError(t, err)

	return s, inv
}

func adminJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeJSONBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

const orderRouteJSON = `{
	"id": "r1",
	"method": "GET",
	"segments": [
		{"type": "static", "name": "orders"},
		{"type": "variable", "name": "order_id", "variable_type": "number"}
	],
	"node_setup_version_id": "v1",
	"tenant_id": "tenant-1"
}`

func TestAdminPutRoute(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	engine := newAdminEngine(fs)

	body := fmt.Sprintf(`{"project_id":"checkout","stage":"prod","route":%s}`, orderRouteJSON)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes", body))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeJSONBody(t, rec)
	assert.Equal(t, "route updated successfully", resp["message"])
	assert.Equal(t, []any{"prod"}, resp["active_stages"])

	stored, err := fs.GetRoute(context.Background(), "checkout", "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, stored.ActiveStages)
}

func TestAdminPutRoute_SecondStageMerges(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	engine := newAdminEngine(fs)

	for _, stage := range []string{"dev", "prod"} {
		body := fmt.Sprintf(`{"project_id":"checkout","stage":%q,"route":%s}`, stage, orderRouteJSON)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes", body))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	stored, err := fs.GetRoute(context.Background(), "checkout", "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "prod"}, stored.ActiveStages)
}

func TestAdminPutRoute_BindingFailure(t *testing.T) {
	t.Parallel()

	engine := newAdminEngine(newFakeStore())

	// Stage is missing.
	body := fmt.Sprintf(`{"project_id":"checkout","route":%s}`, orderRouteJSON)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeJSONBody(t, rec)["error"])
}

func TestAdminPutRoute_InvalidDefinition(t *testing.T) {
	t.Parallel()

	engine := newAdminEngine(newFakeStore())

	// Route has no method.
	body := `{"project_id":"checkout","stage":"prod","route":{"id":"r1","segments":[]}}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_route", decodeJSONBody(t, rec)["error"])
}

func TestAdminPutRoute_StoreFailure(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	fs.getErr = fmt.Errorf("redis gone")
	engine := newAdminEngine(fs)

	body := fmt.Sprintf(`{"project_id":"checkout","stage":"prod","route":%s}`, orderRouteJSON)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes", body))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeJSONBody(t, rec)["error"])
}

func TestAdminDeactivateRoute(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	def := route.RouteDefinition{
		ID:                 "r1",
		Method:             "GET",
		Segments:           []route.Segment{{Kind: route.KindStatic, Name: "orders"}},
		NodeSetupVersionID: "v1",
		ActiveStages:       []string{"dev", "prod"},
	}
	require.NoError(t, fs.PutRoute(context.Background(), "checkout", def))

	engine := newAdminEngine(fs)

	body := `{"project_id":"checkout","stage":"prod","route_id":"r1"}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes/deactivate", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `stage "prod" deactivated for route "r1"`, decodeJSONBody(t, rec)["message"])

	stored, err := fs.GetRoute(context.Background(), "checkout", "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, stored.ActiveStages)
}

func TestAdminDeactivateRoute_MissingRoute(t *testing.T) {
	t.Parallel()

	engine := newAdminEngine(newFakeStore())

	body := `{"project_id":"checkout","stage":"prod","route_id":"ghost"}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodPost, "/admin/routes/deactivate", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeJSONBody(t, rec)["error"])
}

func TestAdminDeleteRoute(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	def := route.RouteDefinition{
		ID:                 "r1",
		Method:             "GET",
		Segments:           []route.Segment{{Kind: route.KindStatic, Name: "orders"}},
		NodeSetupVersionID: "v1",
		ActiveStages:       []string{"prod"},
	}
	require.NoError(t, fs.PutRoute(context.Background(), "checkout", def))

	engine := newAdminEngine(fs)

	body := `{"project_id":"checkout","route_id":"r1"}`
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodDelete, "/admin/routes", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "route deleted successfully", decodeJSONBody(t, rec)["message"])

	// Deleting again reports not found.
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, adminJSONRequest(http.MethodDelete, "/admin/routes", body))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminListRoutes(t *testing.T) {
	t.Parallel()

	fs := newFakeStore()
	for _, id := range []string{"zz", "aa"} {
		def := route.RouteDefinition{
			ID:                 id,
			Method:             "GET",
			Segments:           []route.Segment{{Kind: route.KindStatic, Name: id}},
			NodeSetupVersionID: "v1",
			ActiveStages:       []string{"prod"},
		}
		require.NoError(t, fs.PutRoute(context.Background(), "checkout", def))
	}

	engine := newAdminEngine(fs)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/routes/checkout", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var defs []route.RouteDefinition
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &defs))
	require.Len(t, defs, 2)
	assert.Equal(t, "zz", defs[0].ID)
	assert.Equal(t, "aa", defs[1].ID)
}

func TestAdminListRoutes_UnknownProjectReturnsEmptyArray(t *testing.T) {
	t.Parallel()

	engine := newAdminEngine(newFakeStore())

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/routes/ghost", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestServer_MountsAdminRoutes(t *testing.T) {
	t.Parallel()

	s, _ := newTestServerWithAdmin(t, newFakeStore())

	// Admin paths answer regardless of the Host header.
	req := httptest.NewRequest(http.MethodGet, "http://my-app-prod.example.com/admin/routes/checkout", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
