package dispatch

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyroute/polyroute/internal/host"
	"github.com/polyroute/polyroute/internal/route"
)

func matchFor(t *testing.T, def route.RouteDefinition, path string) *route.Match {
	t.Helper()
	ix, err := route.NewIndex("my-app", "prod", []route.RouteDefinition{def})
	require.NoError(t, err)
	m, err := ix.Match(def.Method, path)
	require.NoError(t, err)
	return m
}

func TestBackendID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "node_setup_v1_prod", BackendID("v1", "prod"))
	assert.Equal(t, "node_setup_abc-123_dev", BackendID("abc-123", "dev"))
}

func TestBuildPayload_HopHeadersStripped(t *testing.T) {
	t.Parallel()

	req := testRequest("GET", "my-app-prod.example.com", "/api/users/42")
	req.Headers.Set("Connection", "keep-alive")
	req.Headers.Set("Keep-Alive", "timeout=5")
	req.Headers.Set("Transfer-Encoding", "chunked")
	req.Headers.Set("Upgrade", "h2c")
	req.Headers.Set("Te", "trailers")
	req.Headers.Set("X-Custom", "kept")
	req.Headers.Set("Authorization", "Bearer tok")

	m := matchFor(t, userRouteDef(), "/api/users/42")
	payload := buildPayload(req, host.Tenant{ProjectID: "my-app", Stage: "prod"}, m)

	assert.Equal(t, "kept", payload.Headers["X-Custom"])
	assert.Equal(t, "Bearer tok", payload.Headers["Authorization"])
	for _, name := range hopHeaders {
		assert.NotContains(t, payload.Headers, name)
	}
}

func TestBuildPayload_FirstValueWins(t *testing.T) {
	t.Parallel()

	req := testRequest("GET", "my-app-prod.example.com", "/api/users/42")
	req.Headers.Add("X-Multi", "one")
	req.Headers.Add("X-Multi", "two")
	req.Query = url.Values{"tag": {"alpha", "beta"}}

	m := matchFor(t, userRouteDef(), "/api/users/42")
	payload := buildPayload(req, host.Tenant{ProjectID: "my-app", Stage: "prod"}, m)

	assert.Equal(t, "one", payload.Headers["X-Multi"])
	assert.Equal(t, "alpha", payload.Query["tag"])
}

func TestBuildPayload_BodyOnlyForBodiedMethods(t *testing.T) {
	t.Parallel()

	def := userRouteDef()

	tests := []struct {
		method   string
		wantBody string
	}{
		{method: "POST", wantBody: `{"n":1}`},
		{method: "PUT", wantBody: `{"n":1}`},
		{method: "PATCH", wantBody: `{"n":1}`},
		{method: "GET", wantBody: ""},
		{method: "DELETE", wantBody: ""},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()

			d := def
			d.Method = tt.method

			req := testRequest(tt.method, "my-app-prod.example.com", "/api/users/42")
			req.Body = []byte(`{"n":1}`)

			m := matchFor(t, d, "/api/users/42")
			payload := buildPayload(req, host.Tenant{ProjectID: "my-app", Stage: "prod"}, m)

			assert.Equal(t, tt.wantBody, payload.Body)
			assert.Equal(t, tt.method, payload.Method)
		})
	}
}

func TestBuildPayload_HeaderNamesCanonicalized(t *testing.T) {
	t.Parallel()

	req := testRequest("GET", "my-app-prod.example.com", "/api/users/42")
	// Bypass Set so the stored key keeps its raw casing.
	req.Headers["x-raw-key"] = []string{"v"}
	req.Headers["connection"] = []string{"close"}

	m := matchFor(t, userRouteDef(), "/api/users/42")
	payload := buildPayload(req, host.Tenant{ProjectID: "my-app", Stage: "prod"}, m)

	assert.Equal(t, "v", payload.Headers["X-Raw-Key"])
	assert.NotContains(t, payload.Headers, "connection")
	assert.NotContains(t, payload.Headers, "Connection")
}

func TestBuildPayload_PathWithoutLeadingSlash(t *testing.T) {
	t.Parallel()

	req := testRequest("GET", "my-app-prod.example.com", "/api/users/42")
	m := matchFor(t, userRouteDef(), "/api/users/42")
	payload := buildPayload(req, host.Tenant{ProjectID: "my-app", Stage: "prod"}, m)

	assert.Equal(t, "api/users/42", payload.Path)
}

func TestIsHopHeader(t *testing.T) {
	t.Parallel()

	assert.True(t, isHopHeader("Connection"))
	assert.True(t, isHopHeader("Proxy-Authorization"))
	assert.False(t, isHopHeader("Content-Type"))
	assert.False(t, isHopHeader(http.CanonicalHeaderKey("x-api-key")))
}
