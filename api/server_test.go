package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(router http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_DefaultOrigins(t *testing.T) {
	// GIVEN no configured origins
	env := setupTestEnv(t, nil)
	router := NewRouter(env.handler, nil)

	// WHEN the dashboard and an unknown site call the API
	allowed := corsRequest(router, "http://localhost:5173")
	denied := corsRequest(router, "http://elsewhere.test")

	// THEN only the default origin is allowed, with credentials
	assert.Equal(t, "http://localhost:5173", allowed.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", allowed.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_WildcardOriginDropsCredentials(t *testing.T) {
	env := setupTestEnv(t, nil)
	router := NewRouter(env.handler, []string{"*"})

	rec := corsRequest(router, "http://elsewhere.test")

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}
