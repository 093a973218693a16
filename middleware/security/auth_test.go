package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sec "RPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", Middleware(DefaultOptions(secret)), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(PPCtxSubjectKey))
	})
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareAcceptsAdminToken(t *testing.T) {
	tok, _, err := sec.Generate(sec.DefaultOptions(secret), "ops", []string{sec.ScopeAdmin})
	require.NoError(t, err)

	r := newEngine()
	w := do(r, "Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ops", w.Body.String())

	w = do(r, "X-Auth-Token", tok)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMiddlewareRejects(t *testing.T) {
	noScope, _, err := sec.Generate(sec.DefaultOptions(secret), "player", nil)
	require.NoError(t, err)
	otherKey, _, err := sec.Generate(sec.DefaultOptions([]byte("other")), "ops", []string{sec.ScopeAdmin})
	require.NoError(t, err)

	r := newEngine()
	for name, authz := range map[string]string{
		"missing":   "",
		"garbage":   "Bearer nope",
		"no scope":  "Bearer " + noScope,
		"wrong key": "Bearer " + otherKey,
		"no bearer": "Basic abc",
	} {
		t.Run(name, func(t *testing.T) {
			w := do(r, "Authorization", authz)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
		})
	}
}
