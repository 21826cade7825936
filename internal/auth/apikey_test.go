package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func testRouter(apiKey, adminKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyMiddleware(apiKey, adminKey))
	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": IsAdmin(c)})
	})
	admin := r.Group("")
	admin.Use(RequireAdmin())
	admin.GET("/admin", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func do(r *gin.Engine, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyMiddleware(t *testing.T) {
	r := testRouter("operator-key", "admin-key")

	assert.Equal(t, http.StatusUnauthorized, do(r, "/open", "").Code)
	assert.Equal(t, http.StatusForbidden, do(r, "/open", "wrong").Code)
	assert.Equal(t, http.StatusOK, do(r, "/open", "operator-key").Code)
	assert.Equal(t, http.StatusOK, do(r, "/open", "admin-key").Code)
}

func TestRequireAdmin(t *testing.T) {
	r := testRouter("operator-key", "admin-key")

	assert.Equal(t, http.StatusForbidden, do(r, "/admin", "operator-key").Code)
	assert.Equal(t, http.StatusOK, do(r, "/admin", "admin-key").Code)
}

func TestAuthDisabledTreatsCallerAsAdmin(t *testing.T) {
	r := testRouter("", "")

	w := do(r, "/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"admin":true`)

	assert.Equal(t, http.StatusOK, do(r, "/admin", "").Code)
}
