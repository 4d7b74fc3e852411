package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paintress/paintress-sync/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func workspaceRouter(svc *auth.AuthService) *gin.Engine {
	r := gin.New()
	r.GET("/ws", JWTAuth(svc), func(c *gin.Context) {
		c.String(http.StatusOK, Workspace(c))
	})
	return r
}

func TestJWTAuthEnabled(t *testing.T) {
	svc := auth.NewAuthService(&auth.Config{
		Enabled:           true,
		TokenIssuer:       "test",
		AccessTokenSecret: "0123456789abcdef0123456789abcdef",
		AccessTokenExpiry: time.Hour,
	})
	token, err := svc.IssueToken("team", 0)
	require.NoError(t, err)

	r := workspaceRouter(svc)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "team"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"no bearer prefix", token, http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc", http.StatusUnauthorized, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.body, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), "E_AUTH_INVALID_CREDENTIALS")
			}
		})
	}
}

func TestJWTAuthDisabledUsesDefaultWorkspace(t *testing.T) {
	svc := auth.NewAuthService(&auth.Config{Enabled: false, DefaultWorkspace: "default"})
	r := workspaceRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "default", w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	_, err := RateLimiter("not-a-rate")
	assert.Error(t, err)

	limit, err := RateLimiter("2-M")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/", limit, func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
