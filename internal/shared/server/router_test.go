package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"sealdeal-backend/internal/shared/auth"
	"sealdeal-backend/internal/shared/config"
	"sealdeal-backend/internal/shared/server/middleware"
)

type whoami struct{}

func (whoami) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.UserIDFromContext(c))
	})
}

type fakeChat struct{}

func (fakeChat) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", func(c *gin.Context) { c.Status(http.StatusOK) })
}

func (fakeChat) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/chat/health", func(c *gin.Context) { c.Status(http.StatusOK) })
}

func newTestRouter(t *testing.T) (*gin.Engine, *auth.Tokens) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := auth.NewTokens("dev", "router-secret")
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	r := NewRouter(RouterDeps{
		Config: config.Config{
			Env:                "dev",
			RateLimitRPS:       100,
			RateLimitBurst:     100,
			ChatRateLimitRPS:   1,
			ChatRateLimitBurst: 1,
		},
		Tokens: tokens,
		Users:  whoami{},
		Chat:   fakeChat{},
	})
	return r, tokens
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/chat/health", "/metrics"} {
		if resp := serve(r, http.MethodGet, path, ""); resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.Code)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r, tokens := newTestRouter(t)

	if resp := serve(r, http.MethodGet, "/api/v1/whoami", ""); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}

	tok, err := tokens.Sign("user-7", "", "")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	resp := serve(r, http.MethodGet, "/api/v1/whoami", tok)
	if resp.Code != http.StatusOK || resp.Body.String() != "user-7" {
		t.Fatalf("unexpected response %d %q", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestChatHasItsOwnRateLimit(t *testing.T) {
	r, tokens := newTestRouter(t)
	tok, _ := tokens.Sign("user-8", "", "")

	if resp := serve(r, http.MethodPost, "/api/v1/chat", tok); resp.Code != http.StatusOK {
		t.Fatalf("expected first chat to pass, got %d", resp.Code)
	}
	resp := serve(r, http.MethodPost, "/api/v1/chat", tok)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "rate_limited") {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if resp := serve(r, http.MethodGet, "/api/v1/whoami", tok); resp.Code != http.StatusOK {
		t.Fatalf("default group should be unaffected, got %d", resp.Code)
	}
}

func TestAddr(t *testing.T) {
	cases := map[string]string{"": ":8080", "3000": ":3000", ":9000": ":9000"}
	for in, want := range cases {
		if got := Addr(in); got != want {
			t.Fatalf("Addr(%q) = %q, want %q", in, got, want)
		}
	}
}
