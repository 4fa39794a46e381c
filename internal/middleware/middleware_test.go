package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protected(role string) *gin.Engine {
	r := gin.New()
	r.GET("/p", RequireAuthWithRole(role), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("username")})
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenRoundTrip(t *testing.T) {
	SetSecret("test-secret")
	tok, err := GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	SetSecret("rotated")
	if _, err := ValidateToken(tok); err == nil {
		t.Errorf("token signed with old secret should fail")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	SetSecret("test-secret")
	claims := Claims{
		Username: "admin",
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if _, err := ValidateToken(tok); err == nil {
		t.Errorf("expired token accepted")
	}
}

func TestRequireAuthWithRole(t *testing.T) {
	SetSecret("test-secret")
	admin, _ := GenerateToken("root", "admin")
	viewer, _ := GenerateToken("eve", "viewer")
	r := protected("admin")

	cases := []struct {
		name string
		auth string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + viewer, http.StatusForbidden},
		{"ok", "Bearer " + admin, http.StatusOK},
	}
	for _, tc := range cases {
		if w := get(r, tc.auth); w.Code != tc.want {
			t.Errorf("%s: status = %d, want %d (%s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestEnableCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	h := EnableCORS(CORSOptions{AllowedOrigins: []string{"http://dash.local"}, MaxAge: 10 * time.Minute})(next)

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/admin/frames", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	w := preflight("http://dash.local")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Errorf("allow-origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Max-Age"); got != "600" {
		t.Errorf("max-age = %q", got)
	}

	w = preflight("http://evil.example")
	if w.Code != http.StatusForbidden || w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("foreign preflight: %d %v", w.Code, w.Header())
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/devices", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTeapot {
		t.Errorf("request not forwarded: %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" || w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Errorf("foreign origin got CORS headers: %v", w.Header())
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Errorf("vary = %q", w.Header().Get("Vary"))
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusTeapot || w.Header().Get("Vary") != "" {
		t.Errorf("plain request: %d %v", w.Code, w.Header())
	}
}

func TestEnableCORS_Wildcard(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	h := EnableCORS(CORSOptions{AllowedOrigins: []string{"*"}})(next)

	req := httptest.NewRequest(http.MethodOptions, "/admin/frames", nil)
	req.Header.Set("Origin", "http://anything.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://anything.local" {
		t.Errorf("allow-origin = %q", got)
	}
	if w.Header().Get("Access-Control-Max-Age") != "" {
		t.Errorf("max-age set without MaxAge")
	}
}
