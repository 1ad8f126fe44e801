package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/judyrop/epicerie-backend/config"
)

const (
	adminEmail    = "admin@epicerie.fr"
	adminPassword = "s3cret-baguette"
)

func newTestGate(t *testing.T) *Gate {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return NewGate(&config.Config{
		AdminEmail:        adminEmail,
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret",
	})
}

func setupRouter(g *Gate) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/auth/login", g.LoginHandler)
	r.GET("/api/auth/logout", g.LogoutHandler)
	r.GET("/admin/login", g.LoginPage)
	r.GET("/admin", g.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": CurrentAdmin(c)})
	})
	r.GET("/api/orders", g.RequireAdmin(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin": CurrentAdmin(c)})
	})
	return r
}

type stubVerifier struct{ subject string }

func (s stubVerifier) Verify(_ context.Context, raw string) (*oidc.IDToken, error) {
	if raw != "good-id-token" {
		return nil, errors.New("bad token")
	}
	return &oidc.IDToken{Subject: s.subject}, nil
}

func TestLogin(t *testing.T) {
	g := newTestGate(t)

	token, err := g.Login(adminEmail, adminPassword)
	require.NoError(t, err)

	email, err := g.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, adminEmail, email)
}

func TestLogin_Rejected(t *testing.T) {
	g := newTestGate(t)

	_, err := g.Login(adminEmail, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = g.Login("other@epicerie.fr", adminPassword)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_NoHashConfigured(t *testing.T) {
	g := NewGate(&config.Config{AdminEmail: adminEmail, JWTSecret: "x"})

	_, err := g.Login(adminEmail, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseToken_Expired(t *testing.T) {
	g := newTestGate(t)
	g.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, err := g.IssueToken(adminEmail)
	require.NoError(t, err)

	g.now = time.Now
	_, err = g.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseToken_WrongTypeOrKey(t *testing.T) {
	g := newTestGate(t)

	verify := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": adminEmail, "typ": "verify", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := verify.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = g.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewGate(&config.Config{JWTSecret: "another-secret"})
	forged, err := other.IssueToken(adminEmail)
	require.NoError(t, err)
	_, err = g.ParseToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = g.ParseToken("true")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginHandler(t *testing.T) {
	g := newTestGate(t)
	r := setupRouter(g)

	form := url.Values{"email": {adminEmail}, "password": {adminPassword}}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, int(SessionTTL.Seconds()), cookies[0].MaxAge)
}

func TestLoginHandler_Invalid(t *testing.T) {
	r := setupRouter(newTestGate(t))

	form := url.Values{"email": {adminEmail}, "password": {"nope"}}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin/login?error=invalid", w.Header().Get("Location"))
	assert.Empty(t, w.Result().Cookies())
}

func TestLogoutHandler(t *testing.T) {
	r := setupRouter(newTestGate(t))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/auth/logout", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestRequireAdmin(t *testing.T) {
	g := newTestGate(t)
	r := setupRouter(g)
	token, err := g.IssueToken(adminEmail)
	require.NoError(t, err)

	cases := []struct {
		name     string
		path     string
		cookie   string
		status   int
		location string
	}{
		{"page without cookie", "/admin", "", http.StatusSeeOther, "/admin/login"},
		{"api without cookie", "/api/orders", "", http.StatusUnauthorized, ""},
		{"presence only cookie", "/api/orders", "true", http.StatusUnauthorized, ""},
		{"page with session", "/admin", token, http.StatusOK, ""},
		{"api with session", "/api/orders", token, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tc.path, nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tc.cookie})
			}
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.location != "" {
				assert.Equal(t, tc.location, w.Header().Get("Location"))
			}
		})
	}
}

func TestRequireAdmin_OIDCBearer(t *testing.T) {
	g := newTestGate(t)
	g.SetVerifier(stubVerifier{subject: "google-oauth2|42"})
	r := setupRouter(g)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer good-id-token")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "google-oauth2|42")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer forged")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLoginPage(t *testing.T) {
	g := newTestGate(t)
	r := setupRouter(g)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/admin/login?error=invalid", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Email ou mot de passe incorrect")

	token, _ := g.IssueToken(adminEmail)
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/admin/login", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin", w.Header().Get("Location"))
}
