// Package auth guards the admin surface with a signed session cookie and,
// when configured, OIDC bearer ID tokens.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/judyrop/epicerie-backend/config"
)

const (
	CookieName  = "admin-auth"
	SessionTTL  = 7 * 24 * time.Hour
	tokenType   = "admin"
	contextUser = "admin_email"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// IDTokenVerifier is satisfied by *oidc.IDTokenVerifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

type Gate struct {
	email        string
	passwordHash []byte
	secret       []byte
	secure       bool
	verifier     IDTokenVerifier
	now          func() time.Time
}

func NewGate(cfg *config.Config) *Gate {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		log.Print("JWT_SECRET not set, admin sessions will not survive a restart")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.Fatal("failed to generate session secret:", err)
		}
	}
	return &Gate{
		email:        strings.TrimSpace(cfg.AdminEmail),
		passwordHash: []byte(cfg.AdminPasswordHash),
		secret:       secret,
		secure:       cfg.IsProduction(),
		now:          time.Now,
	}
}

// WithOIDC lets RequireAdmin also accept ID tokens from issuer for clientID.
func (g *Gate) WithOIDC(ctx context.Context, issuer, clientID string) error {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return fmt.Errorf("oidc provider: %w", err)
	}
	g.verifier = provider.Verifier(&oidc.Config{ClientID: clientID})
	return nil
}

func (g *Gate) SetVerifier(v IDTokenVerifier) { g.verifier = v }

// Login checks the credentials and returns a signed session token.
func (g *Gate) Login(email, password string) (string, error) {
	if g.email == "" || len(g.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(email)), []byte(g.email)) != 1 {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return g.IssueToken(g.email)
}

func (g *Gate) IssueToken(email string) (string, error) {
	now := g.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": email,
		"typ": tokenType,
		"iat": now.Unix(),
		"exp": now.Add(SessionTTL).Unix(),
	})
	return t.SignedString(g.secret)
}

// ParseToken returns the admin email carried by a valid session token.
func (g *Gate) ParseToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims["typ"] != tokenType {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

// Authenticate returns the admin identity of the request, from the session
// cookie or an OIDC bearer token.
func (g *Gate) Authenticate(c *gin.Context) (string, bool) {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		if email, err := g.ParseToken(cookie); err == nil {
			return email, true
		}
	}

	if g.verifier == nil {
		return "", false
	}
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	idToken, err := g.verifier.Verify(c.Request.Context(), strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", false
	}
	return idToken.Subject, true
}

// RequireAdmin rejects unauthenticated requests: admin pages redirect to the
// login page, API calls get a 401.
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := g.Authenticate(c)
		if !ok {
			if isAdminPage(c.Request.URL.Path) {
				c.Redirect(http.StatusSeeOther, "/admin/login")
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
			return
		}
		c.Set(contextUser, user)
		c.Next()
	}
}

// SetSession writes the session cookie.
func (g *Gate) SetSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(SessionTTL.Seconds()), "/", "", g.secure, true)
}

func (g *Gate) ClearSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", g.secure, true)
}

// CurrentAdmin returns the identity RequireAdmin stored on c.
func CurrentAdmin(c *gin.Context) string {
	return c.GetString(contextUser)
}

func isAdminPage(path string) bool {
	return path == "/admin" || strings.HasPrefix(path, "/admin/")
}
