package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	principalKey      = "principal"
	SessionCookieName = "session-token"
)

var errNoSession = errors.New("no session token")

// Principal is the caller resolved from the session token.
type Principal struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// SessionClaims are the claims the identity provider puts in a session.
type SessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator validates HS256 session tokens.
type Authenticator struct {
	secret      []byte
	adminEmails map[string]bool
}

func NewAuthenticator(secret string, adminEmails []string) *Authenticator {
	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return &Authenticator{secret: []byte(secret), adminEmails: admins}
}

// Parse validates a raw token and returns its principal.
func (a *Authenticator) Parse(raw string) (*Principal, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("session secret not configured")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}

	email := strings.ToLower(claims.Email)
	return &Principal{
		UserID:  claims.Subject,
		Email:   email,
		IsAdmin: claims.Role == "admin" || a.adminEmails[email],
	}, nil
}

// Sign issues a session token; the identity provider does this in production.
func (a *Authenticator) Sign(claims SessionClaims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Session resolves the principal when a valid token is present and lets
// anonymous requests through.
func (a *Authenticator) Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := tokenFromRequest(c)
		if err == nil {
			if p, err := a.Parse(raw); err == nil {
				c.Set(principalKey, p)
			}
		}
		c.Next()
	}
}

// RequireSession rejects requests without a valid session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects non-admin sessions.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !p.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the resolved caller, or nil for anonymous requests.
func PrincipalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

func tokenFromRequest(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		if token := strings.TrimPrefix(header, "Bearer "); token != header && token != "" {
			return token, nil
		}
	}
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", errNoSession
}
