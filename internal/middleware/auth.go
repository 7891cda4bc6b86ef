package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/soaringjerry/FormPulse/internal/utils"
)

const ownerKey = "owner_id"

// Claims are issued by the account service; only uid is required here.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SignToken issues an HS256 token for uid. Used by tooling and tests.
func SignToken(secret, issuer, uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{UID: uid, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, issuer, tok string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }, opts...)
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid && c.UID != "" {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// browsers cannot set headers on websocket upgrades
	return c.Query("token")
}

// RequireAuth rejects requests without a valid bearer token and stores the
// owner id for handlers.
func RequireAuth(secret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c)
		if tok == "" {
			abortUnauthorized(c)
			return
		}
		claims, err := parseToken(secret, issuer, tok)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(ownerKey, claims.UID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": utils.T(LocaleFromContext(c), "auth.unauthorized")})
}

// OwnerID returns the authenticated user id.
func OwnerID(c *gin.Context) (string, bool) {
	v := c.GetString(ownerKey)
	return v, v != ""
}
