// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file verifies bearer tokens. Tokens are HS256 JWTs issued by the
// account service; the subject becomes the user ID for chat sessions,
// idempotency records, and rate-limit buckets. Guest tokens carry
// "guest": true and are accepted only when AllowGuest is set.
package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxKeyUserID = "userID"
	ctxKeyGuest  = "guest"

	// HeaderUserID identifies the caller when token verification is off.
	HeaderUserID = "X-User-ID"
)

// Claims is the token payload understood by Auth.
type Claims struct {
	Guest bool `json:"guest,omitempty"`
	jwt.RegisteredClaims
}

// AuthOptions configures Auth.
type AuthOptions struct {
	// Secret is the HS256 signing key. Required.
	Secret []byte
	// AllowGuest admits tokens with "guest": true.
	AllowGuest bool
	// Leeway tolerates clock skew on exp/nbf/iat.
	Leeway time.Duration
}

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSubject    = errors.New("token has no subject")
	errGuest        = errors.New("guest access disabled")
)

// Auth rejects requests without a valid bearer token with 401 unauthorized
// and stores the token subject under "userID".
func Auth(opts AuthOptions) gin.HandlerFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(opts.Leeway),
		jwt.WithIssuedAt(),
	)
	keyFn := func(*jwt.Token) (any, error) { return opts.Secret, nil }

	return func(c *gin.Context) {
		claims, err := verify(parser, keyFn, c.GetHeader("Authorization"))
		if err == nil && claims.Guest && !opts.AllowGuest {
			err = errGuest
		}
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "unauthorized",
				"message":    "missing or invalid bearer token",
			})
			return
		}
		c.Set(ctxKeyUserID, claims.Subject)
		c.Set(ctxKeyGuest, claims.Guest)
		c.Next()
	}
}

func verify(p *jwt.Parser, keyFn jwt.Keyfunc, header string) (*Claims, error) {
	scheme, raw, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return nil, errMissingToken
	}
	claims := &Claims{}
	if _, err := p.ParseWithClaims(strings.TrimSpace(raw), claims, keyFn); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errNoSubject
	}
	return claims, nil
}

// HeaderIdentity trusts the X-User-ID header, falling back to "demo-user".
// Only for local development when no signing secret is configured.
func HeaderIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if uid == "" || len(uid) > 64 {
			uid = "demo-user"
		}
		c.Set(ctxKeyUserID, uid)
		c.Next()
	}
}

// IssueToken signs an HS256 token for subject. A zero ttl issues a token
// without expiry.
func IssueToken(secret []byte, subject string, guest bool, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errNoSubject
	}
	now := time.Now()
	claims := Claims{
		Guest: guest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// IsGuest reports whether the request was authenticated with a guest token.
func IsGuest(c *gin.Context) bool {
	v, _ := c.Get(ctxKeyGuest)
	b, _ := v.(bool)
	return b
}
