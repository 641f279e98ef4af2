package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FocuswithJustin/quizqti/core/errors"
	"github.com/FocuswithJustin/quizqti/internal/logging"
)

// TokenIssuer names the issuer of API tokens.
const TokenIssuer = "quizqti"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// Claims are the claims of an API token.
type Claims struct {
	jwt.RegisteredClaims
}

// ValidateSecret checks a signing secret.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return errors.NewValidation("jwt_secret", fmt.Sprintf("must be at least %d characters (got %d)", MinSecretLength, len(secret)))
	}
	return nil
}

// IssueToken signs an HS256 token for subject valid for ttl.
func IssueToken(secret, subject string, ttl time.Duration) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies a token signed by IssueToken.
func ParseToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrUnauthorized, err)
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrUnauthorized
	}
	return c, nil
}

type subjectKey struct{}

// Subject returns the authenticated token subject of a request, or "".
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)
	return s
}

// bearerToken reads the token from the Authorization header. Browsers
// cannot set headers on websocket handshakes, so the access_token query
// parameter is accepted for upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// JWTMiddleware requires a valid bearer token signed with secret.
func JWTMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				logging.SecurityEvent("unauthorized_request", "auth",
					"path", r.URL.Path,
					"reason", "missing bearer token")
				respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Missing bearer token")
				return
			}
			claims, err := ParseToken(secret, tok)
			if err != nil {
				logging.SecurityEvent("unauthorized_request", "auth",
					"path", r.URL.Path,
					"reason", "invalid token")
				respondError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid bearer token")
				return
			}
			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
