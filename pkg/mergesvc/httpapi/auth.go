package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Claims is the bearer-token payload httpapi issues and verifies: a
// repository scope rather than the reference repo's upload/download
// operation, since a merge request reads from (and writes one tree into) a
// single repository's object store. Modeled on httpserver.BearerMD.
type Claims struct {
	Repo string `json:"repo"`
	jwt.RegisteredClaims
}

// GenerateToken mirrors httpserver.GenerateJWT's HS256 signing, scoped to a
// single repository name rather than a (uid, rid, operation) triple.
func GenerateToken(secret, repo string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Repo: repo,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(secret))
}

func parseBearerToken(auth string) (string, bool) {
	if len(auth) < len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	return auth[len(bearerPrefix):], true
}

var errMissingBearer = errors.New("httpapi: missing bearer token")

func (s *Server) parseToken(r *http.Request) (*Claims, error) {
	tok, ok := parseBearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, errMissingBearer
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// requireAuth mirrors httpserver.Server.OnFunc's operation-scoped gate: it
// parses and validates the bearer token before calling through to h, and
// renders the same class of 400/403 responses the reference auth path does.
func (s *Server) requireAuth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.parseToken(r)
		switch {
		case errors.Is(err, errMissingBearer):
			renderError(w, http.StatusUnauthorized, "missing bearer token")
			return
		case errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet):
			renderError(w, http.StatusForbidden, "expired token: %v", err)
			return
		case err != nil:
			renderError(w, http.StatusBadRequest, "malformed token: %v", err)
			return
		}
		s.log.WithField("repo", claims.Repo).Debug("authenticated merge request")
		h(w, r)
	}
}
