package v1

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tinoosan/cashbook/internal/finance"
)

// headerUserID names the caller in dev mode.
const headerUserID = "X-User-ID"

type JWTClaims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  any    `json:"aud,omitempty"` // string or []string
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	// Profile claims from the identity provider
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	AuthTime int64  `json:"auth_time,omitempty"`
}

const ctxKeyUser ctxKey = "user"

func withUser(ctx context.Context, u finance.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// userFrom returns the authenticated user. The zero User has an empty ID,
// which every service rejects as unauthenticated.
func userFrom(ctx context.Context) finance.User {
	u, _ := ctx.Value(ctxKeyUser).(finance.User)
	return u
}

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[len("Bearer "):]), true
}

func base64URLDecode(s string) ([]byte, error) {
	// JWT uses base64url without padding
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func verifyHS256(token, secret string) (JWTClaims, error) {
	var empty JWTClaims
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return empty, errors.New("invalid token format")
	}
	headerB, err := base64URLDecode(parts[0])
	if err != nil {
		return empty, errors.New("bad header b64")
	}
	payloadB, err := base64URLDecode(parts[1])
	if err != nil {
		return empty, errors.New("bad payload b64")
	}
	sigB, err := base64URLDecode(parts[2])
	if err != nil {
		return empty, errors.New("bad signature b64")
	}

	var hdr struct{ Alg, Typ string }
	if err := json.Unmarshal(headerB, &hdr); err != nil {
		return empty, errors.New("bad header json")
	}
	if !strings.EqualFold(hdr.Alg, "HS256") {
		return empty, errors.New("unsupported alg")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sigB, mac.Sum(nil)) {
		return empty, errors.New("invalid signature")
	}

	var claims JWTClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return empty, errors.New("bad claims json")
	}
	return claims, nil
}

func audContains(aud any, expected string) bool {
	if expected == "" {
		return true
	}
	switch v := aud.(type) {
	case string:
		return strings.EqualFold(v, expected)
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && strings.EqualFold(s, expected) {
				return true
			}
		}
	}
	return false
}

// checkClaims validates the time window, issuer and audience.
func (a AuthConfig) checkClaims(c JWTClaims, now time.Time) error {
	unix := now.Unix()
	switch {
	case strings.TrimSpace(c.Subject) == "":
		return errors.New("missing sub")
	case c.NotBefore != 0 && unix < c.NotBefore:
		return errors.New("token not yet valid")
	case c.ExpiresAt != 0 && unix >= c.ExpiresAt:
		return errors.New("token expired")
	case a.Issuer != "" && !strings.EqualFold(c.Issuer, a.Issuer):
		return errors.New("issuer mismatch")
	case a.Audience != "" && !audContains(c.Audience, a.Audience):
		return errors.New("audience mismatch")
	}
	return nil
}

func claimsUser(c JWTClaims) finance.User {
	u := finance.User{ID: c.Subject, Email: c.Email, DisplayName: c.Name}
	if c.AuthTime != 0 {
		t := time.Unix(c.AuthTime, 0).UTC()
		u.LastSignIn = &t
	}
	return u
}

// authenticate resolves the caller and stores it in the request context.
// With a secret configured it requires Authorization: Bearer <HS256 JWT>;
// otherwise it trusts the X-User-ID header.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u finance.User
		if s.auth.Secret == "" {
			u.ID = strings.TrimSpace(r.Header.Get(headerUserID))
		} else {
			tok, ok := parseBearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}
			claims, err := verifyHS256(tok, s.auth.Secret)
			if err == nil {
				err = s.auth.checkClaims(claims, s.now())
			}
			if err != nil {
				s.log.Debug("rejected token", "err", err)
				unauthorized(w)
				return
			}
			u = claimsUser(claims)
		}
		if u.ID == "" {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}
