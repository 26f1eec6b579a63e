// Package session issues and verifies the signed cookie credential that
// binds a request to a borrower identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/punchamoorthee/libraryops/internal/domain"
)

const (
	CookieName = "token"
	issuer     = "libraryops"
)

// Claims is the payload carried by a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Gate is safe for concurrent use; its secret is read-only after construction.
type Gate struct {
	secret       []byte
	ttl          time.Duration
	secureCookie bool
	now          func() time.Time
}

type Option func(*Gate)

// WithInsecureCookie drops the Secure attribute, for plain HTTP development.
func WithInsecureCookie() Option {
	return func(g *Gate) { g.secureCookie = false }
}

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(secret string, ttl time.Duration, opts ...Option) (*Gate, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	g := &Gate{
		secret:       []byte(secret),
		ttl:          ttl,
		secureCookie: true,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Issue signs a token for id that expires one TTL from now.
func (g *Gate) Issue(id domain.Identity) (string, time.Time, error) {
	now := g.now()
	expires := now.Add(g.ttl)
	claims := Claims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Verify checks signature, algorithm and expiry. Every failure is reported
// as ErrUnauthenticated.
func (g *Gate) Verify(token string) (domain.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (interface{}, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	email := domain.NormalizeEmail(claims.Email)
	if email == "" {
		return domain.Identity{}, fmt.Errorf("%w: token carries no identity", domain.ErrUnauthenticated)
	}
	return domain.Identity{Email: email, Name: claims.Name}, nil
}

// Authenticate reads the session cookie from r and verifies it.
func (g *Gate) Authenticate(r *http.Request) (domain.Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing session cookie", domain.ErrUnauthenticated)
	}
	return g.Verify(cookie.Value)
}

// Authorize allows a caller to act only on their own identity.
func (g *Gate) Authorize(requested, authenticated domain.Identity) error {
	if domain.NormalizeEmail(requested.Email) != domain.NormalizeEmail(authenticated.Email) {
		return domain.ErrForbidden
	}
	return nil
}

// SetCookie stores token on the client. SameSite=None lets the separately
// hosted front end send it on credentialed cross-origin requests.
func (g *Gate) SetCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: g.sameSite(),
	})
}

// Revoke clears the session cookie. Revoking without a session is not an error.
func (g *Gate) Revoke(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.secureCookie,
		SameSite: g.sameSite(),
	})
}

// Browsers reject SameSite=None without Secure.
func (g *Gate) sameSite() http.SameSite {
	if g.secureCookie {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(domain.Identity)
	return id, ok
}

// Middleware rejects requests without a valid session and stores the
// identity in the request context for the next handler.
func (g *Gate) Middleware(onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := g.Authenticate(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
