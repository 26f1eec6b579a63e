package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/punchamoorthee/libraryops/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestGate(t *testing.T, c *clock) *Gate {
	t.Helper()
	g, err := NewGate("test-secret", time.Hour, WithClock(c.now))
	require.NoError(t, err)
	return g
}

func requestWithToken(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/borrowBooks", nil)
	if token != "" {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return r
}

func TestIssueAndAuthenticate(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)

	token, expires, err := g.Issue(domain.Identity{Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(time.Hour), expires)

	id, err := g.Authenticate(requestWithToken(token))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", id.Email)
	assert.Equal(t, "Ann", id.Name)
}

func TestAuthenticateFailures(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)
	token, _, err := g.Issue(domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	other, err := NewGate("other-secret", time.Hour, WithClock(c.now))
	require.NoError(t, err)
	forged, _, err := other.Issue(domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Email: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(c.t.Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":   "",
		"garbage":   "not.a.token",
		"forged":    forged,
		"alg none":  unsigned,
		"truncated": token[:len(token)-4],
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := g.Authenticate(requestWithToken(tok))
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestAuthenticateExpiredToken(t *testing.T) {
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	g := newTestGate(t, c)
	token, _, err := g.Issue(domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	c.t = c.t.Add(59 * time.Minute)
	_, err = g.Authenticate(requestWithToken(token))
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Minute)
	_, err = g.Authenticate(requestWithToken(token))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthorize(t *testing.T) {
	g := newTestGate(t, &clock{t: time.Now()})
	me := domain.Identity{Email: "a@x.com"}

	assert.NoError(t, g.Authorize(domain.Identity{Email: "A@x.com "}, me))
	assert.ErrorIs(t, g.Authorize(domain.Identity{Email: "b@x.com"}, me), domain.ErrForbidden)
}

func TestCookies(t *testing.T) {
	c := &clock{t: time.Now()}
	g := newTestGate(t, c)
	token, expires, err := g.Issue(domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	g.SetCookie(rec, token, expires)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, token, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookies[0].SameSite)

	// Revoke twice: both clear the cookie, neither fails.
	for range 2 {
		rec = httptest.NewRecorder()
		g.Revoke(rec)
		cookies = rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Empty(t, cookies[0].Value)
		assert.Less(t, cookies[0].MaxAge, 0)
	}
}

func TestMiddleware(t *testing.T) {
	g := newTestGate(t, &clock{t: time.Now()})
	token, _, err := g.Issue(domain.Identity{Email: "a@x.com"})
	require.NoError(t, err)

	var seen domain.Identity
	h := g.Middleware(func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(token))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", seen.Email)
}

func TestNewGateValidation(t *testing.T) {
	_, err := NewGate("", time.Hour)
	assert.Error(t, err)
	_, err = NewGate("s", 0)
	assert.Error(t, err)
}
