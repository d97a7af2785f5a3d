package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-bank/meridian-web/internal/backend"
	_ "github.com/meridian-bank/meridian-web/testing"
)

var csrfMeta = regexp.MustCompile(`name="csrf-token" content="([^"]+)"`)

type bankAPI struct {
	users map[string]backend.LoginResult
}

func (b bankAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	switch r.URL.Path {
	case "/auth/login":
		var creds backend.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		res, ok := b.users[creds.Username]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(res)
	case "/accounts":
		if token == "stale-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode([]backend.Account{{ID: "a-1", Number: "DE0012345678", Type: "CHECKING", Balance: 1500, Currency: "EUR", Status: "ACTIVE"}})
	default:
		http.NotFound(w, r)
	}
}

type site struct {
	server *httptest.Server
	client *http.Client
}

func newSite(t *testing.T) site {
	t.Helper()
	api := httptest.NewServer(bankAPI{users: map[string]backend.LoginResult{
		"carol": {Token: "carol-token", Roles: []string{"CUSTOMER"}, UserDetails: []backend.UserDetails{{ID: "u-1", Username: "carol", FullName: "Carol Client"}}},
		"stale": {Token: "stale-token", Roles: []string{"CUSTOMER"}},
	}})
	t.Cleanup(api.Close)

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &Config{
		AppEnv:                    "test",
		SessionSecret:             "session-secret",
		SessionTTL:                time.Hour,
		CSRFSecret:                "csrf-secret",
		BackendURL:                api.URL,
		BoundaryMaxRetries:        3,
		RedirectOnUnauthenticated: true,
		LoginRateLimitPerMinute:   100,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	built, err := Build(cfg, logger, redisClient, backend.NewClientWithHTTP(api.URL, api.Client()))
	require.NoError(t, err)
	assert.Nil(t, built.Feed)

	server := httptest.NewServer(built.Handler)
	t.Cleanup(server.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return site{server: server, client: client}
}

func (s site) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	res, err := s.client.Get(s.server.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func (s site) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	res, err := s.client.PostForm(s.server.URL+path, form)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
	return res
}

func (s site) login(t *testing.T, username, next string) *http.Response {
	t.Helper()
	_, page := s.get(t, "/login")
	m := csrfMeta.FindStringSubmatch(page)
	require.Len(t, m, 2, "login page must carry a csrf token")
	return s.post(t, "/login", url.Values{
		"csrf_token": {m[1]},
		"username":   {username},
		"password":   {"secret"},
		"next":       {next},
	})
}

func TestProtectedPageRedirectsToLogin(t *testing.T) {
	s := newSite(t)

	res, _ := s.get(t, "/accounts")

	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?next=%2Faccounts", res.Header.Get("Location"))
}

func TestLoginRequiresCSRFToken(t *testing.T) {
	s := newSite(t)

	res := s.post(t, "/login", url.Values{"username": {"carol"}, "password": {"secret"}})

	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestLoginThenBrowse(t *testing.T) {
	s := newSite(t)

	res := s.login(t, "carol", "/accounts")
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/accounts", res.Header.Get("Location"))

	res, body := s.get(t, "/accounts")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Welcome back, Carol Client.")
	assert.Contains(t, body, "EUR 1,500.00")
	assert.NotEmpty(t, res.Header.Get("X-Frame-Options"))

	res, _ = s.get(t, "/")
	assert.Equal(t, "/dashboard", res.Header.Get("Location"))
}

func TestCustomerIsKeptOutOfAdminArea(t *testing.T) {
	s := newSite(t)
	require.Equal(t, http.StatusSeeOther, s.login(t, "carol", "").StatusCode)

	for _, path := range []string{"/admin/dashboard", "/admin/users", "/reports", "/mappings"} {
		res, _ := s.get(t, path)
		assert.Equal(t, http.StatusSeeOther, res.StatusCode, path)
		assert.Equal(t, "/unauthorized", res.Header.Get("Location"), path)
	}

	res, body := s.get(t, "/unauthorized")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Contains(t, body, "Carol Client")
}

func TestRejectedTokenEndsSession(t *testing.T) {
	s := newSite(t)
	require.Equal(t, http.StatusSeeOther, s.login(t, "stale", "").StatusCode)

	res, _ := s.get(t, "/accounts")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?next=%2Faccounts", res.Header.Get("Location"))

	// The token was dropped, so the guard now handles the redirect itself.
	res, _ = s.get(t, "/profile")
	assert.Equal(t, "/login?next=%2Fprofile", res.Header.Get("Location"))

	_, page := s.get(t, "/login")
	assert.Contains(t, page, "Your session has expired. Please sign in again.")
}

func TestOperationalEndpoints(t *testing.T) {
	s := newSite(t)

	res, body := s.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	s.get(t, "/accounts")
	res, body = s.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, `meridian_guard_decisions_total{outcome="deny_unauthenticated"}`)

	res, body = s.get(t, "/static/js/app.js")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "public, max-age=3600", res.Header.Get("Cache-Control"))
	assert.Contains(t, body, "data-copy-target")
}
