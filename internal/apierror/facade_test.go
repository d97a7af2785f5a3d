package apierror

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/shared"
)

type recordingNotifier struct {
	got []Notification
}

func (r *recordingNotifier) Notify(ctx context.Context, n Notification) {
	r.got = append(r.got, n)
}

func statusErr(code int, body string) error {
	return &backend.StatusError{Method: http.MethodGet, Path: "/accounts", StatusCode: code, Body: []byte(body)}
}

func TestClassifyTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind Kind
		key  string
	}{
		{"401", statusErr(401, ""), KindAuthenticationRequired, "HTTP_401"},
		{"403", statusErr(403, ""), KindAuthorizationDenied, "HTTP_403"},
		{"404", statusErr(404, ""), KindNotFound, "HTTP_404"},
		{"409", statusErr(409, `{"message":"Username already taken"}`), KindConflict, "HTTP_409"},
		{"422", statusErr(422, `{"message":"Invalid amount"}`), KindValidationFailed, "HTTP_422"},
		{"429", statusErr(429, ""), KindRateLimited, "HTTP_429"},
		{"500", statusErr(500, ""), KindServerError, "HTTP_500"},
		{"503", statusErr(503, ""), KindServerError, "HTTP_503"},
		{"418", statusErr(418, ""), KindUnclassified, KeyGenericError},
		{"network", &backend.TransportError{Method: "GET", Path: "/x", Err: errors.New("connection refused")}, KindNetworkUnreachable, KeyNetworkError},
		{"setup", &backend.SetupError{Path: "/x", Err: errors.New("bad url")}, KindRequestSetupFailed, KeyRequestSetupError},
		{"other", errors.New("boom"), KindUnclassified, KeyGenericError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.kind, got.Kind())
			assert.Equal(t, tc.key, got.Key())
		})
	}
	assert.Nil(t, Classify(nil))
}

func TestClassifyWrappedErrors(t *testing.T) {
	wrapped := errors.Join(errors.New("load accounts"), statusErr(404, ""))
	assert.Equal(t, KindNotFound, Classify(wrapped).Kind())

	already := ValidationFailed{Message: "x"}
	assert.Equal(t, already, Classify(already))
}

func TestValidationMessageSurfacesFromPayload(t *testing.T) {
	notifier := &recordingNotifier{}
	facade := New(notifier, Options{})

	out := facade.Handle(context.Background(), statusErr(422, `{"message": "Invalid amount"}`))

	require.Len(t, notifier.got, 1)
	assert.Equal(t, "Invalid amount", notifier.got[0].Message)
	assert.Equal(t, SeverityWarning, notifier.got[0].Severity)
	assert.Equal(t, KindValidationFailed, out.Err.Kind())
}

func TestValidationPayloadShapes(t *testing.T) {
	cases := map[string]string{
		`{"data":{"message":"Amount exceeds limit"}}`:                 "Amount exceeds limit",
		`{"error":"IBAN is malformed"}`:                                "IBAN is malformed",
		`{"errors":{"amount":["must be positive"]}}`:                   "must be positive",
		`{"errors":[{"field":"toAccount","message":"unknown account"}]}`: "unknown account",
		`not json`: "Please check the submitted data and try again.",
	}
	for body, want := range cases {
		n := NotificationFor(Classify(statusErr(422, body)))
		assert.Equal(t, want, n.Message, body)
	}

	v := Classify(statusErr(422, `{"errors":{"amount":"must be positive","currency":"unsupported"}}`)).(ValidationFailed)
	assert.Equal(t, map[string]string{"amount": "must be positive", "currency": "unsupported"}, v.Fields)
}

func TestUnauthorizedProducesOneNotificationAndRedirect(t *testing.T) {
	notifier := &recordingNotifier{}
	facade := New(notifier, Options{RedirectOnUnauthenticated: true})
	calls := 0
	facade.OnError(StatusKey(http.StatusUnauthorized), func(ctx context.Context, err Error) { calls++ })

	out := facade.Handle(context.Background(), statusErr(401, ""))

	require.Len(t, notifier.got, 1)
	assert.Equal(t, "Your session has expired. Please sign in again.", notifier.got[0].Message)
	assert.Equal(t, "/login", out.RedirectTo)
	assert.Equal(t, 1, calls)
}

func TestUnauthorizedWithoutRedirectOption(t *testing.T) {
	facade := New(&recordingNotifier{}, Options{})
	out := facade.Handle(context.Background(), statusErr(401, ""))
	assert.Empty(t, out.RedirectTo)
}

func TestEveryBranchNotifiesExactlyOnce(t *testing.T) {
	errs := []error{
		statusErr(401, ""), statusErr(403, ""), statusErr(404, ""), statusErr(409, ""),
		statusErr(422, ""), statusErr(429, ""), statusErr(502, ""), statusErr(400, ""),
		&backend.TransportError{Err: errors.New("eof")},
		&backend.SetupError{Err: errors.New("bad")},
		errors.New("other"),
	}
	for _, err := range errs {
		notifier := &recordingNotifier{}
		out := New(notifier, Options{}).Handle(context.Background(), err)
		require.Len(t, notifier.got, 1, err.Error())
		assert.NotEmpty(t, notifier.got[0].Message)
		assert.Contains(t, []Severity{SeverityError, SeverityWarning}, notifier.got[0].Severity)
		assert.Equal(t, out.Notification, notifier.got[0])
	}
}

func TestNilErrorIsIgnored(t *testing.T) {
	notifier := &recordingNotifier{}
	out := New(notifier, Options{}).Handle(context.Background(), nil)
	assert.Nil(t, out.Err)
	assert.Empty(t, notifier.got)
}

func TestNotifierAndCallbackPanicsAreSwallowed(t *testing.T) {
	panicky := NotifierFunc(func(ctx context.Context, n Notification) { panic("toast failed") })
	facade := New(panicky, Options{})
	facade.OnError(KeyNetworkError, func(ctx context.Context, err Error) { panic("callback failed") })

	assert.NotPanics(t, func() {
		out := facade.Handle(context.Background(), &backend.TransportError{Err: errors.New("reset")})
		assert.Equal(t, KindNetworkUnreachable, out.Err.Kind())
	})
}

func TestRateLimitMessageIncludesRetryAfter(t *testing.T) {
	err := &backend.StatusError{StatusCode: 429, RetryAfter: 12 * time.Second}
	n := NotificationFor(Classify(err))
	assert.Equal(t, "Too many requests. Please try again in 12 seconds.", n.Message)
}

func TestFlashNotifierQueuesOnSession(t *testing.T) {
	sess := &shared.Session{}
	ctx := shared.ContextWithSession(context.Background(), sess)
	facade := New(FlashNotifier{}, Options{})

	facade.Handle(ctx, statusErr(403, ""))
	facade.Handle(context.Background(), statusErr(403, ""))

	flashes := sess.DrainFlashes()
	require.Len(t, flashes, 1)
	assert.Equal(t, "error", flashes[0].Kind)
}

func TestOutcomeRedirectCarriesNext(t *testing.T) {
	out := New(&recordingNotifier{}, Options{RedirectOnUnauthenticated: true}).Handle(context.Background(), statusErr(401, ""))

	res := httptest.NewRecorder()
	require.True(t, out.Redirect(res, httptest.NewRequest(http.MethodGet, "/accounts?tab=savings", nil)))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login?next=%2Faccounts%3Ftab%3Dsavings", res.Header().Get("Location"))

	res = httptest.NewRecorder()
	require.True(t, out.Redirect(res, httptest.NewRequest(http.MethodPost, "/transfer", nil)))
	assert.Equal(t, "/login", res.Header().Get("Location"))

	assert.False(t, Outcome{}.Redirect(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestWithNotifierSharesCallbacks(t *testing.T) {
	page := &recordingNotifier{}
	facade := New(page, Options{})
	quiet := facade.WithNotifier(nil)

	var cleared int
	facade.OnError(StatusKey(401), func(context.Context, Error) { cleared++ })

	out := quiet.Handle(context.Background(), statusErr(401, ""))

	assert.Empty(t, page.got)
	assert.Equal(t, 1, cleared)
	assert.Equal(t, "Your session has expired. Please sign in again.", out.Notification.Message)
}

func TestRedirectFormLeavesForLoginOnAuthFailure(t *testing.T) {
	facade := New(&recordingNotifier{}, Options{})
	req := httptest.NewRequest(http.MethodPost, "/admin/users", nil)

	res := httptest.NewRecorder()
	out := facade.Handle(context.Background(), statusErr(401, ""))
	require.False(t, out.Redirect(res, req))
	require.True(t, out.RedirectForm(res, req))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))

	res = httptest.NewRecorder()
	out = facade.Handle(context.Background(), statusErr(422, `{"message":"bad"}`))
	assert.False(t, out.RedirectForm(res, req))
}
