package rbac

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"
)

func BenchmarkEvaluate(b *testing.B) {
	sess := &stubSession{authenticated: true, roles: []Role{RoleBankStaff, RoleAuditor}}
	allowed := []Role{RoleAdmin, RoleAuditor}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Evaluate(sess, "/reports", allowed)
	}
}

func BenchmarkGuardMiddleware(b *testing.B) {
	sess := &stubSession{authenticated: true, roles: []Role{RoleCustomer}}
	mw := Middleware{Sessions: func(*http.Request) SessionReader { return sess }}
	h := mw.Guard(RoleCustomer)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func TestGuardLatencyBudget(t *testing.T) {
	sess := &stubSession{authenticated: true, roles: []Role{RoleAdmin}}
	mw := Middleware{Sessions: func(*http.Request) SessionReader { return sess }}
	h := mw.Guard(RoleCustomer, RoleBankStaff)(http.NotFoundHandler())

	samples := make([]time.Duration, 0, 200)
	for i := 0; i < cap(samples); i++ {
		req := httptest.NewRequest(http.MethodGet, "/transfer", nil)
		start := time.Now()
		h.ServeHTTP(httptest.NewRecorder(), req)
		samples = append(samples, time.Since(start))
	}

	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("guard latency regression: p95=%s", p95)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[int(float64(len(sorted)-1)*0.95)]
}
