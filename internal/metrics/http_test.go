package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHTTPMiddlewareRecordsRequests(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200"))

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200"))
	require.Equal(t, before+1, after)
}

func TestHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/boom", "500"))

	handler := HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/boom", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/boom", "500"))
	require.Equal(t, before+1, after)
}

func TestLifecycleCountersRegistered(t *testing.T) {
	// a label combination must exist before Gather reports the family
	SignupsTotal.WithLabelValues("success").Add(0)
	LoginsTotal.WithLabelValues("success").Add(0)
	TokensIssuedTotal.WithLabelValues("verification").Add(0)
	TokensConsumedTotal.WithLabelValues("verification", "consumed").Add(0)
	InvitationsTotal.WithLabelValues("created").Add(0)
	RateLimitedTotal.WithLabelValues("cooldown").Add(0)
	EmailsTotal.WithLabelValues("sent").Add(0)

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	for _, want := range []string{
		"eventleads_signups_total",
		"eventleads_logins_total",
		"eventleads_tokens_issued_total",
		"eventleads_tokens_consumed_total",
		"eventleads_invitations_total",
		"eventleads_rate_limited_total",
		"eventleads_emails_total",
	} {
		require.True(t, names[want], want)
	}
}
