package problem

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteSetsContentTypeAndStatus(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)

	Write(w, r, http.StatusUnauthorized, TypeUnauthorized, "Invalid credentials", nil, "production")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, TypeUnauthorized, p.Type)
	require.Equal(t, "Invalid credentials", p.Title)
	require.Equal(t, "/api/v1/auth/login", p.Instance)
}

func TestWriteHidesDetailInProduction(t *testing.T) {
	secret := fmt.Errorf("pq: connection refused to 10.0.0.5")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	Write(w, r, http.StatusInternalServerError, TypeInternal, "Internal error", secret, "production")

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.NotContains(t, p.Detail, "10.0.0.5")

	w = httptest.NewRecorder()
	Write(w, r, http.StatusInternalServerError, TypeInternal, "Internal error", secret, "development")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Contains(t, p.Detail, "10.0.0.5")
}

func TestWriteWithOptions(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/x", nil)

	Write(w, r, http.StatusBadRequest, TypeValidation, "Invalid request", nil, "test",
		WithDetail("password too short"),
		WithErrors(map[string]interface{}{"password": "min length 8"}),
	)

	var p ProblemDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	require.Equal(t, "password too short", p.Detail)
	require.Equal(t, "min length 8", p.Errors["password"])
}
