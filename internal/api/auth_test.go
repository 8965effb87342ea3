package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/hospital-ops/internal/faults"
	"github.com/carelink/hospital-ops/internal/policy"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func runAuth(t *testing.T, header string) (*httptest.ResponseRecorder, policy.Identity, bool) {
	t.Helper()

	var (
		got   policy.Identity
		found bool
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/operations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	AuthMiddleware(testSecret)(next).ServeHTTP(rec, req)
	return rec, got, found
}

func TestAuthMissingToken(t *testing.T) {
	rec, _, found := runAuth(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, found)
}

func TestAuthBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1, "role": "patient",
	})
	s, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	rec, _, found := runAuth(t, "Bearer "+s)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, found)
}

func TestAuthExpiredToken(t *testing.T) {
	s := signToken(t, jwt.MapClaims{
		"user_id": float64(7), "role": "patient",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	rec, _, _ := runAuth(t, "Bearer "+s)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthUnknownRole(t *testing.T) {
	s := signToken(t, jwt.MapClaims{"user_id": float64(7), "role": "superuser"})
	rec, _, _ := runAuth(t, "Bearer "+s)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthBuildsIdentity(t *testing.T) {
	s := signToken(t, jwt.MapClaims{
		"user_id":    float64(100),
		"role":       "patient",
		"patient_id": float64(10),
	})
	rec, id, found := runAuth(t, "Bearer "+s)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, found)
	assert.Equal(t, int64(100), id.UserID)
	assert.Equal(t, policy.RolePatient, id.Role)
	require.NotNil(t, id.PatientID)
	assert.Equal(t, int64(10), *id.PatientID)
	assert.Nil(t, id.DoctorID)
}

func TestInvokeErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{faults.Validation("bad input"), http.StatusBadRequest},
		{faults.Conflict("slot already booked"), http.StatusConflict},
		{faults.NotFound("appointment not found"), http.StatusNotFound},
		{faults.AccessDenied("patient not assigned to you"), http.StatusForbidden},
		{faults.Store("query failed", assert.AnError), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handleInvokeError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
	}
}
