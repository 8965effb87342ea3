package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/carelink/hospital-ops/internal/policy"
)

const identityKey contextKey = "identity"

// AuthMiddleware validates the bearer token and attaches the caller's
// identity to the request context. Tokens are HS256 with user_id and role
// claims, plus patient_id or doctor_id depending on the role.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header is required")
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				writeError(w, http.StatusUnauthorized, "invalid_token", "Authorization header must be a bearer token")
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			id, err := identityFromClaims(claims)
			if err != nil {
				writeError(w, http.StatusForbidden, "invalid_claims", err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func identityFromClaims(claims jwt.MapClaims) (policy.Identity, error) {
	var id policy.Identity

	userID, ok := claimInt64(claims, "user_id")
	if !ok {
		return id, fmt.Errorf("user_id claim is missing")
	}
	role, _ := claims["role"].(string)
	id.UserID = userID
	id.Role = policy.Role(role)
	if !id.Role.Valid() {
		return id, fmt.Errorf("unknown role %q", role)
	}

	if pid, ok := claimInt64(claims, "patient_id"); ok {
		id.PatientID = &pid
	}
	if did, ok := claimInt64(claims, "doctor_id"); ok {
		id.DoctorID = &did
	}
	return id, nil
}

// claimInt64 reads a numeric claim. JSON decoding hands them over as float64.
func claimInt64(claims jwt.MapClaims, name string) (int64, bool) {
	switch v := claims[name].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	default:
		return 0, false
	}
}

// IdentityFromContext returns the identity attached by AuthMiddleware.
func IdentityFromContext(ctx context.Context) (policy.Identity, bool) {
	id, ok := ctx.Value(identityKey).(policy.Identity)
	return id, ok
}
