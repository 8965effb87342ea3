package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carelink/hospital-ops/internal/capability"
	"github.com/carelink/hospital-ops/internal/faults"
)

func listOperationsHandler(d *capability.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no identity on request")
			return
		}
		writeJSON(w, http.StatusOK, d.OperationsFor(id))
	}
}

func invokeOperationHandler(d *capability.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_identity", "no identity on request")
			return
		}

		name := chi.URLParam(r, "name")

		var req InvokeRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
		}

		result, err := d.Invoke(r.Context(), id, name, capability.Args(req.Args))
		if err != nil {
			handleInvokeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, InvokeResponse{Operation: name, Result: result})
	}
}

func handleInvokeError(w http.ResponseWriter, err error) {
	switch faults.KindOf(err) {
	case faults.KindValidation:
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case faults.KindConflict:
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case faults.KindNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case faults.KindAccessDenied:
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
