package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bionicbutterfly13/dionysus3-core-sub008/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCoreError maps the error taxonomy onto HTTP statuses. Unknown errors
// are internal.
func writeCoreError(w http.ResponseWriter, err error) {
	ce, ok := err.(*domain.CoreError)
	if !ok {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch ce.Kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindInsufficientEvidence:
		status = http.StatusConflict
	case domain.KindCoreLimitViolation:
		status = http.StatusUnprocessableEntity
	case domain.KindBindingCapacity:
		status = http.StatusConflict
	case domain.KindStaleState:
		status = http.StatusConflict
	case domain.KindForecastTimeout:
		status = http.StatusGatewayTimeout
	}
	writeJSON(w, status, ce)
}

func decode(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
