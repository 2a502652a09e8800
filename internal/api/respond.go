package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/koustreak/bucketview/internal/errs"
	"github.com/koustreak/bucketview/internal/logger"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the status matching err's kind. Server-side
// failures are logged on the request logger.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := errs.KindOf(err)

	msg := err.Error()
	var e *errs.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		kind = errs.ErrKindTooLarge
		msg = "request body too large"
	}

	if status >= http.StatusInternalServerError {
		logger.FromRequest(r).ErrorWith("request failed", err, map[string]any{"status": status})
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind.String()})
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindTooLarge:
		return http.StatusRequestEntityTooLarge
	case errs.ErrKindConnectionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
