package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/wholesale-orders/internal/domain/order"
	"github.com/xenking/wholesale-orders/internal/domain/product"
	"github.com/xenking/wholesale-orders/internal/domain/stats"
	"github.com/xenking/wholesale-orders/internal/export"
	"github.com/xenking/wholesale-orders/pkg/httpmiddleware"
)

// errBadRequest marks malformed query or body input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return errors.Wrapf(errBadRequest, format, args...)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	var (
		validation *order.ValidationError
		transition *order.TransitionError
		conflict   *order.ConflictError
	)
	switch {
	case errors.As(err, &validation),
		errors.Is(err, errBadRequest),
		errors.Is(err, stats.ErrInvalidRange),
		errors.Is(err, stats.ErrInvalidPeriod),
		errors.Is(err, export.ErrUnknownKind),
		errors.Is(err, export.ErrUnsupported):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &transition), errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes the JSON error envelope. Internal errors
// are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	} else if errors.Is(err, errBadRequest) {
		msg = trimBadRequest(msg)
	}
	writeErrorCode(w, code, msg)
}

func trimBadRequest(msg string) string {
	const suffix = ": bad request"
	if n := len(msg) - len(suffix); n > 0 && msg[n:] == suffix {
		return msg[:n]
	}
	return msg
}

func writeErrorCode(w http.ResponseWriter, code int, msg string) {
	httpmiddleware.WriteError(w, code, msg)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
