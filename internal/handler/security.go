package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/wholesale-orders/internal/domain/auth"
)

// APIKeyHeader carries the API key. "Authorization: Bearer <key>" is also
// accepted.
const APIKeyHeader = "X-API-Key"

func apiKey(r *http.Request) string {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// requireKey authenticates the request by the HMAC-SHA256 of its API key and
// checks that the key carries scope.
func (h *Handler) requireKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := apiKey(r)
			if key == "" {
				writeErrorCode(w, http.StatusUnauthorized, "api key required")
				return
			}

			hash := auth.HashKey(h.pepper, key)
			info, err := h.keys.FindByHash(r.Context(), hash)
			if err != nil {
				if !errors.Is(err, auth.ErrNotFound) {
					zctx.From(r.Context()).Error("Find api key", zap.Error(err))
				}
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			// The lookup matched by hash; compare again in constant time in
			// case the store matched loosely.
			if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !info.HasScope(scope) {
				writeErrorCode(w, http.StatusForbidden, "missing scope "+scope)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), info)))
		})
	}
}
