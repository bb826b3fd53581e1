package handler

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/wholesale-orders/internal/export"
)

// downloadReport renders the whole file into memory before writing headers,
// so a failed export still gets a JSON error response.
func (h *Handler) downloadReport(w http.ResponseWriter, r *http.Request) {
	kind, err := export.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := export.Request{Kind: kind}
	if req.Range, req.Limit, err = h.rangeAndLimit(r, 0); err != nil {
		writeError(w, r, err)
		return
	}
	q := h.query(r)
	if req.Year, err = q.nonNegative("year", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Month, err = q.nonNegative("month", 0); err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := h.reports.Build(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, rep, format); err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": rep.FileName(format),
	}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
