package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"budget/internal/export"
	"budget/internal/log"
)

// handleMonthReport renders the month report as JSON or as a download in the
// requested export format.
func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request) {
	year, err := pathInt(r, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := pathInt(r, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	enc, err := export.ForFormat(q.Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	rep, err := s.opts.Reports.MonthReport(r.Context(), year, month, q.Get("currency"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, ok := enc.(export.JSON); ok {
		writeJSON(w, http.StatusOK, rep)
		return
	}

	var buf bytes.Buffer
	if err := enc.Encode(&buf, rep); err != nil {
		writeError(w, r, fmt.Errorf("encode report: %w", err))
		return
	}
	log.FromContext(r.Context()).DebugContext(r.Context(), "Report exported",
		log.FieldOperation, log.OpExport, "format", enc.Extension(), "bytes", buf.Len())

	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(rep, enc)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
