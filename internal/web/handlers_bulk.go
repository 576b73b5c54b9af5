package web

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/brokerload/lenderdesk/internal/auth"
	"github.com/brokerload/lenderdesk/internal/logging"
)

// handleBulkImport accepts an uploaded CSV of lender rows and applies them
// row by row, reporting partial failures in the response body. The status
// code summarizes the batch: 400 for an unparseable file, 200 when every
// row was added, 207 otherwise.
func (s *Server) handleBulkImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body too large or unreadable")
		return
	}

	result := s.importer.Run(r.Context(), body)

	logger := logging.FromContext(r.Context())
	identity := auth.IdentityFromContext(r.Context())
	logger.Info("bulk import processed",
		"user", identity.Username,
		"parse_errors", len(result.ParseErrors),
		"added", len(result.ItemsAdded),
		"not_added", len(result.ItemsNotAdded),
	)

	writeJSON(w, result.Status(), result)
}

// handleBulkExport streams the full lender table as a CSV download. The
// advertised filename embeds the generation timestamp so repeated downloads
// never collide client-side.
func (s *Server) handleBulkExport(w http.ResponseWriter, r *http.Request) {
	filename := s.exporter.FileName(time.Now())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	if err := s.exporter.WriteCSV(r.Context(), w); err != nil {
		// Headers are gone; all that remains is to log the truncation.
		logging.FromContext(r.Context()).Error("bulk export failed mid-stream", "error", err)
	}
}
