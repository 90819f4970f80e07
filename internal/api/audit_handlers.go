package api

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/api/presenter"
	"github.com/app-sre/proms-mcp/internal/core"
)

// auditReader is implemented by audit backends whose entries can be
// listed back, like the in-memory ring.
type auditReader interface {
	GetRecent(limit int) ([]core.AuditEntry, error)
	Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error)
}

// handleListAudit retrieves recent audit entries, optionally filtered
// by correlation id, username or credential fingerprint.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	reader, ok := s.auditor.(auditReader)
	if !ok {
		presenter.Error(w, r, "audit backend does not support listing", http.StatusNotImplemented)
		return
	}

	q := r.URL.Query()

	limit := 50
	if limitStr := q.Get("limit"); limitStr != "" {
		v, err := strconv.Atoi(limitStr)
		if err != nil || v < 1 {
			logger.Warn().Str("limit", limitStr).Msg("invalid limit parameter")
			presenter.Error(w, r, "invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = v
	}

	filterCorrelationID := q.Get("correlation_id")
	filterUsername := q.Get("username")
	filterFingerprint := q.Get("fingerprint")

	var entries []core.AuditEntry
	var err error
	if filterCorrelationID != "" || filterUsername != "" || filterFingerprint != "" {
		entries, err = reader.Find(func(entry core.AuditEntry) bool {
			if filterCorrelationID != "" && entry.ID != filterCorrelationID {
				return false
			}
			if filterFingerprint != "" && entry.Fingerprint != filterFingerprint {
				return false
			}
			if filterUsername != "" && (entry.Identity == nil || entry.Identity.Username != filterUsername) {
				return false
			}
			return true
		}, limit)
	} else {
		entries, err = reader.GetRecent(limit)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to retrieve audit entries")
		presenter.Error(w, r, "failed to retrieve audit entries", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []core.AuditEntry{}
	}
	presenter.JSON(w, r, entries, http.StatusOK)
}
