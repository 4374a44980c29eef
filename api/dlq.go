package api

import (
	"net/http"

	"github.com/blitzy-public-samples/mca-solution-fku9fu-sub001/dlq"
)

func (s *Server) handleListDLQ(w http.ResponseWriter, r *http.Request) {
	opts := dlq.ListOpts{
		Limit:  queryInt(r, "limit", 100),
		Offset: queryInt(r, "offset", 0),
		Kind:   dlq.Kind(r.URL.Query().Get("kind")),
	}
	entries, err := s.dlqStore.ListDLQ(r.Context(), opts)
	if err != nil {
		s.logger.Error("list dlq failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list dead letter entries")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCountDLQ(w http.ResponseWriter, r *http.Request) {
	kind := dlq.Kind(r.URL.Query().Get("kind"))
	n, err := s.dlqStore.CountDLQ(r.Context(), kind)
	if err != nil {
		s.logger.Error("count dlq failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to count dead letter entries")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}
