package handler

import (
	"net/http"

	"github.com/evetabi/perpsim/internal/engine"
	"github.com/evetabi/perpsim/internal/repository"
	"github.com/gin-gonic/gin"
)

// AccountHandler serves the demo account's derived views.
type AccountHandler struct {
	engine  *engine.Engine
	journal *repository.JournalRepository // nil when persistence is disabled
}

// NewAccountHandler creates an AccountHandler.  journal may be nil.
func NewAccountHandler(eng *engine.Engine, journal *repository.JournalRepository) *AccountHandler {
	return &AccountHandler{engine: eng, journal: journal}
}

// Get godoc
// GET /api/account [session]
func (h *AccountHandler) Get(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.engine.Snapshot())
}

// Journal godoc
// GET /api/account/journal?limit=50 [session]
// Returns recent settlement journal entries, newest first.  Requires a
// configured database.
func (h *AccountHandler) Journal(c *gin.Context) {
	if h.journal == nil {
		respondError(c, http.StatusServiceUnavailable, "ERR_NO_PERSISTENCE", "settlement journal is not enabled")
		return
	}

	limit := parseLimit(c, 50, 500)
	entries, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch journal")
		return
	}
	respondList(c, entries, len(entries))
}
