package server

import (
	"net/http"
	"strings"

	"github.com/ashita-ai/wyrmgate/internal/ctxutil"
	"github.com/ashita-ai/wyrmgate/internal/game"
	"github.com/ashita-ai/wyrmgate/internal/model"
)

// HandleGameState handles GET /v1/game/state.
func (h *Handlers) HandleGameState(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.State(r.Context(), ctxutil.UserIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, r, h.logger, "load game state", err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// HandleNewGame handles POST /v1/game/new.
func (h *Handlers) HandleNewGame(w http.ResponseWriter, r *http.Request) {
	var req model.NewGameRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(req.Class) != "" {
		if _, ok := game.LookupClass(req.Class); !ok {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown class")
			return
		}
	}

	st, err := h.svc.NewGame(r.Context(), ctxutil.UserIDFromContext(r.Context()), req)
	if err != nil {
		writeInternalError(w, r, h.logger, "new game", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, st)
}

// HandleAchievements handles GET /v1/game/achievements.
func (h *Handlers) HandleAchievements(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.Achievements(r.Context(), ctxutil.UserIDFromContext(r.Context()))
	if err != nil {
		writeInternalError(w, r, h.logger, "list achievements", err)
		return
	}
	writeJSON(w, r, http.StatusOK, statuses)
}
