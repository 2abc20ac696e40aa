package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/avvvet/pickup-services/internal/apisvc/models"
	"github.com/avvvet/pickup-services/internal/apisvc/service"
	"github.com/go-chi/chi"
)

func gameIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) CreateGameHandler(w http.ResponseWriter, r *http.Request) {
	hostID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var spec service.CreateGameSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	spec.HostID = hostID

	game, err := h.svc.CreateGame(r.Context(), spec)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, game)
}

func (h *Handler) SearchGamesHandler(w http.ResponseWriter, r *http.Request) {
	callerID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	q := r.URL.Query()
	games, err := h.svc.SearchGames(r.Context(), callerID, q.Get("sport"), q.Get("skillLevel"))
	if err != nil {
		writeError(w, err)
		return
	}
	if games == nil {
		games = []*models.Game{}
	}
	respondJSON(w, http.StatusOK, games)
}

type gameDetailResponse struct {
	Game    *models.Game         `json:"game"`
	Players []*models.GamePlayer `json:"players"`
}

func (h *Handler) GetGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}

	game, players, err := h.svc.GetGameDetail(r.Context(), gameID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, gameDetailResponse{Game: game, Players: players})
}

func (h *Handler) CancelSpotHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := h.svc.CancelPlayerSpot(r.Context(), gameID, userID); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *Handler) CancelGameHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	hostID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	// body is optional
	json.NewDecoder(r.Body).Decode(&body)

	if err := h.svc.CancelGame(r.Context(), gameID, hostID, body.Reason); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (h *Handler) RequestWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	entry, err := h.svc.RequestWaitlist(r.Context(), gameID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (h *Handler) LeaveWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	if err := h.svc.LeaveWaitlist(r.Context(), gameID, userID); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"left": true})
}

func (h *Handler) JoinFromWaitlistHandler(w http.ResponseWriter, r *http.Request) {
	gameID, ok := gameIDParam(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid game id")
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
		respondError(w, http.StatusBadRequest, "token is required")
		return
	}

	p, err := h.svc.JoinFromWaitlist(r.Context(), gameID, userID, body.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}
