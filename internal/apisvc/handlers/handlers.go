package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/avvvet/pickup-services/internal/apisvc/payment"
	"github.com/avvvet/pickup-services/internal/apisvc/service"
	"github.com/avvvet/pickup-services/internal/apisvc/store"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	svc       *service.GameService
	registry  *payment.Registry
}

func NewHandler(svc *service.GameService, registry *payment.Registry) *Handler {
	return &Handler{svc: svc, registry: registry}
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, errorBody{Error: msg})
}

// writeError maps the engine's error taxonomy onto HTTP status codes.
// Internal errors keep their detail in the log, not the response.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidToken), errors.Is(err, store.ErrTokenMismatch):
		respondError(w, http.StatusUnauthorized, "invalid or expired join token")
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrGameFull),
		errors.Is(err, store.ErrGameCancelled),
		errors.Is(err, store.ErrAlreadyJoined),
		errors.Is(err, service.ErrNotCancellable):
		respondError(w, http.StatusConflict, err.Error())
	default:
		log.Errorf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// currentUserID reads the authenticated user from the verified JWT claims.
func currentUserID(r *http.Request) (int64, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, err
	}
	v, ok := claims["user_id"]
	if !ok {
		return 0, errors.New("token missing user_id claim")
	}
	switch id := v.(type) {
	case float64:
		return int64(id), nil
	case int64:
		return id, nil
	case json.Number:
		return id.Int64()
	default:
		return 0, errors.New("user_id claim has unexpected type")
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"port":   os.Getenv("API_SERVICE_PORT"),
	})
}
