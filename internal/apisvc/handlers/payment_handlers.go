package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi"
)

const webhookSignatureHeader = "x-webhook-signature"

func (h *Handler) JoinIntentHandler(w http.ResponseWriter, r *http.Request) {
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
		Provider       string `json:"provider"`
		IdempotencyKey string `json:"idempotencyKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	p, err := h.svc.RequestJoinIntent(r.Context(), gameID, userID, body.Provider, body.IdempotencyKey)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

type webhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// PaymentWebhookHandler is the provider callback boundary: verify the
// signature over the raw body, parse the typed event, then hand it to the
// engine which deduplicates by event id. A 401 never reveals which part of
// the signature check failed.
func (h *Handler) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	adapter, err := h.registry.Get(providerName)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown provider")
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !adapter.VerifyWebhookSignature(rawBody, r.Header.Get(webhookSignatureHeader)) {
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	evt, err := adapter.ParseWebhook(rawBody)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	duplicate, err := h.svc.HandleWebhook(r.Context(), providerName, rawBody, evt)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, webhookResponse{Received: true, Duplicate: duplicate})
}
