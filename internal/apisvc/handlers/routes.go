package handlers

import (
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Get("/health", h.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		// Provider callbacks authenticate by signature, not bearer token.
		r.Post("/game-pay/webhook/{provider}", h.PaymentWebhookHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Post("/games", h.CreateGameHandler)
			r.Get("/games/search", h.SearchGamesHandler)
			r.Get("/games/{gameID}", h.GetGameHandler)
			r.Post("/games/{gameID}/cancel", h.CancelSpotHandler)
			r.Post("/games/{gameID}/cancel-game", h.CancelGameHandler)
			r.Post("/games/{gameID}/waitlist", h.RequestWaitlistHandler)
			r.Delete("/games/{gameID}/waitlist", h.LeaveWaitlistHandler)
			r.Post("/games/{gameID}/join-from-waitlist", h.JoinFromWaitlistHandler)
			r.Post("/game-pay/{gameID}/intent", h.JoinIntentHandler)
		})
	})
}

func (h *Handler) InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	h.tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}
