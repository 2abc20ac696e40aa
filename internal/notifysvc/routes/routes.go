package routes

import (
	"os"

	"github.com/avvvet/pickup-services/internal/notifysvc/handlers"
	"github.com/avvvet/pickup-services/internal/notifysvc/ws"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
)

var tokenAuth *jwtauth.JWTAuth

func SetRoutes(r *chi.Mux, hub *ws.Hub) {
	h := handlers.NewHandler(hub, tokenAuth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}

func InitAuth() {
	var jwtKey = os.Getenv("JWT_SECRET_KEY")
	tokenAuth = jwtauth.New("HS256", []byte(jwtKey), nil)
}
