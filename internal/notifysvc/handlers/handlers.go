package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/avvvet/pickup-services/internal/comm"
	"github.com/avvvet/pickup-services/internal/notifysvc/ws"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	upgrader  websocket.Upgrader
	hub       *ws.Hub
	tokenAuth *jwtauth.JWTAuth
}

func NewHandler(hub *ws.Hub, tokenAuth *jwtauth.JWTAuth) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		hub:       hub,
		tokenAuth: tokenAuth,
	}
}

func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.hub.StoreConnection(socketId, conn)

	log.Infof("New WebSocket connection established: %s", socketId)

	go h.handleConnection(conn, socketId)
}

func (h *Handler) handleConnection(conn *websocket.Conn, socketId string) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		conn.Close()
		h.hub.HandleDisconnect(socketId)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			}
			break
		}

		hello := &comm.ClientHello{}
		if err := json.Unmarshal(raw, hello); err != nil || hello.Type != "hello" {
			continue // only hello frames are expected from clients
		}
		h.handleHello(conn, socketId, hello)
	}
}

// handleHello binds the socket to a user once the bearer token checks out.
// The user_id claim wins over whatever the client put in the frame.
func (h *Handler) handleHello(conn *websocket.Conn, socketId string, hello *comm.ClientHello) {
	token, err := jwtauth.VerifyToken(h.tokenAuth, hello.Token)
	if err != nil {
		log.Warnf("socket %s sent invalid token: %v", socketId, err)
		h.sendErrorToClient(conn, "invalid token")
		return
	}

	v, ok := token.Get("user_id")
	if !ok {
		h.sendErrorToClient(conn, "token missing user_id")
		return
	}
	var userID int64
	switch id := v.(type) {
	case float64:
		userID = int64(id)
	case int64:
		userID = id
	default:
		h.sendErrorToClient(conn, "token missing user_id")
		return
	}

	h.hub.BindUser(socketId, userID)
	log.Infof("socket %s bound to user %d", socketId, userID)
}

func (h *Handler) sendErrorToClient(conn *websocket.Conn, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}
	if data, err := json.Marshal(errorResponse); err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Errorf("Failed to send error message to client: %v", err)
		}
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"port":   os.Getenv("NOTIFY_SERVICE_PORT"),
	})
}
