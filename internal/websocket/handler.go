// Package websocket serves live link recognition: the client sends one link
// per frame and gets the recognition or an error back on the same socket.
package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	apperrors "github.com/embedfixer/embedfixer/internal/errors"
	"github.com/embedfixer/embedfixer/internal/fixer"
	"github.com/embedfixer/embedfixer/internal/logger"
)

// Handler handles WebSocket connections.
type Handler struct {
	hub      *Hub
	fixer    *fixer.Fixer
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates a new WebSocket handler. Browsers may only connect from
// allowedOrigins; "*" allows any origin.
func NewHandler(hub *Hub, f *fixer.Fixer, allowedOrigins []string, log *logger.Logger) *Handler {
	return &Handler{
		hub:   hub,
		fixer: f,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		log: log.WithComponent("websocket"),
	}
}

// checkOrigin allows non-browser clients (no Origin header) and the listed
// origins
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		// Same host is always fine
		return strings.EqualFold(u.Host, r.Host)
	}
}

// ServeWS upgrades the request and starts the session pumps.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := NewClient(uuid.NewString(), h.hub, conn, h.fixer)
	if !h.hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"))
		conn.Close()
		return
	}

	h.log.Debug(r.Context(), "websocket session started", map[string]interface{}{
		"session_id": client.id,
		"request_id": apperrors.GetRequestID(r.Context()),
	})

	go client.WritePump()
	go client.ReadPump()
}
