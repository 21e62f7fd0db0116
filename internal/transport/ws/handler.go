package ws

import (
	"errors"

	"github.com/gorilla/websocket"

	"wcp-bridge/server/internal/transport"
)

// Handler adapts a websocket connection to a transport.Peer: one text frame per message.
type Handler struct {
	Conn *websocket.Conn
}

// NewHandler creates a new WebSocket handler.
func NewHandler(conn *websocket.Conn) *Handler {
	return &Handler{Conn: conn}
}

func (h *Handler) ReadMessage() ([]byte, error) {
	for {
		kind, data, err := h.Conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil, transport.ErrClosed
			}
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (h *Handler) WriteMessage(msg []byte) error {
	return h.Conn.WriteMessage(websocket.TextMessage, msg)
}

func (h *Handler) Close() error {
	return h.Conn.Close()
}

func (h *Handler) RemoteAddr() string {
	return h.Conn.RemoteAddr().String()
}
