package api

import (
	"net/http"

	"github.com/IlyasAtabaev731/market/internal/chat"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// chatHandler upgrades the request and serves the connection until it closes.
func (s *APIServer) chatHandler() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("Websocket upgrade failed", "error", err)
			return
		}

		client := chat.NewClient(ws, currentUser(r.Context()).Username, s.chat, s.logger, chat.ClientOptions{
			SendBuffer:     s.config.Chat.SendBuffer,
			WriteTimeout:   s.config.Chat.WriteTimeout,
			PongWait:       s.config.Chat.PongWait,
			MaxMessageSize: s.config.Chat.MaxMessageSize,
		})
		client.Run()
	}
}
