package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/triage-edge-server/internal/domain"
	"github.com/triage-edge-server/internal/llm"
)

const chatMaxTokens = 512

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The server binds to loopback on-device; cross-origin browsers are not
	// a supported client.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatInbound struct {
	Message string `json:"message"`
}

type chatOutbound struct {
	Token string `json:"token,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleChatStream upgrades to a websocket and streams generative tokens
// for each inbound message. One generation runs at a time per connection;
// closing the socket cancels the in-flight generation.
func (s *Server) handleChatStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	for {
		var in chatInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Debug("Websocket closed unexpectedly")
			}
			return
		}
		if err := domain.ValidateQueryText(in.Message); err != nil {
			if werr := conn.WriteJSON(chatOutbound{Error: err.Error(), Done: true}); werr != nil {
				return
			}
			continue
		}
		if !s.engine.IsReady() {
			if werr := conn.WriteJSON(chatOutbound{Error: "generative engine not ready", Done: true}); werr != nil {
				return
			}
			continue
		}

		prompt := llm.BuildChatPrompt(in.Message)
		_, err := s.engine.CompleteStreaming(ctx, prompt, s.sampling.Chat(chatMaxTokens), func(token string) {
			if werr := conn.WriteJSON(chatOutbound{Token: token}); werr != nil {
				s.logger.WithError(werr).Debug("Websocket write failed mid-stream")
			}
		})
		if err != nil {
			if werr := conn.WriteJSON(chatOutbound{Error: err.Error(), Done: true}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(chatOutbound{Done: true}); err != nil {
			return
		}
	}
}
