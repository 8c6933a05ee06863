package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tenant-guardian/backend/internal/ai"
)

// chatMessage is one inbound websocket message.
type chatMessage struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}

// chatSession keeps one connection's conversation. Failed turns are recorded
// so the client can render them but are never sent back to the model.
type chatSession struct {
	id      string
	client  *wsClient
	service *ai.Service
	lang    ai.Language
	history []ai.ChatTurn
}

func (s *chatSession) emit(event ChatEvent) error {
	event.SessionID = s.id
	event.Timestamp = time.Now().UTC()
	return s.client.writeJSON(event)
}

// reply streams the assistant answer to msg and records both turns.
func (s *chatSession) reply(ctx context.Context, msg chatMessage) error {
	if strings.TrimSpace(msg.Language) != "" {
		s.lang = ai.ParseLanguage(msg.Language)
	}
	userTurn := ai.ChatTurn{Role: ai.RoleUser, Text: msg.Message}

	stream, err := s.service.Chat(ctx, msg.Message, s.history, s.lang)
	if err != nil {
		return s.fail(userTurn, err)
	}
	defer stream.Close()

	reply := &strings.Builder{}
	for stream.Next() {
		reply.WriteString(stream.Text())
		if err := s.emit(ChatEvent{Type: "fragment", Text: stream.Text()}); err != nil {
			return err
		}
	}
	switch stream.State() {
	case ai.StreamErrored:
		return s.fail(userTurn, stream.Err())
	case ai.StreamCancelled:
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.fail(userTurn, context.Canceled)
	}

	turn := ai.ChatTurn{Role: ai.RoleAssistant, Text: reply.String()}
	s.history = append(s.history, userTurn, turn)
	return s.emit(ChatEvent{Type: "done", Turn: &turn})
}

func (s *chatSession) fail(userTurn ai.ChatTurn, err error) error {
	logrus.WithError(err).WithField("session", s.id).Warn("chat reply failed")
	turn := ai.ErrorTurn()
	s.history = append(s.history, userTurn, turn)
	return s.emit(ChatEvent{Type: "error", Turn: &turn})
}

func (s *Server) handleChatWS(c *gin.Context) {
	upgrader := websocket.Upgrader{
		HandshakeTimeout:  5 * time.Second,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.allowedOrigins) == 0 {
				return true
			}
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				return true
			}
			for _, allowed := range s.allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("upgrade websocket")
		return
	}
	defer conn.Close()

	session := &chatSession{
		id:      uuid.NewString(),
		client:  &wsClient{conn: conn},
		service: s.service,
		lang:    languageFrom(c),
	}
	logger := logrus.WithFields(logrus.Fields{"session": session.id, "remote": conn.RemoteAddr().String()})
	logger.Info("chat websocket connected")

	welcome := ai.ChatTurn{Role: ai.RoleAssistant, Text: s.catalog.Lookup(session.lang, "chatWelcome")}
	if err := session.emit(ChatEvent{Type: "session", Turn: &welcome}); err != nil {
		logger.WithError(err).Warn("send chat welcome")
		return
	}

	ctx := c.Request.Context()
	for {
		var msg chatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Info("chat websocket closed")
			} else {
				logger.WithError(err).Warn("chat websocket unexpected close")
			}
			return
		}
		if strings.TrimSpace(msg.Message) == "" {
			_ = session.emit(ChatEvent{Type: "invalid", Message: "message is empty"})
			continue
		}
		if err := session.reply(ctx, msg); err != nil {
			logger.WithError(err).Warn("chat websocket write")
			return
		}
	}
}
