package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tenant-guardian/backend/internal/ai"
)

// handleChat streams one assistant reply as server-sent events: a "fragment"
// event per chunk, then "done" with the full text, or "error" with the error turn.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.renderError(c, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	stream, err := s.service.Chat(c.Request.Context(), req.Message, req.History, languageFrom(c, req.Language))
	var failure *ai.Failure
	if errors.As(err, &failure) && failure.Cause == ai.CauseInput {
		s.renderError(c, http.StatusBadRequest, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	if err != nil {
		c.SSEvent("error", ai.ErrorTurn())
		return
	}
	defer stream.Close()

	reply := &strings.Builder{}
	for stream.Next() {
		reply.WriteString(stream.Text())
		c.SSEvent("fragment", gin.H{"text": stream.Text()})
		c.Writer.Flush()
	}
	switch stream.State() {
	case ai.StreamEnded:
		c.SSEvent("done", ai.ChatTurn{Role: ai.RoleAssistant, Text: reply.String()})
	case ai.StreamErrored:
		logrus.WithError(stream.Err()).WithField("received", reply.Len()).Warn("chat stream failed")
		c.SSEvent("error", ai.ErrorTurn())
	}
	c.Writer.Flush()
}
