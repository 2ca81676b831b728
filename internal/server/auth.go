package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meme-battle/internal/game"
)

var errUnauthorized = errors.New("invalid player authentication")

type seatRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

var seatMessages = bindMessages{
	"PlayerID": {"required": "playerId is required"},
	"Token":    {"required": "token is required"},
}

// authenticate resolves code to a session and checks the caller's seat in
// it. It writes the response itself on failure.
func (s *Server) authenticate(c *gin.Context, code, playerID, token string) (game.StateView, bool) {
	view, err := s.engine.State(code)
	if err != nil {
		writeError(c, err)
		return game.StateView{}, false
	}
	if err := s.engine.Authenticate(view.SessionID, strings.TrimSpace(playerID), strings.TrimSpace(token)); err != nil {
		if errors.Is(err, game.ErrSessionNotFound) {
			writeError(c, err)
			return game.StateView{}, false
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": errUnauthorized.Error()})
		return game.StateView{}, false
	}
	return view, true
}
