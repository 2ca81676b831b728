package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"meme-battle/internal/game"
)

type codeURI struct {
	Code string `uri:"code" binding:"required"`
}

type accountURI struct {
	Account string `uri:"account" binding:"required"`
}

type createRequest struct {
	JoinCode  string `json:"passcode" binding:"required,len=4,numeric"`
	Username  string `json:"username" binding:"required"`
	AccountID string `json:"accountId" binding:"max=128"`
}

var createMessages = bindMessages{
	"JoinCode":  {"required": "passcode is required", "len": "passcode must be 4 digits", "numeric": "passcode must be 4 digits"},
	"Username":  {"required": "username is required"},
	"AccountID": {"max": "accountId is too long"},
}

type joinRequest struct {
	Username  string `json:"username" binding:"required"`
	AccountID string `json:"accountId" binding:"max=128"`
}

var joinMessages = bindMessages{
	"Username":  {"required": "username is required"},
	"AccountID": {"max": "accountId is too long"},
}

type leaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"games": s.engine.List()})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createRequest
	if !bindJSON(c, &req, createMessages, "invalid create request") {
		return
	}
	seat, err := s.engine.CreateSession(req.JoinCode, game.Player{Username: req.Username, AccountID: req.AccountID}, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, seat)
}

func (s *Server) handleJoinSession(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	var req joinRequest
	if !bindJSON(c, &req, joinMessages, "invalid join request") {
		return
	}
	seat, err := s.engine.JoinSession(uri.Code, game.Player{Username: req.Username, AccountID: req.AccountID}, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, seat)
}

func (s *Server) handleStartSession(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	var req seatRequest
	if !bindJSON(c, &req, seatMessages, "invalid start request") {
		return
	}
	view, ok := s.authenticate(c, uri.Code, req.PlayerID, req.Token)
	if !ok {
		return
	}
	if err := s.engine.StartSession(view.SessionID); err != nil {
		writeError(c, err)
		return
	}
	view, err := s.engine.State(view.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSessionState(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	view, err := s.engine.State(uri.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleSaveSnapshot(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	view, err := s.engine.State(uri.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	blob, err := s.engine.SaveSnapshot(c.Request.Context(), view.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gameId": view.SessionID, "bytes": len(blob)})
}

// handleRestoreSession brings a saved session back by id. Players rejoin
// its push feed by reconnecting their websocket.
func (s *Server) handleRestoreSession(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	summary, err := s.engine.RestoreSnapshot(c.Request.Context(), uri.Code, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	log.Info().Str("session_id", summary.ID).Str("join_code", summary.JoinCode).Msg("session restored over http")
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRematch(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	var req seatRequest
	if !bindJSON(c, &req, seatMessages, "invalid rematch request") {
		return
	}
	view, ok := s.authenticate(c, uri.Code, req.PlayerID, req.Token)
	if !ok {
		return
	}
	seat, err := s.engine.Rematch(view.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}
	seat.PlayerID = req.PlayerID
	seat.Token = req.Token
	c.JSON(http.StatusCreated, seat)
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	var query leaderboardQuery
	if !bindQuery(c, &query) {
		return
	}
	if s.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistics are not configured"})
		return
	}
	standings, err := s.records.Leaderboard(c.Request.Context(), query.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": standings})
}

func (s *Server) handlePlayerStats(c *gin.Context) {
	var uri accountURI
	if !bindURI(c, &uri) {
		return
	}
	if s.records == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistics are not configured"})
		return
	}
	standing, err := s.records.PlayerStatistics(c.Request.Context(), uri.Account)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, standing)
}
