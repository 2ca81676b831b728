package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"meme-battle/internal/game"
)

const (
	sendBuffer     = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 8 << 10
)

var (
	errClientClosed = errors.New("websocket client closed")
	errSlowClient   = errors.New("websocket client send buffer full")
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsQuery struct {
	PlayerID string `form:"player_id" binding:"required"`
	Token    string `form:"token" binding:"required"`
}

// outbound is the frame pushed to clients.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// inbound is a player action. Type is submit, vote or skip.
type inbound struct {
	Type     string   `json:"type"`
	Captions []string `json:"captions,omitempty"`
	TargetID string   `json:"submissionId,omitempty"`
}

// wsClient is one player's live connection. It implements game.Channel:
// Send never blocks, so the engine may call it under a session lock.
type wsClient struct {
	conn     *websocket.Conn
	playerID string

	mu        sync.Mutex
	sessionID string
	closed    bool
	send      chan outbound
	done      chan struct{}
}

func newWSClient(conn *websocket.Conn, sessionID, playerID string) *wsClient {
	return &wsClient{
		conn:      conn,
		playerID:  playerID,
		sessionID: sessionID,
		send:      make(chan outbound, sendBuffer),
		done:      make(chan struct{}),
	}
}

func (c *wsClient) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	if notice, ok := payload.(game.RematchNotice); ok && event == game.EventRematchCreated {
		c.sessionID = notice.SessionID
	}
	select {
	case c.send <- outbound{Event: event, Data: payload}:
		return nil
	default:
		return errSlowClient
	}
}

func (c *wsClient) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *wsClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (s *Server) handleWebsocket(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	var query wsQuery
	if !bindQuery(c, &query) {
		return
	}
	view, ok := s.authenticate(c, uri.Code, query.PlayerID, query.Token)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := newWSClient(conn, view.SessionID, query.PlayerID)
	go s.writeWS(client)
	if err := s.engine.Reconnect(view.SessionID, query.PlayerID, client); err != nil {
		log.Info().Err(err).Str("session_id", view.SessionID).Str("player_id", query.PlayerID).Msg("ws bind failed")
		client.close()
		return
	}
	log.Info().Str("session_id", view.SessionID).Str("player_id", query.PlayerID).Str("remote", c.Request.RemoteAddr).Msg("ws connected")
	go s.readWS(client)
}

func (s *Server) readWS(client *wsClient) {
	defer func() {
		client.close()
		sessionID := client.session()
		if err := s.engine.DisconnectChannel(sessionID, client.playerID, client); err != nil {
			log.Debug().Err(err).Str("session_id", sessionID).Str("player_id", client.playerID).Msg("ws disconnect ignored")
		}
	}()
	client.conn.SetReadLimit(maxMessageSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			log.Info().Err(err).Str("session_id", client.session()).Str("player_id", client.playerID).Msg("ws disconnected")
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = client.Send("error", gin.H{"error": "invalid message"})
			continue
		}
		if err := s.dispatch(client, msg); err != nil {
			_ = client.Send("error", gin.H{"error": err.Error()})
		}
	}
}

func (s *Server) dispatch(client *wsClient, msg inbound) error {
	sessionID := client.session()
	switch msg.Type {
	case "submit":
		return s.engine.Submit(sessionID, client.playerID, msg.Captions)
	case "vote":
		return s.engine.Vote(sessionID, client.playerID, msg.TargetID)
	case "skip":
		return s.engine.Skip(sessionID, client.playerID)
	default:
		return errors.New("unknown message type")
	}
}

// writeWS is the only writer on the connection. It closes the socket once
// the session has been cleaned up or the reader has gone away.
func (s *Server) writeWS(client *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()
	for {
		select {
		case msg := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteJSON(msg); err != nil {
				client.close()
				return
			}
			if msg.Event == game.EventGameCleanup {
				_ = client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				client.close()
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				client.close()
				return
			}
		case <-client.done:
			return
		}
	}
}
