package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// handleJoinQR renders a PNG QR code pointing at the join link of a session.
func (s *Server) handleJoinQR(c *gin.Context) {
	var uri codeURI
	if !bindURI(c, &uri) {
		return
	}
	view, err := s.engine.State(uri.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(c, view.JoinCode), qrcode.Medium, qrSize)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// joinURL is PUBLIC_URL/join/<code>, falling back to the request host.
func (s *Server) joinURL(c *gin.Context, code string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/join/" + code
}
