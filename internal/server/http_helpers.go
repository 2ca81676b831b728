package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"meme-battle/internal/game"
)

const game404 = "game not found"

// statusFor maps an engine error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrConflict),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrCapacity):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message})
}
