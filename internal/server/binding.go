package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages maps a struct field and validation tag to the message a
// client sees when that rule fails.
type bindMessages map[string]map[string]string

func (m bindMessages) lookup(verrs validator.ValidationErrors) (string, bool) {
	for _, verr := range verrs {
		if msg, ok := m[verr.Field()][verr.Tag()]; ok {
			return msg, true
		}
	}
	return "", false
}

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
	return false
}

// bindURI treats any malformed path parameter as an unknown game.
func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": game404})
		return false
	}
	return true
}

func bindQuery(c *gin.Context, req any) bool {
	err := c.ShouldBindQuery(req)
	if err == nil {
		return true
	}
	message := "invalid query"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, verr := range verrs {
			fields = append(fields, verr.Field())
		}
		message = "invalid query parameters: " + strings.Join(fields, ", ")
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
	return false
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	if errors.Is(err, io.EOF) {
		return "request body is required"
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		if msg, ok := messages.lookup(verrs); ok {
			return msg
		}
	}
	if fallback == "" {
		return "invalid request"
	}
	return fallback
}
