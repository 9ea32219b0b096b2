package dispatch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/round-cube/parking-attendant/session"
)

// Handler is satisfied by *session.Flow.
type Handler interface {
	Handle(ctx context.Context, userID string, ev session.Event) string
}

type messageRequest struct {
	Text *string `json:"text" binding:"required"`
}

type messageResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewRouter(h Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.POST("/conversations/:user_id/messages", func(c *gin.Context) {
		userID := strings.TrimSpace(c.Param("user_id"))
		if userID == "" {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "user_id is required"})
			return
		}
		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "body must be {\"text\": \"...\"}"})
			return
		}
		reply := h.Handle(c.Request.Context(), userID, Route(*req.Text))
		c.JSON(http.StatusOK, messageResponse{Reply: reply})
	})
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request served")
	}
}
