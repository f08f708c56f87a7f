package handler

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dto"
)

const (
	requestIDHeader   = "X-Request-ID"
	operatorKeyHeader = "x-operator-key"
	requestIDKey      = "request_id"
)

// requestID tags each request with an id, reusing the caller's when sent.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDKey)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			h.log.Error("Request completed", fields...)
			return
		}
		h.log.Debug("Request completed", fields...)
	}
}

func (h *Handler) observeRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.recorder.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// requireOperatorKey checks the shared operator key from the header or the
// key query parameter.
func (h *Handler) requireOperatorKey() gin.HandlerFunc {
	expected := []byte(h.opts.OperatorKey)
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}

		key := c.GetHeader(operatorKeyHeader)
		if key == "" {
			key = c.Query("key")
		}
		if subtle.ConstantTimeCompare([]byte(key), expected) != 1 {
			h.log.Warn("Rejected operator request",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("key_present", key != ""))
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Error:   "unauthorized",
				Message: "missing or invalid operator key",
			})
			return
		}
		c.Next()
	}
}
