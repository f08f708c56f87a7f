package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/raczniakservices/HVAC/internal/dto"
	"github.com/raczniakservices/HVAC/internal/telephony"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// verifySignature rejects provider callbacks whose signature does not match.
func (h *Handler) verifySignature() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.signatures.Enabled() {
			c.Next()
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}

		if !h.signatures.Valid(c.GetHeader(telephony.SignatureHeader), h.callbackURL(c), c.Request.PostForm) {
			h.log.Warn("Rejected telephony callback with bad signature",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()))
			c.String(http.StatusForbidden, "Forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}

// callbackURL rebuilds the URL the provider signed.
func (h *Handler) callbackURL(c *gin.Context) string {
	if base := strings.TrimRight(h.opts.PublicBaseURL, "/"); base != "" {
		return base + c.Request.URL.RequestURI()
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()
}

// telephonyVoice handles POST /telephony/voice
// @Summary Inbound call webhook
// @Description Records the call and answers with an empty TwiML document
// @Tags telephony
// @Accept x-www-form-urlencoded
// @Produce xml
// @Success 200 {string} string
// @Failure 403 {string} string
// @Router /telephony/voice [post]
func (h *Handler) telephonyVoice(c *gin.Context) {
	h.recordCall(c)
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML))
}

// telephonyStatus handles POST /telephony/status
// @Summary Call status webhook
// @Tags telephony
// @Accept x-www-form-urlencoded
// @Success 204
// @Failure 403 {string} string
// @Router /telephony/status [post]
func (h *Handler) telephonyStatus(c *gin.Context) {
	h.recordCall(c)
	c.Status(http.StatusNoContent)
}

// recordCall stores the callback. Failures are logged and the provider
// still gets a success response.
func (h *Handler) recordCall(c *gin.Context) {
	var req dto.TelephonyCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		h.log.Warn("Unreadable telephony callback", zap.Error(err))
		return
	}

	if _, _, err := h.leadService.RecordCall(c.Request.Context(), &req); err != nil {
		h.log.Warn("Telephony callback write failed",
			zap.String("call_sid", req.CallSid),
			zap.Error(err))
	}
}
