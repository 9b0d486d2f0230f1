package handlers

import (
	"net/http"
	"strconv"

	"goride/internal/providers"
	"goride/internal/services"
	"goride/internal/utils"

	"github.com/gin-gonic/gin"
)

// WebhookHandler implements §4.7's Webhook Ingress endpoints. Plivo
// posts application/x-www-form-urlencoded bodies; Twilio's status
// callback does the same. Both are read with Gin's PostForm, matching
// the teacher's form-binding idiom for webhook-style endpoints.
type WebhookHandler struct {
	webhooks *services.WebhookService
	twilio   providers.CallProvider
}

func NewWebhookHandler(webhooks *services.WebhookService, twilio providers.CallProvider) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, twilio: twilio}
}

// PlivoRing handles POST /plivo/ring-url.
func (h *WebhookHandler) PlivoRing(c *gin.Context) {
	callUUID := c.PostForm("CallUUID")
	if callUUID == "" {
		utils.BadRequestResponse(c, "missing CallUUID")
		return
	}

	if err := h.webhooks.PlivoRing(c.Request.Context(), callUUID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBHOOK_FAILED", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// PlivoAnswer handles POST /ip/xml-plivo — the answer webhook.
func (h *WebhookHandler) PlivoAnswer(c *gin.Context) {
	callUUID := c.PostForm("CallUUID")
	if callUUID == "" {
		callUUID = c.Query("CallUUID")
	}
	if callUUID == "" {
		utils.BadRequestResponse(c, "missing CallUUID")
		return
	}

	if err := h.webhooks.PlivoAnswer(c.Request.Context(), callUUID); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBHOOK_FAILED", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// PlivoHangup handles POST /plivo/hangup-url.
func (h *WebhookHandler) PlivoHangup(c *gin.Context) {
	callUUID := c.PostForm("CallUUID")
	if callUUID == "" {
		utils.BadRequestResponse(c, "missing CallUUID")
		return
	}

	duration, _ := strconv.Atoi(c.PostForm("Duration"))
	endReason := c.PostForm("HangupCause")

	if err := h.webhooks.PlivoHangup(c.Request.Context(), callUUID, duration, endReason); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBHOOK_FAILED", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// TwilioStatusCallback handles POST /twilio/status-callback, multiplexing
// every event Twilio sends (initiated, ringing, answered, completed, and
// terminal failure variants) through MapStatus.
func (h *WebhookHandler) TwilioStatusCallback(c *gin.Context) {
	callSID := c.PostForm("CallSid")
	status := c.PostForm("CallStatus")
	if callSID == "" || status == "" {
		utils.BadRequestResponse(c, "missing CallSid/CallStatus")
		return
	}

	duration, _ := strconv.Atoi(c.PostForm("CallDuration"))
	mapped := h.twilio.MapStatus(status)

	if err := h.webhooks.TwilioStatusCallback(c.Request.Context(), callSID, mapped, duration); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "WEBHOOK_FAILED", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// TwilioTwiML handles GET/POST /twilio/twiml, serving the media-stream
// TwiML directly for providers that need a standalone TwiML fetch
// rather than inline twiml on CreateCall.
func (h *WebhookHandler) TwilioTwiML(c *gin.Context) {
	wssURL := c.Query("wss")
	if wssURL == "" {
		utils.BadRequestResponse(c, "missing wss parameter")
		return
	}

	contactData := make(map[string]interface{}, len(c.Request.URL.Query()))
	for k, v := range c.Request.URL.Query() {
		if k == "wss" || len(v) == 0 {
			continue
		}
		contactData[k] = v[0]
	}

	c.Data(http.StatusOK, "text/xml", []byte(providers.BuildMediaStreamTwiML(wssURL, contactData)))
}
