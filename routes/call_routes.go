package routes

import (
	handlers "goride/internal/handlers/shared"
	"goride/internal/middleware"
	applogger "goride/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupWebhookRoutes wires the public (unauthenticated) provider
// callback endpoints (§4.7, §6). Providers cannot carry our bearer
// tokens, so these routes are intentionally outside AuthRequired.
func SetupWebhookRoutes(r *gin.RouterGroup, webhookHandler *handlers.WebhookHandler) {
	plivo := r.Group("/plivo")
	{
		plivo.POST("/ring-url", webhookHandler.PlivoRing)
		plivo.POST("/hangup-url", webhookHandler.PlivoHangup)
	}
	r.POST("/ip/xml-plivo", webhookHandler.PlivoAnswer)

	twilio := r.Group("/twilio")
	{
		twilio.POST("/status-callback", webhookHandler.TwilioStatusCallback)
		twilio.GET("/twiml", webhookHandler.TwilioTwiML)
		twilio.POST("/twiml", webhookHandler.TwilioTwiML)
	}
}

// SetupCampaignRoutes wires the authenticated Campaign Management API
// (§4.11).
func SetupCampaignRoutes(r *gin.RouterGroup, campaignHandler *handlers.CampaignHandler, jwtSecret string, audit *applogger.AuditLogger) {
	campaigns := r.Group("/campaigns")
	campaigns.Use(middleware.AuthRequired(jwtSecret, audit))
	{
		campaigns.POST("", campaignHandler.CreateCampaign)
		campaigns.POST("/:id/pause", campaignHandler.PauseCampaign)
		campaigns.POST("/:id/resume", campaignHandler.ResumeCampaign)
		campaigns.GET("/:id", campaignHandler.GetCampaign)
	}

	calls := r.Group("/calls")
	calls.Use(middleware.AuthRequired(jwtSecret, audit))
	{
		calls.GET("/:callUUID", campaignHandler.GetCall)
	}
}
