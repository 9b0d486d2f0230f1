package handlers

import (
	"context"
	"net/http"

	"goride/internal/models"
	"goride/internal/repositories/interfaces"
	"goride/internal/services"
	"goride/internal/utils"
	applogger "goride/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// CampaignHandler implements §4.11's Campaign Management API, grounded
// on the teacher's CallHandler: one exported method per operation,
// utils.SuccessResponse/ErrorResponse for every response.
type CampaignHandler struct {
	campaigns   interfaces.CampaignRepository
	activeCalls interfaces.ActiveCallRepository
	manager     *services.CampaignManager
	validate    *validator.Validate
	audit       *applogger.AuditLogger
}

func NewCampaignHandler(campaigns interfaces.CampaignRepository, activeCalls interfaces.ActiveCallRepository, manager *services.CampaignManager, audit *applogger.AuditLogger) *CampaignHandler {
	return &CampaignHandler{
		campaigns:   campaigns,
		activeCalls: activeCalls,
		manager:     manager,
		validate:    validator.New(),
		audit:       audit,
	}
}

// CreateCampaign handles POST /api/v1/campaigns.
func (h *CampaignHandler) CreateCampaign(c *gin.Context) {
	var req models.CampaignCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		utils.BadRequestResponse(c, "Validation failed: "+err.Error())
		return
	}

	campaign := &models.Campaign{
		CampaignID: uuid.NewString(),
		ClientID:   req.ClientID,
		ListID:     req.ListID,
		FromNumber: req.FromNumber,
		WssURL:     req.WssURL,
		Provider:   req.Provider,
		Status:     models.CampaignStatusRunning,
	}

	if err := h.campaigns.Create(c.Request.Context(), campaign); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CAMPAIGN_CREATE_FAILED", "Failed to create campaign: "+err.Error())
		return
	}

	h.manager.Launch(context.Background(), campaign.CampaignID)
	h.audit.LogAction("campaign_create", campaign.CampaignID, req.ClientID, map[string]interface{}{
		"list_id":     req.ListID,
		"operator_id": h.operatorID(c),
	})

	utils.CreatedResponse(c, "Campaign created successfully", campaign)
}

// operatorID reads the bearer-token subject AuthRequired set in the
// request context, for audit attribution.
func (h *CampaignHandler) operatorID(c *gin.Context) string {
	if subject, ok := c.Get("subject"); ok {
		if str, ok := subject.(string); ok {
			return str
		}
	}
	return ""
}

// PauseCampaign handles POST /api/v1/campaigns/:id/pause.
func (h *CampaignHandler) PauseCampaign(c *gin.Context) {
	campaignID := c.Param("id")

	if err := h.campaigns.SetStatus(c.Request.Context(), campaignID, models.CampaignStatusPaused); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CAMPAIGN_PAUSE_FAILED", "Failed to pause campaign: "+err.Error())
		return
	}
	h.manager.Stop(campaignID)
	h.audit.LogAction("campaign_pause", campaignID, "", map[string]interface{}{"operator_id": h.operatorID(c)})

	utils.SuccessResponse(c, "Campaign paused", nil)
}

// ResumeCampaign handles POST /api/v1/campaigns/:id/resume.
func (h *CampaignHandler) ResumeCampaign(c *gin.Context) {
	campaignID := c.Param("id")

	if err := h.campaigns.SetStatus(c.Request.Context(), campaignID, models.CampaignStatusRunning); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CAMPAIGN_RESUME_FAILED", "Failed to resume campaign: "+err.Error())
		return
	}
	h.manager.Launch(context.Background(), campaignID)
	h.audit.LogAction("campaign_resume", campaignID, "", map[string]interface{}{"operator_id": h.operatorID(c)})

	utils.SuccessResponse(c, "Campaign resumed", nil)
}

// GetCampaign handles GET /api/v1/campaigns/:id.
func (h *CampaignHandler) GetCampaign(c *gin.Context) {
	campaignID := c.Param("id")

	campaign, err := h.campaigns.Get(c.Request.Context(), campaignID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CAMPAIGN_FETCH_FAILED", "Failed to fetch campaign: "+err.Error())
		return
	}
	if campaign == nil {
		utils.NotFoundResponse(c, "Campaign")
		return
	}

	utils.SuccessResponse(c, "Campaign retrieved successfully", campaign)
}

// GetCall handles GET /api/v1/calls/:callUUID — a read-only single-row
// lookup; aggregate reporting stays out of scope per §1 and is only
// named via external.ReportQuery.
func (h *CampaignHandler) GetCall(c *gin.Context) {
	callUUID := c.Param("callUUID")

	call, err := h.activeCalls.Get(c.Request.Context(), callUUID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "CALL_FETCH_FAILED", "Failed to fetch call: "+err.Error())
		return
	}
	if call == nil {
		utils.NotFoundResponse(c, "Call")
		return
	}

	utils.SuccessResponse(c, "Call retrieved successfully", call)
}
