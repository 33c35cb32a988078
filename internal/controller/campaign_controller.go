// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"net/http"

	"github.com/unclebandit/crm-dispatch/internal/dto"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/service"
	"github.com/unclebandit/crm-dispatch/internal/validation"
)

// CampaignDispatcher is satisfied by *service.Dispatcher.
type CampaignDispatcher interface {
	DispatchCampaign(ctx context.Context, campaignID int64) (*model.DispatchReport, error)
}

type CampaignController struct {
	CampaignService *service.CampaignService
	Dispatcher      CampaignDispatcher
}

// DispatchResponse is returned when a campaign has been sent.
type DispatchResponse struct {
	Message   string                  `json:"message"`
	Campaign  *model.Campaign         `json:"campaign"`
	Clients   int                     `json:"clients"`
	RunID     string                  `json:"run_id"`
	Delivered int                     `json:"delivered"`
	Failed    int                     `json:"failed"`
	Outcomes  []model.DeliveryOutcome `json:"outcomes"`
}

// SendCampaign handles POST /campaigns/send with {"campaign_id": ...}.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var body dto.DispatchRequest
	if err := decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := validation.ValidateStruct(&body); err != nil {
		WriteError(w, r, err)
		return
	}
	c.dispatch(w, r, int64(body.CampaignID))
}

// SendCampaignByID handles POST /campaigns/{id}/send.
func (c *CampaignController) SendCampaignByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	c.dispatch(w, r, id)
}

func (c *CampaignController) dispatch(w http.ResponseWriter, r *http.Request, id int64) {
	report, err := c.Dispatcher.DispatchCampaign(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DispatchResponse{
		Message:   "Campaign sent successfully",
		Campaign:  report.Campaign,
		Clients:   report.Clients,
		RunID:     report.RunID.String(),
		Delivered: report.Delivered,
		Failed:    report.Failed,
		Outcomes:  report.Outcomes,
	})
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body dto.CampaignInput
	if err := decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), body)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	var body dto.CampaignInput
	if err := decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), id, body)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := c.CampaignService.DeleteCampaign(r.Context(), id); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), page, pageSize, status)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination, // already contains total_count, total_pages, page, page_size
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	campaign, err := c.CampaignService.GetCampaignDetails(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}
