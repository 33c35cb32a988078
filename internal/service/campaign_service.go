// internal/service/campaign_service.go
package service

import (
	"context"
	"strings"
	"time"

	"github.com/unclebandit/crm-dispatch/internal/dto"
	appErrors "github.com/unclebandit/crm-dispatch/internal/errors"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/repository"
	"github.com/unclebandit/crm-dispatch/internal/validation"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	CommRepo     repository.CommunicationRepositoryInterface
	Now          func() time.Time
}

type CampaignDetails struct {
	*model.Campaign
	Stats []model.ChannelStats `json:"stats"`
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// fromInput builds an editable campaign. Only draft and scheduled can be set
// here; a scheduled campaign needs a send time in the future.
func (s *CampaignService) fromInput(in dto.CampaignInput) (*model.Campaign, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}

	c := &model.Campaign{
		Title:       strings.TrimSpace(in.Title),
		Message:     in.Message,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Status:      model.CampaignStatus(in.Status),
		ScheduledAt: in.ScheduledAt,
	}
	if c.Status == "" {
		c.Status = model.CampaignDraft
	}
	if c.Status == model.CampaignScheduled {
		if c.ScheduledAt == nil {
			return nil, appErrors.NewValidationError("scheduled_at", "scheduled_at is required for a scheduled campaign")
		}
		if !c.ScheduledAt.After(s.now()) {
			return nil, appErrors.NewValidationError("scheduled_at", "scheduled_at must be in the future")
		}
	}
	return c, nil
}

func (s *CampaignService) CreateCampaign(ctx context.Context, in dto.CampaignInput) (*model.Campaign, error) {
	c, err := s.fromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) UpdateCampaign(ctx context.Context, id int64, in dto.CampaignInput) (*model.Campaign, error) {
	c, err := s.fromInput(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.CampaignRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) DeleteCampaign(ctx context.Context, id int64) error {
	return s.CampaignRepo.Delete(ctx, id)
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(ctx context.Context, page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	switch model.CampaignStatus(status) {
	case "", model.CampaignDraft, model.CampaignScheduled, model.CampaignSending, model.CampaignSent:
	default:
		return nil, nil, appErrors.NewValidationError("status", "status must be one of: draft, scheduled, sending, sent")
	}

	page, pageSize, offset := paginate(page, pageSize)
	ptrs, total, err := s.CampaignRepo.ListCampaigns(ctx, offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}
	return campaigns, paginationInfo(page, pageSize, total), nil
}

// GetCampaignDetails fetches a campaign by ID
func (s *CampaignService) GetCampaignDetails(ctx context.Context, id int64) (*model.Campaign, error) {
	return s.CampaignRepo.GetByID(ctx, id)
}

// GetCampaignDetailsWithStats adds per-channel delivery counts from history.
func (s *CampaignService) GetCampaignDetailsWithStats(ctx context.Context, id int64) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.CommRepo.StatsByCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}
