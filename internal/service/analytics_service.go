package service

import (
	"context"

	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/repository"
)

// AnalyticsService feeds the dashboard summary.
type AnalyticsService struct {
	ClientRepo   repository.ClientRepositoryInterface
	CampaignRepo repository.CampaignRepositoryInterface
	CommRepo     repository.CommunicationRepositoryInterface
}

func (s *AnalyticsService) Summary(ctx context.Context) (*model.Summary, error) {
	clients, err := s.ClientRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.CampaignRepo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	deliveries, err := s.CommRepo.TotalsByChannel(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Summary{
		Clients:           clients,
		CampaignsByStatus: byStatus,
		Deliveries:        deliveries,
	}, nil
}
