package service

import (
	"context"
	"strings"

	"github.com/unclebandit/crm-dispatch/internal/dto"
	"github.com/unclebandit/crm-dispatch/internal/model"
	"github.com/unclebandit/crm-dispatch/internal/repository"
	"github.com/unclebandit/crm-dispatch/internal/validation"
)

const defaultHistoryLimit = 50

type ClientService struct {
	ClientRepo repository.ClientRepositoryInterface
	CommRepo   repository.CommunicationRepositoryInterface
}

func clientFromInput(in dto.ClientInput) (*model.Client, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validation.ValidateStruct(&in); err != nil {
		return nil, err
	}
	return &model.Client{
		Name:     in.Name,
		Email:    in.Email,
		Phone:    in.Phone,
		Industry: strings.TrimSpace(in.Industry),
		Notes:    in.Notes,
	}, nil
}

func (s *ClientService) CreateClient(ctx context.Context, in dto.ClientInput) (*model.Client, error) {
	c, err := clientFromInput(in)
	if err != nil {
		return nil, err
	}
	if err := s.ClientRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientService) UpdateClient(ctx context.Context, id int64, in dto.ClientInput) (*model.Client, error) {
	c, err := clientFromInput(in)
	if err != nil {
		return nil, err
	}
	c.ID = id
	if err := s.ClientRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientService) GetClient(ctx context.Context, id int64) (*model.Client, error) {
	return s.ClientRepo.GetByID(ctx, id)
}

func (s *ClientService) DeleteClient(ctx context.Context, id int64) error {
	return s.ClientRepo.Delete(ctx, id)
}

func (s *ClientService) ListClients(ctx context.Context, page, pageSize int) ([]model.Client, map[string]int, error) {
	page, pageSize, offset := paginate(page, pageSize)
	ptrs, total, err := s.ClientRepo.ListClients(ctx, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}
	clients := make([]model.Client, len(ptrs))
	for i, c := range ptrs {
		clients[i] = *c
	}
	return clients, paginationInfo(page, pageSize, total), nil
}

// Communications returns a client's most recent contact history.
func (s *ClientService) Communications(ctx context.Context, clientID int64, limit int) ([]model.Communication, error) {
	if _, err := s.ClientRepo.GetByID(ctx, clientID); err != nil {
		return nil, err
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultHistoryLimit
	}
	return s.CommRepo.ListByClient(ctx, clientID, limit)
}
