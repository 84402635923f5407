package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/storysync/internal/models"
	"github.com/maheshrc27/storysync/internal/repository"
	"github.com/maheshrc27/storysync/pkg/utils"
)

type ApiKeyService interface {
	Create(ctx context.Context, operatorID int64) error
	List(ctx context.Context, operatorID int64) ([]*models.ApiKey, error)
	GetOperatorID(ctx context.Context, apiKey string) (int64, error)
	RemoveAPIKey(ctx context.Context, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func (s *apiKeyService) Create(ctx context.Context, operatorID int64) error {
	keys, err := s.k.GetByOperatorID(ctx, operatorID)
	if err != nil {
		return err
	}

	if len(keys) > 4 {
		err = errors.New("only 5 API keys can be created")
		slog.Info(err.Error())
		return err
	}

	key, err := utils.GenerateRandomKey(16)
	if err != nil {
		slog.Info(err.Error())
		return fmt.Errorf("error generating API key")
	}

	apiKey := &models.ApiKey{
		OperatorID: operatorID,
		ApiKey:     key,
	}

	_, err = s.k.Create(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("error saving API key")
	}
	return nil
}

func (s *apiKeyService) GetOperatorID(ctx context.Context, apiKey string) (int64, error) {
	operatorID, isExist, err := s.k.GetByKey(ctx, apiKey)
	if err != nil {
		return 0, err
	}

	if !isExist {
		return 0, errors.New("key doesn't exist")
	}

	return *operatorID, nil
}

func (s *apiKeyService) List(ctx context.Context, operatorID int64) ([]*models.ApiKey, error) {
	apiKeys, err := s.k.GetByOperatorID(ctx, operatorID)
	if err != nil {
		return nil, fmt.Errorf("error getting API keys")
	}
	return apiKeys, nil
}

func (s *apiKeyService) RemoveAPIKey(ctx context.Context, keyID int64) error {
	return s.k.Remove(ctx, keyID)
}
