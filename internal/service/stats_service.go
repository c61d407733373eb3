package service

import (
	"context"

	"sparkclean/internal/domain"
	"sparkclean/internal/models"
)

type StatsService struct {
	repo domain.StatsRepository
}

func NewStatsService(repo domain.StatsRepository) *StatsService {
	return &StatsService{repo: repo}
}

func (s *StatsService) GetStats(ctx context.Context, actor Actor) (*models.Stats, error) {
	if err := actor.requireAdmin(); err != nil {
		return nil, err
	}
	return s.repo.GetStats(ctx)
}
