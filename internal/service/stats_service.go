package service

import (
	"fmt"
	"log"
	"time"

	"github.com/helloquitx/hqx-api/internal/domain/repository"
	"github.com/helloquitx/hqx-api/internal/provider"
)

const (
	statsCacheKey = "stats:total"
	statsCacheTTL = 60 * time.Second
)

// TotalStats is the public counters payload.
type TotalStats struct {
	TotalUsers        int64 `json:"total_users"`
	TwitterConnected  int64 `json:"twitter_connected"`
	MastodonConnected int64 `json:"mastodon_connected"`
	BlueskyConnected  int64 `json:"bluesky_connected"`
}

// StatsService serves aggregate user counts with a short Redis cache in
// front, the counts back four COUNT queries.
type StatsService struct {
	userRepo  repository.UserRepository
	cacheRepo repository.CacheRepository
}

func NewStatsService(userRepo repository.UserRepository, cacheRepo repository.CacheRepository) *StatsService {
	return &StatsService{
		userRepo:  userRepo,
		cacheRepo: cacheRepo,
	}
}

// GetTotalStats returns the counters, from cache when fresh.
func (s *StatsService) GetTotalStats() (*TotalStats, error) {
	if s.cacheRepo != nil {
		var cached TotalStats
		if err := s.cacheRepo.GetJSON(statsCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	stats := &TotalStats{}
	var err error
	if stats.TotalUsers, err = s.userRepo.Count(); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if stats.TwitterConnected, err = s.userRepo.CountConnected(provider.Twitter); err != nil {
		return nil, fmt.Errorf("failed to count twitter users: %w", err)
	}
	if stats.MastodonConnected, err = s.userRepo.CountConnected(provider.Mastodon); err != nil {
		return nil, fmt.Errorf("failed to count mastodon users: %w", err)
	}
	if stats.BlueskyConnected, err = s.userRepo.CountConnected(provider.Bluesky); err != nil {
		return nil, fmt.Errorf("failed to count bluesky users: %w", err)
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(statsCacheKey, stats, statsCacheTTL); err != nil {
			log.Printf("[Stats] Failed to cache stats: %v", err)
		}
	}
	return stats, nil
}
