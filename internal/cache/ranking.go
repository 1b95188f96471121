package cache

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/zawar-mughal/echo-groove-sub000/internal/submissions"
)

// RankingStore mirrors season leaderboards into a redis sorted set so read
// traffic does not hit the relational store on every page load.
type RankingStore struct {
	client *redis.Client
}

// NewRankingStore wraps the provided redis client.
func NewRankingStore(client *redis.Client) (*RankingStore, error) {
	if client == nil {
		return nil, fmt.Errorf("cache: redis client required")
	}
	return &RankingStore{client: client}, nil
}

func seasonRankingKey(seasonID string) string {
	return fmt.Sprintf("season:ranking:%s", seasonID)
}

// StoreSeasonRanking replaces the cached leaderboard for the season. The
// delete and rebuild run in one transaction so readers never observe a
// partially written set.
func (s *RankingStore) StoreSeasonRanking(ctx context.Context, seasonID string, entries []submissions.RankedEntry) error {
	key := seasonRankingKey(seasonID)

	members := make([]*redis.Z, 0, len(entries))
	for _, entry := range entries {
		members = append(members, &redis.Z{
			Score:  entry.Score,
			Member: entry.SubmissionID,
		})
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		pipe.ZAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: leaderboard rebuild failed: %w", err)
	}
	return nil
}

// TopSubmissions returns the highest scored submission ids for the season,
// best first.
func (s *RankingStore) TopSubmissions(ctx context.Context, seasonID string, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, seasonRankingKey(seasonID), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: leaderboard read failed: %w", err)
	}
	return ids, nil
}
