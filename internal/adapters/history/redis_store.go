package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/labbook/internal/domain/entities"
	"github.com/zatekoja/labbook/internal/domain/providers"
	redisclient "github.com/zatekoja/labbook/internal/infrastructure/clients/redis"
)

// RedisStore keeps the search history as a Redis list, newest first
type RedisStore struct {
	client *redisclient.Client
	key    string
}

var _ providers.HistoryStore = (*RedisStore)(nil)

// NewRedisStore creates a history store under key
func NewRedisStore(client *redisclient.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Load returns the list in stored order, skipping undecodable members
func (s *RedisStore) Load(ctx context.Context) ([]entities.SearchHistoryEntry, error) {
	members, err := s.client.Client().LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read search history: %w", err)
	}

	entries := make([]entities.SearchHistoryEntry, 0, len(members))
	for _, member := range members {
		var entry entities.SearchHistoryEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Save atomically replaces the list
func (s *RedisStore) Save(ctx context.Context, entries []entities.SearchHistoryEntry) error {
	members := make([]interface{}, 0, len(entries))
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode search history: %w", err)
		}
		members = append(members, string(data))
	}

	_, err := s.client.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(members) > 0 {
			pipe.RPush(ctx, s.key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write search history: %w", err)
	}
	return nil
}
