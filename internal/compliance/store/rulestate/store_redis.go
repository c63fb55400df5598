package rulestate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tokengate/internal/compliance/models"
	id "tokengate/pkg/domain"
)

// RedisStore persists restriction rows as JSON values. Safe under the
// per-subject locking the transfer-rule service holds around evaluate/record
// pairs; the store itself does no read-modify-write.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed rule state store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func rowKey(token id.TokenID, subject id.Address) string {
	return "restrictions:" + models.SubjectKey(token, subject)
}

func indexKey(token id.TokenID) string {
	return "restrictions-index:" + models.SanitizeKeySegment(token.String())
}

func (s *RedisStore) Get(ctx context.Context, token id.TokenID, subject id.Address) (*models.TransferRestrictions, error) {
	raw, err := s.client.Get(ctx, rowKey(token, subject)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer restrictions: %w", err)
	}
	var row models.TransferRestrictions
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, fmt.Errorf("unmarshal transfer restrictions: %w", err)
	}
	return &row, nil
}

func (s *RedisStore) GetDefault(ctx context.Context, token id.TokenID) (*models.TransferRestrictions, error) {
	return s.Get(ctx, token, "")
}

func (s *RedisStore) Upsert(ctx context.Context, row *models.TransferRestrictions) error {
	if row == nil {
		return fmt.Errorf("restriction row is required")
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal transfer restrictions: %w", err)
	}
	key := rowKey(row.Token, row.Subject)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check transfer restrictions key: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, 0)
	if exists == 0 {
		// Index only on first insert so listing stays in insertion order.
		pipe.RPush(ctx, indexKey(row.Token), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert transfer restrictions: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, token id.TokenID, subject id.Address) error {
	key := rowKey(token, subject)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.LRem(ctx, indexKey(token), 0, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete transfer restrictions: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, token id.TokenID) ([]*models.TransferRestrictions, error) {
	keys, err := s.client.LRange(ctx, indexKey(token), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transfer restriction keys: %w", err)
	}
	out := make([]*models.TransferRestrictions, 0, len(keys))
	for _, key := range keys {
		raw, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get transfer restrictions %s: %w", key, err)
		}
		var row models.TransferRestrictions
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("unmarshal transfer restrictions %s: %w", key, err)
		}
		out = append(out, &row)
	}
	return out, nil
}
