package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"reengage/internal/customer/models"
	"reengage/internal/platform/redis"
)

const (
	keyEmailTemplate = "reengage:email_template"
	keyLastCoupons   = "reengage:last_generated_coupons"
)

// RedisStore persists settings in Redis so several admin instances share the
// template and the last issuance result set.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) EmailTemplate(ctx context.Context) (string, error) {
	tpl, err := s.client.Get(ctx, keyEmailTemplate).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return DefaultEmailTemplate, nil
		}
		return "", fmt.Errorf("get email template: %w", err)
	}
	return tpl, nil
}

func (s *RedisStore) SetEmailTemplate(ctx context.Context, tpl string) error {
	if err := s.client.Set(ctx, keyEmailTemplate, tpl, 0).Err(); err != nil {
		return fmt.Errorf("set email template: %w", err)
	}
	return nil
}

func (s *RedisStore) LastGeneratedCoupons(ctx context.Context) ([]models.IssuedCoupon, error) {
	raw, err := s.client.Get(ctx, keyLastCoupons).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last generated coupons: %w", err)
	}
	var coupons []models.IssuedCoupon
	if err := json.Unmarshal(raw, &coupons); err != nil {
		return nil, fmt.Errorf("decode last generated coupons: %w", err)
	}
	return coupons, nil
}

func (s *RedisStore) SetLastGeneratedCoupons(ctx context.Context, coupons []models.IssuedCoupon) error {
	raw, err := json.Marshal(coupons)
	if err != nil {
		return fmt.Errorf("encode last generated coupons: %w", err)
	}
	if err := s.client.Set(ctx, keyLastCoupons, raw, 0).Err(); err != nil {
		return fmt.Errorf("set last generated coupons: %w", err)
	}
	return nil
}
