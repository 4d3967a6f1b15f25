package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/castledepotsmail-cyber/castle-depots/config"
)

const (
	productKeyPrefix    = "product:"
	resetTokenKeyPrefix = "pwreset:"
)

func InitRedis(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// GetProduct returns the cached serialization of a product by slug.
func GetProduct(ctx context.Context, rdb *redis.Client, slug string) ([]byte, error) {
	return rdb.Get(ctx, productKeyPrefix+slug).Bytes()
}

func SetProduct(ctx context.Context, rdb *redis.Client, slug string, product interface{}, ttl time.Duration) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, productKeyPrefix+slug, data, ttl).Err()
}

func DeleteProduct(ctx context.Context, rdb *redis.Client, slug string) error {
	return rdb.Del(ctx, productKeyPrefix+slug).Err()
}

// SetResetToken stores a one-time password reset token for the user.
func SetResetToken(ctx context.Context, rdb *redis.Client, token, userID string, ttl time.Duration) error {
	return rdb.Set(ctx, resetTokenKeyPrefix+token, userID, ttl).Err()
}

// ConsumeResetToken returns the user ID for a reset token and deletes it,
// so a token can only be used once.
func ConsumeResetToken(ctx context.Context, rdb *redis.Client, token string) (string, error) {
	key := resetTokenKeyPrefix + token
	userID, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return "", err
	}
	return userID, nil
}
