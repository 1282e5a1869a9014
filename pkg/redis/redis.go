package redis

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/config"
)

// Client Redis 客户端封装
// 用于 Token 黑名单、接口限流与密码重置验证码
type Client struct {
	rdb    goredis.UniversalClient
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// NewFromUniversal 基于已有连接创建客户端（集成测试使用）
func NewFromUniversal(rdb goredis.UniversalClient, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// ────────────────────── Token 黑名单 ──────────────────────

const blacklistPrefix = "token:blacklist:"

// BlacklistToken 将 JWT ID 加入黑名单，TTL 与 Token 剩余有效期一致
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil // 已过期
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT ID 是否在黑名单中
func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ────────────────────── 滑动窗口限流 ──────────────────────

const rateLimitPrefix = "ratelimit:"

// CheckRateLimit 判断 key 在 window 内的请求数是否未超过 limit
// 使用 ZSET 记录请求时间戳，先清理窗口外的记录再计数
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	redisKey := rateLimitPrefix + key
	windowStart := now.Add(-window).UnixNano()

	pipe := c.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "0", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, redisKey, goredis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	card := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return card.Val() <= int64(limit), nil
}

// ────────────────────── 密码重置验证码 ──────────────────────

const resetCodePrefix = "password:reset:"

// ErrResetCodeInvalid 验证码不存在、已过期或不匹配
var ErrResetCodeInvalid = errors.New("验证码无效或已过期")

// SaveResetCode 保存密码重置验证码，覆盖同一账号之前的验证码
func (c *Client) SaveResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return c.rdb.Set(ctx, resetCodePrefix+email, code, ttl).Err()
}

// ConsumeResetCode 校验验证码，成功后立即删除，保证只能使用一次
func (c *Client) ConsumeResetCode(ctx context.Context, email, code string) error {
	stored, err := c.rdb.GetDel(ctx, resetCodePrefix+email).Result()
	if errors.Is(err, goredis.Nil) {
		return ErrResetCodeInvalid
	}
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return ErrResetCodeInvalid
	}
	return nil
}
