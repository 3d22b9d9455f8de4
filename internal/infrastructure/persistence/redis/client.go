// Package redis 提供视频元数据缓存、写接口限流与事件流所需的 Redis 访问
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subtitle-history-api/internal/config"
)

var tracer = otel.Tracer("subtitle-history/redis")

// pingTimeout 启动时连通性校验的上限
const pingTimeout = 5 * time.Second

// Client Redis 客户端；缓存、限流器与事件流生产者/消费者共用同一连接池
type Client struct {
	rdb  *redis.Client
	addr string
	db   int
}

// NewClient 创建 Redis 客户端并校验连通性
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("cache.redis.host is required when redis is enabled")
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	c := &Client{rdb: rdb, addr: addr, db: cfg.DB}
	if err := c.HealthCheck(ctx); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unavailable: %w", addr, err)
	}
	return c, nil
}

// NewClientFromRedis 包装已有连接
func NewClientFromRedis(rdb *redis.Client) *Client {
	opts := rdb.Options()
	return &Client{rdb: rdb, addr: opts.Addr, db: opts.DB}
}

// Redis 底层客户端，事件流生产者与消费者直接使用
func (c *Client) Redis() *redis.Client {
	return c.rdb
}

// Addr 连接地址
func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 就绪探针使用；Redis 不可用时服务降级而非失败
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck",
		trace.WithAttributes(
			attribute.String("redis.addr", c.addr),
			attribute.Int("redis.db", c.db),
		))
	defer span.End()

	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("ping failed: %w", err)
	}
	if result != "PONG" {
		return fmt.Errorf("unexpected ping response: %s", result)
	}
	return nil
}
