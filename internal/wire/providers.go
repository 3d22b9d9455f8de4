// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"errors"
	"fmt"
	"os"

	"subtitle-history-api/internal/application/subtitles"
	"subtitle-history-api/internal/config"
	"subtitle-history-api/internal/domain/repository"
	"subtitle-history-api/internal/infrastructure/messaging"
	"subtitle-history-api/internal/infrastructure/persistence/memory"
	"subtitle-history-api/internal/infrastructure/persistence/postgres"
	"subtitle-history-api/internal/infrastructure/persistence/redis"
	"subtitle-history-api/internal/interfaces/http/handler"
	"subtitle-history-api/internal/interfaces/http/middleware"
	"subtitle-history-api/pkg/logger"
)

// Storage 按 database.driver 选出的存储实现
type Storage struct {
	Languages repository.SubtitleLanguageRepository
	Versions  repository.SubtitleVersionRepository
	Tx        repository.Transactor
	Source    repository.VideoRepository
}

// ProvidePostgresClient driver 为 memory 时返回 nil
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		return nil, func() {}, nil
	}
	return ProvideRequiredPostgresClient(cfg)
}

// ProvideRequiredPostgresClient 必须可用的 PostgreSQL 客户端
func ProvideRequiredPostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		return nil, nil, errors.New("database.driver is memory, postgres client unavailable")
	}
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error(context.Background(), "failed to close postgres client", err)
		}
	}
	return client, cleanup, nil
}

// ProvideMemoryStore driver 为 memory 时创建进程内存储
func ProvideMemoryStore(cfg *config.Config) *memory.Store {
	if cfg.Database.Driver != config.DriverMemory {
		return nil
	}
	return memory.NewStore()
}

// ProvideStorage 组装仓储与事务管理器
func ProvideStorage(pg *postgres.Client, store *memory.Store) *Storage {
	if pg != nil {
		return &Storage{
			Languages: postgres.NewSubtitleLanguageRepository(pg),
			Versions:  postgres.NewSubtitleVersionRepository(pg),
			Tx:        postgres.NewTxManager(pg),
			Source:    postgres.NewVideoRepository(pg),
		}
	}
	return &Storage{
		Languages: memory.NewSubtitleLanguageRepository(store),
		Versions:  memory.NewSubtitleVersionRepository(store),
		Tx:        store,
		Source:    memory.NewVideoRepository(store),
	}
}

// ProvideRedisClient 未启用 Redis 时返回 nil
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	return ProvideRequiredRedisClient(cfg)
}

// ProvideRequiredRedisClient 必须可用的 Redis 客户端
func ProvideRequiredRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil, errors.New("cache.redis.enabled is false, redis client unavailable")
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Error(context.Background(), "failed to close redis client", err)
		}
	}
	return client, cleanup, nil
}

// ProvideCache Redis 缓存
func ProvideCache(client *redis.Client) *redis.Cache {
	if client == nil {
		return nil
	}
	return redis.NewCache(client)
}

// ProvideVideoRepository 视频元数据仓储，Redis 可用时包一层读缓存
func ProvideVideoRepository(cfg *config.Config, storage *Storage, cache *redis.Cache) repository.VideoRepository {
	if cache == nil {
		return storage.Source
	}
	return redis.NewCachedVideoRepository(cache, storage.Source, cfg.Subtitles.VideoCacheTTL)
}

// ProvideEventSink Redis 可用时投递到事件流，否则写日志
func ProvideEventSink(cfg *config.Config, client *redis.Client) subtitles.EventSink {
	if client == nil {
		return messaging.LogSink{}
	}
	return messaging.NewProducer(
		client.Redis(),
		messaging.Stream(cfg.Subtitles.EventStream),
		int64(cfg.Messaging.RedisStream.MaxLen),
	)
}

// ProvideSubtitleService 字幕版本服务
func ProvideSubtitleService(
	cfg *config.Config,
	languages repository.SubtitleLanguageRepository,
	versions repository.SubtitleVersionRepository,
	tx repository.Transactor,
	sink subtitles.EventSink,
	videos repository.VideoRepository,
) *subtitles.Service {
	return subtitles.NewService(languages, versions, tx, sink,
		subtitles.WithWritelockTTL(cfg.Subtitles.WritelockTTL),
		subtitles.WithVideos(videos),
	)
}

// ProvideRateLimiter 未启用 Redis 时返回 nil 接口，限流中间件随之停用
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideHealthHandler 就绪探针依赖：PostgreSQL 必需，Redis 可降级
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, rdb *redis.Client) *handler.HealthHandler {
	var checks []handler.DependencyCheck
	if pg != nil {
		checks = append(checks, handler.DependencyCheck{Name: "postgres", Required: true, Check: pg.HealthCheck})
	} else {
		checks = append(checks, handler.DependencyCheck{Name: "postgres"})
	}
	if rdb != nil {
		checks = append(checks, handler.DependencyCheck{Name: "redis", Check: rdb.HealthCheck})
	} else {
		checks = append(checks, handler.DependencyCheck{Name: "redis"})
	}
	return handler.NewHealthHandler(cfg.App.Version, checks)
}

// ProvideEventConsumer 字幕事件消费者
func ProvideEventConsumer(cfg *config.Config, client *redis.Client) *messaging.Consumer {
	stream := messaging.Stream(cfg.Subtitles.EventStream)
	if stream == "" {
		stream = messaging.StreamSubtitleEvents
	}
	return messaging.NewConsumer(client.Redis(), messaging.ConsumerConfig{
		Stream:       stream,
		Group:        messaging.ConsumerGroupNotifier,
		ConsumerName: consumerName(cfg),
		BlockTimeout: cfg.Messaging.RedisStream.BlockTimeout,
		RetryLimit:   cfg.Messaging.RedisStream.RetryLimit,
		Backoff:      messaging.DefaultBackoffConfig(),
	})
}

func consumerName(cfg *config.Config) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	name := cfg.App.Name
	if name == "" {
		name = "subtitle-events"
	}
	return fmt.Sprintf("%s-%s-%d", name, host, os.Getpid())
}
