//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	"subtitle-history-api/internal/config"
	"subtitle-history-api/internal/infrastructure/messaging"
	"subtitle-history-api/internal/infrastructure/persistence/postgres"
	"subtitle-history-api/internal/interfaces/http/handler"
	"subtitle-history-api/internal/interfaces/http/router"
)

// StorageSet 存储层
var StorageSet = wire.NewSet(
	ProvidePostgresClient,
	ProvideMemoryStore,
	ProvideStorage,
	wire.FieldsOf(new(*Storage), "Languages", "Versions", "Tx"),
)

// RedisSet Redis 及其派生组件
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideCache,
	ProvideRateLimiter,
	ProvideEventSink,
)

// ServiceSet 应用服务
var ServiceSet = wire.NewSet(
	ProvideVideoRepository,
	ProvideSubtitleService,
)

// RouterSet HTTP 层
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewSubtitleHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)

// InitializeApp 初始化 HTTP 服务
func InitializeApp(cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(StorageSet, RedisSet, ServiceSet, RouterSet)
	return nil, nil, nil
}

// InitializeMigrator 初始化表结构迁移所需的 PostgreSQL 客户端
func InitializeMigrator(cfg *config.Config) (*postgres.Client, func(), error) {
	wire.Build(ProvideRequiredPostgresClient)
	return nil, nil, nil
}

// InitializeEventConsumer 初始化字幕事件消费者
func InitializeEventConsumer(cfg *config.Config) (*messaging.Consumer, func(), error) {
	wire.Build(ProvideRequiredRedisClient, ProvideEventConsumer)
	return nil, nil, nil
}
