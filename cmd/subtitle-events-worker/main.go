// Package main 字幕事件消费者入口（subtitle-events-worker）
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"subtitle-history-api/internal/config"
	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/infrastructure/messaging"
	"subtitle-history-api/internal/wire"
	"subtitle-history-api/pkg/logger"
	"subtitle-history-api/pkg/tracer"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "subtitle-events-worker",
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(ctx) }()

	consumer, cleanup, err := wire.InitializeEventConsumer(cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to init event consumer", err)
	}
	defer cleanup()

	consumer.RegisterHandler(string(entity.EventSubtitlesAdded), notify("new subtitle version"))
	consumer.RegisterHandler(string(entity.EventLanguageCompleted), notify("subtitle language completed"))
	consumer.RegisterHandler(string(entity.EventSubtitlesDeleted), notify("subtitle language deleted"))

	if err := consumer.Start(ctx); err != nil {
		logger.Fatal(ctx, "failed to start consumer", err)
	}

	log := logger.FromContext(ctx)
	log.Info("subtitle-events-worker started", "stream", cfg.Subtitles.EventStream)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("subtitle-events-worker shutting down")
	consumer.Stop()
}

// notify 通知类消费：解析事件并写入活动日志，解析失败交由消费者重试/死信
func notify(msg string) messaging.MessageHandler {
	return func(ctx context.Context, m *messaging.Message) error {
		var event entity.SubtitleEvent
		if err := m.UnmarshalPayload(&event); err != nil {
			return fmt.Errorf("decode %s payload: %w", m.Type, err)
		}

		ctx = context.WithValue(ctx, logger.VideoIDKey, event.VideoID)
		ctx = context.WithValue(ctx, logger.LanguageCodeKey, event.LanguageCode)
		if reqID := m.GetMetadata("request_id"); reqID != "" {
			ctx = context.WithValue(ctx, logger.RequestIDKey, reqID)
		}

		logger.Info(ctx, msg,
			"message_id", m.ID,
			"language_id", event.LanguageID,
			"version_id", event.VersionID,
			"version_number", event.VersionNumber,
			"complete", event.Complete,
			"author_id", event.AuthorID,
			"occurred_at", event.OccurredAt,
		)
		return nil
	}
}
