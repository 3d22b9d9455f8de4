// Package messaging 提供基于 Redis Stream 的消息实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/pkg/logger"
	"subtitle-history-api/pkg/metrics"
	pkgtracer "subtitle-history-api/pkg/tracer"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	stream Stream
	maxLen int64
}

// NewProducer 创建消息生产者；stream 为空时使用 StreamSubtitleEvents
func NewProducer(client *redis.Client, stream Stream, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	if stream == "" {
		stream = StreamSubtitleEvents
	}
	return &Producer{
		client: client,
		stream: stream,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()

	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// Emit 发布字幕事件
func (p *Producer) Emit(ctx context.Context, event entity.SubtitleEvent) error {
	msg, err := NewMessage(uuid.NewString(), string(event.Type), event.VideoID, event.LanguageCode, event)
	if err != nil {
		metrics.EventsEmittedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return err
	}

	msg.SetMetadata("language_id", strconv.FormatInt(event.LanguageID, 10))
	if traceID := pkgtracer.TraceID(ctx); traceID != "" {
		msg.SetMetadata("trace_id", traceID)
	}
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
		msg.SetMetadata("request_id", reqID)
	}

	if _, err := p.Publish(ctx, p.stream, msg); err != nil {
		metrics.EventsEmittedTotal.WithLabelValues(string(event.Type), "error").Inc()
		return err
	}
	metrics.EventsEmittedTotal.WithLabelValues(string(event.Type), "success").Inc()
	return nil
}

// LogSink 将事件写入日志，未启用 Redis 时使用
type LogSink struct{}

// Emit 实现事件发布
func (LogSink) Emit(ctx context.Context, event entity.SubtitleEvent) error {
	logger.Info(ctx, "subtitle event",
		"type", event.Type,
		"video_id", event.VideoID,
		"language_id", event.LanguageID,
		"language_code", event.LanguageCode,
		"version_number", event.VersionNumber,
	)
	metrics.EventsEmittedTotal.WithLabelValues(string(event.Type), "logged").Inc()
	return nil
}
