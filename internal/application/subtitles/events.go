package subtitles

import (
	"context"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/pkg/logger"
)

// EventSink 下游事件通道；投递失败只记录日志，不影响已提交的写入
type EventSink interface {
	Emit(ctx context.Context, event entity.SubtitleEvent) error
}

// eventScope 冻结期间按到达顺序缓冲分支事件，支持嵌套
type eventScope struct {
	depth  int
	events []entity.SubtitleEvent
}

// Freeze 在 fn 执行期间冻结分支事件：fn 正常返回时按到达顺序全部发出，
// 返回错误时丢弃缓冲的事件。嵌套调用只在最外层退出时处理。
func (s *Session) Freeze(ctx context.Context, lang *entity.SubtitleLanguage, fn func(ctx context.Context) error) error {
	if err := requireSaved(lang); err != nil {
		return err
	}

	s.mu.Lock()
	scope, ok := s.scopes[lang.ID]
	if !ok {
		scope = &eventScope{}
		s.scopes[lang.ID] = scope
	}
	scope.depth++
	s.mu.Unlock()

	err := fn(ctx)

	s.mu.Lock()
	scope.depth--
	if scope.depth > 0 {
		s.mu.Unlock()
		return err
	}
	delete(s.scopes, lang.ID)
	pending := scope.events
	s.mu.Unlock()

	if err != nil {
		if len(pending) > 0 {
			logger.Warn(ctx, "dropping buffered subtitle events",
				"language_id", lang.ID,
				"count", len(pending),
				"error", err,
			)
		}
		return err
	}
	for _, event := range pending {
		s.dispatch(ctx, event)
	}
	return nil
}

// emit 分支处于冻结状态时缓冲，否则立即投递
func (s *Session) emit(ctx context.Context, event entity.SubtitleEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.svc.now()
	}

	s.mu.Lock()
	if scope, ok := s.scopes[event.LanguageID]; ok {
		scope.events = append(scope.events, event)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.dispatch(ctx, event)
}

func (s *Session) dispatch(ctx context.Context, event entity.SubtitleEvent) {
	if s.svc.sink == nil {
		return
	}
	if err := s.svc.sink.Emit(ctx, event); err != nil {
		logger.Warn(ctx, "failed to emit subtitle event",
			"type", event.Type,
			"language_id", event.LanguageID,
			"error", err,
		)
	}
}

func newEvent(eventType entity.SubtitleEventType, lang *entity.SubtitleLanguage) entity.SubtitleEvent {
	return entity.SubtitleEvent{
		Type:         eventType,
		VideoID:      lang.VideoID,
		LanguageID:   lang.ID,
		LanguageCode: lang.LanguageCode,
	}
}
