// Package testsupport 提供测试共用的装配与断言辅助
package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"subtitle-history-api/internal/application/subtitles"
	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/infrastructure/persistence/memory"
)

// Clock 手动推进的时钟
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock 从固定时间开始
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance 前进 d 并返回新时间
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// RecordingSink 记录收到的事件；Err 非空时每次投递都返回该错误
type RecordingSink struct {
	mu     sync.Mutex
	events []entity.SubtitleEvent
	Err    error
}

func (s *RecordingSink) Emit(_ context.Context, event entity.SubtitleEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.Err
}

// Events 返回事件副本
func (s *RecordingSink) Events() []entity.SubtitleEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.SubtitleEvent(nil), s.events...)
}

// Types 返回事件类型序列
func (s *RecordingSink) Types() []entity.SubtitleEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.SubtitleEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

// SubtitleEnv 基于内存存储装配的字幕服务
type SubtitleEnv struct {
	Store   *memory.Store
	Service *subtitles.Service
	Sink    *RecordingSink
	Clock   *Clock
}

// NewSubtitleEnv 创建测试环境；opts 追加在默认选项之后
func NewSubtitleEnv(t testing.TB, opts ...subtitles.Option) *SubtitleEnv {
	t.Helper()

	store := memory.NewStore()
	sink := &RecordingSink{}
	clock := NewClock()

	all := append([]subtitles.Option{
		subtitles.WithClock(func() time.Time {
			// 每次取时间推进 1ms，保证创建时间严格递增
			return clock.Advance(time.Millisecond)
		}),
		subtitles.WithVideos(memory.NewVideoRepository(store)),
	}, opts...)

	svc := subtitles.NewService(
		memory.NewSubtitleLanguageRepository(store),
		memory.NewSubtitleVersionRepository(store),
		store,
		sink,
		all...,
	)
	return &SubtitleEnv{Store: store, Service: svc, Sink: sink, Clock: clock}
}

// MustLanguage 获取或创建分支
func MustLanguage(t testing.TB, sess *subtitles.Session, videoID, languageCode string) *entity.SubtitleLanguage {
	t.Helper()

	lang, err := sess.EnsureLanguage(context.Background(), videoID, languageCode)
	if err != nil {
		t.Fatalf("EnsureLanguage(%s, %s): %v", videoID, languageCode, err)
	}
	return lang
}

// MustAddVersion 添加版本，失败时终止测试
func MustAddVersion(t testing.TB, sess *subtitles.Session, lang *entity.SubtitleLanguage, in subtitles.NewVersionInput) *entity.SubtitleVersion {
	t.Helper()

	v, err := sess.AddVersion(context.Background(), lang, in)
	if err != nil {
		t.Fatalf("AddVersion(%s): %v", lang.LanguageCode, err)
	}
	return v
}

// Lines 生成简单字幕内容
func Lines(texts ...string) []entity.SubtitleItem {
	items := make([]entity.SubtitleItem, 0, len(texts))
	for i, text := range texts {
		items = append(items, entity.SubtitleItem{
			StartMS: i * 1000,
			EndMS:   i*1000 + 900,
			Text:    text,
		})
	}
	return items
}
