// Package subtitles 实现字幕版本历史：版本号分配、可见性 tip 解析、批量查询与编辑锁
package subtitles

import (
	"context"
	"fmt"
	"sync"
	"time"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	apperrors "subtitle-history-api/pkg/errors"
	"subtitle-history-api/pkg/logger"
)

// Service 长生命周期的依赖容器；每个请求/工作单元通过 NewSession 获取独立的 tip 缓存
type Service struct {
	languages    repository.SubtitleLanguageRepository
	versions     repository.SubtitleVersionRepository
	tx           repository.Transactor
	sink         EventSink
	videos       repository.VideoRepository
	now          func() time.Time
	writelockTTL time.Duration
}

// Option 服务选项
type Option func(*Service)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithWritelockTTL 设置编辑锁有效期
func WithWritelockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.writelockTTL = ttl
		}
	}
}

// WithVideos 设置视频元数据来源，用于标题回退
func WithVideos(videos repository.VideoRepository) Option {
	return func(s *Service) {
		s.videos = videos
	}
}

// NewService 创建字幕服务
func NewService(
	languages repository.SubtitleLanguageRepository,
	versions repository.SubtitleVersionRepository,
	tx repository.Transactor,
	sink EventSink,
	opts ...Option,
) *Service {
	s := &Service{
		languages:    languages,
		versions:     versions,
		tx:           tx,
		sink:         sink,
		now:          time.Now,
		writelockTTL: entity.DefaultWritelockTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WritelockTTL 当前编辑锁有效期
func (s *Service) WritelockTTL() time.Duration {
	return s.writelockTTL
}

// NewSession 开启一个工作单元
func (s *Service) NewSession() *Session {
	return &Session{
		svc:    s,
		tips:   NewTipCache(),
		scopes: make(map[int64]*eventScope),
	}
}

// Session 工作单元：持有 tip 缓存与事件冻结状态，不应跨请求复用
type Session struct {
	svc  *Service
	tips *TipCache

	mu     sync.Mutex
	scopes map[int64]*eventScope
}

// Tips 返回本工作单元的 tip 缓存
func (s *Session) Tips() *TipCache {
	return s.tips
}

func requireSaved(lang *entity.SubtitleLanguage) error {
	if lang == nil {
		return apperrors.ErrInvalidParam.WithDetail("subtitle language is nil")
	}
	if lang.ID == 0 {
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf(
			"subtitle language %s/%s has not been saved", lang.VideoID, lang.LanguageCode))
	}
	return nil
}

func requireClass(class entity.Class) error {
	if !class.Valid() {
		return apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("unknown visibility class %q", class))
	}
	return nil
}

// checkConsistency 版本的冗余字段必须与所属分支一致，否则说明调用方传错了分支
func checkConsistency(ctx context.Context, lang *entity.SubtitleLanguage, v *entity.SubtitleVersion) error {
	if v == nil {
		return nil
	}
	if v.SubtitleLanguageID == lang.ID && v.LanguageCode == lang.LanguageCode && v.VideoID == lang.VideoID {
		return nil
	}
	err := apperrors.Consistency("version %d (%s/%s, language %d) does not belong to language %d (%s/%s)",
		v.ID, v.VideoID, v.LanguageCode, v.SubtitleLanguageID, lang.ID, lang.VideoID, lang.LanguageCode)
	logger.Error(ctx, "subtitle consistency violated", err,
		"language_id", lang.ID,
		"version_id", v.ID,
	)
	return err
}
