// Package memory 提供进程内的事务型存储，用于本地开发（database.driver=memory）与测试
package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"subtitle-history-api/internal/domain/entity"
)

type txMarker struct{}

type state struct {
	languages map[int64]entity.SubtitleLanguage
	versions  map[int64]entity.SubtitleVersion
	parents   map[int64][]int64
	videos    map[string]entity.Video
	nextLang  int64
	nextVer   int64
}

func newState() state {
	return state{
		languages: map[int64]entity.SubtitleLanguage{},
		versions:  map[int64]entity.SubtitleVersion{},
		parents:   map[int64][]int64{},
		videos:    map[string]entity.Video{},
	}
}

func (s state) clone() state {
	out := state{
		languages: make(map[int64]entity.SubtitleLanguage, len(s.languages)),
		versions:  make(map[int64]entity.SubtitleVersion, len(s.versions)),
		parents:   make(map[int64][]int64, len(s.parents)),
		videos:    make(map[string]entity.Video, len(s.videos)),
		nextLang:  s.nextLang,
		nextVer:   s.nextVer,
	}
	for k, v := range s.languages {
		out.languages[k] = cloneLanguage(v)
	}
	for k, v := range s.versions {
		out.versions[k] = cloneVersion(v)
	}
	for k, v := range s.parents {
		out.parents[k] = append([]int64(nil), v...)
	}
	for k, v := range s.videos {
		out.videos[k] = v
	}
	return out
}

// Store 内存存储；事务串行执行，失败时整体回滚到事务开始时的快照
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   state
	now  func() time.Time

	queries atomic.Int64
}

// NewStore 创建空存储
func NewStore() *Store {
	return &Store{st: newState(), now: time.Now}
}

// Queries 返回累计的仓储调用次数，测试用它断言缓存与批量查询行为
func (s *Store) Queries() int64 {
	return s.queries.Load()
}

// WithTransaction 实现 repository.Transactor
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.st.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// PutVideo 写入视频元数据
func (s *Store) PutVideo(video entity.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.videos[video.ID] = video
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txMarker{}).(bool)
	return v
}

// read 只读访问
func (s *Store) read(fn func(st *state)) {
	s.queries.Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.st)
}

// write 事务外的单次写入也与事务串行
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	s.queries.Add(1)
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.st)
}

func cloneLanguage(l entity.SubtitleLanguage) entity.SubtitleLanguage {
	if l.WritelockOwnerID != nil {
		owner := *l.WritelockOwnerID
		l.WritelockOwnerID = &owner
	}
	if l.WritelockTime != nil {
		at := *l.WritelockTime
		l.WritelockTime = &at
	}
	return l
}

func cloneVersion(v entity.SubtitleVersion) entity.SubtitleVersion {
	v.Lineage = v.Lineage.Clone()
	v.Subtitles = append([]entity.SubtitleItem(nil), v.Subtitles...)
	if v.Metadata != nil {
		md := make(map[string]string, len(v.Metadata))
		for k, val := range v.Metadata {
			md[k] = val
		}
		v.Metadata = md
	}
	if v.RollbackOfNum != nil {
		n := *v.RollbackOfNum
		v.RollbackOfNum = &n
	}
	v.ParentIDs = append([]int64(nil), v.ParentIDs...)
	return v
}
