package subtitles

import (
	"context"
	"fmt"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	apperrors "subtitle-history-api/pkg/errors"
	"subtitle-history-api/pkg/metrics"
)

// JoinOptions 批量预取哪些类别的 tip
type JoinOptions struct {
	PublicTip bool
	ExtantTip bool
}

// BranchTips 单个分支的预取结果，nil 表示该类别下没有版本
type BranchTips struct {
	Public *entity.SubtitleVersion
	Extant *entity.SubtitleVersion
}

// FetchOptions 批量拉取全部版本的选项
type FetchOptions struct {
	Class       entity.Class
	Order       repository.SortOrder
	WithParents bool
}

// indexLanguages 校验并去重；任一分支为 nil 或未保存时整体失败
func indexLanguages(langs []*entity.SubtitleLanguage) ([]int64, map[int64]*entity.SubtitleLanguage, error) {
	ids := make([]int64, 0, len(langs))
	byID := make(map[int64]*entity.SubtitleLanguage, len(langs))
	for i, lang := range langs {
		if lang == nil || lang.ID == 0 {
			return nil, nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("languages[%d] is nil or has not been saved", i))
		}
		if _, ok := byID[lang.ID]; ok {
			continue
		}
		byID[lang.ID] = lang
		ids = append(ids, lang.ID)
	}
	return ids, byID, nil
}

// FetchAndJoin 每个请求的类别一次查询，结果写入 tip 缓存（包括不存在的槽位），
// 之后对这些分支调用 GetTip 不再访问仓储
func (s *Session) FetchAndJoin(ctx context.Context, langs []*entity.SubtitleLanguage, opts JoinOptions) (map[int64]*BranchTips, error) {
	ids, byID, err := indexLanguages(langs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]*BranchTips, len(ids))
	for _, id := range ids {
		out[id] = &BranchTips{}
	}
	if len(ids) == 0 {
		return out, nil
	}

	var classes []entity.Class
	if opts.PublicTip {
		classes = append(classes, entity.ClassPublic)
	}
	if opts.ExtantTip {
		classes = append(classes, entity.ClassExtant)
	}

	for _, class := range classes {
		tips, err := s.svc.versions.GetTips(ctx, ids, class)
		if err != nil {
			return nil, err
		}
		metrics.BulkQueryLanguages.WithLabelValues("fetch_and_join").Observe(float64(len(ids)))

		for _, id := range ids {
			tip := tips[id]
			if err := checkConsistency(ctx, byID[id], tip); err != nil {
				return nil, err
			}
			s.tips.Set(id, class, tip)
			if class == entity.ClassPublic {
				out[id].Public = tip
			} else {
				out[id].Extant = tip
			}
		}
	}
	return out, nil
}

// FetchForLanguages 一次查询拉取多个分支的全部版本并按分支分组，
// 同时推导并缓存该类别及更窄类别的 tip
func (s *Session) FetchForLanguages(ctx context.Context, langs []*entity.SubtitleLanguage, opts FetchOptions) (map[int64][]*entity.SubtitleVersion, error) {
	if opts.Class == "" {
		opts.Class = entity.ClassPublic
	}
	if err := requireClass(opts.Class); err != nil {
		return nil, err
	}
	if opts.Order == "" {
		opts.Order = repository.SortOrderDesc
	}

	ids, byID, err := indexLanguages(langs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64][]*entity.SubtitleVersion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	versions, err := s.svc.versions.ListForLanguages(ctx, ids, opts.Class, opts.Order, opts.WithParents)
	if err != nil {
		return nil, err
	}
	metrics.BulkQueryLanguages.WithLabelValues("fetch_for_languages").Observe(float64(len(ids)))

	for _, v := range versions {
		lang, ok := byID[v.SubtitleLanguageID]
		if !ok {
			continue
		}
		if err := checkConsistency(ctx, lang, v); err != nil {
			return nil, err
		}
		out[v.SubtitleLanguageID] = append(out[v.SubtitleLanguageID], v)
	}
	for _, id := range ids {
		s.deriveTips(id, opts.Class, out[id])
	}
	return out, nil
}

// BulkHasPublicVersion 返回每个分支是否存在公开版本；已缓存 PUBLIC tip 的分支不再查询
func (s *Session) BulkHasPublicVersion(ctx context.Context, langs []*entity.SubtitleLanguage) (map[int64]bool, error) {
	ids, _, err := indexLanguages(langs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]bool, len(ids))
	missing := make([]int64, 0, len(ids))
	for _, id := range ids {
		if tip, ok := s.tips.Get(id, entity.ClassPublic); ok {
			out[id] = tip != nil
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	found, err := s.svc.versions.HasVersions(ctx, missing, entity.ClassPublic)
	if err != nil {
		return nil, err
	}
	metrics.BulkQueryLanguages.WithLabelValues("has_public_version").Observe(float64(len(missing)))
	for _, id := range missing {
		out[id] = found[id]
	}
	return out, nil
}

// deriveTips 从已取得的版本集合推导 tip，不再查询仓储
func (s *Session) deriveTips(languageID int64, fetched entity.Class, versions []*entity.SubtitleVersion) {
	for _, class := range fetched.Covers() {
		var tip *entity.SubtitleVersion
		for _, v := range versions {
			if !class.Matches(v) {
				continue
			}
			if tip == nil || v.VersionNumber > tip.VersionNumber {
				tip = v
			}
		}
		s.tips.Set(languageID, class, tip)
	}
}
