package subtitles

import (
	"context"
	"fmt"
	"strings"
	"time"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	apperrors "subtitle-history-api/pkg/errors"
	"subtitle-history-api/pkg/logger"
	"subtitle-history-api/pkg/metrics"
)

// NewVersionInput 新版本内容
type NewVersionInput struct {
	Subtitles   []entity.SubtitleItem
	Title       string
	Description string
	Metadata    map[string]string

	// Parents 显式父版本；未包含本语言父版本时自动以当前 FULL tip 作为父版本
	Parents []*entity.SubtitleVersion

	// Visibility 为空时默认 public
	Visibility         entity.Visibility
	VisibilityOverride entity.VisibilityOverride

	AuthorID   string
	Origin     entity.VersionOrigin
	Note       string
	RollbackOf *int
	CreatedAt  time.Time
}

// EnsureLanguage 获取或创建 (video, language) 分支
func (s *Session) EnsureLanguage(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error) {
	videoID = strings.TrimSpace(videoID)
	languageCode = strings.TrimSpace(languageCode)
	if videoID == "" || languageCode == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("video id and language code are required")
	}
	return s.svc.languages.Ensure(ctx, videoID, languageCode)
}

// GetLanguage 查询分支，不存在时返回 nil
func (s *Session) GetLanguage(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error) {
	return s.svc.languages.GetByVideoAndCode(ctx, videoID, languageCode)
}

// ListLanguages 列出视频的全部分支
func (s *Session) ListLanguages(ctx context.Context, videoID string) ([]*entity.SubtitleLanguage, error) {
	return s.svc.languages.ListByVideo(ctx, videoID)
}

// AddVersion 在事务内读取 FULL tip、分配版本号、合并谱系并写入新版本
func (s *Session) AddVersion(ctx context.Context, lang *entity.SubtitleLanguage, in NewVersionInput) (*entity.SubtitleVersion, error) {
	if err := requireSaved(lang); err != nil {
		return nil, err
	}
	if in.Visibility == "" {
		in.Visibility = entity.VisibilityPublic
	}
	if !in.Visibility.Valid() {
		return nil, apperrors.Validation("invalid visibility %q", in.Visibility)
	}
	if !in.VisibilityOverride.Valid() {
		return nil, apperrors.Validation("invalid visibility override %q", in.VisibilityOverride)
	}
	if in.Origin == "" {
		in.Origin = entity.OriginAPI
	}
	for _, p := range in.Parents {
		if p != nil && p.ID == 0 {
			return nil, apperrors.Validation("parent version %s/%d has not been saved", p.LanguageCode, p.VersionNumber)
		}
	}

	var (
		created *entity.SubtitleVersion
		branch  *entity.SubtitleLanguage
	)
	err := s.svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		locked, err := s.svc.languages.LockForUpdate(ctx, lang.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperrors.ErrLanguageNotFound.WithDetail(fmt.Sprintf("language %d", lang.ID))
		}
		branch = locked

		// 版本号只从仓储读取，tip 缓存不参与写路径
		previous, err := s.svc.versions.GetTip(ctx, locked.ID, entity.ClassFull)
		if err != nil {
			return err
		}
		if err := checkConsistency(ctx, locked, previous); err != nil {
			return err
		}

		number := 1
		parents := in.Parents
		if previous != nil {
			number = previous.VersionNumber + 1
			if !hasLanguage(parents, locked.LanguageCode) {
				parents = append([]*entity.SubtitleVersion{previous}, parents...)
			}
		}

		if err := entity.CheckParents(locked, parents, previous); err != nil {
			return err
		}
		if err := entity.CheckRollback(in.RollbackOf, number); err != nil {
			return err
		}

		createdAt := in.CreatedAt
		if createdAt.IsZero() {
			createdAt = s.svc.now()
		}
		v := &entity.SubtitleVersion{
			SubtitleLanguageID: locked.ID,
			VideoID:            locked.VideoID,
			LanguageCode:       locked.LanguageCode,
			VersionNumber:      number,
			Visibility:         in.Visibility,
			VisibilityOverride: in.VisibilityOverride,
			Lineage:            entity.MergeLineage(parents),
			Subtitles:          in.Subtitles,
			Title:              in.Title,
			Description:        in.Description,
			Metadata:           in.Metadata,
			RollbackOfNum:      in.RollbackOf,
			Origin:             in.Origin,
			Note:               in.Note,
			AuthorID:           in.AuthorID,
			CreatedAt:          createdAt,
			ParentIDs:          parentIDs(parents),
		}
		if err := s.svc.versions.Create(ctx, v); err != nil {
			return err
		}
		created = v
		return nil
	})
	if err != nil {
		metrics.VersionsAddedTotal.WithLabelValues(string(in.Origin), "error").Inc()
		return nil, err
	}

	s.tips.Invalidate(branch.ID)
	metrics.VersionsAddedTotal.WithLabelValues(string(in.Origin), "success").Inc()
	logger.Info(ctx, "subtitle version added",
		"language_id", branch.ID,
		"video_id", branch.VideoID,
		"language_code", branch.LanguageCode,
		"version_number", created.VersionNumber,
		"parents", len(created.ParentIDs),
	)

	event := newEvent(entity.EventSubtitlesAdded, branch)
	event.VersionID = created.ID
	event.VersionNumber = created.VersionNumber
	event.AuthorID = created.AuthorID
	s.emit(ctx, event)
	return created, nil
}

// Rollback 以 toNumber 的内容创建新版本，父版本为当前 tip
func (s *Session) Rollback(ctx context.Context, lang *entity.SubtitleLanguage, toNumber int, authorID string) (*entity.SubtitleVersion, error) {
	if err := requireSaved(lang); err != nil {
		return nil, err
	}
	target, err := s.svc.versions.GetByNumber(ctx, lang.ID, toNumber, entity.ClassExtant)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("version %d of language %d", toNumber, lang.ID))
	}
	if err := checkConsistency(ctx, lang, target); err != nil {
		return nil, err
	}

	rollbackOf := target.VersionNumber
	return s.AddVersion(ctx, lang, NewVersionInput{
		Subtitles:   target.Subtitles,
		Title:       target.Title,
		Description: target.Description,
		Metadata:    target.Metadata,
		Visibility:  entity.VisibilityPublic,
		AuthorID:    authorID,
		Origin:      entity.OriginRollback,
		RollbackOf:  &rollbackOf,
	})
}

// GetTip 返回类别下版本号最大的版本；不存在时返回 nil
func (s *Session) GetTip(ctx context.Context, lang *entity.SubtitleLanguage, class entity.Class) (*entity.SubtitleVersion, error) {
	if err := requireSaved(lang); err != nil {
		return nil, err
	}
	if err := requireClass(class); err != nil {
		return nil, err
	}

	if v, ok := s.tips.Get(lang.ID, class); ok {
		metrics.TipCacheLookups.WithLabelValues(string(class), "hit").Inc()
		return v, nil
	}
	metrics.TipCacheLookups.WithLabelValues(string(class), "miss").Inc()

	v, err := s.svc.versions.GetTip(ctx, lang.ID, class)
	if err != nil {
		return nil, err
	}
	if err := checkConsistency(ctx, lang, v); err != nil {
		return nil, err
	}
	s.tips.Set(lang.ID, class, v)
	return v, nil
}

// GetVersions 按版本号排序返回类别下的全部版本，并顺带缓存可推导的 tip
func (s *Session) GetVersions(ctx context.Context, lang *entity.SubtitleLanguage, class entity.Class, order repository.SortOrder) ([]*entity.SubtitleVersion, error) {
	if err := requireSaved(lang); err != nil {
		return nil, err
	}
	if err := requireClass(class); err != nil {
		return nil, err
	}
	versions, err := s.svc.versions.List(ctx, lang.ID, class, order)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if err := checkConsistency(ctx, lang, v); err != nil {
			return nil, err
		}
	}
	s.deriveTips(lang.ID, class, versions)
	return versions, nil
}

// GetVersion 按版本号查询；不存在或不属于该类别时返回 nil
func (s *Session) GetVersion(ctx context.Context, lang *entity.SubtitleLanguage, number int, class entity.Class) (*entity.SubtitleVersion, error) {
	if err := requireSaved(lang); err != nil {
		return nil, err
	}
	if err := requireClass(class); err != nil {
		return nil, err
	}
	v, err := s.svc.versions.GetByNumber(ctx, lang.ID, number, class)
	if err != nil {
		return nil, err
	}
	if err := checkConsistency(ctx, lang, v); err != nil {
		return nil, err
	}
	return v, nil
}

// CanWritelock 编辑锁是协作式的，只做判断
func (s *Session) CanWritelock(lang *entity.SubtitleLanguage, userID string) bool {
	return lang.CanWritelock(userID, s.svc.now(), s.svc.writelockTTL)
}

// IsWritelocked 是否存在未过期的编辑锁
func (s *Session) IsWritelocked(lang *entity.SubtitleLanguage) bool {
	return lang.IsWritelocked(s.svc.now(), s.svc.writelockTTL)
}

// Writelock 无条件写入持有者与时间；调用方应先检查 CanWritelock
func (s *Session) Writelock(ctx context.Context, lang *entity.SubtitleLanguage, userID string) error {
	if err := requireSaved(lang); err != nil {
		return err
	}
	lang.Writelock(userID, s.svc.now())
	return s.svc.languages.UpdateWritelock(ctx, lang.ID, lang.WritelockOwnerID, lang.WritelockTime)
}

// ReleaseWritelock 清除编辑锁
func (s *Session) ReleaseWritelock(ctx context.Context, lang *entity.SubtitleLanguage) error {
	if err := requireSaved(lang); err != nil {
		return err
	}
	lang.ReleaseWritelock()
	return s.svc.languages.UpdateWritelock(ctx, lang.ID, nil, nil)
}

// MarkComplete 标记分支已完成
func (s *Session) MarkComplete(ctx context.Context, lang *entity.SubtitleLanguage) error {
	return s.setComplete(ctx, lang, true)
}

// MarkIncomplete 取消完成标记
func (s *Session) MarkIncomplete(ctx context.Context, lang *entity.SubtitleLanguage) error {
	return s.setComplete(ctx, lang, false)
}

func (s *Session) setComplete(ctx context.Context, lang *entity.SubtitleLanguage, complete bool) error {
	if err := requireSaved(lang); err != nil {
		return err
	}
	if err := s.svc.languages.UpdateCompletion(ctx, lang.ID, complete); err != nil {
		return err
	}
	lang.IsComplete = complete

	event := newEvent(entity.EventLanguageCompleted, lang)
	event.Complete = complete
	s.emit(ctx, event)
	return nil
}

// Publish 设置 visibility=public，已有的 override 保持不变
func (s *Session) Publish(ctx context.Context, v *entity.SubtitleVersion) error {
	if v == nil || v.ID == 0 {
		return apperrors.ErrInvalidParam.WithDetail("version has not been saved")
	}
	if err := s.svc.versions.UpdateVisibility(ctx, v.ID, entity.VisibilityPublic); err != nil {
		return err
	}
	v.Visibility = entity.VisibilityPublic
	// 调用方持有的 override 可能已过期，以库中的值为准
	if stored, err := s.svc.versions.GetByID(ctx, v.ID); err == nil && stored != nil {
		v.VisibilityOverride = stored.VisibilityOverride
	}
	s.tips.Invalidate(v.SubtitleLanguageID)
	metrics.VisibilityChangesTotal.WithLabelValues("publish").Inc()
	return nil
}

// Unpublish 设置 override 为 deleted 或 private；若该版本原是 PUBLIC/EXTANT tip
// 且之后不再有公开版本，发出 subtitles_deleted 事件
func (s *Session) Unpublish(ctx context.Context, lang *entity.SubtitleLanguage, v *entity.SubtitleVersion, deleteVersion bool) error {
	if err := requireSaved(lang); err != nil {
		return err
	}
	if v == nil || v.ID == 0 {
		return apperrors.ErrInvalidParam.WithDetail("version has not been saved")
	}
	if err := checkConsistency(ctx, lang, v); err != nil {
		return err
	}

	wasTip := false
	for _, class := range []entity.Class{entity.ClassPublic, entity.ClassExtant} {
		tip, err := s.GetTip(ctx, lang, class)
		if err != nil {
			return err
		}
		if tip != nil && tip.ID == v.ID {
			wasTip = true
			break
		}
	}

	override, action := entity.OverridePrivate, "unpublish"
	if deleteVersion {
		override, action = entity.OverrideDeleted, "delete"
	}
	if err := s.svc.versions.UpdateOverride(ctx, v.ID, override); err != nil {
		return err
	}
	v.VisibilityOverride = override
	s.tips.Invalidate(lang.ID)
	metrics.VisibilityChangesTotal.WithLabelValues(action).Inc()

	if !wasTip {
		return nil
	}
	replacement, err := s.GetTip(ctx, lang, entity.ClassPublic)
	if err != nil {
		return err
	}
	if replacement == nil {
		event := newEvent(entity.EventSubtitlesDeleted, lang)
		event.VersionID = v.ID
		event.VersionNumber = v.VersionNumber
		s.emit(ctx, event)
	}
	return nil
}

// Nuke 将分支全部版本标记为已删除
func (s *Session) Nuke(ctx context.Context, lang *entity.SubtitleLanguage) error {
	if err := requireSaved(lang); err != nil {
		return err
	}
	var affected int64
	err := s.svc.tx.WithTransaction(ctx, func(ctx context.Context) error {
		n, err := s.svc.versions.MarkAllDeleted(ctx, lang.ID)
		if err != nil {
			return err
		}
		affected = n
		return s.svc.languages.UpdateWritelock(ctx, lang.ID, nil, nil)
	})
	if err != nil {
		return err
	}
	lang.ReleaseWritelock()
	s.tips.Invalidate(lang.ID)
	metrics.VisibilityChangesTotal.WithLabelValues("nuke").Inc()
	logger.Warn(ctx, "subtitle language nuked",
		"language_id", lang.ID,
		"video_id", lang.VideoID,
		"versions", affected,
	)

	s.emit(ctx, newEvent(entity.EventSubtitlesDeleted, lang))
	return nil
}

// ChangeLanguageCode 修改分支语言代码，同步版本上的冗余字段与谱系键
func (s *Session) ChangeLanguageCode(ctx context.Context, lang *entity.SubtitleLanguage, languageCode string) error {
	if err := requireSaved(lang); err != nil {
		return err
	}
	languageCode = strings.TrimSpace(languageCode)
	if languageCode == "" {
		return apperrors.ErrInvalidParam.WithDetail("language code is required")
	}
	if languageCode == lang.LanguageCode {
		return nil
	}
	if err := s.svc.languages.UpdateLanguageCode(ctx, lang.ID, languageCode); err != nil {
		return err
	}
	lang.LanguageCode = languageCode
	// 同一视频其他分支的谱系也被改写，缓存的 tip 全部作废
	s.tips.Reset()
	return nil
}

// TranslationSource 版本的翻译来源：不同语言父版本中最近创建的一个
func (s *Session) TranslationSource(ctx context.Context, v *entity.SubtitleVersion) (*entity.SubtitleVersion, error) {
	if v == nil || v.ID == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("version has not been saved")
	}
	parents, err := s.svc.versions.ListParents(ctx, v.ID)
	if err != nil {
		return nil, err
	}
	return entity.TranslationSource(v.LanguageCode, parents), nil
}

// DisplayTitle 版本标题；为空且版本语言是视频主语言时回退到视频标题
func (s *Session) DisplayTitle(ctx context.Context, v *entity.SubtitleVersion) (string, error) {
	if v == nil {
		return "", nil
	}
	if v.Title != "" || s.svc.videos == nil {
		return v.Title, nil
	}
	video, err := s.svc.videos.GetByID(ctx, v.VideoID)
	if err != nil {
		return "", err
	}
	if video == nil {
		return "", nil
	}
	if video.PrimaryLanguageCode != "" && video.PrimaryLanguageCode != v.LanguageCode {
		return "", nil
	}
	return video.Title, nil
}

func hasLanguage(versions []*entity.SubtitleVersion, languageCode string) bool {
	for _, v := range versions {
		if v != nil && v.LanguageCode == languageCode {
			return true
		}
	}
	return false
}

func parentIDs(parents []*entity.SubtitleVersion) []int64 {
	if len(parents) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(parents))
	for _, p := range parents {
		ids = append(ids, p.ID)
	}
	return ids
}
