package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	apperrors "subtitle-history-api/pkg/errors"
)

// SubtitleLanguageRepository 内存语言分支仓储
type SubtitleLanguageRepository struct {
	store *Store
}

func NewSubtitleLanguageRepository(store *Store) *SubtitleLanguageRepository {
	return &SubtitleLanguageRepository{store: store}
}

func findLanguage(st *state, videoID, languageCode string) (entity.SubtitleLanguage, bool) {
	for _, l := range st.languages {
		if l.VideoID == videoID && l.LanguageCode == languageCode {
			return l, true
		}
	}
	return entity.SubtitleLanguage{}, false
}

func (r *SubtitleLanguageRepository) Ensure(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error) {
	var out entity.SubtitleLanguage
	err := r.store.write(ctx, func(st *state) error {
		if l, ok := findLanguage(st, videoID, languageCode); ok {
			out = cloneLanguage(l)
			return nil
		}
		st.nextLang++
		created := entity.NewSubtitleLanguage(videoID, languageCode)
		created.ID = st.nextLang
		created.CreatedAt = r.store.now()
		st.languages[created.ID] = *created
		out = cloneLanguage(*created)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *SubtitleLanguageRepository) GetByID(ctx context.Context, id int64) (*entity.SubtitleLanguage, error) {
	var out *entity.SubtitleLanguage
	r.store.read(func(st *state) {
		if l, ok := st.languages[id]; ok {
			c := cloneLanguage(l)
			out = &c
		}
	})
	return out, nil
}

func (r *SubtitleLanguageRepository) GetByVideoAndCode(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error) {
	var out *entity.SubtitleLanguage
	r.store.read(func(st *state) {
		if l, ok := findLanguage(st, videoID, languageCode); ok {
			c := cloneLanguage(l)
			out = &c
		}
	})
	return out, nil
}

func (r *SubtitleLanguageRepository) ListByVideo(ctx context.Context, videoID string) ([]*entity.SubtitleLanguage, error) {
	var out []*entity.SubtitleLanguage
	r.store.read(func(st *state) {
		for _, l := range st.languages {
			if l.VideoID == videoID {
				c := cloneLanguage(l)
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].LanguageCode < out[j].LanguageCode })
	return out, nil
}

// LockForUpdate 内存事务本身已串行，等价于按 ID 读取
func (r *SubtitleLanguageRepository) LockForUpdate(ctx context.Context, id int64) (*entity.SubtitleLanguage, error) {
	return r.GetByID(ctx, id)
}

func (r *SubtitleLanguageRepository) update(ctx context.Context, id int64, fn func(l *entity.SubtitleLanguage) error) error {
	return r.store.write(ctx, func(st *state) error {
		l, ok := st.languages[id]
		if !ok {
			return apperrors.ErrLanguageNotFound.WithDetail(fmt.Sprintf("language %d", id))
		}
		if err := fn(&l); err != nil {
			return err
		}
		st.languages[id] = l
		return nil
	})
}

func (r *SubtitleLanguageRepository) UpdateWritelock(ctx context.Context, id int64, ownerID *string, lockedAt *time.Time) error {
	return r.update(ctx, id, func(l *entity.SubtitleLanguage) error {
		l.WritelockOwnerID = ownerID
		l.WritelockTime = lockedAt
		*l = cloneLanguage(*l)
		return nil
	})
}

func (r *SubtitleLanguageRepository) UpdateCompletion(ctx context.Context, id int64, complete bool) error {
	return r.update(ctx, id, func(l *entity.SubtitleLanguage) error {
		l.IsComplete = complete
		return nil
	})
}

func (r *SubtitleLanguageRepository) UpdateLanguageCode(ctx context.Context, id int64, languageCode string) error {
	return r.store.write(ctx, func(st *state) error {
		l, ok := st.languages[id]
		if !ok {
			return apperrors.ErrLanguageNotFound.WithDetail(fmt.Sprintf("language %d", id))
		}
		if other, exists := findLanguage(st, l.VideoID, languageCode); exists && other.ID != id {
			return apperrors.ErrConflict.WithDetail(fmt.Sprintf("language %q already exists for this video", languageCode))
		}
		oldCode := l.LanguageCode
		if oldCode == languageCode {
			return nil
		}
		l.LanguageCode = languageCode
		st.languages[id] = l
		for vid, v := range st.versions {
			if v.VideoID != l.VideoID {
				continue
			}
			if v.SubtitleLanguageID == id {
				v.LanguageCode = languageCode
			}
			if number, ok := v.Lineage[oldCode]; ok {
				v.Lineage = v.Lineage.Clone()
				delete(v.Lineage, oldCode)
				v.Lineage[languageCode] = number
			}
			st.versions[vid] = v
		}
		return nil
	})
}

// SubtitleVersionRepository 内存字幕版本仓储
type SubtitleVersionRepository struct {
	store *Store
}

func NewSubtitleVersionRepository(store *Store) *SubtitleVersionRepository {
	return &SubtitleVersionRepository{store: store}
}

func (r *SubtitleVersionRepository) Create(ctx context.Context, version *entity.SubtitleVersion) error {
	return r.store.write(ctx, func(st *state) error {
		for _, v := range st.versions {
			if v.SubtitleLanguageID == version.SubtitleLanguageID && v.VersionNumber == version.VersionNumber {
				return apperrors.ErrConflict.WithDetail(fmt.Sprintf(
					"version %d already exists for language %d", version.VersionNumber, version.SubtitleLanguageID))
			}
		}
		for _, pid := range version.ParentIDs {
			if _, ok := st.versions[pid]; !ok {
				return apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("parent version %d", pid))
			}
		}
		st.nextVer++
		version.ID = st.nextVer
		if version.CreatedAt.IsZero() {
			version.CreatedAt = r.store.now()
		}
		stored := cloneVersion(*version)
		stored.ParentIDs = nil
		st.versions[version.ID] = stored
		if len(version.ParentIDs) > 0 {
			st.parents[version.ID] = append([]int64(nil), version.ParentIDs...)
		}
		return nil
	})
}

func (r *SubtitleVersionRepository) GetByID(ctx context.Context, id int64) (*entity.SubtitleVersion, error) {
	var out *entity.SubtitleVersion
	r.store.read(func(st *state) {
		if v, ok := st.versions[id]; ok {
			c := cloneVersion(v)
			out = &c
		}
	})
	return out, nil
}

// selectVersions 过滤并排序；多个分支时先按分支 ID 分组
func selectVersions(st *state, languageIDs map[int64]bool, class entity.Class, order repository.SortOrder) []*entity.SubtitleVersion {
	var out []*entity.SubtitleVersion
	for _, v := range st.versions {
		if !languageIDs[v.SubtitleLanguageID] || !class.Matches(&v) {
			continue
		}
		c := cloneVersion(v)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubtitleLanguageID != out[j].SubtitleLanguageID {
			return out[i].SubtitleLanguageID < out[j].SubtitleLanguageID
		}
		if order == repository.SortOrderAsc {
			return out[i].VersionNumber < out[j].VersionNumber
		}
		return out[i].VersionNumber > out[j].VersionNumber
	})
	return out
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (r *SubtitleVersionRepository) GetByNumber(ctx context.Context, languageID int64, number int, class entity.Class) (*entity.SubtitleVersion, error) {
	var out *entity.SubtitleVersion
	r.store.read(func(st *state) {
		for _, v := range selectVersions(st, idSet([]int64{languageID}), class, repository.SortOrderDesc) {
			if v.VersionNumber == number {
				out = v
				return
			}
		}
	})
	return out, nil
}

func (r *SubtitleVersionRepository) GetTip(ctx context.Context, languageID int64, class entity.Class) (*entity.SubtitleVersion, error) {
	var out *entity.SubtitleVersion
	r.store.read(func(st *state) {
		if versions := selectVersions(st, idSet([]int64{languageID}), class, repository.SortOrderDesc); len(versions) > 0 {
			out = versions[0]
		}
	})
	return out, nil
}

func (r *SubtitleVersionRepository) List(ctx context.Context, languageID int64, class entity.Class, order repository.SortOrder) ([]*entity.SubtitleVersion, error) {
	var out []*entity.SubtitleVersion
	r.store.read(func(st *state) {
		out = selectVersions(st, idSet([]int64{languageID}), class, order)
	})
	return out, nil
}

func (r *SubtitleVersionRepository) ListParents(ctx context.Context, versionID int64) ([]*entity.SubtitleVersion, error) {
	var out []*entity.SubtitleVersion
	r.store.read(func(st *state) {
		for _, pid := range st.parents[versionID] {
			if v, ok := st.versions[pid]; ok {
				c := cloneVersion(v)
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *SubtitleVersionRepository) UpdateVisibility(ctx context.Context, id int64, visibility entity.Visibility) error {
	return r.update(ctx, id, func(v *entity.SubtitleVersion) { v.Visibility = visibility })
}

func (r *SubtitleVersionRepository) UpdateOverride(ctx context.Context, id int64, override entity.VisibilityOverride) error {
	return r.update(ctx, id, func(v *entity.SubtitleVersion) { v.VisibilityOverride = override })
}

func (r *SubtitleVersionRepository) update(ctx context.Context, id int64, fn func(v *entity.SubtitleVersion)) error {
	return r.store.write(ctx, func(st *state) error {
		v, ok := st.versions[id]
		if !ok {
			return apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("version %d", id))
		}
		fn(&v)
		st.versions[id] = v
		return nil
	})
}

func (r *SubtitleVersionRepository) MarkAllDeleted(ctx context.Context, languageID int64) (int64, error) {
	var affected int64
	err := r.store.write(ctx, func(st *state) error {
		for id, v := range st.versions {
			if v.SubtitleLanguageID != languageID || v.VisibilityOverride == entity.OverrideDeleted {
				continue
			}
			v.VisibilityOverride = entity.OverrideDeleted
			st.versions[id] = v
			affected++
		}
		return nil
	})
	return affected, err
}

func (r *SubtitleVersionRepository) GetTips(ctx context.Context, languageIDs []int64, class entity.Class) (map[int64]*entity.SubtitleVersion, error) {
	tips := make(map[int64]*entity.SubtitleVersion, len(languageIDs))
	if len(languageIDs) == 0 {
		return tips, nil
	}
	r.store.read(func(st *state) {
		for _, v := range selectVersions(st, idSet(languageIDs), class, repository.SortOrderDesc) {
			if _, ok := tips[v.SubtitleLanguageID]; !ok {
				tips[v.SubtitleLanguageID] = v
			}
		}
	})
	return tips, nil
}

func (r *SubtitleVersionRepository) ListForLanguages(ctx context.Context, languageIDs []int64, class entity.Class, order repository.SortOrder, withParents bool) ([]*entity.SubtitleVersion, error) {
	if len(languageIDs) == 0 {
		return nil, nil
	}
	var out []*entity.SubtitleVersion
	r.store.read(func(st *state) {
		out = selectVersions(st, idSet(languageIDs), class, order)
		if !withParents {
			return
		}
		for _, v := range out {
			v.ParentIDs = append([]int64(nil), st.parents[v.ID]...)
			sort.Slice(v.ParentIDs, func(i, j int) bool { return v.ParentIDs[i] < v.ParentIDs[j] })
		}
	})
	return out, nil
}

func (r *SubtitleVersionRepository) HasVersions(ctx context.Context, languageIDs []int64, class entity.Class) (map[int64]bool, error) {
	found := make(map[int64]bool, len(languageIDs))
	if len(languageIDs) == 0 {
		return found, nil
	}
	wanted := idSet(languageIDs)
	r.store.read(func(st *state) {
		for _, v := range st.versions {
			if wanted[v.SubtitleLanguageID] && class.Matches(&v) {
				found[v.SubtitleLanguageID] = true
			}
		}
	})
	return found, nil
}

// VideoRepository 内存视频仓储
type VideoRepository struct {
	store *Store
}

func NewVideoRepository(store *Store) *VideoRepository {
	return &VideoRepository{store: store}
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (*entity.Video, error) {
	var out *entity.Video
	r.store.read(func(st *state) {
		if v, ok := st.videos[id]; ok {
			out = &v
		}
	})
	return out, nil
}
