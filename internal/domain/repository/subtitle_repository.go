package repository

import (
	"context"
	"time"

	"subtitle-history-api/internal/domain/entity"
)

// SubtitleLanguageRepository 语言分支仓储；查询不到时返回 (nil, nil)
type SubtitleLanguageRepository interface {
	// Ensure 获取或创建语言分支（按 video_id+language_code 唯一）
	Ensure(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error)
	GetByID(ctx context.Context, id int64) (*entity.SubtitleLanguage, error)
	GetByVideoAndCode(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error)
	ListByVideo(ctx context.Context, videoID string) ([]*entity.SubtitleLanguage, error)

	// LockForUpdate 在当前事务内对分支加行锁，用于串行化版本号分配
	LockForUpdate(ctx context.Context, id int64) (*entity.SubtitleLanguage, error)

	UpdateWritelock(ctx context.Context, id int64, ownerID *string, lockedAt *time.Time) error
	UpdateCompletion(ctx context.Context, id int64, complete bool) error
	// UpdateLanguageCode 修改分支语言代码，同步版本上的冗余字段，
	// 并在同一事务内把同一视频所有版本谱系中的旧代码键改为新代码
	UpdateLanguageCode(ctx context.Context, id int64, languageCode string) error
}

// SubtitleVersionRepository 字幕版本仓储；查询不到时返回 (nil, nil)
type SubtitleVersionRepository interface {
	// Create 写入版本及其 ParentIDs 边
	Create(ctx context.Context, version *entity.SubtitleVersion) error
	GetByID(ctx context.Context, id int64) (*entity.SubtitleVersion, error)
	GetByNumber(ctx context.Context, languageID int64, number int, class entity.Class) (*entity.SubtitleVersion, error)
	// GetTip 返回满足类别的最大版本号版本
	GetTip(ctx context.Context, languageID int64, class entity.Class) (*entity.SubtitleVersion, error)
	List(ctx context.Context, languageID int64, class entity.Class, order SortOrder) ([]*entity.SubtitleVersion, error)
	ListParents(ctx context.Context, versionID int64) ([]*entity.SubtitleVersion, error)

	// UpdateVisibility 只改作者设置的 visibility 列，override 保持库中的值
	UpdateVisibility(ctx context.Context, id int64, visibility entity.Visibility) error
	// UpdateOverride 只改审核设置的 visibility_override 列
	UpdateOverride(ctx context.Context, id int64, override entity.VisibilityOverride) error
	// MarkAllDeleted 将分支全部版本标记为已删除，返回受影响行数
	MarkAllDeleted(ctx context.Context, languageID int64) (int64, error)

	// GetTips 一次查询返回多个分支在某类别下的 tip，没有版本的分支不出现在结果中
	GetTips(ctx context.Context, languageIDs []int64, class entity.Class) (map[int64]*entity.SubtitleVersion, error)
	// ListForLanguages 一次查询返回多个分支的全部版本；withParents 时额外一次查询填充 ParentIDs
	ListForLanguages(ctx context.Context, languageIDs []int64, class entity.Class, order SortOrder, withParents bool) ([]*entity.SubtitleVersion, error)
	// HasVersions 一次查询返回哪些分支存在满足类别的版本
	HasVersions(ctx context.Context, languageIDs []int64, class entity.Class) (map[int64]bool, error)
}

// VideoRepository 视频元数据只读仓储
type VideoRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Video, error)
}
