package entity

import (
	"time"

	apperrors "subtitle-history-api/pkg/errors"
)

// VersionOrigin 版本来源
type VersionOrigin string

const (
	OriginUpload    VersionOrigin = "upload"
	OriginWebEditor VersionOrigin = "web_editor"
	OriginAPI       VersionOrigin = "api"
	OriginRollback  VersionOrigin = "rollback"
)

// SubtitleItem 单条字幕
type SubtitleItem struct {
	StartMS      int    `json:"start_ms"`
	EndMS        int    `json:"end_ms"`
	Text         string `json:"text"`
	NewParagraph bool   `json:"new_paragraph,omitempty"`
}

// SubtitleVersion 不可变字幕快照；仅可见性字段与少量元数据允许修改
type SubtitleVersion struct {
	ID                 int64              `json:"id" gorm:"primaryKey;autoIncrement"`
	SubtitleLanguageID int64              `json:"subtitle_language_id" gorm:"not null;uniqueIndex:uq_subtitle_versions_lang_num,priority:1"`
	VideoID            string             `json:"video_id" gorm:"type:varchar(64);not null;uniqueIndex:uq_subtitle_versions_video_lang_num,priority:1"`
	LanguageCode       string             `json:"language_code" gorm:"type:varchar(16);not null;uniqueIndex:uq_subtitle_versions_video_lang_num,priority:2"`
	VersionNumber      int                `json:"version_number" gorm:"not null;uniqueIndex:uq_subtitle_versions_lang_num,priority:2;uniqueIndex:uq_subtitle_versions_video_lang_num,priority:3"`
	Visibility         Visibility         `json:"visibility" gorm:"type:varchar(16);not null"`
	VisibilityOverride VisibilityOverride `json:"visibility_override" gorm:"type:varchar(16);not null"`
	Lineage            Lineage            `json:"lineage" gorm:"type:jsonb;serializer:json;not null"`
	Subtitles          []SubtitleItem     `json:"subtitles" gorm:"type:jsonb;serializer:json"`
	Title              string             `json:"title,omitempty" gorm:"type:text"`
	Description        string             `json:"description,omitempty" gorm:"type:text"`
	Metadata           map[string]string  `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	RollbackOfNum      *int               `json:"rollback_of_num,omitempty"`
	Origin             VersionOrigin      `json:"origin,omitempty" gorm:"type:varchar(32)"`
	Note               string             `json:"note,omitempty" gorm:"type:varchar(512)"`
	AuthorID           string             `json:"author_id,omitempty" gorm:"type:varchar(64)"`
	CreatedAt          time.Time          `json:"created_at" gorm:"not null"`

	// ParentIDs 父版本 ID，仅在创建或显式预取时填充
	ParentIDs []int64 `json:"parent_ids,omitempty" gorm:"-"`
}

// TableName 指定表名
func (SubtitleVersion) TableName() string {
	return "subtitle_versions"
}

// SubtitleVersionParent 版本父子边；父版本总是先于子版本存在，因此不会成环
type SubtitleVersionParent struct {
	ChildID  int64 `gorm:"primaryKey"`
	ParentID int64 `gorm:"primaryKey;index"`
}

// TableName 指定表名
func (SubtitleVersionParent) TableName() string {
	return "subtitle_version_parents"
}

// EffectiveState 有效可见状态；无法识别的组合按私有处理
func (v *SubtitleVersion) EffectiveState() State {
	state, ok := ResolveState(v.Visibility, v.VisibilityOverride)
	if !ok {
		return StatePrivate
	}
	return state
}

// IsPublic override=public，或 override 为空且 visibility=public
func (v *SubtitleVersion) IsPublic() bool {
	state, ok := ResolveState(v.Visibility, v.VisibilityOverride)
	return ok && state == StatePublic
}

// IsPrivate override=private，或 override 为空且 visibility=private
func (v *SubtitleVersion) IsPrivate() bool {
	state, ok := ResolveState(v.Visibility, v.VisibilityOverride)
	return ok && state == StatePrivate
}

// IsDeleted override=deleted
func (v *SubtitleVersion) IsDeleted() bool {
	return v.VisibilityOverride == OverrideDeleted
}

// GetLineage 返回谱系副本
func (v *SubtitleVersion) GetLineage() Lineage {
	return v.Lineage.Clone()
}

// SubtitleCount 字幕条数
func (v *SubtitleVersion) SubtitleCount() int {
	return len(v.Subtitles)
}

// CheckParents 校验父版本集合
//   - 同一语言最多一个父版本
//   - 父版本必须属于同一视频
//   - 不允许谱系回退：父版本号低于新版本谱系（全部父版本合并结果）
//     或分支上一版本谱系中已记录的该语言版本号
func CheckParents(lang *SubtitleLanguage, parents []*SubtitleVersion, previous *SubtitleVersion) error {
	seen := make(map[string]int64, len(parents))
	for _, p := range parents {
		if p == nil {
			return apperrors.Validation("nil parent version")
		}
		if other, ok := seen[p.LanguageCode]; ok {
			return apperrors.Validation("versions %d and %d are both parents from language %q", other, p.ID, p.LanguageCode)
		}
		seen[p.LanguageCode] = p.ID

		if p.VideoID != lang.VideoID {
			return apperrors.Validation("parent version %d belongs to video %q, not %q", p.ID, p.VideoID, lang.VideoID)
		}
		if p.LanguageCode == lang.LanguageCode && p.SubtitleLanguageID != lang.ID {
			return apperrors.Validation("parent version %d has language %q but belongs to another branch", p.ID, p.LanguageCode)
		}
	}

	merged := MergeLineage(parents)
	for _, p := range parents {
		if recorded := merged[p.LanguageCode]; p.VersionNumber < recorded {
			return apperrors.Validation("lineage regression for %q: parent is version %d but another parent already incorporates version %d",
				p.LanguageCode, p.VersionNumber, recorded)
		}
		if previous == nil {
			continue
		}
		if recorded, ok := previous.Lineage[p.LanguageCode]; ok && p.VersionNumber < recorded {
			return apperrors.Validation("lineage regression for %q: parent is version %d but version %d is already incorporated",
				p.LanguageCode, p.VersionNumber, recorded)
		}
	}
	return nil
}

// CheckRollback 回滚目标必须是更早的版本
func CheckRollback(rollbackOf *int, versionNumber int) error {
	if rollbackOf == nil {
		return nil
	}
	if *rollbackOf < 1 || *rollbackOf >= versionNumber {
		return apperrors.Validation("rollback target %d must precede new version %d", *rollbackOf, versionNumber)
	}
	return nil
}
