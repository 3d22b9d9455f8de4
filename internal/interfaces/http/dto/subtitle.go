// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"subtitle-history-api/internal/domain/entity"
)

// SubtitleItemDTO 单条字幕
type SubtitleItemDTO struct {
	StartMS      int    `json:"start_ms" binding:"gte=0"`
	EndMS        int    `json:"end_ms" binding:"gtefield=StartMS"`
	Text         string `json:"text"`
	NewParagraph bool   `json:"new_paragraph,omitempty"`
}

// ParentRef 父版本引用：按 (语言, 版本号) 定位同一视频下的版本
type ParentRef struct {
	LanguageCode  string `json:"language_code" binding:"required"`
	VersionNumber int    `json:"version_number" binding:"required,gte=1"`
}

// AddVersionRequest 新增版本请求
type AddVersionRequest struct {
	Subtitles   []SubtitleItemDTO `json:"subtitles" binding:"dive"`
	Title       string            `json:"title" binding:"max=2048"`
	Description string            `json:"description" binding:"max=10000"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Parents     []ParentRef       `json:"parents,omitempty" binding:"dive"`
	Visibility  string            `json:"visibility,omitempty" binding:"omitempty,oneof=public private"`
	Origin      string            `json:"origin,omitempty" binding:"omitempty,oneof=upload web_editor api"`
	Note        string            `json:"note,omitempty" binding:"max=512"`
}

// ToItems 转换为实体字幕条目
func (r *AddVersionRequest) ToItems() []entity.SubtitleItem {
	out := make([]entity.SubtitleItem, 0, len(r.Subtitles))
	for _, s := range r.Subtitles {
		out = append(out, entity.SubtitleItem{
			StartMS:      s.StartMS,
			EndMS:        s.EndMS,
			Text:         s.Text,
			NewParagraph: s.NewParagraph,
		})
	}
	return out
}

// RollbackRequest 回滚请求
type RollbackRequest struct {
	VersionNumber int `json:"version_number" binding:"required,gte=1"`
}

// CompletionRequest 完成标记请求
type CompletionRequest struct {
	Complete bool `json:"complete"`
}

// ChangeLanguageRequest 修改语言代码请求
type ChangeLanguageRequest struct {
	LanguageCode string `json:"language_code" binding:"required,max=16"`
}

// VersionResponse 版本响应
type VersionResponse struct {
	ID                 int64                 `json:"id"`
	VideoID            string                `json:"video_id"`
	LanguageCode       string                `json:"language_code"`
	VersionNumber      int                   `json:"version_number"`
	Visibility         string                `json:"visibility"`
	VisibilityOverride string                `json:"visibility_override,omitempty"`
	State              string                `json:"state"`
	Lineage            entity.Lineage        `json:"lineage"`
	Title              string                `json:"title,omitempty"`
	Description        string                `json:"description,omitempty"`
	Metadata           map[string]string     `json:"metadata,omitempty"`
	Origin             string                `json:"origin,omitempty"`
	Note               string                `json:"note,omitempty"`
	RollbackOf         *int                  `json:"rollback_of,omitempty"`
	AuthorID           string                `json:"author_id,omitempty"`
	SubtitleCount      int                   `json:"subtitle_count"`
	Subtitles          []entity.SubtitleItem `json:"subtitles,omitempty"`
	ParentIDs          []int64               `json:"parent_ids,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
}

// ToVersionResponse 实体转响应；withSubtitles 为 false 时只返回条数
func ToVersionResponse(v *entity.SubtitleVersion, withSubtitles bool) *VersionResponse {
	if v == nil {
		return nil
	}
	resp := &VersionResponse{
		ID:                 v.ID,
		VideoID:            v.VideoID,
		LanguageCode:       v.LanguageCode,
		VersionNumber:      v.VersionNumber,
		Visibility:         string(v.Visibility),
		VisibilityOverride: string(v.VisibilityOverride),
		State:              string(v.EffectiveState()),
		Lineage:            v.GetLineage(),
		Title:              v.Title,
		Description:        v.Description,
		Metadata:           v.Metadata,
		Origin:             string(v.Origin),
		Note:               v.Note,
		RollbackOf:         v.RollbackOfNum,
		AuthorID:           v.AuthorID,
		SubtitleCount:      v.SubtitleCount(),
		ParentIDs:          v.ParentIDs,
		CreatedAt:          v.CreatedAt,
	}
	if withSubtitles {
		resp.Subtitles = v.Subtitles
	}
	return resp
}

// ToVersionListResponse 批量转换
func ToVersionListResponse(versions []*entity.SubtitleVersion) []*VersionResponse {
	out := make([]*VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, ToVersionResponse(v, false))
	}
	return out
}

// TipResponse tip 查询响应；版本不存在时 Version 为空
type TipResponse struct {
	Class        string           `json:"class"`
	DisplayTitle string           `json:"display_title,omitempty"`
	Version      *VersionResponse `json:"version"`
}

// WritelockResponse 编辑锁状态
type WritelockResponse struct {
	Locked  bool       `json:"locked"`
	OwnerID string     `json:"owner_id,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

// ToWritelockResponse 构建编辑锁响应
func ToWritelockResponse(lang *entity.SubtitleLanguage, locked bool) *WritelockResponse {
	resp := &WritelockResponse{Locked: locked}
	if locked {
		resp.OwnerID = lang.WritelockOwner()
		resp.Since = lang.WritelockTime
	}
	return resp
}

// LanguageResponse 语言分支响应
type LanguageResponse struct {
	ID           int64            `json:"id"`
	VideoID      string           `json:"video_id"`
	LanguageCode string           `json:"language_code"`
	IsComplete   bool             `json:"is_complete"`
	IsForked     bool             `json:"is_forked"`
	PublicTip    *VersionResponse `json:"public_tip,omitempty"`
	ExtantTip    *VersionResponse `json:"extant_tip,omitempty"`
}

// ToLanguageResponse 构建语言分支响应
func ToLanguageResponse(lang *entity.SubtitleLanguage, publicTip, extantTip *entity.SubtitleVersion) *LanguageResponse {
	return &LanguageResponse{
		ID:           lang.ID,
		VideoID:      lang.VideoID,
		LanguageCode: lang.LanguageCode,
		IsComplete:   lang.IsComplete,
		IsForked:     lang.IsForked,
		PublicTip:    ToVersionResponse(publicTip, false),
		ExtantTip:    ToVersionResponse(extantTip, false),
	}
}
