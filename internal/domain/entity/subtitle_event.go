package entity

import "time"

// SubtitleEventType 字幕事件类型
type SubtitleEventType string

const (
	EventSubtitlesAdded    SubtitleEventType = "subtitles_added"
	EventLanguageCompleted SubtitleEventType = "language_completed"
	EventSubtitlesDeleted  SubtitleEventType = "subtitles_deleted"
)

// SubtitleEvent 发给通知/活动等下游协作方的事件
type SubtitleEvent struct {
	Type          SubtitleEventType `json:"type"`
	VideoID       string            `json:"video_id"`
	LanguageID    int64             `json:"language_id"`
	LanguageCode  string            `json:"language_code"`
	VersionID     int64             `json:"version_id,omitempty"`
	VersionNumber int               `json:"version_number,omitempty"`
	Complete      bool              `json:"complete,omitempty"`
	AuthorID      string            `json:"author_id,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// Video 视频元数据（由视频目录服务维护，此处只读）
type Video struct {
	ID                  string `json:"id" gorm:"type:varchar(64);primaryKey"`
	Title               string `json:"title" gorm:"type:text"`
	Description         string `json:"description" gorm:"type:text"`
	PrimaryLanguageCode string `json:"primary_language_code" gorm:"column:primary_audio_language_code;type:varchar(16)"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}
