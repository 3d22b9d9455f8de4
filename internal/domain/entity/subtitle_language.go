// Package entity 定义领域实体
package entity

import (
	"time"
)

// DefaultWritelockTTL 编辑锁默认有效期
const DefaultWritelockTTL = 30 * time.Second

// SoftLimits 按语言设置的字幕显示软限制，nil 表示使用全站默认值
type SoftLimits struct {
	Lines       *int `json:"lines,omitempty"`
	MinDuration *int `json:"min_duration_ms,omitempty"`
	MaxDuration *int `json:"max_duration_ms,omitempty"`
	CPL         *int `json:"cpl,omitempty" gorm:"column:cpl"`
	CPS         *int `json:"cps,omitempty" gorm:"column:cps"`
}

// SubtitleLanguage 字幕语言分支：每个 (video, language) 一条版本流
type SubtitleLanguage struct {
	ID               int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	VideoID          string     `json:"video_id" gorm:"type:varchar(64);not null;uniqueIndex:uq_subtitle_languages_video_lang,priority:1"`
	LanguageCode     string     `json:"language_code" gorm:"type:varchar(16);not null;uniqueIndex:uq_subtitle_languages_video_lang,priority:2"`
	IsComplete       bool       `json:"is_complete" gorm:"not null;default:false"`
	IsForked         bool       `json:"is_forked" gorm:"not null;default:false"`
	WritelockOwnerID *string    `json:"writelock_owner_id,omitempty" gorm:"type:varchar(64)"`
	WritelockTime    *time.Time `json:"writelock_time,omitempty"`
	SoftLimits       SoftLimits `json:"soft_limits" gorm:"embedded;embeddedPrefix:soft_limit_"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (SubtitleLanguage) TableName() string {
	return "subtitle_languages"
}

// NewSubtitleLanguage 创建语言分支
func NewSubtitleLanguage(videoID, languageCode string) *SubtitleLanguage {
	return &SubtitleLanguage{
		VideoID:      videoID,
		LanguageCode: languageCode,
		CreatedAt:    time.Now(),
	}
}

// IsWritelocked 是否存在未过期的编辑锁
func (l *SubtitleLanguage) IsWritelocked(now time.Time, ttl time.Duration) bool {
	if l.WritelockOwnerID == nil || l.WritelockTime == nil {
		return false
	}
	return now.Sub(*l.WritelockTime) < ttl
}

// CanWritelock 判断用户能否获取编辑锁：未加锁、自己持有或锁已超时
func (l *SubtitleLanguage) CanWritelock(userID string, now time.Time, ttl time.Duration) bool {
	if l.WritelockOwnerID == nil || l.WritelockTime == nil {
		return true
	}
	if *l.WritelockOwnerID == userID {
		return true
	}
	return now.Sub(*l.WritelockTime) >= ttl
}

// Writelock 无条件写入持有者与时间；锁是协作式的，调用方应先检查 CanWritelock
func (l *SubtitleLanguage) Writelock(userID string, now time.Time) {
	owner := userID
	at := now
	l.WritelockOwnerID = &owner
	l.WritelockTime = &at
}

// ReleaseWritelock 清空锁字段
func (l *SubtitleLanguage) ReleaseWritelock() {
	l.WritelockOwnerID = nil
	l.WritelockTime = nil
}

// WritelockOwner 返回持有者，未加锁时为空串
func (l *SubtitleLanguage) WritelockOwner() string {
	if l.WritelockOwnerID == nil {
		return ""
	}
	return *l.WritelockOwnerID
}
