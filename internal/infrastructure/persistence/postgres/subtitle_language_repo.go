// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"subtitle-history-api/internal/domain/entity"
	apperrors "subtitle-history-api/pkg/errors"
)

// SubtitleLanguageRepository 语言分支仓储
type SubtitleLanguageRepository struct {
	client *Client
}

// NewSubtitleLanguageRepository 创建语言分支仓储
func NewSubtitleLanguageRepository(client *Client) *SubtitleLanguageRepository {
	return &SubtitleLanguageRepository{client: client}
}

func (r *SubtitleLanguageRepository) Ensure(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.Ensure")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var lang entity.SubtitleLanguage
	err := db.First(&lang, "video_id = ? AND language_code = ?", videoID, languageCode).Error
	if err == nil {
		return &lang, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get subtitle language: %w", err)
	}

	created := entity.NewSubtitleLanguage(videoID, languageCode)
	if err := db.Create(created).Error; err != nil {
		// 处理并发创建：唯一约束命中时回读
		if isUniqueViolation(err) {
			var existing entity.SubtitleLanguage
			if readErr := db.First(&existing, "video_id = ? AND language_code = ?", videoID, languageCode).Error; readErr == nil {
				return &existing, nil
			}
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create subtitle language: %w", err)
	}
	return created, nil
}

func (r *SubtitleLanguageRepository) GetByID(ctx context.Context, id int64) (*entity.SubtitleLanguage, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var lang entity.SubtitleLanguage
	if err := db.First(&lang, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get subtitle language: %w", err)
	}
	return &lang, nil
}

func (r *SubtitleLanguageRepository) GetByVideoAndCode(ctx context.Context, videoID, languageCode string) (*entity.SubtitleLanguage, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.GetByVideoAndCode")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var lang entity.SubtitleLanguage
	if err := db.First(&lang, "video_id = ? AND language_code = ?", videoID, languageCode).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get subtitle language: %w", err)
	}
	return &lang, nil
}

func (r *SubtitleLanguageRepository) ListByVideo(ctx context.Context, videoID string) ([]*entity.SubtitleLanguage, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.ListByVideo")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var langs []*entity.SubtitleLanguage
	if err := db.Where("video_id = ?", videoID).Order("language_code ASC").Find(&langs).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list subtitle languages: %w", err)
	}
	return langs, nil
}

// LockForUpdate SELECT ... FOR UPDATE，必须在事务内调用
func (r *SubtitleLanguageRepository) LockForUpdate(ctx context.Context, id int64) (*entity.SubtitleLanguage, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.LockForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var lang entity.SubtitleLanguage
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&lang, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock subtitle language: %w", err)
	}
	return &lang, nil
}

func (r *SubtitleLanguageRepository) UpdateWritelock(ctx context.Context, id int64, ownerID *string, lockedAt *time.Time) error {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.UpdateWritelock")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.SubtitleLanguage{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"writelock_owner_id": ownerID,
			"writelock_time":     lockedAt,
		}).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update writelock: %w", err)
	}
	return nil
}

func (r *SubtitleLanguageRepository) UpdateCompletion(ctx context.Context, id int64, complete bool) error {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.UpdateCompletion")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Model(&entity.SubtitleLanguage{}).
		Where("id = ?", id).
		Update("is_complete", complete).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update completion: %w", err)
	}
	return nil
}

func (r *SubtitleLanguageRepository) UpdateLanguageCode(ctx context.Context, id int64, languageCode string) error {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleLanguageRepository.UpdateLanguageCode")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Transaction(func(tx *gorm.DB) error {
		var current entity.SubtitleLanguage
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "video_id", "language_code").
			First(&current, id).Error; err != nil {
			return err
		}
		if current.LanguageCode == languageCode {
			return nil
		}

		if err := tx.Model(&entity.SubtitleLanguage{}).
			Where("id = ?", id).
			Update("language_code", languageCode).Error; err != nil {
			return err
		}
		if err := tx.Model(&entity.SubtitleVersion{}).
			Where("subtitle_language_id = ?", id).
			Update("language_code", languageCode).Error; err != nil {
			return err
		}
		// 谱系键随分支改名：本分支及由它派生的翻译都引用旧代码
		return tx.Model(&entity.SubtitleVersion{}).
			Where("video_id = ? AND lineage -> ?::text IS NOT NULL", current.VideoID, current.LanguageCode).
			Update("lineage", gorm.Expr(
				"(lineage - ?::text) || jsonb_build_object(?::text, lineage -> ?::text)",
				current.LanguageCode, languageCode, current.LanguageCode,
			)).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrLanguageNotFound.WithDetail(fmt.Sprintf("language %d", id))
	}
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict.WithDetail(fmt.Sprintf("language %q already exists for this video", languageCode))
		}
		span.RecordError(err)
		return fmt.Errorf("failed to update language code: %w", err)
	}
	return nil
}
