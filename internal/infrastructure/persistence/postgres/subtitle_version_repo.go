// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"subtitle-history-api/internal/domain/entity"
	"subtitle-history-api/internal/domain/repository"
	apperrors "subtitle-history-api/pkg/errors"
)

// SubtitleVersionRepository 字幕版本仓储
type SubtitleVersionRepository struct {
	client *Client
}

// NewSubtitleVersionRepository 创建字幕版本仓储
func NewSubtitleVersionRepository(client *Client) *SubtitleVersionRepository {
	return &SubtitleVersionRepository{client: client}
}

// withClass 追加可见性类别条件
func withClass(db *gorm.DB, class entity.Class) *gorm.DB {
	cond, args := class.Condition()
	if cond == "" {
		return db
	}
	return db.Where(cond, args...)
}

func (r *SubtitleVersionRepository) Create(ctx context.Context, version *entity.SubtitleVersion) error {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(version).Error; err != nil {
			return err
		}
		if len(version.ParentIDs) == 0 {
			return nil
		}
		edges := make([]entity.SubtitleVersionParent, 0, len(version.ParentIDs))
		for _, pid := range version.ParentIDs {
			edges = append(edges, entity.SubtitleVersionParent{ChildID: version.ID, ParentID: pid})
		}
		return tx.Create(&edges).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict.WithDetail(fmt.Sprintf(
				"version %d already exists for language %d", version.VersionNumber, version.SubtitleLanguageID))
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create subtitle version: %w", err)
	}
	return nil
}

func (r *SubtitleVersionRepository) GetByID(ctx context.Context, id int64) (*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var v entity.SubtitleVersion
	if err := db.First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get subtitle version: %w", err)
	}
	return &v, nil
}

func (r *SubtitleVersionRepository) GetByNumber(ctx context.Context, languageID int64, number int, class entity.Class) (*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := withClass(db.Where("subtitle_language_id = ? AND version_number = ?", languageID, number), class)
	var v entity.SubtitleVersion
	if err := query.First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get subtitle version by number: %w", err)
	}
	return &v, nil
}

func (r *SubtitleVersionRepository) GetTip(ctx context.Context, languageID int64, class entity.Class) (*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.GetTip")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := withClass(db.Where("subtitle_language_id = ?", languageID), class)
	var v entity.SubtitleVersion
	if err := query.Order("version_number DESC").First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tip version: %w", err)
	}
	return &v, nil
}

func (r *SubtitleVersionRepository) List(ctx context.Context, languageID int64, class entity.Class, order repository.SortOrder) ([]*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := withClass(db.Where("subtitle_language_id = ?", languageID), class)
	var versions []*entity.SubtitleVersion
	if err := query.Order("version_number " + string(order)).Find(&versions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list subtitle versions: %w", err)
	}
	return versions, nil
}

func (r *SubtitleVersionRepository) ListParents(ctx context.Context, versionID int64) ([]*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.ListParents")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var parents []*entity.SubtitleVersion
	if err := db.
		Where("id IN (?)", db.Model(&entity.SubtitleVersionParent{}).Select("parent_id").Where("child_id = ?", versionID)).
		Order("id ASC").
		Find(&parents).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list parent versions: %w", err)
	}
	return parents, nil
}

func (r *SubtitleVersionRepository) UpdateVisibility(ctx context.Context, id int64, visibility entity.Visibility) error {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.UpdateVisibility")
	defer span.End()

	return r.updateColumn(ctx, span, id, "visibility", visibility)
}

func (r *SubtitleVersionRepository) UpdateOverride(ctx context.Context, id int64, override entity.VisibilityOverride) error {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.UpdateOverride")
	defer span.End()

	return r.updateColumn(ctx, span, id, "visibility_override", override)
}

// updateColumn 单列更新，避免把调用方手里的旧值写回其他列
func (r *SubtitleVersionRepository) updateColumn(ctx context.Context, span trace.Span, id int64, column string, value any) error {
	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.SubtitleVersion{}).
		Where("id = ?", id).
		Update(column, value)
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update %s: %w", column, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVersionNotFound.WithDetail(fmt.Sprintf("version %d", id))
	}
	return nil
}

func (r *SubtitleVersionRepository) MarkAllDeleted(ctx context.Context, languageID int64) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.MarkAllDeleted")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.SubtitleVersion{}).
		Where("subtitle_language_id = ? AND visibility_override <> ?", languageID, entity.OverrideDeleted).
		Update("visibility_override", entity.OverrideDeleted)
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to mark versions deleted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// GetTips 每个分支取满足类别的最大版本号
func (r *SubtitleVersionRepository) GetTips(ctx context.Context, languageIDs []int64, class entity.Class) (map[int64]*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.GetTips")
	defer span.End()

	tips := make(map[int64]*entity.SubtitleVersion, len(languageIDs))
	if len(languageIDs) == 0 {
		return tips, nil
	}

	db := getDB(ctx, r.client.db)
	query := withClass(db.Where("subtitle_language_id = ANY(?)", pq.Array(languageIDs)), class)
	var versions []*entity.SubtitleVersion
	if err := query.
		Select("DISTINCT ON (subtitle_language_id) *").
		Order("subtitle_language_id, version_number DESC").
		Find(&versions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get tip versions: %w", err)
	}
	for _, v := range versions {
		tips[v.SubtitleLanguageID] = v
	}
	return tips, nil
}

func (r *SubtitleVersionRepository) ListForLanguages(ctx context.Context, languageIDs []int64, class entity.Class, order repository.SortOrder, withParents bool) ([]*entity.SubtitleVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.ListForLanguages")
	defer span.End()

	if len(languageIDs) == 0 {
		return nil, nil
	}

	db := getDB(ctx, r.client.db)
	query := withClass(db.Where("subtitle_language_id = ANY(?)", pq.Array(languageIDs)), class)
	var versions []*entity.SubtitleVersion
	if err := query.
		Order("subtitle_language_id, version_number " + string(order)).
		Find(&versions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list versions for languages: %w", err)
	}
	if !withParents || len(versions) == 0 {
		return versions, nil
	}

	ids := make([]int64, 0, len(versions))
	byID := make(map[int64]*entity.SubtitleVersion, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID)
		byID[v.ID] = v
	}
	var edges []entity.SubtitleVersionParent
	if err := db.
		Where("child_id = ANY(?)", pq.Array(ids)).
		Order("child_id, parent_id").
		Find(&edges).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to prefetch version parents: %w", err)
	}
	for _, e := range edges {
		if v, ok := byID[e.ChildID]; ok {
			v.ParentIDs = append(v.ParentIDs, e.ParentID)
		}
	}
	return versions, nil
}

func (r *SubtitleVersionRepository) HasVersions(ctx context.Context, languageIDs []int64, class entity.Class) (map[int64]bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.SubtitleVersionRepository.HasVersions")
	defer span.End()

	found := make(map[int64]bool, len(languageIDs))
	if len(languageIDs) == 0 {
		return found, nil
	}

	db := getDB(ctx, r.client.db)
	query := withClass(db.Model(&entity.SubtitleVersion{}).Where("subtitle_language_id = ANY(?)", pq.Array(languageIDs)), class)
	var ids []int64
	if err := query.Distinct().Pluck("subtitle_language_id", &ids).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to check versions: %w", err)
	}
	for _, id := range ids {
		found[id] = true
	}
	return found, nil
}
