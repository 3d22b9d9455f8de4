// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"subtitle-history-api/internal/domain/entity"
)

// VideoRepository 视频元数据只读仓储
type VideoRepository struct {
	client *Client
}

func NewVideoRepository(client *Client) *VideoRepository {
	return &VideoRepository{client: client}
}

func (r *VideoRepository) GetByID(ctx context.Context, id string) (*entity.Video, error) {
	ctx, span := tracer.Start(ctx, "postgres.VideoRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var video entity.Video
	if err := db.First(&video, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return &video, nil
}
