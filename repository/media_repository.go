package repository

import (
	"context"

	"VoxTA/model"

	"gorm.io/gorm"
)

// MediaRepository 换声音视频文件数据访问接口
type MediaRepository interface {
	Create(ctx context.Context, file *model.MediaFile) error
	GetByID(ctx context.Context, fileID string) (*model.MediaFile, error)
	UpdateDuration(ctx context.Context, fileID string, duration float64) error
	List(ctx context.Context, limit, offset int) ([]*model.MediaFile, error)
	Delete(ctx context.Context, fileID string) error
}

// gormMediaRepository GORM 实现
type gormMediaRepository struct {
	db *gorm.DB
}

// NewGormMediaRepository 创建 GORM 媒体仓库
func NewGormMediaRepository(db *gorm.DB) MediaRepository {
	return &gormMediaRepository{db: db}
}

// Create 保存媒体文件记录
func (r *gormMediaRepository) Create(ctx context.Context, file *model.MediaFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// GetByID 根据ID获取媒体文件
func (r *gormMediaRepository) GetByID(ctx context.Context, fileID string) (*model.MediaFile, error) {
	var file model.MediaFile
	err := r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		First(&file).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &file, nil
}

// UpdateDuration 探测完成后回填时长
func (r *gormMediaRepository) UpdateDuration(ctx context.Context, fileID string, duration float64) error {
	return r.db.WithContext(ctx).Model(&model.MediaFile{}).
		Where("file_id = ?", fileID).
		Update("duration", duration).Error
}

// List 获取媒体文件列表
func (r *gormMediaRepository) List(ctx context.Context, limit, offset int) ([]*model.MediaFile, error) {
	var files []*model.MediaFile
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&files).Error
	return files, err
}

// Delete 删除媒体文件记录
func (r *gormMediaRepository) Delete(ctx context.Context, fileID string) error {
	return r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Delete(&model.MediaFile{}).Error
}
