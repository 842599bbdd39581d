package repository

import (
	"context"

	"VoxTA/model"

	"gorm.io/gorm"
)

// CoursewareRepository 课件文件数据访问接口
type CoursewareRepository interface {
	Create(ctx context.Context, file *model.CoursewareFile) error
	GetByID(ctx context.Context, fileID string) (*model.CoursewareFile, error)
	UpdateSlideCount(ctx context.Context, fileID string, slideCount int) error
	List(ctx context.Context, limit, offset int) ([]*model.CoursewareFile, error)
	Delete(ctx context.Context, fileID string) error
}

// gormCoursewareRepository GORM 实现
type gormCoursewareRepository struct {
	db *gorm.DB
}

// NewGormCoursewareRepository 创建 GORM 课件仓库
func NewGormCoursewareRepository(db *gorm.DB) CoursewareRepository {
	return &gormCoursewareRepository{db: db}
}

// Create 保存课件文件记录
func (r *gormCoursewareRepository) Create(ctx context.Context, file *model.CoursewareFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// GetByID 根据ID获取课件文件
func (r *gormCoursewareRepository) GetByID(ctx context.Context, fileID string) (*model.CoursewareFile, error) {
	var file model.CoursewareFile
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

// UpdateSlideCount 提取完成后回填页数
func (r *gormCoursewareRepository) UpdateSlideCount(ctx context.Context, fileID string, slideCount int) error {
	return r.db.WithContext(ctx).Model(&model.CoursewareFile{}).
		Where("file_id = ?", fileID).
		Update("slide_count", slideCount).Error
}

// List 获取课件文件列表
func (r *gormCoursewareRepository) List(ctx context.Context, limit, offset int) ([]*model.CoursewareFile, error) {
	var files []*model.CoursewareFile
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&files).Error
	return files, err
}

// Delete 删除课件文件记录
func (r *gormCoursewareRepository) Delete(ctx context.Context, fileID string) error {
	return r.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Delete(&model.CoursewareFile{}).Error
}
