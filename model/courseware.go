package model

import "time"

// CoursewareFile 已上传的课件文件（GORM模型）
type CoursewareFile struct {
	FileID           string    `json:"file_id" gorm:"primaryKey;column:file_id;size:64"`
	Name             string    `json:"name" gorm:"size:255;not null"`
	OriginalFilename string    `json:"original_filename" gorm:"size:255"`
	ContentType      string    `json:"-" gorm:"size:100"`
	ObjectKey        string    `json:"-" gorm:"size:512"`
	FileSize         int64     `json:"file_size"`
	SlideCount       int       `json:"slide_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CoursewareFile) TableName() string {
	return "courseware_files"
}

// SlideContent 从课件中提取的单页文本
type SlideContent struct {
	Index int    `json:"index"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
	Notes string `json:"notes,omitempty"`
}

// CoursewareExtraction 课件文本提取结果
type CoursewareExtraction struct {
	FileID string         `json:"file_id"`
	Name   string         `json:"name"`
	Slides []SlideContent `json:"slides"`
}

// CoursewareUploadResponse 课件上传接口的响应
type CoursewareUploadResponse struct {
	FileID  string `json:"file_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}
