package model

import "time"

// MediaFile 已上传的待换声音视频文件（GORM模型）
type MediaFile struct {
	FileID           string    `json:"file_id" gorm:"primaryKey;column:file_id;size:64"`
	Name             string    `json:"name" gorm:"size:255;not null"`
	OriginalFilename string    `json:"original_filename" gorm:"size:255"`
	ContentType      string    `json:"-" gorm:"size:100"`
	ObjectKey        string    `json:"-" gorm:"size:512"`
	FileSize         int64     `json:"file_size"`
	IsVideo          bool      `json:"is_video"`
	Duration         float64   `json:"duration"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName 指定表名
func (MediaFile) TableName() string {
	return "media_files"
}

// Segment 转写得到的一段语音及其时间区间
type Segment struct {
	Index int     `json:"index"`
	Start float64 `json:"start"` // 秒
	End   float64 `json:"end"`   // 秒
	Text  string  `json:"text"`
}

// Transcription 完整转写结果
type Transcription struct {
	FileID   string    `json:"file_id"`
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

// SubtitleResponse 字幕下载接口的响应
type SubtitleResponse struct {
	TaskID  string `json:"task_id"`
	Format  string `json:"format"`
	Content string `json:"content"`
}
