package model

import "time"

// VoiceStatus 声音样本的处理状态
type VoiceStatus string

const (
	VoiceStatusPending    VoiceStatus = "pending"
	VoiceStatusProcessing VoiceStatus = "processing"
	VoiceStatusReady      VoiceStatus = "ready"
	VoiceStatusFailed     VoiceStatus = "failed"
)

// VoiceSample represents a stored reference audio clip used to condition
// synthesis toward a particular speaker identity.
type VoiceSample struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Tags             []string    `json:"tags"`
	Status           VoiceStatus `json:"status"`
	QualityScore     *float64    `json:"quality_score,omitempty"`
	ObjectKey        string      `json:"-"` // MinIO中的音频对象键，不直接暴露
	OriginalFilename string      `json:"-"`
	ContentType      string      `json:"-"`
	FileSize         int64       `json:"-"`
	Error            string      `json:"error,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Ready reports whether the sample can be used for synthesis.
func (v *VoiceSample) Ready() bool {
	return v.Status == VoiceStatusReady
}

// VoiceSampleResponse 声音样本接口的响应
type VoiceSampleResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Tags         []string    `json:"tags"`
	Status       VoiceStatus `json:"status"`
	QualityScore *float64    `json:"quality_score,omitempty"`
	Message      string      `json:"message,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// ToResponse 转换为响应格式
func (v *VoiceSample) ToResponse(message string) VoiceSampleResponse {
	tags := v.Tags
	if tags == nil {
		tags = []string{}
	}
	return VoiceSampleResponse{
		ID:           v.ID,
		Name:         v.Name,
		Description:  v.Description,
		Tags:         tags,
		Status:       v.Status,
		QualityScore: v.QualityScore,
		Message:      message,
		Error:        v.Error,
		CreatedAt:    v.CreatedAt,
	}
}

// VoiceSampleList 列表响应
type VoiceSampleList struct {
	Total int                   `json:"total"`
	Items []VoiceSampleResponse `json:"items"`
}
