package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskKind 区分任务类型，作为task_id的前缀
type TaskKind string

const (
	TaskKindTTS          TaskKind = "tts"
	TaskKindPreview      TaskKind = "preview"
	TaskKindCourseware   TaskKind = "courseware"
	TaskKindVoiceReplace TaskKind = "voice_replace"
	TaskKindTranscribe   TaskKind = "transcribe"
)

// TaskStatus 任务生命周期状态
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether the status allows no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether s -> next is a legal lifecycle transition.
// 合法路径：pending → processing → {completed | failed}
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s == next {
		return !s.Terminal()
	}
	switch s {
	case TaskStatusPending:
		return next == TaskStatusProcessing || next == TaskStatusFailed
	case TaskStatusProcessing:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// TaskRecord tracks one unit of asynchronous work from submission to its
// terminal outcome. Params is the configuration snapshot captured at
// submission time and never changes once the task starts.
type TaskRecord struct {
	TaskID    string     `json:"task_id"`
	Kind      TaskKind   `json:"kind"`
	Status    TaskStatus `json:"status"`
	Progress  float64    `json:"progress"`
	InputRef  string     `json:"input_ref"`
	Params    string     `json:"params"`               // JSON快照，提交后不可变
	OutputRef string     `json:"output_ref,omitempty"` // 仅在 completed 时设置
	Error     string     `json:"error,omitempty"`      // 仅在 failed 时设置
	Duration  float64    `json:"duration,omitempty"`   // 产物音频时长（秒）
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewTaskID generates a task identifier prefixed with the task kind,
// e.g. "tts_3fa85f645717".
func NewTaskID(kind TaskKind) string {
	return string(kind) + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// TaskStatusResponse 状态查询接口的响应
type TaskStatusResponse struct {
	TaskID    string     `json:"task_id"`
	Status    TaskStatus `json:"status"`
	Progress  float64    `json:"progress"`
	Message   string     `json:"message,omitempty"`
	Error     string     `json:"error,omitempty"`
	Duration  float64    `json:"duration,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// StatusMessage 返回状态对应的提示文案
func StatusMessage(s TaskStatus) string {
	switch s {
	case TaskStatusPending:
		return "任务等待处理"
	case TaskStatusProcessing:
		return "任务处理中"
	case TaskStatusCompleted:
		return "任务已完成"
	case TaskStatusFailed:
		return "任务处理失败"
	}
	return ""
}

// TaskSubmitResponse 任务提交接口的响应
type TaskSubmitResponse struct {
	TaskID  string     `json:"task_id"`
	Status  TaskStatus `json:"status"`
	Message string     `json:"message,omitempty"`
}
