package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskRenderDocument 文档渲染任务
	TaskRenderDocument TaskType = "render_document"
	// TaskExportDocument 文档导出任务
	TaskExportDocument TaskType = "export_document"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	DocumentID  string          `json:"document_id"`  // 关联的文档ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// RenderPayload 文档渲染任务载荷
type RenderPayload struct {
	DocumentID string `json:"document_id"` // 文档ID
	Force      bool   `json:"force"`       // 是否跳过缓存强制重渲染
}

// RenderResult 文档渲染任务结果
type RenderResult struct {
	DocumentID string `json:"document_id"` // 文档ID
	OutputSize int    `json:"output_size"` // 渲染输出大小(字节)
	FromCache  bool   `json:"from_cache"`  // 结果是否来自缓存
	Duration   int64  `json:"duration_ms"` // 渲染耗时(毫秒)
}

// ExportPayload 文档导出任务载荷
type ExportPayload struct {
	DocumentID string `json:"document_id"` // 文档ID
	Format     string `json:"format"`      // 导出格式，目前仅支持pdf
}

// ExportResult 文档导出任务结果
type ExportResult struct {
	DocumentID string `json:"document_id"` // 文档ID
	ArtifactID string `json:"artifact_id"` // 导出产物的存储ID
	Size       int64  `json:"size"`        // 导出文件大小(字节)
	Format     string `json:"format"`      // 导出格式
}

// TaskInfo 表示任务的元信息
// 用于传递给客户端的简化任务信息
type TaskInfo struct {
	ID          string          `json:"id"`               // 任务唯一标识符
	Type        TaskType        `json:"type"`             // 任务类型
	DocumentID  string          `json:"document_id"`      // 关联的文档ID
	Status      TaskStatus      `json:"status"`           // 任务状态
	Result      json.RawMessage `json:"result,omitempty"` // 任务结果
	Error       string          `json:"error"`            // 错误信息
	CreatedAt   time.Time       `json:"created_at"`       // 创建时间
	StartedAt   *time.Time      `json:"started_at"`       // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"`     // 完成时间
	Progress    float64         `json:"progress"`         // 处理进度（0-100）
}

// NewTaskInfo 从Task创建TaskInfo
func NewTaskInfo(task *Task) *TaskInfo {
	return &TaskInfo{
		ID:          task.ID,
		Type:        task.Type,
		DocumentID:  task.DocumentID,
		Status:      task.Status,
		Result:      task.Result,
		Error:       task.Error,
		CreatedAt:   task.CreatedAt,
		StartedAt:   task.StartedAt,
		CompletedAt: task.CompletedAt,
		Progress:    taskProgress(task),
	}
}

// taskProgress 根据任务状态计算进度
func taskProgress(task *Task) float64 {
	switch task.Status {
	case StatusPending:
		return 0.0
	case StatusProcessing:
		// 处理中默认返回50%，实际进度由任务处理器更新
		return 50.0
	case StatusCompleted:
		return 100.0
	case StatusFailed:
		return 50.0
	default:
		return 0.0
	}
}

// ErrTaskNotFound 任务未找到错误
var ErrTaskNotFound = TaskError("task not found")

// ErrTaskTimeout 任务超时错误
var ErrTaskTimeout = TaskError("task timed out")

// ErrInvalidPayload 无效的任务载荷错误
var ErrInvalidPayload = TaskError("invalid task payload")

// TaskError 任务错误类型
type TaskError string

// Error 实现error接口
func (e TaskError) Error() string {
	return string(e)
}

// MarshalPayload 将任务载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 将JSON反序列化为任务载荷
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
