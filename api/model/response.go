package model

import (
	"encoding/json"
	"time"

	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/pkg/taskqueue"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentInfo 文档概要信息
type DocumentInfo struct {
	ID          string     `json:"id"`                    // 文档ID
	Title       string     `json:"title"`                 // 标题
	Status      string     `json:"status"`                // 渲染状态
	Tags        string     `json:"tags,omitempty"`        // 标签
	ContentHash string     `json:"content_hash"`          // 内容哈希
	RenderCount int        `json:"render_count"`          // 累计渲染次数
	CreatedAt   time.Time  `json:"created_at"`            // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`            // 更新时间
	RenderedAt  *time.Time `json:"rendered_at,omitempty"` // 最近渲染时间
	Error       string     `json:"error,omitempty"`       // 渲染错误信息
}

// DocumentDetail 文档详细信息，含内容和渲染结果
type DocumentDetail struct {
	DocumentInfo
	Content json.RawMessage `json:"content"`        // Delta内容
	HTML    string          `json:"html,omitempty"` // 最近一次渲染的HTML
}

// NewDocumentInfo 从数据模型构建文档概要
func NewDocumentInfo(doc *models.Document) DocumentInfo {
	return DocumentInfo{
		ID:          doc.ID,
		Title:       doc.Title,
		Status:      string(doc.Status),
		Tags:        doc.Tags,
		ContentHash: doc.ContentHash,
		RenderCount: doc.RenderCount,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		RenderedAt:  doc.RenderedAt,
		Error:       doc.Error,
	}
}

// NewDocumentDetail 从数据模型构建文档详情
func NewDocumentDetail(doc *models.Document) DocumentDetail {
	return DocumentDetail{
		DocumentInfo: NewDocumentInfo(doc),
		Content:      json.RawMessage(doc.Content),
		HTML:         doc.HTML,
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// RenderResponse 渲染结果响应
type RenderResponse struct {
	DocumentID string `json:"document_id"` // 文档ID
	HTML       string `json:"html"`        // 渲染结果
	FromCache  bool   `json:"from_cache"`  // 是否来自缓存
}

// PreviewResponse 临时渲染响应
type PreviewResponse struct {
	HTML string `json:"html"` // 渲染结果
}

// TaskEnqueuedResponse 任务入队响应
type TaskEnqueuedResponse struct {
	TaskID     string `json:"task_id"`     // 任务ID
	DocumentID string `json:"document_id"` // 文档ID
	Status     string `json:"status"`      // 任务初始状态
}

// ExportResponse 同步导出响应
type ExportResponse struct {
	DocumentID  string `json:"document_id"`  // 文档ID
	ArtifactID  string `json:"artifact_id"`  // 产物ID
	Size        int64  `json:"size"`         // 产物大小(字节)
	ContentType string `json:"content_type"` // MIME类型
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	ID      string `json:"id"`      // 文档ID
}

// RenderRecordInfo 渲染记录信息
type RenderRecordInfo struct {
	Status     string    `json:"status"`            // 渲染结果状态
	OutputSize int       `json:"output_size"`       // 输出大小(字节)
	Duration   int64     `json:"duration_ms"`       // 耗时(毫秒)
	FromCache  bool      `json:"from_cache"`        // 是否命中缓存
	TaskID     string    `json:"task_id,omitempty"` // 关联的任务ID
	CreatedAt  time.Time `json:"created_at"`        // 记录时间
	Error      string    `json:"error,omitempty"`   // 错误信息
}

// RenderHistoryResponse 渲染历史响应
type RenderHistoryResponse struct {
	DocumentID string             `json:"document_id"` // 文档ID
	Records    []RenderRecordInfo `json:"records"`     // 渲染记录列表
}

// NewRenderHistoryResponse 从渲染记录构建历史响应
func NewRenderHistoryResponse(docID string, records []*models.RenderRecord) RenderHistoryResponse {
	infos := make([]RenderRecordInfo, len(records))
	for i, record := range records {
		infos[i] = RenderRecordInfo{
			Status:     record.Status,
			OutputSize: record.OutputSize,
			Duration:   record.Duration,
			FromCache:  record.FromCache,
			TaskID:     record.TaskID,
			CreatedAt:  record.CreatedAt,
			Error:      record.Error,
		}
	}
	return RenderHistoryResponse{
		DocumentID: docID,
		Records:    infos,
	}
}

// TaskResponse 任务状态响应
type TaskResponse struct {
	TaskID      string          `json:"task_id"`               // 任务ID
	Type        string          `json:"type"`                  // 任务类型
	DocumentID  string          `json:"document_id"`           // 关联文档ID
	Status      string          `json:"status"`                // 任务状态
	Progress    float64         `json:"progress"`              // 处理进度
	Result      json.RawMessage `json:"result,omitempty"`      // 任务结果
	Error       string          `json:"error,omitempty"`       // 错误信息
	CreatedAt   time.Time       `json:"created_at"`            // 创建时间
	StartedAt   *time.Time      `json:"started_at,omitempty"`  // 开始时间
	CompletedAt *time.Time      `json:"completed_at,omitempty"` // 完成时间
}

// NewTaskResponse 从任务信息构建任务响应
func NewTaskResponse(info *taskqueue.TaskInfo) TaskResponse {
	return TaskResponse{
		TaskID:      info.ID,
		Type:        string(info.Type),
		DocumentID:  info.DocumentID,
		Status:      string(info.Status),
		Progress:    info.Progress,
		Result:      info.Result,
		Error:       info.Error,
		CreatedAt:   info.CreatedAt,
		StartedAt:   info.StartedAt,
		CompletedAt: info.CompletedAt,
	}
}
