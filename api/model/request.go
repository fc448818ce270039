package model

import (
	"encoding/json"
	"mime/multipart"
	"time"
)

// PaginationRequest 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// DocumentCreateRequest 文档创建请求
// Content是Delta操作序列的原始JSON
type DocumentCreateRequest struct {
	Title   string          `json:"title" binding:"required"`         // 文档标题
	Content json.RawMessage `json:"content" binding:"required,delta"` // Delta内容
	Tags    string          `json:"tags" binding:"omitempty"`         // 标签，逗号分隔
}

// DocumentUpdateRequest 文档更新请求
// 所有字段可选，只更新给定的字段
type DocumentUpdateRequest struct {
	Title   string          `json:"title" binding:"omitempty"`
	Content json.RawMessage `json:"content" binding:"omitempty,delta"`
	Tags    string          `json:"tags" binding:"omitempty"`
}

// DocumentIDRequest 文档ID路径参数
type DocumentIDRequest struct {
	ID string `uri:"id" binding:"required"` // 文档ID
}

// DocumentListRequest 文档列表请求
type DocumentListRequest struct {
	PaginationRequest
	Status    string     `form:"status" json:"status" binding:"omitempty"`         // 状态过滤
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`             // 标签过滤
	Title     string     `form:"title" json:"title" binding:"omitempty"`           // 标题模糊过滤
	StartTime *time.Time `form:"start_time" time_format:"2006-01-02T15:04:05Z07:00" json:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" time_format:"2006-01-02T15:04:05Z07:00" json:"end_time" binding:"omitempty"`     // 结束时间
}

// RenderPreviewRequest 临时渲染请求
type RenderPreviewRequest struct {
	Content json.RawMessage `json:"content" binding:"required,delta"` // Delta内容
}

// RenderRequest 文档渲染请求
type RenderRequest struct {
	Force bool `json:"force" binding:"omitempty"` // 是否跳过缓存强制重渲染
}

// ExportRequest 文档导出请求
type ExportRequest struct {
	Format string `json:"format" binding:"omitempty,oneof=pdf html"` // 导出格式，默认pdf
}

// MarkdownImportRequest Markdown导入请求
type MarkdownImportRequest struct {
	File  *multipart.FileHeader `form:"file" binding:"required"` // Markdown文件
	Title string                `form:"title" binding:"omitempty"`
	Tags  string                `form:"tags" binding:"omitempty"`
}

// TaskIDRequest 任务ID路径参数
type TaskIDRequest struct {
	ID string `uri:"id" binding:"required"` // 任务ID
}
