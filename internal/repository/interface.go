package repository

import "github.com/fyerfyer/delta-render-service/internal/models"

// DocumentRepository 文档仓储接口
// 负责富文本文档及渲染记录的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// List 列出文档列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete 删除文档及其渲染记录
	Delete(id string) error

	// UpdateStatus 更新文档渲染状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateHTML 保存渲染结果并将文档标记为已渲染
	UpdateHTML(id string, html string) error

	// SaveRenderRecord 保存渲染记录
	SaveRenderRecord(record *models.RenderRecord) error

	// GetRenderRecords 获取文档的渲染记录，按时间倒序
	GetRenderRecords(docID string, limit int) ([]*models.RenderRecord, error)
}
