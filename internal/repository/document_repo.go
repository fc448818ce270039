package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/delta-render-service/internal/database"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"gorm.io/gorm"
)

// docRepository 文档仓储实现
type docRepository struct {
	db *gorm.DB // 数据库连接
}

// NewDocumentRepository 创建文档仓储实例，使用全局数据库连接
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db: database.MustDB(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db: db,
	}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}

	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档列表，支持分页和筛选
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	// 应用筛选条件
	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.DocumentStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			}
		}

		// 标签过滤
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}

		// 标题过滤
		if title, ok := filters["title"].(string); ok && title != "" {
			query = query.Where("title LIKE ?", "%"+title+"%")
		}

		// 时间范围过滤
		switch v := filters["start_time"].(type) {
		case time.Time:
			query = query.Where("created_at >= ?", v)
		case string:
			if v != "" {
				query = query.Where("created_at >= ?", v)
			}
		}
		switch v := filters["end_time"].(type) {
		case time.Time:
			query = query.Where("created_at <= ?", v)
		case string:
			if v != "" {
				query = query.Where("created_at <= ?", v)
			}
		}
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询，按更新时间倒序
	err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// Delete 删除文档及其渲染记录
func (r *docRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 删除渲染记录
		if err := tx.Where("document_id = ?", id).Delete(&models.RenderRecord{}).Error; err != nil {
			return fmt.Errorf("failed to delete render records: %v", err)
		}

		// 删除文档
		result := tx.Where("id = ?", id).Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
		}
		return nil
	})
}

// UpdateStatus 更新文档渲染状态
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	return nil
}

// UpdateHTML 保存渲染结果并将文档标记为已渲染
func (r *docRepository) UpdateHTML(id string, html string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"html":         html,
		"status":       models.DocStatusRendered,
		"error":        "",
		"rendered_at":  &now,
		"updated_at":   now,
		"render_count": gorm.Expr("render_count + 1"),
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrDocumentNotFound, id)
	}
	return nil
}

// SaveRenderRecord 保存渲染记录
func (r *docRepository) SaveRenderRecord(record *models.RenderRecord) error {
	if record.DocumentID == "" {
		return errors.New("render record document ID cannot be empty")
	}
	return r.db.Create(record).Error
}

// GetRenderRecords 获取文档的渲染记录，按时间倒序
func (r *docRepository) GetRenderRecords(docID string, limit int) ([]*models.RenderRecord, error) {
	var records []*models.RenderRecord
	query := r.db.Where("document_id = ?", docID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
