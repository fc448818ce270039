package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DocumentStatus 文档渲染状态类型
type DocumentStatus string

const (
	// DocStatusDraft 文档已保存，尚未渲染
	DocStatusDraft DocumentStatus = "draft"
	// DocStatusRendering 文档渲染中
	DocStatusRendering DocumentStatus = "rendering"
	// DocStatusRendered 文档渲染完成
	DocStatusRendered DocumentStatus = "rendered"
	// DocStatusFailed 文档渲染失败
	DocStatusFailed DocumentStatus = "failed"
)

// Document 富文本文档数据模型
// Content保存Delta操作序列的JSON，HTML保存最近一次渲染结果
type Document struct {
	ID          string         `gorm:"primaryKey"`         // 文档ID，主键
	Title       string         `gorm:"not null"`           // 文档标题
	Content     datatypes.JSON `gorm:"type:json;not null"` // Delta操作序列（JSON）
	ContentHash string         `gorm:"size:64;index"`      // 内容哈希，用于缓存键和变更检测
	HTML        string         `gorm:"type:text"`          // 最近一次渲染的HTML
	Status      DocumentStatus `gorm:"not null;index"`     // 渲染状态
	CreatedAt   time.Time      `gorm:"not null;index"`     // 创建时间
	UpdatedAt   time.Time      `gorm:"not null;index"`     // 更新时间
	RenderedAt  *time.Time     `gorm:"index"`              // 最近渲染完成时间
	Error       string         `gorm:"type:text"`          // 渲染错误信息
	RenderCount int            `gorm:"not null;default:0"` // 累计渲染次数
	Tags        string         `gorm:"type:varchar(255)"`  // 标签，逗号分隔
	Metadata    datatypes.JSON `gorm:"type:json"`          // 元数据，JSON格式
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (d *Document) BeforeCreate(tx *gorm.DB) (err error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	d.UpdatedAt = time.Now()
	if d.Status == "" {
		d.Status = DocStatusDraft
	}
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (d *Document) BeforeUpdate(tx *gorm.DB) (err error) {
	d.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Document) TableName() string {
	return "documents"
}

// RenderRecord 渲染记录数据模型
// 每次渲染（同步或任务队列）留下一条审计记录
type RenderRecord struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	DocumentID string         `gorm:"not null;index"`           // 所属文档ID
	TaskID     string         `gorm:"size:50;index"`            // 关联的任务ID（异步渲染时）
	Status     string         `gorm:"not null;size:20"`         // 渲染结果状态
	OutputSize int            `gorm:"not null;default:0"`       // 输出HTML的字节数
	Duration   int64          `gorm:"not null;default:0"`       // 渲染耗时（毫秒）
	FromCache  bool           `gorm:"not null;default:false"`   // 是否命中缓存
	CreatedAt  time.Time      `gorm:"not null"`                 // 创建时间
	Error      string         `gorm:"type:text"`                // 错误信息
	Metadata   datatypes.JSON `gorm:"type:json"`                // 附加信息
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *RenderRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (RenderRecord) TableName() string {
	return "render_records"
}
