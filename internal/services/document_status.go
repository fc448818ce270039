package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/internal/repository"
	"github.com/sirupsen/logrus"
)

// RenderStatusManager 渲染状态管理器
// 负责管理文档渲染的生命周期状态
type RenderStatusManager struct {
	repo   repository.DocumentRepository // 文档仓储接口
	logger *logrus.Logger                // 日志记录器
	mu     sync.Mutex                    // 互斥锁，保证状态转换的原子性
}

// NewRenderStatusManager 创建渲染状态管理器
func NewRenderStatusManager(repo repository.DocumentRepository, logger *logrus.Logger) *RenderStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &RenderStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsRendering 将文档标记为渲染中状态
// 草稿、已渲染和失败的文档都可以进入渲染中
func (m *RenderStatusManager) MarkAsRendering(ctx context.Context, docID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := m.ValidateStateTransition(doc.Status, models.DocStatusRendering); err != nil {
		return fmt.Errorf("document %s is in %s state: %w", docID, doc.Status, err)
	}

	m.logger.WithField("doc_id", docID).Info("Marking document as rendering")

	return m.repo.UpdateStatus(docID, models.DocStatusRendering, "")
}

// MarkAsRendered 保存渲染结果并将文档标记为已渲染
func (m *RenderStatusManager) MarkAsRendered(ctx context.Context, docID string, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	if err := m.ValidateStateTransition(doc.Status, models.DocStatusRendered); err != nil {
		return fmt.Errorf("document %s is in %s state: %w", docID, doc.Status, err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id":      docID,
		"output_size": len(html),
	}).Info("Marking document as rendered")

	return m.repo.UpdateHTML(docID, html)
}

// MarkAsFailed 将文档标记为渲染失败状态
func (m *RenderStatusManager) MarkAsFailed(ctx context.Context, docID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.repo.GetByID(docID); err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"doc_id": docID,
		"error":  errorMsg,
	}).Error("Marking document as failed")

	return m.repo.UpdateStatus(docID, models.DocStatusFailed, errorMsg)
}

// GetStatus 获取文档当前状态
func (m *RenderStatusManager) GetStatus(ctx context.Context, docID string) (models.DocumentStatus, error) {
	doc, err := m.repo.GetByID(docID)
	if err != nil {
		return "", fmt.Errorf("failed to get document status: %w", err)
	}
	return doc.Status, nil
}

// ValidateStateTransition 验证状态转换的有效性
func (m *RenderStatusManager) ValidateStateTransition(from, to models.DocumentStatus) error {
	// 有效的状态转换表
	validTransitions := map[models.DocumentStatus][]models.DocumentStatus{
		models.DocStatusDraft: {
			models.DocStatusRendering,
			models.DocStatusFailed, // 内容校验失败时直接失败
		},
		models.DocStatusRendering: {
			models.DocStatusRendered,
			models.DocStatusFailed,
		},
		// 已渲染和失败的文档都允许重新渲染
		models.DocStatusRendered: {models.DocStatusRendering},
		models.DocStatusFailed:   {models.DocStatusRendering},
	}

	for _, validTo := range validTransitions[from] {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("%w: invalid state transition from %s to %s", models.ErrInvalidDocumentStatus, from, to)
}
