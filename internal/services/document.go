package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fyerfyer/delta-render-service/internal/cache"
	"github.com/fyerfyer/delta-render-service/internal/delta"
	"github.com/fyerfyer/delta-render-service/internal/exporter"
	"github.com/fyerfyer/delta-render-service/internal/importer"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/internal/renderer"
	"github.com/fyerfyer/delta-render-service/internal/repository"
	"github.com/fyerfyer/delta-render-service/pkg/storage"
	"github.com/fyerfyer/delta-render-service/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DocumentService 文档服务
// 负责协调文档的存储、渲染、导入和导出
type DocumentService struct {
	repo          repository.DocumentRepository // 文档元数据存储
	cache         cache.Cache                   // 渲染结果缓存
	storage       storage.Storage               // 产物存储服务
	taskQueue     taskqueue.Queue               // 任务队列
	statusManager *RenderStatusManager          // 渲染状态管理器
	importer      *importer.MarkdownImporter    // Markdown导入器
	exporter      *exporter.PDFExporter         // PDF导出器
	cacheTTL      time.Duration                 // 渲染缓存过期时间
	timeout       time.Duration                 // 处理超时时间
	asyncEnabled  bool                          // 是否启用异步渲染
	logger        *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建一个新的文档服务
func NewDocumentService(repo repository.DocumentRepository, opts ...DocumentOption) *DocumentService {
	srv := &DocumentService{
		repo:         repo,
		importer:     importer.NewMarkdownImporter(),
		exporter:     exporter.NewPDFExporter(),
		cacheTTL:     24 * time.Hour,  // 默认缓存过期时间
		timeout:      time.Minute * 5, // 默认超时时间
		logger:       logrus.New(),    // 默认日志记录器
		asyncEnabled: false,           // 默认同步渲染
	}

	for _, opt := range opts {
		opt(srv)
	}

	if srv.statusManager == nil {
		srv.statusManager = NewRenderStatusManager(srv.repo, srv.logger)
	}

	return srv
}

// WithCache 设置渲染结果缓存
func WithCache(c cache.Cache) DocumentOption {
	return func(s *DocumentService) {
		s.cache = c
	}
}

// WithStorage 设置产物存储服务
func WithStorage(store storage.Storage) DocumentOption {
	return func(s *DocumentService) {
		s.storage = store
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *RenderStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithCacheTTL 设置渲染缓存过期时间
func WithCacheTTL(ttl time.Duration) DocumentOption {
	return func(s *DocumentService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAsyncRendering 设置是否启用异步渲染
func WithAsyncRendering(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// CreateDocument 创建文档
// 内容必须是合法的Delta JSON，非法内容直接拒绝
func (s *DocumentService) CreateDocument(ctx context.Context, title string, content []byte, tags string) (*models.Document, error) {
	if _, err := delta.Parse(content); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidDelta, err)
	}

	if title == "" {
		title = "Untitled Document"
	}

	doc := &models.Document{
		ID:          uuid.New().String(),
		Title:       title,
		Content:     content,
		ContentHash: cache.ContentHash(content),
		Status:      models.DocStatusDraft,
		Tags:        tags,
	}

	if err := s.repo.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %v", err)
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id": doc.ID,
		"title":  doc.Title,
	}).Info("Document created")

	return doc, nil
}

// GetDocument 获取文档
func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.repo.GetByID(id)
}

// ListDocuments 列出文档，支持分页和筛选
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	return s.repo.List(offset, limit, filters)
}

// UpdateContent 更新文档内容
// 内容变更后文档回到草稿状态，旧的渲染缓存通过内容哈希自然失效
func (s *DocumentService) UpdateContent(ctx context.Context, id string, title string, content []byte, tags string) (*models.Document, error) {
	doc, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if title != "" {
		doc.Title = title
	}
	if tags != "" {
		doc.Tags = tags
	}

	if content != nil {
		if _, err := delta.Parse(content); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidDelta, err)
		}
		doc.Content = content
		doc.ContentHash = cache.ContentHash(content)
		doc.Status = models.DocStatusDraft
		doc.Error = ""
	}

	if err := s.repo.Update(doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %v", err)
	}

	s.logger.WithField("doc_id", id).Info("Document updated")
	return doc, nil
}

// DeleteDocument 删除文档及其渲染缓存
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	doc, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Delete(cache.RenderKey(id, doc.Content)); err != nil {
			s.logger.WithError(err).WithField("doc_id", id).Warn("Failed to invalidate render cache")
		}
	}

	if err := s.repo.Delete(id); err != nil {
		return err
	}

	s.logger.WithField("doc_id", id).Info("Document deleted")
	return nil
}

// RenderDocument 渲染文档为HTML
// 优先命中缓存；force为true时跳过缓存强制重渲染。
// 返回渲染结果和结果是否来自缓存
func (s *DocumentService) RenderDocument(ctx context.Context, id string, force bool) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.repo.GetByID(id)
	if err != nil {
		return "", false, err
	}

	key := cache.RenderKey(id, doc.Content)

	if !force && s.cache != nil {
		if html, found, err := s.cache.Get(key); err == nil && found {
			s.logger.WithField("doc_id", id).Debug("Render cache hit")
			s.saveRenderRecord(id, "", len(html), 0, true, "")
			return html, true, nil
		}
	}

	start := time.Now()

	ops, err := delta.Parse(doc.Content)
	if err != nil {
		parseErr := fmt.Errorf("%w: %v", models.ErrInvalidDelta, err)
		s.failRender(ctx, id, parseErr.Error(), start)
		return "", false, parseErr
	}

	if err := s.statusManager.MarkAsRendering(ctx, id); err != nil {
		s.logger.WithError(err).WithField("doc_id", id).Warn("Failed to mark document as rendering")
	}

	html, err := renderer.RenderHTMLString(ops)
	if err != nil {
		s.failRender(ctx, id, fmt.Sprintf("failed to render document: %v", err), start)
		return "", false, fmt.Errorf("failed to render document: %v", err)
	}

	duration := time.Since(start).Milliseconds()

	if err := s.statusManager.MarkAsRendered(ctx, id, html); err != nil {
		return "", false, fmt.Errorf("failed to save render result: %v", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(key, html, s.cacheTTL); err != nil {
			s.logger.WithError(err).WithField("doc_id", id).Warn("Failed to cache render result")
		}
	}

	s.saveRenderRecord(id, "", len(html), duration, false, "")

	s.logger.WithFields(logrus.Fields{
		"doc_id":      id,
		"output_size": len(html),
		"duration_ms": duration,
	}).Info("Document rendered")

	return html, false, nil
}

// RenderDocumentAsync 异步渲染文档
// 将渲染任务加入队列并立即返回任务ID
func (s *DocumentService) RenderDocumentAsync(ctx context.Context, id string, force bool) (string, error) {
	if s.taskQueue == nil {
		return "", fmt.Errorf("no task queue configured")
	}

	// 文档必须存在
	if _, err := s.repo.GetByID(id); err != nil {
		return "", err
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskRenderDocument, id, &taskqueue.RenderPayload{
		DocumentID: id,
		Force:      force,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue render task: %v", err)
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":  id,
		"task_id": taskID,
	}).Info("Render task enqueued")

	return taskID, nil
}

// RenderPreview 渲染临时内容，不涉及任何持久化
func (s *DocumentService) RenderPreview(ctx context.Context, content []byte) (string, error) {
	ops, err := delta.Parse(content)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidDelta, err)
	}
	return renderer.RenderHTMLString(ops)
}

// ImportMarkdown 导入Markdown内容并创建文档
// 源文件在配置了存储服务时归档保存
func (s *DocumentService) ImportMarkdown(ctx context.Context, title string, source []byte, tags string) (*models.Document, error) {
	ops, err := s.importer.Import(source)
	if err != nil {
		return nil, fmt.Errorf("failed to import markdown: %v", err)
	}

	content, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delta: %v", err)
	}

	if s.storage != nil {
		if _, err := s.storage.Save(bytes.NewReader(source), title+".md"); err != nil {
			s.logger.WithError(err).Warn("Failed to archive markdown source")
		}
	}

	return s.CreateDocument(ctx, title, content, tags)
}

// ExportDocumentTo 将文档导出为PDF写入sink
func (s *DocumentService) ExportDocumentTo(ctx context.Context, id string, w io.Writer) error {
	doc, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}

	ops, err := delta.Parse(doc.Content)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidDelta, err)
	}

	return s.exporter.Export(ops, w)
}

// ExportDocument 将文档导出并保存到产物存储
// format支持pdf和html，默认pdf
func (s *DocumentService) ExportDocument(ctx context.Context, id string, format string) (storage.Artifact, error) {
	if s.storage == nil {
		return storage.Artifact{}, fmt.Errorf("no storage configured")
	}
	if format == "" {
		format = "pdf"
	}

	doc, err := s.repo.GetByID(id)
	if err != nil {
		return storage.Artifact{}, err
	}

	var buf bytes.Buffer
	switch format {
	case "pdf":
		if err := s.ExportDocumentTo(ctx, id, &buf); err != nil {
			return storage.Artifact{}, err
		}
	case "html":
		html, _, err := s.RenderDocument(ctx, id, false)
		if err != nil {
			return storage.Artifact{}, err
		}
		buf.WriteString(html)
	default:
		return storage.Artifact{}, fmt.Errorf("unsupported export format: %s", format)
	}

	artifact, err := s.storage.Save(&buf, doc.Title+"."+format)
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("failed to save export artifact: %v", err)
	}

	s.logger.WithFields(logrus.Fields{
		"doc_id":      id,
		"artifact_id": artifact.ID,
		"format":      format,
		"size":        artifact.Size,
	}).Info("Document exported")

	return artifact, nil
}

// ExportDocumentAsync 异步导出文档
func (s *DocumentService) ExportDocumentAsync(ctx context.Context, id string, format string) (string, error) {
	if s.taskQueue == nil {
		return "", fmt.Errorf("no task queue configured")
	}
	if format == "" {
		format = "pdf"
	}

	if _, err := s.repo.GetByID(id); err != nil {
		return "", err
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskExportDocument, id, &taskqueue.ExportPayload{
		DocumentID: id,
		Format:     format,
	})
	if err != nil {
		return "", fmt.Errorf("failed to enqueue export task: %v", err)
	}

	return taskID, nil
}

// GetRenderHistory 获取文档的渲染记录
func (s *DocumentService) GetRenderHistory(ctx context.Context, id string, limit int) ([]*models.RenderRecord, error) {
	if _, err := s.repo.GetByID(id); err != nil {
		return nil, err
	}
	return s.repo.GetRenderRecords(id, limit)
}

// GetTask 获取任务信息
func (s *DocumentService) GetTask(ctx context.Context, taskID string) (*taskqueue.TaskInfo, error) {
	if s.taskQueue == nil {
		return nil, fmt.Errorf("no task queue configured")
	}

	task, err := s.taskQueue.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return taskqueue.NewTaskInfo(task), nil
}

// failRender 标记渲染失败并留下审计记录
func (s *DocumentService) failRender(ctx context.Context, id string, errorMsg string, start time.Time) {
	if err := s.statusManager.MarkAsFailed(ctx, id, errorMsg); err != nil {
		s.logger.WithError(err).WithField("doc_id", id).Error("Failed to mark document as failed")
	}
	s.saveRenderRecord(id, "", 0, time.Since(start).Milliseconds(), false, errorMsg)
}

// saveRenderRecord 保存一条渲染审计记录
func (s *DocumentService) saveRenderRecord(docID, taskID string, outputSize int, duration int64, fromCache bool, errorMsg string) {
	status := "completed"
	if errorMsg != "" {
		status = "failed"
	}

	record := &models.RenderRecord{
		DocumentID: docID,
		TaskID:     taskID,
		Status:     status,
		OutputSize: outputSize,
		Duration:   duration,
		FromCache:  fromCache,
		Error:      errorMsg,
	}

	if err := s.repo.SaveRenderRecord(record); err != nil {
		s.logger.WithError(err).WithField("doc_id", docID).Warn("Failed to save render record")
	}
}
