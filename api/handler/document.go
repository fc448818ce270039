package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fyerfyer/delta-render-service/api/middleware"
	"github.com/fyerfyer/delta-render-service/api/model"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 文档API处理器
type DocumentHandler struct {
	svc    *services.DocumentService
	logger *logrus.Logger
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(svc *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		svc:    svc,
		logger: middleware.GetLogger(),
	}
}

// CreateDocument 创建文档
// POST /api/documents
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	var req model.DocumentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	doc, err := h.svc.CreateDocument(c.Request.Context(), req.Title, req.Content, req.Tags)
	if err != nil {
		if errors.Is(err, models.ErrInvalidDelta) {
			middleware.HandleError(c, middleware.NewValidationError("无效的Delta内容", err.Error()))
			return
		}
		h.logger.WithError(err).Error("Failed to create document")
		middleware.HandleError(c, middleware.NewInternalError("创建文档失败"))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"doc_id": doc.ID,
		"title":  doc.Title,
	}).Info("Document created via API")

	c.JSON(http.StatusCreated, model.NewSuccessResponse(model.NewDocumentInfo(doc)))
}

// GetDocument 获取文档详情
// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	doc, err := h.svc.GetDocument(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
			return
		}
		h.logger.WithError(err).WithField("doc_id", req.ID).Error("Failed to get document")
		middleware.HandleError(c, middleware.NewInternalError("获取文档失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDocumentDetail(doc)))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的查询参数", err.Error()))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.Title != "" {
		filters["title"] = req.Title
	}
	if req.StartTime != nil {
		filters["start_time"] = *req.StartTime
	}
	if req.EndTime != nil {
		filters["end_time"] = *req.EndTime
	}

	page := req.GetPage()
	pageSize := req.GetPageSize()
	offset := (page - 1) * pageSize

	docs, total, err := h.svc.ListDocuments(c.Request.Context(), offset, pageSize, filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		middleware.HandleError(c, middleware.NewInternalError("获取文档列表失败"))
		return
	}

	infos := make([]model.DocumentInfo, len(docs))
	for i, doc := range docs {
		infos[i] = model.NewDocumentInfo(doc)
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentListResponse{
		Total:     total,
		Page:      page,
		PageSize:  pageSize,
		Documents: infos,
	}))
}

// UpdateDocument 更新文档
// PUT /api/documents/:id
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	var uriReq model.DocumentIDRequest
	if err := c.ShouldBindUri(&uriReq); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	var req model.DocumentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	doc, err := h.svc.UpdateContent(c.Request.Context(), uriReq.ID, req.Title, req.Content, req.Tags)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
		case errors.Is(err, models.ErrInvalidDelta):
			middleware.HandleError(c, middleware.NewValidationError("无效的Delta内容", err.Error()))
		default:
			h.logger.WithError(err).WithField("doc_id", uriReq.ID).Error("Failed to update document")
			middleware.HandleError(c, middleware.NewInternalError("更新文档失败"))
		}
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewDocumentInfo(doc)))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	if err := h.svc.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
			return
		}
		h.logger.WithError(err).WithField("doc_id", req.ID).Error("Failed to delete document")
		middleware.HandleError(c, middleware.NewInternalError("删除文档失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.DocumentDeleteResponse{
		Success: true,
		ID:      req.ID,
	}))
}

// GetDocumentHTML 获取文档的渲染结果
// GET /api/documents/:id/html?refresh=true
func (h *DocumentHandler) GetDocumentHTML(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	html, fromCache, err := h.svc.RenderDocument(c.Request.Context(), req.ID, refresh)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
		case errors.Is(err, models.ErrInvalidDelta):
			middleware.HandleError(c, middleware.NewValidationError("文档内容不是合法的Delta", err.Error()))
		default:
			h.logger.WithError(err).WithField("doc_id", req.ID).Error("Failed to render document")
			middleware.HandleError(c, middleware.NewInternalError("渲染文档失败"))
		}
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.RenderResponse{
		DocumentID: req.ID,
		HTML:       html,
		FromCache:  fromCache,
	}))
}

// RenderDocument 触发文档异步渲染
// POST /api/documents/:id/render
func (h *DocumentHandler) RenderDocument(c *gin.Context) {
	var uriReq model.DocumentIDRequest
	if err := c.ShouldBindUri(&uriReq); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	var req model.RenderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
			return
		}
	}

	taskID, err := h.svc.RenderDocumentAsync(c.Request.Context(), uriReq.ID, req.Force)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
			return
		}
		h.logger.WithError(err).WithField("doc_id", uriReq.ID).Error("Failed to enqueue render task")
		middleware.HandleError(c, middleware.NewInternalError("提交渲染任务失败"))
		return
	}

	c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.TaskEnqueuedResponse{
		TaskID:     taskID,
		DocumentID: uriReq.ID,
		Status:     "pending",
	}))
}

// ExportDocument 将文档导出为PDF并保存到产物存储
// POST /api/documents/:id/export
func (h *DocumentHandler) ExportDocument(c *gin.Context) {
	var uriReq model.DocumentIDRequest
	if err := c.ShouldBindUri(&uriReq); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	var req model.ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
			return
		}
	}

	// 配置了任务队列时异步导出
	if taskID, err := h.svc.ExportDocumentAsync(c.Request.Context(), uriReq.ID, req.Format); err == nil {
		c.JSON(http.StatusAccepted, model.NewSuccessResponse(model.TaskEnqueuedResponse{
			TaskID:     taskID,
			DocumentID: uriReq.ID,
			Status:     "pending",
		}))
		return
	} else if errors.Is(err, models.ErrDocumentNotFound) {
		middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
		return
	}

	artifact, err := h.svc.ExportDocument(c.Request.Context(), uriReq.ID, req.Format)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDocumentNotFound):
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
		case errors.Is(err, models.ErrInvalidDelta):
			middleware.HandleError(c, middleware.NewValidationError("文档内容不是合法的Delta", err.Error()))
		default:
			h.logger.WithError(err).WithField("doc_id", uriReq.ID).Error("Failed to export document")
			middleware.HandleError(c, middleware.NewInternalError("导出文档失败"))
		}
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ExportResponse{
		DocumentID:  uriReq.ID,
		ArtifactID:  artifact.ID,
		Size:        artifact.Size,
		ContentType: artifact.ContentType,
	}))
}

// DownloadExport 直接下载文档的PDF导出
// GET /api/documents/:id/export
func (h *DocumentHandler) DownloadExport(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	doc, err := h.svc.GetDocument(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
			return
		}
		middleware.HandleError(c, middleware.NewInternalError("获取文档失败"))
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", "attachment; filename=\""+doc.Title+".pdf\"")

	if err := h.svc.ExportDocumentTo(c.Request.Context(), req.ID, c.Writer); err != nil {
		h.logger.WithError(err).WithField("doc_id", req.ID).Error("Failed to stream document export")
		// 响应头已写出，只能中断连接
		c.Abort()
	}
}

// ImportMarkdown 从Markdown文件导入文档
// POST /api/documents/import/markdown
func (h *DocumentHandler) ImportMarkdown(c *gin.Context) {
	var req model.MarkdownImportRequest
	if err := c.ShouldBind(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数，需要上传file字段", err.Error()))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无法读取上传文件", err.Error()))
		return
	}
	defer file.Close()

	source, err := io.ReadAll(file)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("读取上传文件失败"))
		return
	}

	title := req.Title
	if title == "" {
		title = strings.TrimSuffix(req.File.Filename, ".md")
	}

	doc, err := h.svc.ImportMarkdown(c.Request.Context(), title, source, req.Tags)
	if err != nil {
		h.logger.WithError(err).WithField("filename", req.File.Filename).Error("Failed to import markdown")
		middleware.HandleError(c, middleware.NewInternalError("导入Markdown失败"))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"doc_id":   doc.ID,
		"filename": req.File.Filename,
	}).Info("Markdown imported via API")

	c.JSON(http.StatusCreated, model.NewSuccessResponse(model.NewDocumentInfo(doc)))
}

// GetRenderHistory 获取文档的渲染记录
// GET /api/documents/:id/history
func (h *DocumentHandler) GetRenderHistory(c *gin.Context) {
	var req model.DocumentIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的文档ID", err.Error()))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	records, err := h.svc.GetRenderHistory(c.Request.Context(), req.ID, limit)
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("文档不存在"))
			return
		}
		h.logger.WithError(err).WithField("doc_id", req.ID).Error("Failed to get render history")
		middleware.HandleError(c, middleware.NewInternalError("获取渲染历史失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewRenderHistoryResponse(req.ID, records)))
}
