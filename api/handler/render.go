package handler

import (
	"errors"
	"net/http"

	"github.com/fyerfyer/delta-render-service/api/middleware"
	"github.com/fyerfyer/delta-render-service/api/model"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RenderHandler 临时渲染API处理器
type RenderHandler struct {
	svc    *services.DocumentService
	logger *logrus.Logger
}

// NewRenderHandler 创建渲染处理器
func NewRenderHandler(svc *services.DocumentService) *RenderHandler {
	return &RenderHandler{
		svc:    svc,
		logger: middleware.GetLogger(),
	}
}

// RenderPreview 渲染临时Delta内容，不做任何持久化
// POST /api/render
func (h *RenderHandler) RenderPreview(c *gin.Context) {
	var req model.RenderPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数", err.Error()))
		return
	}

	html, err := h.svc.RenderPreview(c.Request.Context(), req.Content)
	if err != nil {
		if errors.Is(err, models.ErrInvalidDelta) {
			middleware.HandleError(c, middleware.NewValidationError("无效的Delta内容", err.Error()))
			return
		}
		h.logger.WithError(err).Error("Failed to render preview")
		middleware.HandleError(c, middleware.NewInternalError("渲染失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.PreviewResponse{HTML: html}))
}
