package handler

import (
	"errors"
	"net/http"

	"github.com/fyerfyer/delta-render-service/api/middleware"
	"github.com/fyerfyer/delta-render-service/api/model"
	"github.com/fyerfyer/delta-render-service/internal/services"
	"github.com/fyerfyer/delta-render-service/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TaskHandler 任务查询API处理器
type TaskHandler struct {
	svc    *services.DocumentService
	logger *logrus.Logger
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(svc *services.DocumentService) *TaskHandler {
	return &TaskHandler{
		svc:    svc,
		logger: middleware.GetLogger(),
	}
}

// GetTask 查询任务状态
// GET /api/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	var req model.TaskIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的任务ID", err.Error()))
		return
	}

	info, err := h.svc.GetTask(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, taskqueue.ErrTaskNotFound) {
			middleware.HandleError(c, middleware.NewNotFoundError("任务不存在"))
			return
		}
		h.logger.WithError(err).WithField("task_id", req.ID).Error("Failed to get task")
		middleware.HandleError(c, middleware.NewInternalError("获取任务失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTaskResponse(info)))
}
