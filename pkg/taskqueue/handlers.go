package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// RenderExecutor 执行文档渲染的函数类型
// 由服务层提供实现，处理器只负责载荷解析和结果回写
type RenderExecutor func(ctx context.Context, documentID string, force bool) (*RenderResult, error)

// ExportExecutor 执行文档导出的函数类型
type ExportExecutor func(ctx context.Context, documentID, format string) (*ExportResult, error)

// DocumentTaskHandler 文档任务处理器
// 处理渲染和导出两类任务
type DocumentTaskHandler struct {
	queue  Queue
	render RenderExecutor
	export ExportExecutor
	logger *logrus.Logger
}

// NewDocumentTaskHandler 创建文档任务处理器
func NewDocumentTaskHandler(queue Queue, render RenderExecutor, export ExportExecutor, logger *logrus.Logger) *DocumentTaskHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &DocumentTaskHandler{
		queue:  queue,
		render: render,
		export: export,
		logger: logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *DocumentTaskHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskRenderDocument, TaskExportDocument}
}

// ProcessTask 处理任务
// 任务成功时把结果写回队列；工作者随后更新状态不会覆盖已写入的结果
func (h *DocumentTaskHandler) ProcessTask(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskRenderDocument:
		return h.processRender(ctx, task)
	case TaskExportDocument:
		return h.processExport(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// processRender 处理文档渲染任务
func (h *DocumentTaskHandler) processRender(ctx context.Context, task *Task) error {
	if h.render == nil {
		return fmt.Errorf("no render executor configured")
	}

	var payload RenderPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		payload.DocumentID = task.DocumentID
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": payload.DocumentID,
		"force":       payload.Force,
	}).Info("Processing render task")

	result, err := h.render(ctx, payload.DocumentID, payload.Force)
	if err != nil {
		return fmt.Errorf("failed to render document: %v", err)
	}

	if h.queue != nil {
		if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, result, ""); err != nil {
			h.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to attach render result")
		}
	}
	return nil
}

// processExport 处理文档导出任务
func (h *DocumentTaskHandler) processExport(ctx context.Context, task *Task) error {
	if h.export == nil {
		return fmt.Errorf("no export executor configured")
	}

	var payload ExportPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		payload.DocumentID = task.DocumentID
	}
	if payload.Format == "" {
		payload.Format = "pdf"
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"document_id": payload.DocumentID,
		"format":      payload.Format,
	}).Info("Processing export task")

	result, err := h.export(ctx, payload.DocumentID, payload.Format)
	if err != nil {
		return fmt.Errorf("failed to export document: %v", err)
	}

	if h.queue != nil {
		if err := h.queue.UpdateTaskStatus(ctx, task.ID, StatusProcessing, result, ""); err != nil {
			h.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to attach export result")
		}
	}
	return nil
}
