package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/fyerfyer/delta-render-service/api/model"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorType 错误类型
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation" // 参数校验错误
	ErrorTypeNotFound   ErrorType = "not_found"  // 资源不存在
	ErrorTypeBusiness   ErrorType = "business"   // 业务逻辑错误
	ErrorTypeInternal   ErrorType = "internal"   // 内部错误
)

// AppError 应用错误，携带HTTP状态码和面向用户的消息
type AppError struct {
	Type    ErrorType `json:"type"`              // 错误类型
	Message string    `json:"message"`           // 错误消息
	Details string    `json:"details,omitempty"` // 错误详情
	Code    int       `json:"code"`              // HTTP状态码
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// NewValidationError 创建参数校验错误
func NewValidationError(message string, details string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
		Code:    http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewBusinessError 创建业务逻辑错误
func NewBusinessError(message string, details string) *AppError {
	return &AppError{
		Type:    ErrorTypeBusiness,
		Message: message,
		Details: details,
		Code:    http.StatusUnprocessableEntity,
	}
}

// NewInternalError 创建内部错误
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

// ErrorMiddleware 统一错误处理中间件，捕获panic并转换错误为标准响应
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(logrus.Fields{
					"panic":    r,
					"stack":    string(debug.Stack()),
					"path":     c.Request.URL.Path,
					"trace_id": GetTraceID(c),
				}).Error("recovered from panic")

				resp := model.NewErrorResponse(http.StatusInternalServerError, "服务器内部错误")
				resp.TraceID = GetTraceID(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		appErr, ok := err.(*AppError)
		if !ok {
			appErr = NewInternalError("服务器内部错误")
			log.WithFields(logrus.Fields{
				"error":    err.Error(),
				"path":     c.Request.URL.Path,
				"trace_id": GetTraceID(c),
			}).Error("unhandled error in request")
		}

		resp := model.NewErrorResponse(appErr.Code, appErr.Message)
		resp.TraceID = GetTraceID(c)
		c.JSON(appErr.Code, resp)
	}
}

// HandleError 将错误挂到gin上下文，由ErrorMiddleware统一转换
func HandleError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
