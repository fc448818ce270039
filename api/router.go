package api

import (
	"net/http"

	"github.com/fyerfyer/delta-render-service/api/handler"
	"github.com/fyerfyer/delta-render-service/api/middleware"
	"github.com/fyerfyer/delta-render-service/api/model"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置API路由
func SetupRouter(
	documentHandler *handler.DocumentHandler,
	renderHandler *handler.RenderHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.SetTraceID())
	r.Use(middleware.Logger())
	r.Use(middleware.ErrorMiddleware())
	r.Use(middleware.Cors())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"status": "ok"}))
	})

	api := r.Group("/api")
	{
		documents := api.Group("/documents")
		{
			documents.POST("", documentHandler.CreateDocument)
			documents.GET("", documentHandler.ListDocuments)
			documents.POST("/import/markdown", documentHandler.ImportMarkdown)
			documents.GET("/:id", documentHandler.GetDocument)
			documents.PUT("/:id", documentHandler.UpdateDocument)
			documents.DELETE("/:id", documentHandler.DeleteDocument)
			documents.GET("/:id/html", documentHandler.GetDocumentHTML)
			documents.POST("/:id/render", documentHandler.RenderDocument)
			documents.POST("/:id/export", documentHandler.ExportDocument)
			documents.GET("/:id/export", documentHandler.DownloadExport)
			documents.GET("/:id/history", documentHandler.GetRenderHistory)
		}

		api.POST("/render", renderHandler.RenderPreview)
		api.GET("/tasks/:id", taskHandler.GetTask)
	}

	return r
}
