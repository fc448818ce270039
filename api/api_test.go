package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/delta-render-service/api/handler"
	"github.com/fyerfyer/delta-render-service/api/model"
	"github.com/fyerfyer/delta-render-service/internal/cache"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/internal/repository"
	"github.com/fyerfyer/delta-render-service/internal/services"
	"github.com/fyerfyer/delta-render-service/pkg/storage"
	"github.com/fyerfyer/delta-render-service/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const sampleDelta = `[{"insert":"Title"},{"insert":"\n","attributes":{"header":1}},{"insert":"hello world\n"}]`

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T, opts ...services.DocumentOption) (*gin.Engine, *services.DocumentService) {
	dbName := fmt.Sprintf("file:memdb_api_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(&models.Document{}, &models.RenderRecord{})
	require.NoError(t, err, "Failed to run migrations")

	repo := repository.NewDocumentRepositoryWithDB(db)

	memCache, err := cache.NewCache(cache.Config{Type: "memory"})
	require.NoError(t, err)

	allOpts := append([]services.DocumentOption{services.WithCache(memCache)}, opts...)
	svc := services.NewDocumentService(repo, allOpts...)

	router := SetupRouter(
		handler.NewDocumentHandler(svc),
		handler.NewRenderHandler(svc),
		handler.NewTaskHandler(svc),
	)
	return router, svc
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) (*model.Response, map[string]interface{}) {
	var resp model.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode response body")

	data := make(map[string]interface{})
	if resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &data))
	}
	return &resp, data
}

func createTestDocument(t *testing.T, router *gin.Engine, title string) string {
	w := performRequest(router, http.MethodPost, "/api/documents", gin.H{
		"title":   title,
		"content": json.RawMessage(sampleDelta),
	})
	require.Equal(t, http.StatusCreated, w.Code, "Failed to create document: %s", w.Body.String())

	_, data := decodeResponse(t, w)
	id, ok := data["id"].(string)
	require.True(t, ok, "Response should contain document id")
	return id
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestCreateDocument(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, http.MethodPost, "/api/documents", gin.H{
		"title":   "api test doc",
		"content": json.RawMessage(sampleDelta),
		"tags":    "test,api",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp, data := decodeResponse(t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "api test doc", data["title"])
	assert.Equal(t, "draft", data["status"])
	assert.NotEmpty(t, data["id"])
	assert.NotEmpty(t, data["content_hash"])
}

func TestCreateDocument_InvalidContent(t *testing.T) {
	router, _ := setupTestRouter(t)

	// 对象形式的Delta必须带ops字段
	w := performRequest(router, http.MethodPost, "/api/documents", gin.H{
		"title":   "bad doc",
		"content": json.RawMessage(`{"insert":"not wrapped in ops"}`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 缺少必填字段
	w = performRequest(router, http.MethodPost, "/api/documents", gin.H{
		"title": "no content",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDocument(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "get test")

	w := performRequest(router, http.MethodGet, "/api/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, id, data["id"])
	assert.Equal(t, "get test", data["title"])
	assert.NotNil(t, data["content"])
}

func TestGetDocument_NotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, http.MethodGet, "/api/documents/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	resp, _ := decodeResponse(t, w)
	assert.NotEqual(t, 0, resp.Code)
}

func TestListDocuments(t *testing.T) {
	router, _ := setupTestRouter(t)
	for i := 0; i < 3; i++ {
		createTestDocument(t, router, fmt.Sprintf("list doc %d", i))
	}

	w := performRequest(router, http.MethodGet, "/api/documents?page=1&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(1), data["page"])
	assert.Equal(t, float64(2), data["page_size"])

	docs, ok := data["documents"].([]interface{})
	require.True(t, ok)
	assert.Len(t, docs, 2)
}

func TestUpdateDocument(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "before update")

	w := performRequest(router, http.MethodPut, "/api/documents/"+id, gin.H{
		"title":   "after update",
		"content": json.RawMessage(`[{"insert":"changed\n"}]`),
	})
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, "after update", data["title"])
	assert.Equal(t, "draft", data["status"])
}

func TestUpdateDocument_InvalidContent(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "update invalid")

	w := performRequest(router, http.MethodPut, "/api/documents/"+id, gin.H{
		"content": json.RawMessage(`{"not":"an array"}`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteDocument(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "delete test")

	w := performRequest(router, http.MethodDelete, "/api/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, true, data["success"])

	// 再次删除返回404
	w = performRequest(router, http.MethodDelete, "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDocumentHTML(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "render test")

	w := performRequest(router, http.MethodGet, "/api/documents/"+id+"/html", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, "<h1>Title</h1><p>hello world</p>", data["html"])
	assert.Equal(t, false, data["from_cache"])

	// 第二次请求命中缓存
	w = performRequest(router, http.MethodGet, "/api/documents/"+id+"/html", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data = decodeResponse(t, w)
	assert.Equal(t, true, data["from_cache"])

	// refresh=true跳过缓存
	w = performRequest(router, http.MethodGet, "/api/documents/"+id+"/html?refresh=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data = decodeResponse(t, w)
	assert.Equal(t, false, data["from_cache"])
}

func TestGetDocumentHTML_NotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, http.MethodGet, "/api/documents/missing/html", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenderPreview(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, http.MethodPost, "/api/render", gin.H{
		"content": json.RawMessage(`[{"insert":"bold","attributes":{"bold":true}},{"insert":"\n"}]`),
	})
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, "<p><b>bold</b></p>", data["html"])
}

func TestRenderPreview_InvalidContent(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := performRequest(router, http.MethodPost, "/api/render", gin.H{
		"content": json.RawMessage(`"just a string"`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportMarkdown(t *testing.T) {
	router, _ := setupTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "imported.md")
	require.NoError(t, err)
	_, err = part.Write([]byte("# Imported\n\nSome **bold** text.\n"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("tags", "imported"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/import/markdown", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, "Import failed: %s", w.Body.String())

	_, data := decodeResponse(t, w)
	// 没有提供标题时使用文件名
	assert.Equal(t, "imported", data["title"])
	assert.Equal(t, "imported", data["tags"])

	// 导入后的文档可以正常渲染
	id := data["id"].(string)
	w = performRequest(router, http.MethodGet, "/api/documents/"+id+"/html", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data = decodeResponse(t, w)
	assert.Equal(t, "<h1>Imported</h1><p>Some <b>bold</b> text.</p>", data["html"])
}

func TestImportMarkdown_MissingFile(t *testing.T) {
	router, _ := setupTestRouter(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	require.NoError(t, writer.WriteField("title", "no file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents/import/markdown", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRenderHistory(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "history test")

	// 渲染一次产生记录
	w := performRequest(router, http.MethodGet, "/api/documents/"+id+"/html", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodGet, "/api/documents/"+id+"/history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data := decodeResponse(t, w)
	assert.Equal(t, id, data["document_id"])

	records, ok := data["records"].([]interface{})
	require.True(t, ok)
	require.Len(t, records, 1)

	record := records[0].(map[string]interface{})
	assert.Equal(t, "completed", record["status"])
	assert.Equal(t, false, record["from_cache"])
}

func TestExportDocument_Sync(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	router, _ := setupTestRouter(t, services.WithStorage(store))
	id := createTestDocument(t, router, "export test")

	// 没有配置任务队列时同步导出
	w := performRequest(router, http.MethodPost, "/api/documents/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code, "Export failed: %s", w.Body.String())

	_, data := decodeResponse(t, w)
	assert.Equal(t, id, data["document_id"])
	assert.NotEmpty(t, data["artifact_id"])
	assert.Greater(t, data["size"].(float64), float64(0))
	assert.Equal(t, "application/pdf", data["content_type"])
}

func TestDownloadExport(t *testing.T) {
	router, _ := setupTestRouter(t)
	id := createTestDocument(t, router, "download test")

	w := performRequest(router, http.MethodGet, "/api/documents/"+id+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")), "Response should be a PDF document")
}

func TestRenderDocumentAsync(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewQueue("redis", cfg)
	require.NoError(t, err)
	defer queue.Close()

	router, _ := setupTestRouter(t, services.WithTaskQueue(queue))
	id := createTestDocument(t, router, "async render test")

	w := performRequest(router, http.MethodPost, "/api/documents/"+id+"/render", gin.H{"force": true})
	require.Equal(t, http.StatusAccepted, w.Code, "Async render failed: %s", w.Body.String())

	_, data := decodeResponse(t, w)
	taskID, ok := data["task_id"].(string)
	require.True(t, ok)
	assert.Equal(t, id, data["document_id"])

	// 任务可以查询到
	w = performRequest(router, http.MethodGet, "/api/tasks/"+taskID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, data = decodeResponse(t, w)
	assert.Equal(t, taskID, data["task_id"])
	assert.Equal(t, "render_document", data["type"])
	assert.Equal(t, "pending", data["status"])
}

func TestRenderDocumentAsync_MissingDocument(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewQueue("redis", cfg)
	require.NoError(t, err)
	defer queue.Close()

	router, _ := setupTestRouter(t, services.WithTaskQueue(queue))

	w := performRequest(router, http.MethodPost, "/api/documents/missing/render", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTask_NotFound(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := taskqueue.DefaultConfig()
	cfg.RedisAddr = mr.Addr()
	queue, err := taskqueue.NewQueue("redis", cfg)
	require.NoError(t, err)
	defer queue.Close()

	router, _ := setupTestRouter(t, services.WithTaskQueue(queue))

	w := performRequest(router, http.MethodGet, "/api/tasks/missing-task", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTraceIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Trace-ID", "trace-abc-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "trace-abc-123", w.Header().Get("X-Trace-ID"))
}
