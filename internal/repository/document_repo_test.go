package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/fyerfyer/delta-render-service/internal/database"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) (*gorm.DB, func()) {
	// 使用唯一的内存数据库标识符
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	// 运行迁移以创建所需的表
	err = db.AutoMigrate(&models.Document{}, &models.RenderRecord{})
	require.NoError(t, err, "Failed to run migrations")

	// 替换全局DB为测试DB
	originalDB := database.DB
	database.DB = db

	cleanup := func() {
		database.DB = originalDB
	}

	return db, cleanup
}

func newTestDocument(id string) *models.Document {
	return &models.Document{
		ID:      id,
		Title:   "test document",
		Content: []byte(`[{"insert":"hello\n"}]`),
		Status:  models.DocStatusDraft,
		Tags:    "test,delta",
	}
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	doc := newTestDocument("test-doc-1")
	err := repo.Create(doc)
	assert.NoError(t, err, "Document creation should succeed")

	saved, err := repo.GetByID(doc.ID)
	assert.NoError(t, err, "Should be able to retrieve created document")
	assert.Equal(t, doc.ID, saved.ID)
	assert.Equal(t, doc.Title, saved.Title)
	assert.Equal(t, models.DocStatusDraft, saved.Status)
	assert.False(t, saved.CreatedAt.IsZero(), "BeforeCreate hook should set timestamps")

	// 空ID被拒绝
	err = repo.Create(&models.Document{})
	assert.Error(t, err)
}

func TestDocumentRepository_GetByIDNotFound(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()

	_, err := repo.GetByID("missing")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("test-doc-2")))

	err := repo.UpdateStatus("test-doc-2", models.DocStatusRendering, "")
	assert.NoError(t, err)

	doc, err := repo.GetByID("test-doc-2")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusRendering, doc.Status)

	// 失败状态携带错误信息
	err = repo.UpdateStatus("test-doc-2", models.DocStatusFailed, "render exploded")
	assert.NoError(t, err)

	doc, err = repo.GetByID("test-doc-2")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.Equal(t, "render exploded", doc.Error)

	// 不存在的文档
	err = repo.UpdateStatus("missing", models.DocStatusRendered, "")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDocumentRepository_UpdateHTML(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("test-doc-3")))

	err := repo.UpdateHTML("test-doc-3", "<p>hello</p>")
	assert.NoError(t, err)

	doc, err := repo.GetByID("test-doc-3")
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", doc.HTML)
	assert.Equal(t, models.DocStatusRendered, doc.Status)
	assert.NotNil(t, doc.RenderedAt)
	assert.Equal(t, 1, doc.RenderCount)

	// 再渲染一次，计数器递增
	require.NoError(t, repo.UpdateHTML("test-doc-3", "<p>hello again</p>"))
	doc, err = repo.GetByID("test-doc-3")
	require.NoError(t, err)
	assert.Equal(t, 2, doc.RenderCount)
}

func TestDocumentRepository_List(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	for i := 0; i < 5; i++ {
		doc := newTestDocument(fmt.Sprintf("list-doc-%d", i))
		if i%2 == 0 {
			doc.Status = models.DocStatusRendered
		}
		require.NoError(t, repo.Create(doc))
	}

	// 全量分页
	docs, total, err := repo.List(0, 10, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, docs, 5)

	// 分页截断
	docs, total, err = repo.List(0, 2, nil)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, docs, 2)

	// 状态过滤
	docs, total, err = repo.List(0, 10, map[string]interface{}{
		"status": models.DocStatusRendered,
	})
	assert.NoError(t, err)
	assert.EqualValues(t, 3, total)
	for _, doc := range docs {
		assert.Equal(t, models.DocStatusRendered, doc.Status)
	}

	// 标签过滤
	_, total, err = repo.List(0, 10, map[string]interface{}{
		"tags": "delta",
	})
	assert.NoError(t, err)
	assert.EqualValues(t, 5, total)
}

func TestDocumentRepository_Delete(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("del-doc")))
	require.NoError(t, repo.SaveRenderRecord(&models.RenderRecord{
		DocumentID: "del-doc",
		Status:     "completed",
		OutputSize: 12,
	}))

	err := repo.Delete("del-doc")
	assert.NoError(t, err)

	_, err = repo.GetByID("del-doc")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	records, err := repo.GetRenderRecords("del-doc", 0)
	assert.NoError(t, err)
	assert.Empty(t, records, "render records should be deleted with the document")

	// 删除不存在的文档
	err = repo.Delete("del-doc")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestDocumentRepository_RenderRecords(t *testing.T) {
	_, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewDocumentRepository()
	require.NoError(t, repo.Create(newTestDocument("rec-doc")))

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.SaveRenderRecord(&models.RenderRecord{
			DocumentID: "rec-doc",
			Status:     "completed",
			OutputSize: 100 + i,
			Duration:   int64(i),
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := repo.GetRenderRecords("rec-doc", 0)
	assert.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = repo.GetRenderRecords("rec-doc", 2)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	// 按时间倒序，最新的在前
	assert.Equal(t, 102, records[0].OutputSize)

	// 缺少文档ID的记录被拒绝
	err = repo.SaveRenderRecord(&models.RenderRecord{Status: "completed"})
	assert.Error(t, err)
}
