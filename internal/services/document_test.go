package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fyerfyer/delta-render-service/internal/cache"
	"github.com/fyerfyer/delta-render-service/internal/models"
	"github.com/fyerfyer/delta-render-service/internal/repository"
	"github.com/fyerfyer/delta-render-service/pkg/storage"
	"github.com/fyerfyer/delta-render-service/pkg/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupServiceTest(t *testing.T, opts ...DocumentOption) (*DocumentService, repository.DocumentRepository) {
	dbName := fmt.Sprintf("file:memdb_svc_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(&models.Document{}, &models.RenderRecord{})
	require.NoError(t, err, "Failed to run migrations")

	repo := repository.NewDocumentRepositoryWithDB(db)

	memCache, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	allOpts := append([]DocumentOption{WithCache(memCache)}, opts...)
	return NewDocumentService(repo, allOpts...), repo
}

const sampleDelta = `[{"insert":"Title"},{"insert":"\n","attributes":{"header":1}},{"insert":"hello world\n"}]`

func TestCreateDocument(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "my doc", []byte(sampleDelta), "test")
	require.NoError(t, err, "Document creation should succeed")
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "my doc", doc.Title)
	assert.Equal(t, models.DocStatusDraft, doc.Status)
	assert.NotEmpty(t, doc.ContentHash)

	// 空标题使用默认值
	doc, err = svc.CreateDocument(ctx, "", []byte(`[{"insert":"x\n"}]`), "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Document", doc.Title)
}

func TestCreateDocumentInvalidContent(t *testing.T) {
	svc, _ := setupServiceTest(t)

	_, err := svc.CreateDocument(context.Background(), "bad", []byte(`{"insert":"x"}`), "")
	assert.ErrorIs(t, err, models.ErrInvalidDelta)

	_, err = svc.CreateDocument(context.Background(), "bad", []byte(`not json`), "")
	assert.ErrorIs(t, err, models.ErrInvalidDelta)
}

func TestRenderDocument(t *testing.T) {
	svc, repo := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "render me", []byte(sampleDelta), "")
	require.NoError(t, err)

	html, fromCache, err := svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err, "Render should succeed")
	assert.False(t, fromCache)
	assert.Equal(t, "<h1>Title</h1><p>hello world</p>", html)

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusRendered, saved.Status)
	assert.Equal(t, html, saved.HTML)
	assert.Equal(t, 1, saved.RenderCount)

	// 第二次渲染命中缓存
	html2, fromCache, err := svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.True(t, fromCache)
	assert.Equal(t, html, html2)

	// 强制渲染跳过缓存
	_, fromCache, err = svc.RenderDocument(ctx, doc.ID, true)
	require.NoError(t, err)
	assert.False(t, fromCache)

	saved, err = repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.RenderCount)
}

func TestRenderDocumentInvalidContent(t *testing.T) {
	svc, repo := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "corrupt", []byte(sampleDelta), "")
	require.NoError(t, err)

	// 绕过服务层校验直接写入坏内容
	doc.Content = []byte(`{"no_ops":true}`)
	require.NoError(t, repo.Update(doc))

	_, _, err = svc.RenderDocument(ctx, doc.ID, false)
	assert.ErrorIs(t, err, models.ErrInvalidDelta)

	saved, err := repo.GetByID(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, saved.Status)
	assert.NotEmpty(t, saved.Error)
}

func TestRenderDocumentNotFound(t *testing.T) {
	svc, _ := setupServiceTest(t)

	_, _, err := svc.RenderDocument(context.Background(), "missing", false)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestUpdateContent(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "original", []byte(sampleDelta), "")
	require.NoError(t, err)

	_, _, err = svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)

	// 内容更新后回到草稿状态
	updated, err := svc.UpdateContent(ctx, doc.ID, "renamed", []byte(`[{"insert":"changed\n"}]`), "new-tag")
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "new-tag", updated.Tags)
	assert.Equal(t, models.DocStatusDraft, updated.Status)
	assert.NotEqual(t, doc.ContentHash, updated.ContentHash)

	// 新内容渲染出新结果，缓存不会串key
	html, fromCache, err := svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.False(t, fromCache, "Updated content must not hit the old cache entry")
	assert.Equal(t, "<p>changed</p>", html)
}

func TestUpdateContentInvalid(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "doc", []byte(sampleDelta), "")
	require.NoError(t, err)

	_, err = svc.UpdateContent(ctx, doc.ID, "", []byte(`broken`), "")
	assert.ErrorIs(t, err, models.ErrInvalidDelta)
}

func TestDeleteDocument(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "to delete", []byte(sampleDelta), "")
	require.NoError(t, err)

	_, _, err = svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDocument(ctx, doc.ID))

	_, err = svc.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	err = svc.DeleteDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestRenderPreview(t *testing.T) {
	svc, _ := setupServiceTest(t)

	html, err := svc.RenderPreview(context.Background(), []byte(`[{"insert":"quick preview\n"}]`))
	require.NoError(t, err)
	assert.Equal(t, "<p>quick preview</p>", html)

	_, err = svc.RenderPreview(context.Background(), []byte(`oops`))
	assert.ErrorIs(t, err, models.ErrInvalidDelta)
}

func TestImportMarkdown(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	source := []byte("# Imported\n\nSome **bold** text.\n")
	doc, err := svc.ImportMarkdown(ctx, "imported doc", source, "markdown")
	require.NoError(t, err, "Markdown import should succeed")
	assert.Equal(t, "imported doc", doc.Title)

	html, _, err := svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Imported</h1><p>Some <b>bold</b> text.</p>", html)
}

func TestExportDocumentTo(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "export me", []byte(sampleDelta), "")
	require.NoError(t, err)

	var buf bytes.Buffer
	err = svc.ExportDocumentTo(ctx, doc.ID, &buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestExportDocumentWithStorage(t *testing.T) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	svc, _ := setupServiceTest(t, WithStorage(store))
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "stored export", []byte(sampleDelta), "")
	require.NoError(t, err)

	artifact, err := svc.ExportDocument(ctx, doc.ID, "")
	require.NoError(t, err, "Export should succeed")
	assert.NotEmpty(t, artifact.ID)
	assert.Equal(t, "application/pdf", artifact.ContentType)
	assert.Greater(t, artifact.Size, int64(0))

	exists, err := store.Exists(artifact.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// HTML导出保存渲染结果本身
	htmlArtifact, err := svc.ExportDocument(ctx, doc.ID, "html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", htmlArtifact.ContentType)

	reader, err := store.Open(htmlArtifact.ID)
	require.NoError(t, err)
	defer reader.Close()
	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "<h1>Title</h1><p>hello world</p>", string(content))

	// 不支持的格式
	_, err = svc.ExportDocument(ctx, doc.ID, "docx")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestExportDocumentWithoutStorage(t *testing.T) {
	svc, _ := setupServiceTest(t)

	doc, err := svc.CreateDocument(context.Background(), "doc", []byte(sampleDelta), "")
	require.NoError(t, err)

	_, err = svc.ExportDocument(context.Background(), doc.ID, "pdf")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no storage configured")
}

func TestGetRenderHistory(t *testing.T) {
	svc, _ := setupServiceTest(t)
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "history", []byte(sampleDelta), "")
	require.NoError(t, err)

	_, _, err = svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)
	_, _, err = svc.RenderDocument(ctx, doc.ID, false)
	require.NoError(t, err)

	records, err := svc.GetRenderHistory(ctx, doc.ID, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// 一条缓存命中记录和一条真实渲染记录
	var cached, rendered int
	for _, record := range records {
		if record.FromCache {
			cached++
		} else {
			rendered++
		}
		assert.Equal(t, "completed", record.Status)
	}
	assert.Equal(t, 1, cached)
	assert.Equal(t, 1, rendered)

	_, err = svc.GetRenderHistory(ctx, "missing", 10)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestRenderDocumentAsync(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	queue, err := taskqueue.NewRedisQueue(&taskqueue.Config{
		RedisAddr:   mr.Addr(),
		Concurrency: 1,
		RetryLimit:  1,
		RetryDelay:  time.Second,
	})
	require.NoError(t, err)
	defer queue.Close()

	svc, _ := setupServiceTest(t, WithTaskQueue(queue))
	ctx := context.Background()

	doc, err := svc.CreateDocument(ctx, "async doc", []byte(sampleDelta), "")
	require.NoError(t, err)

	taskID, err := svc.RenderDocumentAsync(ctx, doc.ID, false)
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	info, err := svc.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, taskqueue.TaskRenderDocument, info.Type)
	assert.Equal(t, doc.ID, info.DocumentID)
	assert.Equal(t, taskqueue.StatusPending, info.Status)

	// 不存在的文档不入队
	_, err = svc.RenderDocumentAsync(ctx, "missing", false)
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
}

func TestRenderDocumentAsyncWithoutQueue(t *testing.T) {
	svc, _ := setupServiceTest(t)

	_, err := svc.RenderDocumentAsync(context.Background(), "any", false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no task queue configured")
}
