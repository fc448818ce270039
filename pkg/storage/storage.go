package storage

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
)

// ErrArtifactNotFound 指定ID的产物不存在
var ErrArtifactNotFound = errors.New("artifact not found")

// Artifact 存储产物的元数据
// 产物包括上传的Markdown源文件和导出的PDF等
type Artifact struct {
	ID          string // 产物唯一标识符
	Name        string // 原始文件名
	Size        int64  // 大小(字节)
	ContentType string // MIME类型
	Key         string // 内部存储键(实现相关)
}

// Storage 产物存储接口
// 可以有不同实现(本地文件系统、MinIO等)
type Storage interface {
	// Save 保存产物并返回元数据
	Save(reader io.Reader, filename string) (Artifact, error)

	// Open 打开产物内容
	Open(id string) (io.ReadCloser, error)

	// Delete 删除产物
	Delete(id string) error

	// List 列出所有产物
	List() ([]Artifact, error)

	// Exists 检查产物是否存在
	Exists(id string) (bool, error)
}

// contentTypeOf 根据文件扩展名判断MIME类型
func contentTypeOf(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
