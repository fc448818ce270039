package storage

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage 本地文件系统存储实现
// 产物按年/月/日目录组织，文件名为 <id><ext>
type LocalStorage struct {
	basePath string
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 基础存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	return &LocalStorage{
		basePath: absPath,
	}, nil
}

// Save 保存产物到本地存储
func (s *LocalStorage) Save(reader io.Reader, filename string) (Artifact, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	now := time.Now()
	datePath := filepath.Join(
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
	)

	dirPath := filepath.Join(s.basePath, datePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return Artifact{}, fmt.Errorf("failed to create directory: %v", err)
	}

	filePath := filepath.Join(dirPath, id+ext)
	file, err := os.Create(filePath)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		return Artifact{}, fmt.Errorf("failed to write file: %v", err)
	}

	return Artifact{
		ID:          id,
		Name:        filename,
		Size:        size,
		ContentType: contentTypeOf(filename),
		Key:         filepath.Join(datePath, id+ext),
	}, nil
}

// Open 打开产物内容
func (s *LocalStorage) Open(id string) (io.ReadCloser, error) {
	filePath, err := s.pathOf(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return file, nil
}

// Delete 删除产物
func (s *LocalStorage) Delete(id string) error {
	filePath, err := s.pathOf(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}
	return nil
}

// List 列出所有产物
func (s *LocalStorage) List() ([]Artifact, error) {
	var artifacts []Artifact

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		fileName := d.Name()
		artifacts = append(artifacts, Artifact{
			ID:          strings.TrimSuffix(fileName, filepath.Ext(fileName)),
			Name:        fileName,
			Size:        info.Size(),
			ContentType: contentTypeOf(fileName),
			Key:         relPath,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %v", err)
	}

	return artifacts, nil
}

// Exists 检查产物是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	_, err := s.pathOf(id)
	if err == ErrArtifactNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// pathOf 根据产物ID定位文件路径
func (s *LocalStorage) pathOf(id string) (string, error) {
	var filePath string

	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		fileName := d.Name()
		if strings.TrimSuffix(fileName, filepath.Ext(fileName)) == id {
			filePath = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("error searching for artifact: %v", err)
	}

	if filePath == "" {
		return "", ErrArtifactNotFound
	}
	return filePath, nil
}
