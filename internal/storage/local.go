// Package storage 提供上传文件的落盘存储。
// 核心业务只消费返回的引用URL，不关心文件实际存放在哪里。
package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage 定义文件存储接口
type Storage interface {
	// Save 保存上传文件，返回可对外引用的URL
	Save(file multipart.File, filename string) (string, error)
}

// LocalStorage 本地磁盘存储
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage 创建本地存储，确保目录存在
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Save 保存文件
// 文件名用uuid重新生成，只保留原始扩展名，避免路径穿越和重名覆盖。
func (s *LocalStorage) Save(file multipart.File, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	name := uuid.NewString() + ext

	dst, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	return s.baseURL + "/" + path.Clean(name), nil
}
