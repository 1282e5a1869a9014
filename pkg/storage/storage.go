// Package storage 保存用户上传的文件，支持本地磁盘与 Backblaze B2。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kurin/blazer/b2"

	"github.com/Mowalen/ustc-database-learning-platform/config"
)

// ErrInvalidKey 对象键为空或试图越出存储根目录
var ErrInvalidKey = errors.New("非法的存储键")

// Storage 文件存储接口
type Storage interface {
	// Put 写入对象并返回可访问的 URL
	Put(ctx context.Context, key string, r io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
}

// New 根据配置创建存储实现
func New(ctx context.Context, cfg *config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "b2":
		return NewB2(ctx, cfg.B2Account, cfg.B2Key, cfg.B2Bucket)
	default:
		return NewLocal(cfg.LocalDir, cfg.PublicPath)
	}
}

// cleanKey 规范化对象键，拒绝绝对路径与 ".."
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." {
		return "", ErrInvalidKey
	}
	if k != strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/") {
		return "", ErrInvalidKey
	}
	return k, nil
}

// ────────────────────── 本地磁盘 ──────────────────────

// Local 本地磁盘存储，文件通过 publicPath 静态路由对外提供
type Local struct {
	dir        string
	publicPath string
}

// NewLocal 创建本地存储，目录不存在时自动创建
func NewLocal(dir, publicPath string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建上传目录失败: %w", err)
	}
	return &Local{dir: dir, publicPath: strings.TrimRight(publicPath, "/")}, nil
}

// Dir 返回本地根目录
func (s *Local) Dir() string { return s.dir }

func (s *Local) Put(_ context.Context, key string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	full := filepath.Join(s.dir, filepath.FromSlash(k))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("写入文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("关闭文件失败: %w", err)
	}

	return s.publicPath + "/" + k, nil
}

func (s *Local) Delete(_ context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(k))); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ────────────────────── Backblaze B2 ──────────────────────

// B2 Backblaze B2 对象存储
type B2 struct {
	client *b2.Client
	bucket *b2.Bucket
}

// NewB2 连接 B2 并打开指定 bucket
func NewB2(ctx context.Context, account, key, bucketName string) (*B2, error) {
	client, err := b2.NewClient(ctx, account, key)
	if err != nil {
		return nil, fmt.Errorf("创建 B2 客户端失败: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("获取 B2 bucket 失败: %w", err)
	}

	return &B2{client: client, bucket: bucket}, nil
}

func (s *B2) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	w := s.bucket.Object(k).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("写入 B2 对象失败: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("提交 B2 对象失败: %w", err)
	}

	return s.bucket.Object(k).URL(), nil
}

func (s *B2) Delete(ctx context.Context, key string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	return s.bucket.Object(k).Delete(ctx)
}
