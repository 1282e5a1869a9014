package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/storage"
)

// ── 上传模块业务错误 ──

var (
	ErrFileTooLarge    = pkgerrors.New(pkgerrors.ErrBadRequest, "文件超过大小限制")
	ErrFileTypeDenied  = pkgerrors.New(pkgerrors.ErrBadRequest, "不支持的文件类型")
	ErrFileEmpty       = pkgerrors.New(pkgerrors.ErrBadRequest, "文件为空")
)

// 允许上传的扩展名
var allowedExtensions = map[string]struct{}{
	".pdf": {}, ".doc": {}, ".docx": {}, ".ppt": {}, ".pptx": {}, ".xls": {}, ".xlsx": {},
	".txt": {}, ".md": {}, ".sql": {}, ".csv": {}, ".zip": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	".mp4": {}, ".mp3": {},
}

// UploadInput 一次上传的文件元数据
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Folder      string
	Body        io.Reader
}

// UploadService 文件上传业务接口
type UploadService interface {
	Upload(ctx context.Context, ownerID string, in UploadInput) (*model.Resource, error)
	ListMine(ctx context.Context, ownerID string, page repository.Page) ([]model.Resource, int64, error)
}

type uploadService struct {
	repo     *repository.Repository
	store    storage.Storage
	maxBytes int64
	logger   *zap.Logger
}

// NewUploadService 创建 UploadService 实例；maxBytes<=0 表示不限制
func NewUploadService(repo *repository.Repository, store storage.Storage, maxBytes int64, logger *zap.Logger) UploadService {
	return &uploadService{repo: repo, store: store, maxBytes: maxBytes, logger: logger}
}

func (s *uploadService) Upload(ctx context.Context, ownerID string, in UploadInput) (*model.Resource, error) {
	if in.Size == 0 {
		return nil, ErrFileEmpty
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	name := filepath.Base(strings.ReplaceAll(in.Filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, ErrFileTypeDenied
	}

	folder := in.Folder
	if folder == "" {
		folder = "files"
	}
	key := path.Join(folder, uuid.NewString()+ext)

	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if t := mime.TypeByExtension(ext); t != "" {
			contentType = t
		}
	}

	body := in.Body
	if s.maxBytes > 0 {
		// 声明大小不可信，按实际读取量再限制一次
		body = io.LimitReader(in.Body, s.maxBytes+1)
	}
	counter := &countingReader{r: body}

	url, err := s.store.Put(ctx, key, counter)
	if err != nil {
		s.logger.Error("保存文件失败", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("保存文件失败: %w", err)
	}
	if s.maxBytes > 0 && counter.n > s.maxBytes {
		s.discard(ctx, key)
		return nil, ErrFileTooLarge
	}

	res := &model.Resource{
		Filename:   name,
		StorageKey: key,
		URL:        url,
		FileType:   contentType,
		SizeBytes:  counter.n,
		CreatedBy:  ownerID,
	}
	if err := s.repo.Resource.Create(ctx, res); err != nil {
		s.logger.Error("记录上传文件失败", zap.String("key", key), zap.Error(err))
		s.discard(ctx, key)
		return nil, err
	}

	s.logger.Info("文件已上传",
		zap.String("resource_id", res.ResourceID),
		zap.String("owner_id", ownerID),
		zap.Int64("size", res.SizeBytes),
	)
	return res, nil
}

func (s *uploadService) ListMine(ctx context.Context, ownerID string, page repository.Page) ([]model.Resource, int64, error) {
	list, total, err := s.repo.Resource.ListByOwner(ctx, ownerID, page)
	if err != nil {
		s.logger.Error("查询上传记录失败", zap.String("owner_id", ownerID), zap.Error(err))
		return nil, 0, err
	}
	return list, total, nil
}

func (s *uploadService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("清理文件失败", zap.String("key", key), zap.Error(err))
	}
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
