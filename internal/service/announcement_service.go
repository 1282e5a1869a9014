package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
)

var ErrAnnouncementNotFound = pkgerrors.New(pkgerrors.ErrNotFound, "公告不存在")

// AnnouncementService 系统公告业务接口
type AnnouncementService interface {
	Create(ctx context.Context, req *dto.CreateAnnouncementRequest, authorID string) (*model.Announcement, error)
	List(ctx context.Context, includeInactive bool) ([]model.Announcement, error)
	Deactivate(ctx context.Context, id string) error
}

type announcementService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewAnnouncementService 创建 AnnouncementService 实例
func NewAnnouncementService(repo *repository.Repository, logger *zap.Logger) AnnouncementService {
	return &announcementService{repo: repo, logger: logger}
}

func (s *announcementService) Create(ctx context.Context, req *dto.CreateAnnouncementRequest, authorID string) (*model.Announcement, error) {
	a := &model.Announcement{
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		CreatedBy: authorID,
		IsActive:  true,
	}
	if err := s.repo.Announcement.Create(ctx, a); err != nil {
		s.logger.Error("发布公告失败", zap.Error(err))
		return nil, err
	}
	return a, nil
}

func (s *announcementService) List(ctx context.Context, includeInactive bool) ([]model.Announcement, error) {
	list, err := s.repo.Announcement.List(ctx, includeInactive)
	if err != nil {
		s.logger.Error("查询公告失败", zap.Error(err))
		return nil, err
	}
	return list, nil
}

func (s *announcementService) Deactivate(ctx context.Context, id string) error {
	a, err := s.repo.Announcement.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAnnouncementNotFound
		}
		s.logger.Error("查询公告失败", zap.String("announcement_id", id), zap.Error(err))
		return err
	}
	if !a.IsActive {
		return nil
	}

	a.IsActive = false
	if err := s.repo.Announcement.Update(ctx, a); err != nil {
		s.logger.Error("下线公告失败", zap.String("announcement_id", id), zap.Error(err))
		return err
	}
	return nil
}
