package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	pkgerrors "github.com/Mowalen/ustc-database-learning-platform/pkg/errors"
)

// ── 用户模块业务错误 ──

var (
	ErrInvalidRole        = pkgerrors.New(pkgerrors.ErrBadRequest, "角色无效")
	ErrUserSelfDeactivate = pkgerrors.New(pkgerrors.ErrBadRequest, "不能停用自己")
	ErrUserSelfRoleChange = pkgerrors.New(pkgerrors.ErrBadRequest, "不能修改自己的角色")
)

// UserService 用户管理业务接口
type UserService interface {
	Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error)
	Get(ctx context.Context, id string) (*dto.UserResponse, error)
	List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error)
	Update(ctx context.Context, id string, req *dto.UpdateUserRequest, callerID string) (*dto.UserResponse, error)
	Deactivate(ctx context.Context, id string, callerID string) error
	UpdateProfile(ctx context.Context, id string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	ParseImportFile(reader io.Reader) ([]ImportUserRow, error)
	ImportUsers(ctx context.Context, rows []ImportUserRow) (*dto.ImportUserResponse, error)
}

// ImportUserRow Excel 导入解析后的单行数据
type ImportUserRow struct {
	Row      int
	Username string
	FullName string
	Email    string
	Password string
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService 创建 UserService 实例
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *userService) Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserResponse, error) {
	role := model.Role(req.Role)
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	user, err := createUser(ctx, s.repo, s.logger, newUserInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.FullName,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     role,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("创建用户", zap.String("user_id", user.UserID), zap.String("role", role.String()))
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── Get / List ──────────────────────

func (s *userService) Get(ctx context.Context, id string) (*dto.UserResponse, error) {
	user, err := getUser(ctx, s.repo, id, s.logger)
	if err != nil {
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *userService) List(ctx context.Context, req *dto.UserListRequest) ([]dto.UserResponse, int64, error) {
	filter := repository.UserFilter{
		IsActive: req.IsActive,
		Keyword:  strings.TrimSpace(req.Keyword),
	}
	if req.Role != 0 {
		role := model.Role(req.Role)
		filter.Role = &role
	}

	users, total, err := s.repo.User.List(ctx, filter, repository.Page{Offset: req.GetOffset(), Limit: req.GetPageSize()})
	if err != nil {
		s.logger.Error("列出用户失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		result = append(result, dto.NewUserResponse(&users[i]))
	}
	return result, total, nil
}

// ────────────────────── Update ──────────────────────

func (s *userService) Update(ctx context.Context, id string, req *dto.UpdateUserRequest, callerID string) (*dto.UserResponse, error) {
	user, err := getUser(ctx, s.repo, id, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.applyProfile(ctx, user, req.FullName, req.Email, req.Phone, req.AvatarURL); err != nil {
		return nil, err
	}

	if req.Role != nil {
		role := model.Role(*req.Role)
		if !role.Valid() {
			return nil, ErrInvalidRole
		}
		if id == callerID && role != user.Role {
			return nil, ErrUserSelfRoleChange
		}
		user.Role = role
	}
	if req.IsActive != nil {
		if id == callerID && !*req.IsActive {
			return nil, ErrUserSelfDeactivate
		}
		user.IsActive = *req.IsActive
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			s.logger.Error("密码哈希失败", zap.Error(err))
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ────────────────────── Deactivate ──────────────────────

// Deactivate 软删除：仅置 is_active=false，历史选课与成绩保留
func (s *userService) Deactivate(ctx context.Context, id string, callerID string) error {
	if id == callerID {
		return ErrUserSelfDeactivate
	}

	user, err := getUser(ctx, s.repo, id, s.logger)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	user.IsActive = false
	if err := s.save(ctx, user); err != nil {
		return err
	}
	s.logger.Info("用户已停用", zap.String("user_id", id))
	return nil
}

// ────────────────────── UpdateProfile ──────────────────────

func (s *userService) UpdateProfile(ctx context.Context, id string, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	user, err := getUser(ctx, s.repo, id, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.applyProfile(ctx, user, req.FullName, req.Email, req.Phone, req.AvatarURL); err != nil {
		return nil, err
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *userService) applyProfile(ctx context.Context, user *model.User, fullName, email, phone, avatar *string) error {
	if fullName != nil {
		user.FullName = strings.TrimSpace(*fullName)
	}
	if email != nil {
		e := strings.TrimSpace(*email)
		existing, err := s.repo.User.GetByEmail(ctx, e)
		if err == nil && existing.UserID != user.UserID {
			return ErrEmailExists
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		user.Email = &e
	}
	if phone != nil {
		user.Phone = phone
	}
	if avatar != nil {
		user.AvatarURL = avatar
	}
	return nil
}

func (s *userService) save(ctx context.Context, user *model.User) error {
	if err := s.repo.User.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrEmailExists
		}
		s.logger.Error("更新用户失败", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── ParseImportFile ──────────────────────

const maxImportRows = 1000

var (
	ErrImportNoData      = pkgerrors.New(pkgerrors.ErrBadRequest, "Excel 文件无数据行（第一行为表头）")
	ErrImportTooManyRows = pkgerrors.New(pkgerrors.ErrBadRequest, fmt.Sprintf("数据行数超过上限 %d 行", maxImportRows))
	ErrImportBadHeader   = pkgerrors.New(pkgerrors.ErrBadRequest, "Excel 表头缺少必要列（用户名/姓名）")
	ErrImportBadFile     = pkgerrors.New(pkgerrors.ErrBadRequest, "无法解析 Excel 文件")
)

// ParseImportFile 解析导入 Excel 文件，返回解析后的行数据
func (s *userService) ParseImportFile(reader io.Reader) ([]ImportUserRow, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		s.logger.Warn("解析导入文件失败", zap.Error(err))
		return nil, ErrImportBadFile
	}
	defer f.Close()

	excelRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("读取工作表失败: %w", err)
	}
	if len(excelRows) < 2 {
		return nil, ErrImportNoData
	}

	// 表头列序不固定
	colIndex := parseHeaderIndex(excelRows[0])
	if colIndex["username"] < 0 || colIndex["full_name"] < 0 {
		return nil, ErrImportBadHeader
	}

	cell := func(row []string, key string) string {
		idx := colIndex[key]
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var rows []ImportUserRow
	for i := 1; i < len(excelRows); i++ {
		row := excelRows[i]
		item := ImportUserRow{
			Row:      i + 1,
			Username: cell(row, "username"),
			FullName: cell(row, "full_name"),
			Email:    cell(row, "email"),
			Password: cell(row, "password"),
		}
		if item.Username == "" && item.FullName == "" && item.Email == "" && item.Password == "" {
			continue
		}
		rows = append(rows, item)
	}

	if len(rows) == 0 {
		return nil, ErrImportNoData
	}
	if len(rows) > maxImportRows {
		return nil, ErrImportTooManyRows
	}
	return rows, nil
}

// parseHeaderIndex 解析表头，返回列名 -> 列索引
func parseHeaderIndex(header []string) map[string]int {
	idx := map[string]int{
		"username":  -1,
		"full_name": -1,
		"email":     -1,
		"password":  -1,
	}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "用户名", "学号", "username":
			idx["username"] = i
		case "姓名", "full_name", "name":
			idx["full_name"] = i
		case "邮箱", "email":
			idx["email"] = i
		case "密码", "password":
			idx["password"] = i
		}
	}
	return idx
}

// ────────────────────── ImportUsers ──────────────────────

// ImportUsers 批量创建学生账号：逐行预校验，合格行一次写入，写入失败则全部不生效
func (s *userService) ImportUsers(ctx context.Context, rows []ImportUserRow) (*dto.ImportUserResponse, error) {
	resp := &dto.ImportUserResponse{Total: len(rows)}
	fail := func(row int, reason string) {
		resp.Failed++
		resp.Errors = append(resp.Errors, dto.ImportUserError{Row: row, Reason: reason})
	}

	seenUsername := make(map[string]int, len(rows))
	seenEmail := make(map[string]int, len(rows))
	users := make([]model.User, 0, len(rows))

	for _, row := range rows {
		if row.Username == "" || row.FullName == "" {
			fail(row.Row, "用户名或姓名为空")
			continue
		}
		if len(row.Username) < 3 || len(row.Username) > 50 {
			fail(row.Row, "用户名长度须为 3-50")
			continue
		}
		if first, ok := seenUsername[row.Username]; ok {
			fail(row.Row, fmt.Sprintf("用户名与第 %d 行重复", first))
			continue
		}
		if row.Email != "" {
			if first, ok := seenEmail[row.Email]; ok {
				fail(row.Row, fmt.Sprintf("邮箱与第 %d 行重复", first))
				continue
			}
		}

		if _, err := s.repo.User.GetByUsername(ctx, row.Username); err == nil {
			fail(row.Row, fmt.Sprintf("用户名已存在: %s", row.Username))
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if row.Email != "" {
			if _, err := s.repo.User.GetByEmail(ctx, row.Email); err == nil {
				fail(row.Row, fmt.Sprintf("邮箱已存在: %s", row.Email))
				continue
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}

		password := row.Password
		if password == "" {
			password = defaultImportPassword(row.Username)
		}
		if len(password) < 8 {
			fail(row.Row, "密码长度不能少于 8 位")
			continue
		}
		hash, err := hashPassword(password)
		if err != nil {
			fail(row.Row, "密码哈希失败")
			continue
		}

		u := model.User{
			Username:     row.Username,
			PasswordHash: hash,
			FullName:     row.FullName,
			Role:         model.RoleStudent,
			IsActive:     true,
		}
		if row.Email != "" {
			email := row.Email
			u.Email = &email
			seenEmail[email] = row.Row
		}
		seenUsername[row.Username] = row.Row
		users = append(users, u)
	}

	if err := s.repo.User.BatchCreate(ctx, users); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.ErrConflict, "导入期间用户名或邮箱被占用，已回滚全部导入")
		}
		s.logger.Error("批量导入用户失败", zap.Int("rows", len(users)), zap.Error(err))
		return nil, err
	}
	resp.Success = len(users)

	s.logger.Info("批量导入用户",
		zap.Int("total", resp.Total),
		zap.Int("success", resp.Success),
		zap.Int("failed", resp.Failed),
	)
	return resp, nil
}

// defaultImportPassword 未提供密码时的初始密码："Ustc@" + 用户名后 6 位
func defaultImportPassword(username string) string {
	suffix := username
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return "Ustc@" + suffix
}

// ── 跨服务共用的用户辅助 ──

type newUserInput struct {
	Username string
	Password string
	FullName string
	Email    *string
	Phone    *string
	Role     model.Role
}

// createUser 校验用户名/邮箱唯一后创建用户；唯一索引兜底并发冲突
func createUser(ctx context.Context, repo *repository.Repository, logger *zap.Logger, in newUserInput) (*model.User, error) {
	username := strings.TrimSpace(in.Username)

	if _, err := repo.User.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("查询用户名失败", zap.Error(err))
		return nil, err
	}

	var email *string
	if in.Email != nil && strings.TrimSpace(*in.Email) != "" {
		e := strings.TrimSpace(*in.Email)
		if _, err := repo.User.GetByEmail(ctx, e); err == nil {
			return nil, ErrEmailExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("查询邮箱失败", zap.Error(err))
			return nil, err
		}
		email = &e
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Email:        email,
		Phone:        in.Phone,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameExists
		}
		logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func getUser(ctx context.Context, repo *repository.Repository, id string, logger *zap.Logger) (*model.User, error) {
	user, err := repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		logger.Error("查询用户失败", zap.String("user_id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
