package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

func setupUserService() (UserService, *memDB) {
	repo, db := newMockRepository()
	return NewUserService(repo, zap.NewNop()), db
}

// ── Create / Get ──

func TestUserService_Create(t *testing.T) {
	svc, _ := setupUserService()
	email := "t1@ustc.edu.cn"

	resp, err := svc.Create(context.Background(), &dto.CreateUserRequest{
		Username: "teacher1",
		Password: "password123",
		FullName: "李老师",
		Email:    &email,
		Role:     int16(model.RoleTeacher),
	})
	if err != nil {
		t.Fatalf("Create 应成功: %v", err)
	}
	if resp.Role != "teacher" || !resp.IsActive {
		t.Errorf("期望 teacher/启用，实际=%s/%v", resp.Role, resp.IsActive)
	}

	got, err := svc.Get(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("Get 应成功: %v", err)
	}
	if got.FullName != "李老师" {
		t.Errorf("期望 FullName=李老师，实际=%s", got.FullName)
	}
}

func TestUserService_Create_Conflicts(t *testing.T) {
	svc, db := setupUserService()
	existing := seedUser(db, "student1", model.RoleStudent)
	email := "dup@ustc.edu.cn"
	existing.Email = &email

	_, err := svc.Create(context.Background(), &dto.CreateUserRequest{Username: "student1", Password: "password123", Role: 1})
	if !errors.Is(err, ErrUsernameExists) {
		t.Errorf("期望 ErrUsernameExists，实际: %v", err)
	}

	_, err = svc.Create(context.Background(), &dto.CreateUserRequest{Username: "student2", Password: "password123", Email: &email, Role: 1})
	if !errors.Is(err, ErrEmailExists) {
		t.Errorf("期望 ErrEmailExists，实际: %v", err)
	}

	_, err = svc.Create(context.Background(), &dto.CreateUserRequest{Username: "student3", Password: "password123", Role: 9})
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("期望 ErrInvalidRole，实际: %v", err)
	}
}

func TestUserService_Get_NotFound(t *testing.T) {
	svc, _ := setupUserService()
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── List ──

func TestUserService_List_Filters(t *testing.T) {
	svc, db := setupUserService()
	seedUser(db, "student1", model.RoleStudent)
	seedUser(db, "student2", model.RoleStudent).IsActive = false
	seedUser(db, "teacher1", model.RoleTeacher)

	list, total, err := svc.List(context.Background(), &dto.UserListRequest{Role: int16(model.RoleStudent)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	active := true
	list, total, err = svc.List(context.Background(), &dto.UserListRequest{Role: int16(model.RoleStudent), IsActive: &active})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "student1", list[0].Username)

	list, _, err = svc.List(context.Background(), &dto.UserListRequest{Keyword: "teach"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "teacher", list[0].Role)
}

// ── Update / Deactivate ──

func TestUserService_Update(t *testing.T) {
	svc, db := setupUserService()
	admin := seedUser(db, "admin", model.RoleAdmin)
	target := seedUser(db, "student1", model.RoleStudent)
	ctx := context.Background()

	role := int16(model.RoleTeacher)
	name := "王五"
	resp, err := svc.Update(ctx, target.UserID, &dto.UpdateUserRequest{Role: &role, FullName: &name}, admin.UserID)
	require.NoError(t, err)
	assert.Equal(t, "teacher", resp.Role)
	assert.Equal(t, "王五", resp.FullName)

	// 管理员不能修改自己的角色或停用自己
	selfRole := int16(model.RoleStudent)
	_, err = svc.Update(ctx, admin.UserID, &dto.UpdateUserRequest{Role: &selfRole}, admin.UserID)
	assert.ErrorIs(t, err, ErrUserSelfRoleChange)

	inactive := false
	_, err = svc.Update(ctx, admin.UserID, &dto.UpdateUserRequest{IsActive: &inactive}, admin.UserID)
	assert.ErrorIs(t, err, ErrUserSelfDeactivate)
}

func TestUserService_Deactivate(t *testing.T) {
	svc, db := setupUserService()
	admin := seedUser(db, "admin", model.RoleAdmin)
	target := seedUser(db, "student1", model.RoleStudent)
	ctx := context.Background()

	require.NoError(t, svc.Deactivate(ctx, target.UserID, admin.UserID))
	assert.False(t, db.users[target.UserID].IsActive)

	// 重复停用幂等
	assert.NoError(t, svc.Deactivate(ctx, target.UserID, admin.UserID))
	assert.ErrorIs(t, svc.Deactivate(ctx, admin.UserID, admin.UserID), ErrUserSelfDeactivate)
	assert.ErrorIs(t, svc.Deactivate(ctx, "missing", admin.UserID), ErrUserNotFound)
}

func TestUserService_UpdateProfile_EmailTaken(t *testing.T) {
	svc, db := setupUserService()
	a := seedUser(db, "student1", model.RoleStudent)
	b := seedUser(db, "student2", model.RoleStudent)
	taken := "b@ustc.edu.cn"
	b.Email = &taken

	_, err := svc.UpdateProfile(context.Background(), a.UserID, &dto.UpdateProfileRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailExists)

	mine := "a@ustc.edu.cn"
	resp, err := svc.UpdateProfile(context.Background(), a.UserID, &dto.UpdateProfileRequest{Email: &mine})
	require.NoError(t, err)
	require.NotNil(t, resp.Email)
	assert.Equal(t, mine, *resp.Email)
}

// ── 批量导入 ──

func buildImportXLSX(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, f.SetCellValue("Sheet1", cell, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestUserService_ParseImportFile(t *testing.T) {
	svc, _ := setupUserService()
	buf := buildImportXLSX(t, [][]string{
		{"邮箱", "学号", "姓名"},
		{"a@ustc.edu.cn", "PB21000001", "张三"},
		{"", "", ""},
		{"", "PB21000002", "李四"},
	})

	rows, err := svc.ParseImportFile(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2, "空行应跳过")
	assert.Equal(t, ImportUserRow{Row: 2, Username: "PB21000001", FullName: "张三", Email: "a@ustc.edu.cn"}, rows[0])
	assert.Equal(t, 4, rows[1].Row)
}

func TestUserService_ParseImportFile_BadInput(t *testing.T) {
	svc, _ := setupUserService()

	_, err := svc.ParseImportFile(bytes.NewReader([]byte("not an xlsx")))
	assert.ErrorIs(t, err, ErrImportBadFile)

	_, err = svc.ParseImportFile(buildImportXLSX(t, [][]string{{"邮箱", "电话"}, {"a@b.c", "1"}}))
	assert.ErrorIs(t, err, ErrImportBadHeader)

	_, err = svc.ParseImportFile(buildImportXLSX(t, [][]string{{"学号", "姓名"}}))
	assert.ErrorIs(t, err, ErrImportNoData)
}

func TestUserService_ImportUsers(t *testing.T) {
	svc, db := setupUserService()
	seedUser(db, "PB21000009", model.RoleStudent)

	resp, err := svc.ImportUsers(context.Background(), []ImportUserRow{
		{Row: 2, Username: "PB21000001", FullName: "张三"},
		{Row: 3, Username: "PB21000001", FullName: "张三重复"},
		{Row: 4, Username: "PB21000009", FullName: "已存在"},
		{Row: 5, Username: "", FullName: "缺用户名"},
		{Row: 6, Username: "PB21000002", FullName: "李四", Password: "short"},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Total)
	assert.Equal(t, 1, resp.Success)
	assert.Equal(t, 4, resp.Failed)
	require.Len(t, resp.Errors, 4)
	assert.Equal(t, 3, resp.Errors[0].Row)

	created, err := (&mockUserRepo{db}).GetByUsername(context.Background(), "PB21000001")
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, created.Role)
	assert.True(t, created.IsActive)
}

func TestDefaultImportPassword(t *testing.T) {
	assert.Equal(t, "Ustc@000001", defaultImportPassword("PB21000001"))
	assert.Equal(t, "Ustc@abc", defaultImportPassword("abc"))
}
