package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/repository"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/timeutil"
)

// ErrExportGenerateFail 生成导出文件失败
var ErrExportGenerateFail = errors.New("生成导出文件失败")

// ScoreCSVHeader 成绩导出的固定列顺序
var ScoreCSVHeader = []string{
	"submission_id", "course_id", "task_id", "task_title",
	"student_id", "score", "status", "graded_at",
}

// ScoreService 成绩查询与导出业务接口
type ScoreService interface {
	ScoresForStudent(ctx context.Context, studentID string) ([]model.ScoreRecord, error)
	ScoresForCourse(ctx context.Context, courseID string) ([]model.ScoreRecord, error)
	// ExportCourseCSV 返回 CSV 内容与建议文件名
	ExportCourseCSV(ctx context.Context, courseID string) ([]byte, string, error)
	// ExportCourseXLSX 返回 Excel 内容与建议文件名
	ExportCourseXLSX(ctx context.Context, courseID string) ([]byte, string, error)
}

type scoreService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewScoreService 创建 ScoreService 实例
func NewScoreService(repo *repository.Repository, logger *zap.Logger) ScoreService {
	return &scoreService{repo: repo, logger: logger}
}

func (s *scoreService) ScoresForStudent(ctx context.Context, studentID string) ([]model.ScoreRecord, error) {
	records, err := s.repo.Submission.ScoresForStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询学生成绩失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	return records, nil
}

// ScoresForCourse 课程不存在返回 NotFound；课程存在但无成绩返回空列表
func (s *scoreService) ScoresForCourse(ctx context.Context, courseID string) ([]model.ScoreRecord, error) {
	if _, err := getCourse(ctx, s.repo, courseID, s.logger); err != nil {
		return nil, err
	}
	records, err := s.repo.Submission.ScoresForCourse(ctx, courseID)
	if err != nil {
		s.logger.Error("查询课程成绩失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, err
	}
	return records, nil
}

// ────────────────────── CSV ──────────────────────

func (s *scoreService) ExportCourseCSV(ctx context.Context, courseID string) ([]byte, string, error) {
	records, err := s.ScoresForCourse(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := WriteScoresCSV(&buf, records); err != nil {
		s.logger.Error("生成成绩 CSV 失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf.Bytes(), fmt.Sprintf("course_%s_scores.csv", courseID), nil
}

// WriteScoresCSV 按固定列顺序写出表头与成绩行
func WriteScoresCSV(w io.Writer, records []model.ScoreRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ScoreCSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write(scoreRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func scoreRow(r model.ScoreRecord) []string {
	return []string{
		r.SubmissionID,
		r.CourseID,
		r.TaskID,
		r.TaskTitle,
		r.StudentID,
		formatScore(r.Score),
		r.Status,
		timeutil.FormatISO(r.GradedAt),
	}
}

// formatScore 85 → "85"，85.5 → "85.5"，未评分为空
func formatScore(score *float64) string {
	if score == nil {
		return ""
	}
	return strconv.FormatFloat(*score, 'f', -1, 64)
}

// ────────────────────── Excel ──────────────────────

func (s *scoreService) ExportCourseXLSX(ctx context.Context, courseID string) ([]byte, string, error) {
	course, err := getCourse(ctx, s.repo, courseID, s.logger)
	if err != nil {
		return nil, "", err
	}
	records, err := s.ScoresForCourse(ctx, courseID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "成绩"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", ErrExportGenerateFail
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range ScoreCSVHeader {
		_ = f.SetCellValue(sheet, cellName(i, 1), h)
	}
	_ = f.SetCellStyle(sheet, cellName(0, 1), cellName(len(ScoreCSVHeader)-1, 1), headerStyle)
	_ = f.SetColWidth(sheet, "A", "E", 38)
	_ = f.SetColWidth(sheet, "F", "H", 22)

	for i, r := range records {
		row := i + 2
		for col, v := range scoreRow(r) {
			// 分数列写数值，便于在 Excel 中计算
			if col == 5 && r.Score != nil {
				_ = f.SetCellFloat(sheet, cellName(col, row), *r.Score, -1, 64)
				continue
			}
			_ = f.SetCellValue(sheet, cellName(col, row), v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.String("course_id", courseID), zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	return buf.Bytes(), fmt.Sprintf("%s_成绩.xlsx", safeFilename(course.Title)), nil
}

// safeFilename 去掉文件名中的路径分隔符、引号与控制字符
func safeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return -1
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "course"
	}
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
