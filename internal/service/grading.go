package service

import (
	"time"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

// GradePayload 评分内容
type GradePayload struct {
	Score    float64
	Feedback *string
	Status   string // 为空时取 graded
}

// applyGrade 评分状态迁移：写入分数、评语、状态与评分时间，返回更新后的副本
// 不做任何权限判断，调用方负责确认请求者是课程所属教师或管理员
func applyGrade(sub model.Submission, p GradePayload, now time.Time) model.Submission {
	status := p.Status
	if status == "" {
		status = model.SubmissionGraded
	}

	score := p.Score
	gradedAt := now.UTC()

	sub.Score = &score
	sub.Feedback = p.Feedback
	sub.Status = status
	sub.GradedAt = &gradedAt
	return sub
}
