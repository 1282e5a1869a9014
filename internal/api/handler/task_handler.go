package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Mowalen/ustc-database-learning-platform/internal/authz"
	"github.com/Mowalen/ustc-database-learning-platform/internal/dto"
	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
	"github.com/Mowalen/ustc-database-learning-platform/internal/service"
	"github.com/Mowalen/ustc-database-learning-platform/pkg/response"
)

// TaskHandler 作业、提交与评分 HTTP 处理器
type TaskHandler struct {
	taskSvc service.TaskService
	courses courseOwners
}

// NewTaskHandler 创建 TaskHandler
func NewTaskHandler(taskSvc service.TaskService, courses courseOwners) *TaskHandler {
	return &TaskHandler{taskSvc: taskSvc, courses: courses}
}

// CreateTask 布置作业 / 考试
// teacher_id 缺省为课程所属教师；与课程不符时由业务层拒绝
// POST /api/v1/courses/:id/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	courseID := c.Param("id")
	owner, err := h.courses.Owner(c.Request.Context(), courseID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	if !authorize(c, id, authz.ActionCreateTask, owner) {
		return
	}

	var req dto.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TeacherID == "" {
		req.TeacherID = owner
	}

	task, err := h.taskSvc.CreateTask(c.Request.Context(), courseID, &req)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, dto.NewTaskResponse(task))
}

// ListTasks 课程作业列表（新建在前）
// GET /api/v1/courses/:id/tasks
func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks, err := h.taskSvc.ListTasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	out := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, dto.NewTaskResponse(&tasks[i]))
	}
	response.OK(c, gin.H{"list": out})
}

// GetTask 作业详情
// GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, err := h.taskSvc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, dto.NewTaskResponse(task))
}

// Submit 提交作业；重复提交覆盖原提交
// POST /api/v1/tasks/:id/submit
func (h *TaskHandler) Submit(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	var req dto.SubmitRequest
	if !bindJSON(c, &req) {
		return
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = id.UserID
	}
	if !authorize(c, id, authz.ActionSubmit, studentID) {
		return
	}

	sub, err := h.taskSvc.Submit(c.Request.Context(), c.Param("id"), studentID, &req)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, dto.NewSubmissionResponse(sub))
}

// MySubmission 学生查看自己在该作业下的提交；管理员可通过 student_id 指定学生
// GET /api/v1/tasks/:id/my-submission
func (h *TaskHandler) MySubmission(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	var q dto.StudentQuery
	if !bindQuery(c, &q) {
		return
	}
	studentID := q.StudentID
	if studentID == "" {
		studentID = id.UserID
	}
	if !authorize(c, id, authz.ActionViewOwnSubmission, studentID) {
		return
	}

	sub, err := h.taskSvc.MySubmission(c.Request.Context(), c.Param("id"), studentID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, dto.NewSubmissionResponse(sub))
}

// ListSubmissions 作业的全部提交
// GET /api/v1/tasks/:id/submissions
func (h *TaskHandler) ListSubmissions(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	taskID := c.Param("id")
	owner, err := h.taskSvc.CourseOwnerOfTask(c.Request.Context(), taskID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	if !authorize(c, id, authz.ActionListSubmissions, owner) {
		return
	}

	subs, err := h.taskSvc.ListSubmissions(c.Request.Context(), taskID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	out := make([]dto.SubmissionResponse, 0, len(subs))
	for i := range subs {
		out = append(out, dto.NewSubmissionResponse(&subs[i]))
	}
	response.OK(c, gin.H{"list": out})
}

// Grade 评分
// PUT /api/v1/submissions/:id/grade
func (h *TaskHandler) Grade(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	submissionID := c.Param("id")
	owner, err := h.taskSvc.CourseOwnerOfSubmission(c.Request.Context(), submissionID)
	if err != nil {
		h.handleTaskError(c, err)
		return
	}
	if !authorize(c, id, authz.ActionGrade, owner) {
		return
	}

	var req dto.GradeRequest
	if !bindJSON(c, &req) {
		return
	}

	sub, err := h.taskSvc.Grade(c.Request.Context(), submissionID, service.GradePayload{
		Score:    *req.Score,
		Feedback: req.Feedback,
		Status:   req.Status,
	})
	if err != nil {
		h.handleTaskError(c, err)
		return
	}

	response.OK(c, dto.NewSubmissionResponse(sub))
}

// Pending 待办数量：学生为未提交作业数，教师为待批改提交数
// GET /api/v1/me/pending
func (h *TaskHandler) Pending(c *gin.Context) {
	id, ok := MustGetIdentity(c)
	if !ok {
		return
	}
	if !authorize(c, id, authz.ActionViewPending, "") {
		return
	}

	var out dto.PendingResponse
	if id.Role == model.RoleStudent {
		n, err := h.taskSvc.PendingTaskCount(c.Request.Context(), id.UserID)
		if err != nil {
			h.handleTaskError(c, err)
			return
		}
		out.PendingTasks = &n
	} else {
		n, err := h.taskSvc.PendingGradingCount(c.Request.Context(), id.UserID)
		if err != nil {
			h.handleTaskError(c, err)
			return
		}
		out.PendingGrading = &n
	}

	response.OK(c, out)
}

func (h *TaskHandler) handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		response.NotFound(c, 16001, "作业不存在")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 16002, "提交记录不存在")
	case errors.Is(err, service.ErrTeacherMismatch):
		response.BadRequest(c, 16003, "teacher_id 与课程所属教师不一致")
	case errors.Is(err, service.ErrInvalidDeadline):
		response.BadRequest(c, 16004, "截止时间格式无效")
	case errors.Is(err, service.ErrEmptySubmission):
		response.BadRequest(c, 16005, "答案与附件不能同时为空")
	case errors.Is(err, service.ErrNotEnrolled):
		response.Forbidden(c, 16006, "未选修该课程，无法提交")
	case errors.Is(err, service.ErrCourseNotFound):
		response.NotFound(c, 16007, "课程不存在或已停用")
	default:
		handleKindError(c, err)
	}
}
