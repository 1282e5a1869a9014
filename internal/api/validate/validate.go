// Package validate 在 gin 的绑定校验器上注册业务自定义标签。
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Mowalen/ustc-database-learning-platform/internal/model"
)

const (
	taskTypeTag         = "task_type"
	submissionStatusTag = "submission_status"
)

var (
	once    sync.Once
	initErr error
)

// Register 注册自定义标签，可重复调用
func Register() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			initErr = errors.New("gin 绑定校验器不是 validator/v10")
			return
		}

		// 错误信息中使用 json 字段名
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		if err := v.RegisterValidation(taskTypeTag, taskTypeValidation); err != nil {
			initErr = err
			return
		}
		initErr = v.RegisterValidation(submissionStatusTag, submissionStatusValidation)
	})
	return initErr
}

func taskTypeValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case model.TaskTypeAssignment, model.TaskTypeExam:
		return true
	}
	return false
}

func submissionStatusValidation(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case model.SubmissionSubmitted, model.SubmissionLate, model.SubmissionGraded:
		return true
	}
	return false
}

// Describe 将绑定错误转为简短的中文说明，用作响应 details
func Describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "请求体格式错误"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, describeField(fe))
	}
	return strings.Join(parts, "; ")
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s 不能为空", fe.Field())
	case "min", "max", "len":
		return fmt.Sprintf("%s 不满足 %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case taskTypeTag:
		return fmt.Sprintf("%s 只能是 assignment 或 exam", fe.Field())
	case submissionStatusTag:
		return fmt.Sprintf("%s 只能是 submitted、late 或 graded", fe.Field())
	default:
		return fmt.Sprintf("%s 格式无效", fe.Field())
	}
}
