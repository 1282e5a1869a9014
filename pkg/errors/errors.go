// Package errors 定义业务错误的稳定分类。
//
// 每个业务哨兵错误都归属且仅归属一个分类，传输层按分类映射 HTTP 状态码：
// NotFound→404，Conflict→409，Forbidden→403，BadRequest→400，Unauthorized→401。
package errors

import "errors"

// 错误分类
var (
	ErrNotFound     = errors.New("资源不存在")
	ErrConflict     = errors.New("资源冲突")
	ErrForbidden    = errors.New("无权限执行该操作")
	ErrBadRequest   = errors.New("请求参数不合法")
	ErrUnauthorized = errors.New("未认证")
)

var kinds = []error{ErrNotFound, ErrConflict, ErrForbidden, ErrBadRequest, ErrUnauthorized}

// kindError 归属某一分类的业务错误；Error() 只返回业务描述
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// New 创建归属 kind 分类的业务错误
func New(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Kind 返回 err 所属的分类，不属于任何分类时返回 nil
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
