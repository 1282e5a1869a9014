// Package timeutil 统一时间的解析与输出。
//
// 所有时间一律以 UTC 存储和比较；客户端传入不带时区的时间字符串时，
// 按应用配置的时区解释后再转换为 UTC。
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// 不带时区的可接受格式
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseInLocation 解析时间字符串并返回 UTC 时间
// 带时区偏移（RFC 3339）的字符串按其自身偏移解析；否则按 loc 解释
func ParseInLocation(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析时间 %q", s)
}

// ParseOptional 解析可选时间，nil 或空串返回 nil
func ParseOptional(s *string, loc *time.Location) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := ParseInLocation(*s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FormatISO 以 UTC 的 RFC 3339 格式输出，零值输出空串
func FormatISO(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
