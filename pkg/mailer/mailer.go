// Package mailer 发送系统邮件（目前仅密码重置验证码）。
package mailer

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/Mowalen/ustc-database-learning-platform/config"
)

// Message 一封待发送的邮件
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New 根据配置选择邮件实现
func New(cfg *config.MailConfig, appName string, logger *zap.Logger) Mailer {
	prefix := "[" + appName + "] "
	if cfg.Provider == "sendgrid" {
		return &sendgridMailer{
			client:     sendgrid.NewSendClient(cfg.SendgridAPIKey),
			from:       sgmail.NewEmail(cfg.FromName, cfg.From),
			subjPrefix: prefix,
		}
	}
	return &ConsoleMailer{logger: logger.Named("mailer"), subjPrefix: prefix}
}

// ────────────────────── SendGrid ──────────────────────

type sendgridMailer struct {
	client     *sendgrid.Client
	from       *sgmail.Email
	subjPrefix string
}

func (m *sendgridMailer) Send(ctx context.Context, msg Message) error {
	to := sgmail.NewEmail(msg.ToName, msg.To)
	html := msg.HTML
	if html == "" {
		html = "<pre>" + msg.Text + "</pre>"
	}
	body := sgmail.NewSingleEmail(m.from, m.subjPrefix+msg.Subject, to, msg.Text, html)

	res, err := m.client.SendWithContext(ctx, body)
	if err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("发送邮件失败: status=%d body=%s", res.StatusCode, res.Body)
	}
	return nil
}

// ────────────────────── 控制台（开发环境） ──────────────────────

// ConsoleMailer 只把邮件写入日志，并保留已发送记录供测试检查
type ConsoleMailer struct {
	logger     *zap.Logger
	subjPrefix string

	mu   sync.Mutex
	sent []Message
}

// NewConsoleMailer 创建控制台邮件实现
func NewConsoleMailer(logger *zap.Logger) *ConsoleMailer {
	return &ConsoleMailer{logger: logger}
}

func (m *ConsoleMailer) Send(_ context.Context, msg Message) error {
	msg.Subject = m.subjPrefix + msg.Subject
	m.logger.Info("邮件（控制台输出）",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)

	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

// Sent 返回已发送邮件的副本
func (m *ConsoleMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
