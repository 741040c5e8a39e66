// Package mail 确认码投递
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

type Sender interface {
	SendConfirmationCode(ctx context.Context, to, code string) error
}

const subject = "YaMDb confirmation code"

func body(code string) string {
	return fmt.Sprintf("Your confirmation code: %s\r\n\r\n"+
		"Exchange it for a token at /v1/auth/token/. "+
		"If you did not sign up, ignore this message.\r\n", code)
}

type SMTP struct {
	addr string
	from string
	auth smtp.Auth

	// 测试替换
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP username 为空时不做认证（本地 mailhog 等）
func NewSMTP(host string, port int, username, password, from string) *SMTP {
	s := &SMTP{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		from: from,
		send: smtp.SendMail,
	}
	if username != "" {
		s.auth = smtp.PlainAuth("", username, password, host)
	}
	return s
}

func (s *SMTP) SendConfirmationCode(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.from, to, subject, body(code)))
	if err := s.send(s.addr, s.auth, s.from, []string{to}, msg); err != nil {
		return fmt.Errorf("send confirmation mail: %w", err)
	}
	return nil
}

// Log 只写日志，开发环境用
type Log struct{ L *zap.Logger }

func (s Log) SendConfirmationCode(_ context.Context, to, code string) error {
	s.L.Info("confirmation code", zap.String("to", to), zap.String("code", code))
	return nil
}

// Outbox 记录发出的码，测试用
type Outbox struct {
	mu   sync.Mutex
	sent map[string][]string
	Err  error
}

func (o *Outbox) SendConfirmationCode(_ context.Context, to, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	if o.sent == nil {
		o.sent = map[string][]string{}
	}
	o.sent[to] = append(o.sent[to], code)
	return nil
}

// Last 最近一次发给 to 的码
func (o *Outbox) Last(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	codes := o.sent[to]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (o *Outbox) Count(to string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent[to])
}

// New driver: smtp | log
func New(driver, host string, port int, username, password, from string, l *zap.Logger) (Sender, error) {
	switch driver {
	case "smtp":
		return NewSMTP(host, port, username, password, from), nil
	case "log", "":
		return Log{L: l}, nil
	default:
		return nil, fmt.Errorf("mail: unknown driver %q", driver)
	}
}
