package mail

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSMTPMessage(t *testing.T) {
	s := NewSMTP("mail.local", 2525, "", "", "noreply@yamdb.local")
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.Nil(t, a)
		return nil
	}

	require.NoError(t, s.SendConfirmationCode(context.Background(), "a@example.com", "abc123"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, "noreply@yamdb.local", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "To: a@example.com\r\n")
	assert.Contains(t, string(gotMsg), "abc123")
}

func TestSMTPErrorWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewSMTP("mail.local", 25, "u", "p", "x@y")
	s.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }
	assert.NotNil(t, s.auth)

	err := s.SendConfirmationCode(context.Background(), "a@example.com", "c")
	assert.ErrorIs(t, err, boom)
}

func TestLogSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, Log{L: zap.New(core)}.SendConfirmationCode(context.Background(), "a@example.com", "c0de"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "c0de", logs.All()[0].ContextMap()["code"])
}

func TestNewDriver(t *testing.T) {
	s, err := New("smtp", "h", 25, "", "", "f", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SMTP{}, s)

	s, err = New("log", "", 0, "", "", "", zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, Log{}, s)

	_, err = New("pigeon", "", 0, "", "", "", zap.NewNop())
	assert.Error(t, err)
}

func TestOutbox(t *testing.T) {
	o := &Outbox{}
	ctx := context.Background()
	require.NoError(t, o.SendConfirmationCode(ctx, "a", "1"))
	require.NoError(t, o.SendConfirmationCode(ctx, "a", "2"))
	assert.Equal(t, "2", o.Last("a"))
	assert.Equal(t, 2, o.Count("a"))
	assert.Equal(t, "", o.Last("b"))
}
