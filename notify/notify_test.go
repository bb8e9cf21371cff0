package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/gomail.v2"

	"github.com/Agossa1/marketauth/credential"
)

type captureSender struct {
	sent []*gomail.Message
	err  error
}

func (c *captureSender) DialAndSend(m ...*gomail.Message) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, m...)
	return nil
}

func newTestSMTP(t *testing.T, sender mailSender) *SMTP {
	t.Helper()
	s, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "no-reply@example.com", AppName: "Market"})
	require.NoError(t, err)
	s.sender = sender
	return s
}

func render(t *testing.T, m *gomail.Message) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestSMTPComposesResetEmail(t *testing.T) {
	sender := &captureSender{}
	s := newTestSMTP(t, sender)

	err := s.SendCode(context.Background(), Message{
		Channel:   ChannelEmail,
		To:        "buyer@example.com",
		Purpose:   credential.PurposePasswordReset,
		Code:      "123456",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	assert.Equal(t, []string{"buyer@example.com"}, sender.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your password reset code"}, sender.sent[0].GetHeader("Subject"))

	raw := render(t, sender.sent[0])
	assert.Contains(t, raw, "123456")
	assert.NotContains(t, raw, "href=")
}

func TestSMTPIncludesLink(t *testing.T) {
	s := newTestSMTP(t, &captureSender{})
	now := time.Now()
	body, err := s.renderBody("Verify your email address", Message{
		Channel:   ChannelEmail,
		To:        "seller@example.com",
		Purpose:   credential.PurposeEmailVerification,
		Code:      "654321",
		Link:      "https://market.example.com/verify?token=v2.local.abc",
		ExpiresAt: now.Add(10 * time.Minute),
	}, now)
	require.NoError(t, err)

	assert.Contains(t, body, `href="https://market.example.com/verify?token=v2.local.abc"`)
	assert.Contains(t, body, "654321")
	assert.Contains(t, body, "10 minutes")
}

func TestSMTPRejectsSMSAndWrapsErrors(t *testing.T) {
	boom := errors.New("connection refused")
	s := newTestSMTP(t, &captureSender{err: boom})

	err := s.SendCode(context.Background(), Message{Channel: ChannelSMS, To: "+22990000000"})
	assert.ErrorIs(t, err, ErrUnsupportedChannel)

	err = s.SendCode(context.Background(), Message{Channel: ChannelEmail, To: "a@example.com", Purpose: credential.PurposePasswordReset})
	assert.ErrorIs(t, err, boom)
}

func TestNewSMTPValidates(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{Port: 25, From: "x@example.com"})
	assert.Error(t, err)
	_, err = NewSMTP(SMTPConfig{Host: "localhost", Port: 25})
	assert.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLog(zap.New(core))

	require.NoError(t, n.SendCode(context.Background(), Message{
		Channel: ChannelSMS,
		To:      "+22990000000",
		UserID:  "u1",
		Purpose: credential.PurposePhoneVerification,
		Code:    "000111",
	}))

	entries := logs.FilterMessage("one-time code").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "sms", fields["channel"])
	assert.Equal(t, "000111", fields["code"])
	assert.Equal(t, "PHONE_VERIFICATION", fields["purpose"])
}

func TestMulti(t *testing.T) {
	var emails, sms int
	emailOnly := Func(func(_ context.Context, msg Message) error {
		if msg.Channel != ChannelEmail {
			return ErrUnsupportedChannel
		}
		emails++
		return nil
	})
	smsOnly := Func(func(_ context.Context, msg Message) error {
		if msg.Channel != ChannelSMS {
			return ErrUnsupportedChannel
		}
		sms++
		return nil
	})

	m := Multi{emailOnly, smsOnly, nil}
	require.NoError(t, m.SendCode(context.Background(), Message{Channel: ChannelEmail}))
	require.NoError(t, m.SendCode(context.Background(), Message{Channel: ChannelSMS}))
	assert.Equal(t, 1, emails)
	assert.Equal(t, 1, sms)

	assert.ErrorIs(t, Multi{emailOnly}.SendCode(context.Background(), Message{Channel: ChannelSMS}), ErrUnsupportedChannel)

	boom := errors.New("down")
	failing := Func(func(context.Context, Message) error { return boom })
	assert.ErrorIs(t, Multi{emailOnly, failing}.SendCode(context.Background(), Message{Channel: ChannelEmail}), boom)
}
