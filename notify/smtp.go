package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the outbound mail server.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// AppName is shown in the message body.
	AppName string
}

// mailSender is satisfied by *gomail.Dialer.
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTP sends email-channel messages through an SMTP relay. SMS messages are
// refused with ErrUnsupportedChannel.
type SMTP struct {
	sender  mailSender
	from    string
	appName string
}

var bodyTemplate = template.Must(template.New("code").Parse(`<h3>{{.Subject}}</h3>
<p>Your {{.AppName}} code is <strong>{{.Code}}</strong>.</p>
{{- if .Link}}
<p>You can also <a href="{{.Link}}">confirm with one click</a>.</p>
{{- end}}
<p>The code expires in {{.Minutes}} minutes. If you did not ask for it, you can ignore this email.</p>
`))

func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, errors.New("notify: smtp host and port are required")
	}
	if cfg.From == "" {
		return nil, errors.New("notify: smtp from address is required")
	}
	if cfg.AppName == "" {
		cfg.AppName = "marketplace"
	}
	return &SMTP{
		sender:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		appName: cfg.AppName,
	}, nil
}

func (s *SMTP) SendCode(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return ErrUnsupportedChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.compose(msg, time.Now())
	if err != nil {
		return err
	}
	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("notify: failed to send %s email: %w", msg.Purpose, err)
	}
	return nil
}

func (s *SMTP) compose(msg Message, now time.Time) (*gomail.Message, error) {
	subject := subjectFor(msg.Purpose)
	body, err := s.renderBody(subject, msg, now)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m, nil
}

func (s *SMTP) renderBody(subject string, msg Message, now time.Time) (string, error) {
	minutes := int(msg.ExpiresAt.Sub(now).Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, map[string]any{
		"Subject": subject,
		"AppName": s.appName,
		"Code":    msg.Code,
		"Link":    template.URL(msg.Link),
		"Minutes": minutes,
	}); err != nil {
		return "", fmt.Errorf("notify: render body: %w", err)
	}
	return body.String(), nil
}
