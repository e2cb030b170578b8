package services

import (
	"bytes"
	"context"
	"html/template"
	"log"

	"github.com/wneessen/go-mail"
)

type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return WrapError(err, "mail from")
	}
	if err := msg.To(to); err != nil {
		return WrapError(err, "mail to")
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return WrapError(err, "mail client")
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return WrapError(err, "mail send")
	}
	return nil
}

// LogMailer is used when SMTP is not configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail disabled, dropping message to=%s subject=%q", to, subject)
	return nil
}

var mailTemplates = template.Must(template.New("mail").Parse(`
{{define "otp"}}<p>Hello {{.Name}},</p>
<p>Your DormSync verification code is <strong>{{.Code}}</strong>.</p>
<p>The code expires in 10 minutes.</p>{{end}}
{{define "approved"}}<p>Hello {{.Name}},</p>
<p>Your DormSync account has been approved. You can now sign in.</p>{{end}}
{{define "rejected"}}<p>Hello {{.Name}},</p>
<p>Your DormSync account request was not approved.</p>
{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}{{end}}
{{define "reset"}}<p>Hello {{.Name}},</p>
<p>Your password reset code is <strong>{{.Code}}</strong>. It expires in 10 minutes.</p>
<p>If you did not ask for a reset you can ignore this message.</p>{{end}}
`))

type mailData struct {
	Name   string
	Code   string
	Reason string
}

func renderMail(name string, data mailData) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// deliver renders and sends a message. Failures are logged and counted and
// reported back as false so callers can degrade.
func deliver(ctx context.Context, mailer Mailer, to, subject, tmpl string, data mailData) bool {
	if mailer == nil {
		return false
	}
	body, err := renderMail(tmpl, data)
	if err != nil {
		log.Printf("mail render %s: %v", tmpl, err)
		return false
	}
	if err := mailer.Send(ctx, to, subject, body); err != nil {
		externalFailures.WithLabelValues("email").Inc()
		log.Printf("mail to %s failed: %v", to, err)
		return false
	}
	return true
}
