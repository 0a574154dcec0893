package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mohitdev/blogbackend/config"
)

// Mailer delivers the password reset message. The reset URL carries the only
// plaintext copy of the reset token.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, to, name, resetURL string, expiresIn time.Duration) error
}

// New returns an SMTP-backed mailer, or a log-only stub when no SMTP host is
// configured.
func New(cfg config.MailConfig, log *logrus.Logger) Mailer {
	if cfg.SMTPHost == "" {
		log.Warn("SMTP not configured, falling back to log-only mailer")
		return &LogMailer{log: log}
	}
	return &SMTPMailer{cfg: cfg, log: log}
}

type SMTPMailer struct {
	cfg config.MailConfig
	log *logrus.Logger
}

func (m *SMTPMailer) SendPasswordResetEmail(_ context.Context, to, name, resetURL string, expiresIn time.Duration) error {
	subject := fmt.Sprintf("%s • Reset your password", m.cfg.AppName)
	body, err := renderResetTemplate(m.cfg.AppName, name, to, resetURL, expiresIn)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	msg := []byte(fmt.Sprintf(
		"From: %s\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		m.cfg.From, to, subject, body,
	))

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.SMTPHost, m.cfg.SMTPPort)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
		m.log.WithError(err).WithField("email", to).Error("failed to send password reset email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.WithField("email", to).Info("password reset email sent")
	return nil
}

// LogMailer writes the message to the log instead of sending it.
type LogMailer struct {
	log *logrus.Logger
}

func (m *LogMailer) SendPasswordResetEmail(_ context.Context, to, name, resetURL string, expiresIn time.Duration) error {
	m.log.WithFields(logrus.Fields{
		"to":        to,
		"name":      name,
		"resetURL":  resetURL,
		"expiresIn": expiresIn.String(),
	}).Info("password reset email (log-only)")
	return nil
}

var resetTemplate = template.Must(template.New("reset").Parse(`
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family:Arial,sans-serif;background:#f6f9fc;padding:24px;color:#0f172a;">
  <table width="600" style="max-width:600px;background:#ffffff;border-radius:12px;margin:0 auto;">
    <tr>
      <td style="padding:24px 28px;border-bottom:1px solid #eef2f7;">
        <h1 style="margin:0;font-size:20px;color:#111827;">{{.AppName}}</h1>
      </td>
    </tr>
    <tr>
      <td style="padding:28px;">
        <p style="margin:0 0 12px 0;font-size:16px;">Hi {{.Name}},</p>
        <p style="margin:0 0 16px 0;line-height:1.6;color:#334155;">
          We received a request to reset your password. Click the button below to set a new password.
        </p>
        <div style="margin:24px 0;">
          <a href="{{.ResetURL}}" style="background:#2563eb;color:#ffffff;text-decoration:none;padding:12px 18px;border-radius:8px;display:inline-block;font-weight:600;">Reset Password</a>
        </div>
        <p style="margin:0 0 8px 0;line-height:1.6;color:#475569;">This link will expire in {{.ExpiresInMinutes}} minutes.</p>
        <p style="margin:0 0 8px 0;line-height:1.6;color:#64748b;">If you didn't request this, you can safely ignore this email.</p>
        <p style="margin:16px 0 0 0;line-height:1.6;color:#334155;">Thanks,<br/>The {{.AppName}} Team</p>
      </td>
    </tr>
  </table>
</body>
</html>
`))

func renderResetTemplate(appName, name, email, resetURL string, expiresIn time.Duration) (string, error) {
	if name == "" {
		name = email
	}
	var buf bytes.Buffer
	err := resetTemplate.Execute(&buf, map[string]any{
		"AppName":          appName,
		"Name":             name,
		"ResetURL":         resetURL,
		"ExpiresInMinutes": int(expiresIn.Minutes()),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
