package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-mail/mail/v2"
)

//go:embed templates
var templateFS embed.FS

const (
	mailAttempts   = 3
	mailRetryDelay = 500 * time.Millisecond
)

type mailer struct {
	dialer    *mail.Dialer
	sender    string
	templates map[string]*template.Template
}

// newMailer parses every embedded template up front so a broken template
// fails at startup instead of on the first send.
func newMailer(host string, port int, username, password, sender string) (*mailer, error) {
	files, err := fs.Glob(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	templates := make(map[string]*template.Template, len(files))
	for _, file := range files {
		tmpl, err := template.New("email").ParseFS(templateFS, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[path.Base(file)] = tmpl
	}

	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second
	return &mailer{dialer: dialer, sender: sender, templates: templates}, nil
}

func (m *mailer) send(to, templateFile string, data any) error {
	msg, err := m.compose(to, templateFile, data)
	if err != nil {
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(mailRetryDelay), mailAttempts-1)
	return backoff.Retry(func() error {
		return m.dialer.DialAndSend(msg)
	}, policy)
}

func (m *mailer) compose(to, templateFile string, data any) (*mail.Message, error) {
	tmpl, ok := m.templates[templateFile]
	if !ok {
		return nil, fmt.Errorf("unknown mail template %q", templateFile)
	}

	parts := make(map[string]string, 3)
	for _, name := range []string{"subject", "plainBody", "htmlBody"} {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			return nil, err
		}
		parts[name] = buf.String()
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", parts["subject"])
	msg.SetBody("text/plain", parts["plainBody"])
	msg.AddAlternative("text/html", parts["htmlBody"])
	return msg, nil
}
