// Package mail renders transactional emails and hands them to a sender.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"net/smtp"
	"strconv"
	"sync"

	"github.com/gofiber/template/html/v2"
	"github.com/jordan-wright/email"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a rendered email ready to send.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Mailer renders a named template and sends the result.
type Mailer struct {
	engine *html.Engine
	sender Sender
}

func New(sender Sender) (*Mailer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	if err := engine.Load(); err != nil {
		return nil, fmt.Errorf("load mail templates: %w", err)
	}
	return &Mailer{engine: engine, sender: sender}, nil
}

// Send renders template with data and delivers it to the recipient.
func (m *Mailer) Send(ctx context.Context, to, subject, template string, data any) error {
	var buf bytes.Buffer
	if err := m.engine.Render(&buf, template, data); err != nil {
		return fmt.Errorf("render %s: %w", template, err)
	}
	return m.sender.Send(ctx, Message{To: to, Subject: subject, HTML: buf.String()})
}

// SMTPSender sends through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	Host, User, Password, From string
	Port                       int
}

func (s SMTPSender) Send(_ context.Context, m Message) error {
	e := email.NewEmail()
	e.From = s.From
	e.To = []string{m.To}
	e.Subject = m.Subject
	e.HTML = []byte(m.HTML)

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Password, s.Host)
	}
	return e.Send(s.Host+":"+strconv.Itoa(s.Port), auth)
}

// LogSender hands messages to a log function instead of sending them.
type LogSender struct {
	Log func(m Message)
}

func (s LogSender) Send(_ context.Context, m Message) error {
	if s.Log != nil {
		s.Log(m)
	}
	return nil
}

// Outbox keeps sent messages in memory. Tests read codes and links from it.
type Outbox struct {
	mu   sync.Mutex
	sent []Message
}

func (o *Outbox) Send(_ context.Context, m Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return nil
}

func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Message(nil), o.sent...)
}

func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return Message{}, false
	}
	return o.sent[len(o.sent)-1], true
}
