package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"

	"gopkg.in/gomail.v2"

	"github.com/your-org/mpr/internal/config"
)

// Kind selects the email template for a notification.
type Kind string

const (
	KindCaseRegistered Kind = "case_registered"
	KindCaseClosed     Kind = "case_closed"
	KindPersonFound    Kind = "person_found"
)

// Fields is the template context shared by all notification kinds. Location
// is only set for person-found notifications and may be blank when the
// geolocation could not be resolved.
type Fields struct {
	FirstName   string
	LastName    string
	FatherName  string
	NationalID  string
	MissingFrom string
	Timestamp   string
	Location    string
}

// Attachment is an optional binary attachment (the captured video clip).
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Notifier sends a templated notification email. Implementations must return
// send failures to the caller; they are never swallowed here.
type Notifier interface {
	Send(ctx context.Context, kind Kind, fields Fields, recipient string, att *Attachment) error
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var subjects = map[Kind]string{
	KindCaseRegistered: "Case Registered Successfully",
	KindCaseClosed:     "Case Closed: Missing Person Found",
	KindPersonFound:    "Missing Person Found",
}

var templateNames = map[Kind]string{
	KindCaseRegistered: "case_registered.html",
	KindCaseClosed:     "case_closed.html",
	KindPersonFound:    "person_found.html",
}

// Render produces the subject and HTML body for a notification kind. It is
// pure so templates can be tested without a mail transport.
func Render(kind Kind, fields Fields) (subject, body string, err error) {
	name, ok := templateNames[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind: %s", kind)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, fields); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return subjects[kind], buf.String(), nil
}

// Mailer sends notifications over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *Mailer) Send(_ context.Context, kind Kind, fields Fields, recipient string, att *Attachment) error {
	subject, body, err := Render(kind, fields)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if att != nil {
		msg.Attach(att.Filename,
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(att.Data)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}),
		)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send %s email to %s: %w", kind, recipient, err)
	}
	return nil
}
