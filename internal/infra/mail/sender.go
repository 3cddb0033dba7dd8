// Package mail sends transactional e-mail over SMTP: the welcome message
// after onboarding and the e-mail one-time code.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	odomain "github.com/boddenberg/merchant-onboarding-bfa-go/internal/onboarding/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/gomail.v2"
)

var tracer = otel.Tracer("mail")

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Dialer delivers composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type welcomeData struct {
	odomain.CompletionEvent
	SupportEmail string
}

type otpData struct {
	Code             string
	ExpiresInMinutes int
}

// Sender composes and sends e-mails from a fixed address.
type Sender struct {
	dialer       Dialer
	from         string
	supportEmail string
	otpTTL       time.Duration
}

// NewSender creates a sender over an SMTP dialer.
func NewSender(host string, port int, user, password, from, supportEmail string, otpTTL time.Duration) *Sender {
	return NewSenderWithDialer(gomail.NewDialer(host, port, user, password), from, supportEmail, otpTTL)
}

// NewSenderWithDialer creates a sender over any Dialer.
func NewSenderWithDialer(d Dialer, from, supportEmail string, otpTTL time.Duration) *Sender {
	return &Sender{dialer: d, from: from, supportEmail: supportEmail, otpTTL: otpTTL}
}

// SendWelcome mails the onboarding confirmation to ev.Email.
func (s *Sender) SendWelcome(ctx context.Context, ev odomain.CompletionEvent) error {
	_, span := tracer.Start(ctx, "Sender.SendWelcome")
	defer span.End()
	span.SetAttributes(attribute.String("case.number", ev.CaseNumber))

	body, err := render("welcome.html", welcomeData{CompletionEvent: ev, SupportEmail: s.supportEmail})
	if err != nil {
		return err
	}
	return s.send(ev.Email, fmt.Sprintf("Welcome aboard, %s! Case %s", ev.Name, ev.CaseNumber), body)
}

// SendCode mails a one-time code to to.
func (s *Sender) SendCode(ctx context.Context, to, code string) error {
	_, span := tracer.Start(ctx, "Sender.SendCode")
	defer span.End()

	body, err := render("otp.html", otpData{Code: code, ExpiresInMinutes: int(s.otpTTL.Minutes())})
	if err != nil {
		return err
	}
	return s.send(to, "Your verification code", body)
}

func (s *Sender) send(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send smtp mail: %w", err)
	}
	return nil
}

func render(name string, data any) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return body.String(), nil
}
