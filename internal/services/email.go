package services

import (
	"fmt"
	"html"

	"github.com/dimitrije/teamjoin/internal/config"
	"gopkg.in/gomail.v2"
)

// Sender delivers a composed message. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailService struct {
	cfg    config.SMTPConfig
	sender Sender
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	return &EmailService{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (s *EmailService) IsConfigured() bool {
	return s.cfg.Enabled()
}

func (s *EmailService) Send(to, subject, body string) error {
	if !s.IsConfigured() {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := s.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendInvite mails an invite link to a prospective team member.
func (s *EmailService) SendInvite(to, role, inviterName, inviteURL string) error {
	subject := "You've been invited to join a team"
	if inviterName != "" {
		subject = fmt.Sprintf("%s invited you to join their team", inviterName)
	}
	body := fmt.Sprintf(`
		<html>
		<body>
			<h2>Team Invitation</h2>
			<p>Hi,</p>
			<p>You have been invited to join as <strong>%s</strong>.</p>
			<p><a href="%s">Accept the invitation</a></p>
			<p>The link can only be used once.</p>
		</body>
		</html>
	`, html.EscapeString(roleLabel(role)), html.EscapeString(inviteURL))

	return s.Send(to, subject, body)
}

func roleLabel(role string) string {
	switch role {
	case "STAFF":
		return "staff"
	case "ATHLETE":
		return "athlete"
	default:
		return "member"
	}
}
