// Package mail delivers rendered solutions over SMTP.
package mail

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"
)

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(host string, port int, user, password, from string) *Mailer {
	if host == "" {
		return nil // email delivery disabled
	}
	return &Mailer{
		dialer: gomail.NewDialer(host, port, user, password),
		from:   from,
	}
}

// SendSolution mails an HTML-rendered solution to a single recipient.
func (m *Mailer) SendSolution(to, subject, htmlBody string) error {
	if m == nil {
		return fmt.Errorf("mailer is not configured: set SMTP_HOST")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
