package email

import (
	"fmt"
	"net/smtp"

	"licensegate.app/cloud/internal/logger"
)

// Sender delivers license notifications over SMTP. A sender with incomplete
// configuration is usable; Send just reports that delivery is disabled.
type Sender struct {
	host string
	port string
	user string
	pass string
}

func NewSender(host, port, user, pass string) *Sender {
	return &Sender{host: host, port: port, user: user, pass: pass}
}

func (s *Sender) Configured() bool {
	return s.host != "" && s.port != "" && s.user != "" && s.pass != ""
}

func (s *Sender) Send(to, subject, body string) error {
	if !s.Configured() {
		logger.Debug("SMTP not configured, skipping notification", map[string]interface{}{
			"to": to,
		})
		return fmt.Errorf("SMTP configuration missing")
	}

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)

	msg := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", s.user, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, auth, s.user, []string{to}, msg)
}

// LicenseIssued sends the key and expiry to the license holder. Best effort:
// callers log failures and move on, the API response never depends on it.
func (s *Sender) LicenseIssued(to, key, expiresOn string) error {
	body := fmt.Sprintf("Your license key:\n\n%s\n\nValid until %s.", key, expiresOn)
	return s.Send(to, "Your license key", body)
}
