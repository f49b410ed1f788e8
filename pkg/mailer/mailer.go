package mailer

import (
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type Config struct {
	Host     string `yaml:"host" envconfig:"SMTP_HOST"`
	Port     int    `yaml:"port" envconfig:"SMTP_PORT" default:"587"`
	Username string `yaml:"username" envconfig:"SMTP_USERNAME"`
	Password string `yaml:"password" envconfig:"SMTP_PASSWORD"`
	From     string `yaml:"from" envconfig:"SMTP_FROM"`
}

type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

func New(cfg Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendAccessCode delivers the code a requester exchanges for a read token.
func (m *Mailer) SendAccessCode(to, bookTitle, code string, expiresAt time.Time) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Your loan for %q is approved", bookTitle))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your loan request for %q has been approved.\n\n"+
			"Access code: %s\n"+
			"Valid until: %s\n\n"+
			"Enter the code on the portal to start reading.\n",
		bookTitle, code, expiresAt.Format(time.RFC1123)))

	return m.dialer.DialAndSend(msg)
}
