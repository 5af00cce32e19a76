package mail

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/assistdesk/assistdesk/internal/pkg/env"
)

// Sender delivers a single message.
type Sender interface {
	Send(to, subject, body string) error
}

// Config holds SMTP settings and the operations alert address.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	OpsEmail string
}

// LoadConfig reads SMTP_* and OPS_ALERT_EMAIL.
func LoadConfig() Config {
	return Config{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "25"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		From:     env.GetEnv("SMTP_SENDER", ""),
		OpsEmail: env.GetEnv("OPS_ALERT_EMAIL", ""),
	}
}

// Enabled reports whether a host is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	cfg      Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = "no-reply@localhost"
		log.Warnf("[Mail] SMTP_SENDER not set, using default sender: %s", cfg.From)
	}
	return &SMTPMailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	if err := m.sendMail(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, body)); err != nil {
		log.Errorf("[Mail] send to %s failed: %v", to, err)
		return err
	}
	log.Infof("[Mail] sent %q to %s via %s", subject, to, addr)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n\r\n" +
			body,
	)
}

// OpsAlerter mails operational alerts to the configured operations address.
// A zero OpsAlerter only logs.
type OpsAlerter struct {
	sender Sender
	to     string
}

// NewOpsAlerter returns an alerter for cfg; alerts are only logged when SMTP
// or OPS_ALERT_EMAIL is missing.
func NewOpsAlerter(cfg Config) *OpsAlerter {
	if !cfg.Enabled() || cfg.OpsEmail == "" {
		return &OpsAlerter{}
	}
	return &OpsAlerter{sender: NewSMTPMailer(cfg), to: cfg.OpsEmail}
}

// NewOpsAlerterWithSender is used when the transport is provided by the caller.
func NewOpsAlerterWithSender(sender Sender, to string) *OpsAlerter {
	return &OpsAlerter{sender: sender, to: to}
}

// Alert logs the alert and mails it when a recipient is configured.
func (a *OpsAlerter) Alert(subject, body string) error {
	log.Errorf("[Ops] %s: %s", subject, body)
	if a == nil || a.sender == nil || a.to == "" {
		return nil
	}
	return a.sender.Send(a.to, "[assistdesk] "+subject, body)
}
