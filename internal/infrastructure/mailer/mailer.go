package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

var ErrNotConfigured = errors.New("smtp sender, password or recipient not configured")

// Message is a plain-text mail.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Config describes the SMTP submission endpoint and the sender account.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

func (c Config) complete() bool {
	return strings.TrimSpace(c.Host) != "" &&
		strings.TrimSpace(c.Username) != "" &&
		c.Password != "" &&
		strings.TrimSpace(c.from()) != ""
}

func (c Config) from() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// SMTP sends mail over an authenticated STARTTLS submission port.
type SMTP struct {
	cfg Config
	log zerolog.Logger
}

func NewSMTP(cfg Config, log zerolog.Logger) *SMTP {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTP{
		cfg: cfg,
		log: log.With().Str("component", "smtp-mailer").Logger(),
	}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if !s.cfg.complete() || len(msg.To) == 0 {
		return ErrNotConfigured
	}

	m := mail.NewMsg()
	if err := m.From(s.cfg.from()); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	client, err := mail.NewClient(s.cfg.Host,
		mail.WithPort(s.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Username),
		mail.WithPassword(s.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(s.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	started := time.Now()
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("deliver mail: %w", err)
	}
	s.log.Info().
		Int("recipients", len(msg.To)).
		Dur("duration", time.Since(started)).
		Msg("mail delivered")
	return nil
}
