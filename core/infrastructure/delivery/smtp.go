// Package delivery sends report emails over SMTP.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

const (
	DefaultPort    = 587
	DefaultSSLPort = 465
	DefaultFrom    = "noreply@dataask.io"
)

// Security is the transport encryption of the SMTP session.
type Security string

const (
	// SecurityStartTLS upgrades a plain connection and fails without STARTTLS
	SecurityStartTLS Security = "starttls"
	// SecuritySSL dials TLS directly (implicit TLS, usually port 465)
	SecuritySSL Security = "ssl"
	// SecurityNone sends in clear text
	SecurityNone Security = "none"
)

// Config holds SMTP settings. Security wins over the older UseTLS flag,
// which maps true to starttls and false to none.
type Config struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	User     string        `yaml:"username"`
	Password string        `yaml:"password"`
	From     string        `yaml:"from"`
	Security Security      `yaml:"security"`
	UseTLS   *bool         `yaml:"tls"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Validate rejects an unknown security mode.
func (c Config) Validate() error {
	switch c.Security {
	case "", SecurityStartTLS, SecuritySSL, SecurityNone:
		return nil
	}
	return fmt.Errorf("smtp.security must be one of starttls, ssl, none (got %q)", c.Security)
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Security == "" {
		c.Security = SecurityStartTLS
		if c.UseTLS != nil && !*c.UseTLS {
			c.Security = SecurityNone
		}
	}
	if c.Port == 0 {
		c.Port = DefaultPort
		if c.Security == SecuritySSL {
			c.Port = DefaultSSLPort
		}
	}
	if c.From == "" {
		c.From = DefaultFrom
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// SMTPService implements interfaces.DeliveryService.
type SMTPService struct {
	cfg Config
	log logger.Logger
}

var _ interfaces.DeliveryService = (*SMTPService)(nil)

// NewSMTPService creates an SMTP delivery service. Unset fields take the
// defaults: localhost:587, STARTTLS required, from noreply@dataask.io. With
// SecuritySSL the default port is 465.
func NewSMTPService(cfg Config) *SMTPService {
	return &SMTPService{cfg: cfg.withDefaults(), log: logger.New("delivery")}
}

// Send delivers msg in a single SMTP session. Every failure is a
// DELIVERY_FAILED error.
func (s *SMTPService) Send(ctx context.Context, msg interfaces.Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		observability.RecordDelivery(ctx, false, len(msg.Attachments))
		return apperrors.WrapError(apperrors.ErrCodeDeliveryFailed, "failed to build email", err)
	}

	client, err := mail.NewClient(s.cfg.Host, s.clientOptions()...)
	if err != nil {
		observability.RecordDelivery(ctx, false, len(msg.Attachments))
		return apperrors.WrapError(apperrors.ErrCodeDeliveryFailed, "failed to create smtp client", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		observability.RecordDelivery(ctx, false, len(msg.Attachments))
		s.log.Errorf("Failed to send email to %v: %v", msg.To, err)
		return apperrors.WrapError(apperrors.ErrCodeDeliveryFailed, "failed to send email", err)
	}

	observability.RecordDelivery(ctx, true, len(msg.Attachments))
	s.log.Infof("Email sent successfully to %v", msg.To)
	return nil
}

func (s *SMTPService) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	switch s.cfg.Security {
	case SecuritySSL:
		opts = append(opts, mail.WithSSL())
	case SecurityNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if s.cfg.User != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.User),
			mail.WithPassword(s.cfg.Password),
		)
	}
	return opts
}

func (s *SMTPService) buildMessage(msg interfaces.Message) (*mail.Msg, error) {
	if len(msg.To) == 0 {
		return nil, fmt.Errorf("no recipients")
	}
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", s.cfg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	for _, att := range msg.Attachments {
		m.AttachReadSeeker(att.Filename, bytes.NewReader(att.Data),
			mail.WithFileContentType(mail.ContentType(att.ContentType)))
	}
	return m, nil
}
