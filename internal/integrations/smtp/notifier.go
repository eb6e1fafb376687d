package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"intake-agent/internal/domain"
	"intake-agent/internal/logger"
)

const (
	defaultPort     = 587
	implicitTLSPort = 465
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// Insecure disables TLS. Only meant for local relays such as mailpit.
	Insecure bool
	Timeout  time.Duration
}

// sender is the part of *mail.Client used by Notifier.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Notifier delivers intake emails over SMTP.
type Notifier struct {
	log    *logger.Logger
	cfg    Config
	client sender
}

func New(log *logger.Logger, cfg Config) (*Notifier, error) {
	if log == nil {
		return nil, errors.New("smtp: logger required")
	}
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	switch {
	case cfg.Insecure:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case implicitTLS(cfg):
		opts = append(opts, mail.WithSSL(), mail.WithTLSPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp: create client: %w", err)
	}
	return &Notifier{log: log.With("client", "SMTPNotifier"), cfg: cfg, client: client}, nil
}

// implicitTLS reports whether the relay expects TLS from the first byte
// (SMTPS) rather than a STARTTLS upgrade.
func implicitTLS(cfg Config) bool {
	return !cfg.Insecure && cfg.Port == implicitTLSPort
}

func normalize(cfg Config) (Config, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return cfg, errors.New("smtp: host required")
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("smtp: invalid port %d", cfg.Port)
	}
	cfg.Username = strings.TrimSpace(cfg.Username)
	if cfg.Username != "" && cfg.Password == "" {
		return cfg, errors.New("smtp: password required when username is set")
	}
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.From == "" {
		return cfg, errors.New("smtp: from address required")
	}
	to := make([]string, 0, len(cfg.To))
	for _, addr := range cfg.To {
		if a := strings.TrimSpace(addr); a != "" {
			to = append(to, a)
		}
	}
	if len(to) == 0 {
		return cfg, errors.New("smtp: at least one recipient required")
	}
	cfg.To = to
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return cfg, nil
}

// Notify sends one plain text email to every configured recipient.
func (n *Notifier) Notify(ctx context.Context, email domain.Email) error {
	msg, err := buildMessage(n.cfg, email)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp: send: %w", err)
	}
	n.log.Info("Notification sent", "recipients", len(n.cfg.To))
	return nil
}

func buildMessage(cfg Config, email domain.Email) (*mail.Msg, error) {
	subject := strings.TrimSpace(email.Subject)
	if subject == "" {
		return nil, errors.New("smtp: subject required")
	}
	if strings.TrimSpace(email.Text) == "" {
		return nil, errors.New("smtp: text content required")
	}

	msg := mail.NewMsg()
	if err := msg.From(cfg.From); err != nil {
		return nil, fmt.Errorf("smtp: from address: %w", err)
	}
	if err := msg.To(cfg.To...); err != nil {
		return nil, fmt.Errorf("smtp: recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	return msg, nil
}
