package sendgrid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"intake-agent/internal/domain"
	"intake-agent/internal/logger"
)

const defaultBaseURL = "https://api.sendgrid.com"

type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	To        []string
	Timeout   time.Duration
}

// Notifier delivers intake emails through the SendGrid v3 mail send API.
type Notifier struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func New(log *logger.Logger, cfg Config) (*Notifier, error) {
	if log == nil {
		return nil, errors.New("sendgrid: logger required")
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid: missing api key")
	}
	cfg.FromEmail = strings.TrimSpace(cfg.FromEmail)
	if cfg.FromEmail == "" {
		return nil, errors.New("sendgrid: from address required")
	}
	to := make([]string, 0, len(cfg.To))
	for _, addr := range cfg.To {
		if a := strings.TrimSpace(addr); a != "" {
			to = append(to, a)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("sendgrid: at least one recipient required")
	}
	cfg.To = to
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Notifier{
		log:        log.With("client", "SendGridNotifier"),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// --- SendGrid mail send wire types ---

type emailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailSendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             emailAddress      `json:"from"`
	Subject          string            `json:"subject"`
	Content          []mailContent     `json:"content"`
}

type personalization struct {
	To []emailAddress `json:"to"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type errorItem struct {
	Message string `json:"message"`
	Field   any    `json:"field,omitempty"`
}

type errorResponse struct {
	Errors []errorItem `json:"errors"`
}

// HTTPError is returned for any non-2xx response from SendGrid.
type HTTPError struct {
	StatusCode int
	Body       string
	Errors     []errorItem
}

func (e *HTTPError) Error() string {
	if len(e.Errors) > 0 && strings.TrimSpace(e.Errors[0].Message) != "" {
		return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, e.Errors[0].Message)
	}
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = "<empty body>"
	}
	if len(msg) > 4000 {
		msg = msg[:4000] + "..."
	}
	return fmt.Sprintf("sendgrid http %d: %s", e.StatusCode, msg)
}

func (e *HTTPError) HTTPStatusCode() int {
	return e.StatusCode
}

// Notify sends one plain text email to every configured recipient.
func (n *Notifier) Notify(ctx context.Context, email domain.Email) error {
	subject := strings.TrimSpace(email.Subject)
	if subject == "" {
		return errors.New("sendgrid: subject required")
	}
	if strings.TrimSpace(email.Text) == "" {
		return errors.New("sendgrid: text content required")
	}

	to := make([]emailAddress, 0, len(n.cfg.To))
	for _, addr := range n.cfg.To {
		to = append(to, emailAddress{Email: addr})
	}
	wire := mailSendRequest{
		Personalizations: []personalization{{To: to}},
		From:             emailAddress{Email: n.cfg.FromEmail, Name: strings.TrimSpace(n.cfg.FromName)},
		Subject:          subject,
		Content:          []mailContent{{Type: "text/plain", Value: email.Text}},
	}

	resp, err := n.post(ctx, "/v3/mail/send", wire)
	if err != nil {
		return err
	}
	n.log.Info("Notification sent",
		"status", resp.StatusCode,
		"message_id", strings.TrimSpace(resp.Header.Get("X-Message-Id")),
	)
	return nil
}

func (n *Notifier) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("sendgrid: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: request failed: %w", err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("sendgrid: read response: %w", readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		var er errorResponse
		if json.Unmarshal(raw, &er) == nil && len(er.Errors) > 0 {
			he.Errors = er.Errors
		}
		return nil, he
	}
	return resp, nil
}
