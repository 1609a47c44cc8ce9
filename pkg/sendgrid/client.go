package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	sg "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sendgrid/rest"

	"github.com/angelmondragon/projectmarket-backend/pkg/config"
	"github.com/angelmondragon/projectmarket-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from email is required")
	errRecipient      = errors.New("recipient email is invalid")
	errSubject        = errors.New("subject is required")
	errBody           = errors.New("message body is required")
)

// Message is a single transactional email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainText string
	HTML      string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type apiClient interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

// Client sends mail through the SendGrid v3 API.
type Client struct {
	api  apiClient
	from *sgmail.Email
}

// NewClient builds a SendGrid client from config.
func NewClient(ctx context.Context, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}
	if _, err := mail.ParseAddress(from); err != nil {
		return nil, fmt.Errorf("sendgrid from email: %w", err)
	}

	client := newClient(sg.NewSendClient(apiKey), cfg.FromName, from)
	if logg != nil {
		logg.Info(ctx, "sendgrid client initialized")
	}
	return client, nil
}

func newClient(api apiClient, fromName, fromEmail string) *Client {
	return &Client{
		api:  api,
		from: sgmail.NewEmail(strings.TrimSpace(fromName), fromEmail),
	}
}

// Send delivers msg. Any non-2xx response is returned as an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.api == nil {
		return errors.New("sendgrid client not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	to := sgmail.NewEmail(strings.TrimSpace(msg.ToName), strings.TrimSpace(msg.ToEmail))
	email := sgmail.NewSingleEmail(c.from, msg.Subject, to, msg.PlainText, msg.HTML)

	resp, err := c.api.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp == nil {
		return errors.New("sendgrid send: empty response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

func (m Message) validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(m.ToEmail)); err != nil {
		return errRecipient
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errSubject
	}
	if strings.TrimSpace(m.PlainText) == "" && strings.TrimSpace(m.HTML) == "" {
		return errBody
	}
	return nil
}

// StatusError reports a rejected send.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sendgrid responded %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}
