package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email sender not configured")

type resendEmails interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendEmailSender renders a template and hands it to the Resend API.
type ResendEmailSender struct {
	emails resendEmails
	From   string
}

func NewResendEmailSender(apiKey string, from string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendEmailSender{}
	}
	client := resend.NewClient(apiKey)
	return &ResendEmailSender{
		emails: client.Emails,
		From:   from,
	}
}

func (s *ResendEmailSender) SendTemplatedEmail(ctx context.Context, recipient string, templateKey string, data map[string]any) error {
	if s.emails == nil {
		return ErrEmailNotConfigured
	}
	rendered, err := RenderEmail(templateKey, data)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err = s.emails.Send(&resend.SendEmailRequest{
		From:    s.From,
		To:      []string{recipient},
		Subject: rendered.Subject,
		Html:    rendered.HTML,
		Text:    rendered.Text,
	})
	if err != nil {
		return fmt.Errorf("resend %s email: %w", templateKey, err)
	}
	return nil
}
