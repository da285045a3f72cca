package service

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogEmailSender renders emails and writes them to the log instead of
// delivering them. Used when no Resend key is configured.
type LogEmailSender struct {
	Logger logrus.FieldLogger
}

func (s LogEmailSender) SendTemplatedEmail(ctx context.Context, recipient string, templateKey string, data map[string]any) error {
	rendered, err := RenderEmail(templateKey, data)
	if err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{
			"to":       recipient,
			"template": templateKey,
			"subject":  rendered.Subject,
		}).Info(rendered.Text)
	}
	return nil
}
