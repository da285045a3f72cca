package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

func TestRenderEmailTemplates(t *testing.T) {
	data := map[string]any{
		"app_name":          "Describly",
		"name":              "Alice <script>",
		"verification_code": "12345",
		"login_url":         "https://app.describly.test",
	}
	cases := map[string]string{
		TemplateAccountVerification:           "Account Verification - Describly",
		TemplateAccountActivationConfirmation: "Welcome - Describly",
		TemplatePasswordReset:                 "Reset Password - Describly",
	}
	for key, subject := range cases {
		rendered, err := RenderEmail(key, data)
		if err != nil {
			t.Fatalf("%s: %v", key, err)
		}
		if rendered.Subject != subject {
			t.Fatalf("%s: unexpected subject %q", key, rendered.Subject)
		}
		if strings.Contains(rendered.HTML, "<script>") {
			t.Fatalf("%s: expected html escaping", key)
		}
	}

	rendered, _ := RenderEmail(TemplatePasswordReset, data)
	if !strings.Contains(rendered.Text, "12345") || !strings.Contains(rendered.HTML, "12345") {
		t.Fatal("expected the code in both bodies")
	}

	if _, err := RenderEmail("unknown", data); err == nil {
		t.Fatal("expected unknown template error")
	}
}

type fakeResendEmails struct {
	requests []*resend.SendEmailRequest
	err      error
}

func (f *fakeResendEmails) Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "email-1"}, nil
}

func TestResendEmailSender(t *testing.T) {
	fake := &fakeResendEmails{}
	sender := &ResendEmailSender{emails: fake, From: "Describly <no-reply@describly.test>"}

	err := sender.SendTemplatedEmail(context.Background(), "alice@x.com", TemplateAccountVerification, map[string]any{
		"app_name":          "Describly",
		"name":              "Alice",
		"verification_code": "12345",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(fake.requests))
	}
	request := fake.requests[0]
	if request.To[0] != "alice@x.com" || request.Subject != "Account Verification - Describly" {
		t.Fatalf("unexpected request %+v", request)
	}
	if !strings.Contains(request.Html, "12345") {
		t.Fatal("expected code in html body")
	}

	fake.err = errors.New("rate limited")
	if err := sender.SendTemplatedEmail(context.Background(), "alice@x.com", TemplatePasswordReset, nil); err == nil {
		t.Fatal("expected api error to surface")
	}

	if err := NewResendEmailSender("", "").SendTemplatedEmail(context.Background(), "a@x.com", TemplatePasswordReset, nil); !errors.Is(err, ErrEmailNotConfigured) {
		t.Fatalf("expected ErrEmailNotConfigured, got %v", err)
	}
}

type countingSender struct {
	calls atomic.Int32
	fail  bool
	block chan struct{}
}

func (c *countingSender) SendTemplatedEmail(ctx context.Context, recipient string, templateKey string, data map[string]any) error {
	if c.block != nil {
		<-c.block
	}
	c.calls.Add(1)
	if c.fail {
		return errors.New("delivery failed")
	}
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestEmailQueueDeliversAndDrains(t *testing.T) {
	sender := &countingSender{fail: true}
	queue := NewEmailQueue(sender, quietLogger(), 2, 16)

	for i := 0; i < 10; i++ {
		if err := queue.SendTemplatedEmail(context.Background(), "a@x.com", TemplatePasswordReset, nil); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queue.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := sender.calls.Load(); got != 10 {
		t.Fatalf("expected 10 deliveries, got %d", got)
	}

	if err := queue.SendTemplatedEmail(context.Background(), "a@x.com", TemplatePasswordReset, nil); !errors.Is(err, ErrEmailQueueClosed) {
		t.Fatalf("expected ErrEmailQueueClosed, got %v", err)
	}
	if err := queue.Close(ctx); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestEmailQueueRejectsWhenFull(t *testing.T) {
	sender := &countingSender{block: make(chan struct{})}
	queue := NewEmailQueue(sender, quietLogger(), 1, 1)

	var full bool
	for i := 0; i < 5; i++ {
		if err := queue.SendTemplatedEmail(context.Background(), "a@x.com", TemplatePasswordReset, nil); errors.Is(err, ErrEmailQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("expected the bounded queue to fill up")
	}

	close(sender.block)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := queue.Close(ctx); err != nil {
		t.Fatal(err)
	}
}
