package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const (
	TemplateAccountVerification           = "account_verification"
	TemplateAccountActivationConfirmation = "account_activation_confirmation"
	TemplatePasswordReset                 = "password_reset"
)

type emailTemplate struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

var emailTemplates = map[string]emailTemplate{
	TemplateAccountVerification: newEmailTemplate(
		"Account Verification - {{.app_name}}",
		`<p>Hi {{.name}},</p>
<p>Use the code below to verify your {{.app_name}} account. It expires in 30 minutes.</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.verification_code}}</strong></p>
<p>If you did not create an account, you can ignore this email.</p>`,
		"Hi {{.name}},\n\nYour {{.app_name}} verification code is {{.verification_code}}. It expires in 30 minutes.\n",
	),
	TemplateAccountActivationConfirmation: newEmailTemplate(
		"Welcome - {{.app_name}}",
		`<p>Hi {{.name}},</p>
<p>Your {{.app_name}} account is active.</p>
<p><a href="{{.login_url}}">Sign in</a></p>`,
		"Hi {{.name}},\n\nYour {{.app_name}} account is active. Sign in at {{.login_url}}\n",
	),
	TemplatePasswordReset: newEmailTemplate(
		"Reset Password - {{.app_name}}",
		`<p>Hi {{.name}},</p>
<p>Use the code below to reset your {{.app_name}} password.</p>
<p style="font-size:24px;letter-spacing:4px"><strong>{{.verification_code}}</strong></p>
<p>If you did not ask for a reset, you can ignore this email.</p>`,
		"Hi {{.name}},\n\nYour {{.app_name}} password reset code is {{.verification_code}}.\n",
	),
}

func newEmailTemplate(subject string, html string, text string) emailTemplate {
	return emailTemplate{
		subject: subject,
		html:    htmltemplate.Must(htmltemplate.New("html").Option("missingkey=zero").Parse(html)),
		text:    texttemplate.Must(texttemplate.New("text").Option("missingkey=zero").Parse(text)),
	}
}

type RenderedEmail struct {
	Subject string
	HTML    string
	Text    string
}

func RenderEmail(templateKey string, data map[string]any) (RenderedEmail, error) {
	tmpl, ok := emailTemplates[templateKey]
	if !ok {
		return RenderedEmail{}, fmt.Errorf("unknown email template %q", templateKey)
	}

	subject, err := texttemplate.New("subject").Option("missingkey=zero").Parse(tmpl.subject)
	if err != nil {
		return RenderedEmail{}, err
	}
	var subjectBuf, htmlBuf, textBuf bytes.Buffer
	if err := subject.Execute(&subjectBuf, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("render subject %s: %w", templateKey, err)
	}
	if err := tmpl.html.Execute(&htmlBuf, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("render html %s: %w", templateKey, err)
	}
	if err := tmpl.text.Execute(&textBuf, data); err != nil {
		return RenderedEmail{}, fmt.Errorf("render text %s: %w", templateKey, err)
	}
	return RenderedEmail{
		Subject: strings.TrimSpace(subjectBuf.String()),
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}
