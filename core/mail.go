package core

import (
	"bytes"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

type (
	// EmailMessage is a renderable email. Either BodyStr is set for plain
	// non-templated content, or TextTemplate/HTMLTemplate are parsed with
	// TemplateData on Render.
	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string

		TextTemplate string
		HTMLTemplate string
		TemplateData interface{}

		TextContent string
		HTMLContent string
	}

	// TemplateContext wraps TemplateData with app-level context available to
	// all templates.
	TemplateContext struct {
		FrontendBaseURL string
		AppName         string
		Data            interface{}
	}

	// EmailService is any service that can send emails.
	EmailService interface {
		// SendMessages sends messages concurrently.
		SendMessages(messages ...*EmailMessage)
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }

func (m *EmailMessage) HasContent() bool {
	return m.TextContent != "" || m.HTMLContent != ""
}

// Render resolves TextContent and HTMLContent from the message's templates.
func (m *EmailMessage) Render(conf *Config) error {
	ctx := TemplateContext{
		FrontendBaseURL: conf.FrontendBaseURL,
		AppName:         conf.AppName,
		Data:            m.TemplateData,
	}

	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}

	if m.TextTemplate != "" {
		t, err := texttmpl.New("body").Parse(m.TextTemplate)
		if err != nil {
			return errors.Wrap(err, "parsing text template")
		}
		var buf bytes.Buffer
		if err = t.Execute(&buf, ctx); err != nil {
			return errors.Wrap(err, "rendering text template")
		}
		m.TextContent = buf.String()
	}

	if m.HTMLTemplate != "" {
		t, err := htmltmpl.New("body").Parse(m.HTMLTemplate)
		if err != nil {
			return errors.Wrap(err, "parsing html template")
		}
		var buf bytes.Buffer
		if err = t.Execute(&buf, ctx); err != nil {
			return errors.Wrap(err, "rendering html template")
		}
		m.HTMLContent = buf.String()
	}
	return nil
}
