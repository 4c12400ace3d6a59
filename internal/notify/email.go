package notify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	mailjet "github.com/mailjet/mailjet-apiv3-go"

	"classbot/internal/config"
	logx "classbot/pkg/logx"
)

// Email sends outcome mail through the MailJet API.
type Email struct {
	client *mailjet.Client
	from   string
	log    logx.Logger
}

// NewEmail builds the email channel, or (nil, nil) when disabled.
func NewEmail(cfg config.EmailConfig, log logx.Logger) (*Email, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		return nil, errors.New("notify.email: public_key and private_key are required")
	}
	if cfg.From == "" {
		return nil, errors.New("notify.email: from address is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Email{
		client: mailjet.NewMailjetClient(cfg.PublicKey, cfg.PrivateKey),
		from:   cfg.From,
		log:    log,
	}, nil
}

func (e *Email) Name() string { return "email" }

func (e *Email) Send(ctx context.Context, user config.User, msg Message) error {
	_ = ctx // the mailjet client has no context-aware call
	if user.NotificationEmail == "" {
		return nil
	}

	info := mailjet.InfoMessagesV31{
		From:     &mailjet.RecipientV31{Email: e.from},
		To:       &mailjet.RecipientsV31{mailjet.RecipientV31{Email: user.NotificationEmail}},
		Subject:  msg.Subject,
		TextPart: msg.Body,
	}
	if a := msg.Attachment; a != nil {
		info.Attachments = &mailjet.AttachmentsV31{mailjet.AttachmentV31{
			ContentType:   a.ContentType,
			Filename:      a.Filename,
			Base64Content: base64.StdEncoding.EncodeToString(a.Content),
		}}
	}

	msgs := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{info}}
	if _, err := e.client.SendMailV31(&msgs); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	e.log.Debug("email sent", logx.String("to", user.NotificationEmail), logx.String("subject", msg.Subject))
	return nil
}
