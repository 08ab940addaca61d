package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/domain/tool"
	"github.com/tetkool/concierge/internal/infrastructure/mailer"
	"github.com/tetkool/concierge/internal/infrastructure/telemetry"
)

const (
	SendEmailName = "send_email_to_manager"

	EmailSentText  = "Email sent successfully to the manager."
	DefaultSubject = "New Inquiry from Tetkool Bot"
)

var ErrNotifierNotConfigured = errors.New("email credentials or manager email not set in environment variables")

// ManagerRequest is the argument object of send_email_to_manager.
type ManagerRequest struct {
	UserContact  string `json:"user_contact" validate:"required,max=256" jsonschema_description:"The user's contact details (email or phone number)."`
	UserQuestion string `json:"user_question" validate:"required,max=4000" jsonschema_description:"The user's question or the issue they need help with."`
	UserName     string `json:"user_name,omitempty" validate:"max=256" jsonschema_description:"The user's name, if known."`
}

// NotifySettings carries the account the mail is sent from and the operator it is sent to.
type NotifySettings struct {
	SenderAddress   string
	SenderPassword  string
	OperatorAddress string
	Subject         string
}

func (s NotifySettings) configured() bool {
	return strings.TrimSpace(s.SenderAddress) != "" &&
		s.SenderPassword != "" &&
		strings.TrimSpace(s.OperatorAddress) != ""
}

// ManagerNotifier forwards a user's request to a human operator by email.
type ManagerNotifier struct {
	sender    mailer.Sender
	settings  NotifySettings
	sanitizer *telemetry.Sanitizer
	log       zerolog.Logger
}

func NewManagerNotifier(sender mailer.Sender, settings NotifySettings, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *ManagerNotifier {
	if settings.Subject == "" {
		settings.Subject = DefaultSubject
	}
	if sanitizer == nil {
		sanitizer = telemetry.NewSanitizer(telemetry.PIILevelHashed, "")
	}
	return &ManagerNotifier{
		sender:    sender,
		settings:  settings,
		sanitizer: sanitizer,
		log:       log.With().Str("tool", SendEmailName).Logger(),
	}
}

func (n *ManagerNotifier) Definition() tool.Definition {
	return tool.Definition{
		Name: SendEmailName,
		Description: "Send an email to the manager with the user's contact info and question. " +
			"Use this when the user wants to talk to a human, leave a request, or asks something you cannot answer.",
		Parameters: tool.MustSchemaFor(ManagerRequest{}),
	}
}

// Handle sends the notification. Missing settings fail before any network call.
func (n *ManagerNotifier) Handle(ctx context.Context, arguments json.RawMessage) (string, error) {
	if !n.settings.configured() || n.sender == nil {
		n.log.Warn().Msg("manager notification requested but mail is not configured")
		return "", ErrNotifierNotConfigured
	}

	var req ManagerRequest
	if err := decodeArguments(arguments, &req); err != nil {
		return "", err
	}

	msg := mailer.Message{
		To:      []string{n.settings.OperatorAddress},
		Subject: n.settings.Subject,
		Body:    composeBody(req),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.log.Error().Err(err).Str("contact", n.sanitizer.Contact(req.UserContact)).Msg("manager notification failed")
		return "", fmt.Errorf("sending email: %w", err)
	}

	n.log.Info().Str("contact", n.sanitizer.Contact(req.UserContact)).Msg("manager notified")
	return EmailSentText, nil
}

func composeBody(req ManagerRequest) string {
	var b strings.Builder
	b.WriteString("New inquiry received from Tetkool Bot.\n\n")
	b.WriteString("User Contact: " + req.UserContact + "\n")
	if req.UserName != "" {
		b.WriteString("User Name: " + req.UserName + "\n")
	}
	b.WriteString("\nQuestion/Issue:\n")
	b.WriteString(req.UserQuestion)
	b.WriteString("\n")
	return b.String()
}
