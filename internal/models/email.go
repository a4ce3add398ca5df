package models

type EmailTemplate string

const (
	TemplateWelcome      EmailTemplate = "welcome"
	TemplateNotification EmailTemplate = "notification"
	TemplateDigest       EmailTemplate = "digest"
)

// EmailMsg travels through email_queue. Either To or RecipientID is set; the
// consumer resolves RecipientID to an address and checks preferences.
type EmailMsg struct {
	Template    EmailTemplate  `json:"template"`
	To          string         `json:"to,omitempty"`
	RecipientID string         `json:"recipient_id,omitempty"`
	Vars        map[string]any `json:"vars"`
}
