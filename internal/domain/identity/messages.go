package identity

import (
	"fmt"
	"html/template"
	"strings"
)

// actionTmpl is the shared layout for single-button emails (verification,
// password reset).
var actionTmpl = template.Must(template.New("action").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>{{.Heading}}</h2>
  <p>{{.Body}}</p>
  <p><a href="{{.ActionURL}}" style="display: inline-block; padding: 10px 20px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 6px;">{{.ActionLabel}}</a></p>
  <p>If the button does not work, paste this link into your browser:</p>
  <p>{{.ActionURL}}</p>
  <p>If you did not request this, you can ignore this email.</p>
</body>
</html>`))

var invitationTmpl = template.Must(template.New("invitation").Parse(`<html>
<body style="font-family: Arial, sans-serif; color: #1f2937;">
  <h2>You're invited to Event Leads</h2>
  <p>{{.InviterName}} has invited you to join their organization on Event Leads.</p>
  <p><a href="{{.AcceptURL}}" style="display: inline-block; padding: 10px 20px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 6px;">Accept invitation</a></p>
  <p>This invitation expires in {{.TTLHours}} hours. If the button does not work, paste this link into your browser:</p>
  <p>{{.AcceptURL}}</p>
</body>
</html>`))

type actionEmail struct {
	Heading     string
	Body        string
	ActionLabel string
	ActionURL   string
}

func renderActionEmail(data actionEmail) (plain, html string) {
	plain = fmt.Sprintf("%s\n\n%s: %s\n\nIf you did not request this, you can ignore this email.",
		data.Body, data.ActionLabel, data.ActionURL)

	var b strings.Builder
	if err := actionTmpl.Execute(&b, data); err != nil {
		return plain, ""
	}
	return plain, b.String()
}

func renderVerificationEmail(verifyURL string) (plain, html string) {
	return renderActionEmail(actionEmail{
		Heading:     "Verify your account",
		Body:        "Welcome to Event Leads. Confirm your email address to activate your account.",
		ActionLabel: "Verify email",
		ActionURL:   verifyURL,
	})
}

func renderResetEmail(resetURL string) (plain, html string) {
	return renderActionEmail(actionEmail{
		Heading:     "Reset your password",
		Body:        "A password reset was requested for your Event Leads account.",
		ActionLabel: "Reset password",
		ActionURL:   resetURL,
	})
}

func renderInvitationEmail(inviterName, acceptURL string, ttlHours int) (plain, html string) {
	plain = fmt.Sprintf(
		"%s has invited you to join their organization on Event Leads.\n\nAccept the invitation: %s\n\nThis invitation expires in %d hours.",
		inviterName, acceptURL, ttlHours)

	var b strings.Builder
	data := struct {
		InviterName string
		AcceptURL   string
		TTLHours    int
	}{inviterName, acceptURL, ttlHours}
	if err := invitationTmpl.Execute(&b, data); err != nil {
		return plain, ""
	}
	return plain, b.String()
}
