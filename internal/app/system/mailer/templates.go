// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/dalemusser/tenantgate/internal/app/system/htmlsanitize"
)

// InvitationEmailData holds data for the invitation email.
type InvitationEmailData struct {
	To               string
	SiteName         string
	OrganizationName string
	Role             string
	InviterName      string
	AcceptURL        string
	ExpiresAt        time.Time
	Note             string // optional personal note from the inviter; sanitized
}

// BuildInvitationEmail creates an invitation email with both HTML and text bodies.
func BuildInvitationEmail(data InvitationEmailData) Email {
	return Email{
		To:       data.To,
		Subject:  fmt.Sprintf("You're invited to join %s on %s", data.OrganizationName, data.SiteName),
		TextBody: buildInvitationText(data),
		HTMLBody: buildInvitationHTML(data),
	}
}

func inviter(data InvitationEmailData) string {
	if data.InviterName != "" {
		return data.InviterName
	}
	return "A team administrator"
}

func buildInvitationText(data InvitationEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s invited you to join %s on %s as %s.\n\n", inviter(data), data.OrganizationName, data.SiteName, data.Role)
	if data.Note != "" {
		buf.WriteString(data.Note + "\n\n")
	}
	buf.WriteString("Accept the invitation:\n")
	buf.WriteString(data.AcceptURL + "\n\n")
	if !data.ExpiresAt.IsZero() {
		fmt.Fprintf(&buf, "This invitation expires on %s.\n\n", data.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST"))
	}
	buf.WriteString("If you were not expecting this invitation, you can safely ignore this email.\n")
	return buf.String()
}

var invitationTmpl = template.Must(template.New("invitation").Parse(invitationHTMLTemplate))

func buildInvitationHTML(data InvitationEmailData) string {
	view := struct {
		InvitationEmailData
		Inviter string
		NoteHTML template.HTML
		Expires  string
	}{
		InvitationEmailData: data,
		Inviter:             inviter(data),
		NoteHTML:            htmlsanitize.PrepareForDisplay(data.Note),
	}
	if !data.ExpiresAt.IsZero() {
		view.Expires = data.ExpiresAt.UTC().Format("January 2, 2006 15:04 MST")
	}
	var buf bytes.Buffer
	_ = invitationTmpl.Execute(&buf, view)
	return buf.String()
}

const invitationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Invitation</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 22px; font-weight: 600; color: #0f766e;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
                {{.Inviter}} invited you to join <strong>{{.OrganizationName}}</strong> as <strong>{{.Role}}</strong>.
              </p>
              {{if .NoteHTML}}<div style="margin: 0 0 24px; padding: 16px; background-color: #f9fafb; border-left: 3px solid #0f766e; color: #4b5563; font-size: 14px;">{{.NoteHTML}}</div>{{end}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.AcceptURL}}" style="display: inline-block; padding: 14px 32px; background-color: #0f766e; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Accept invitation
                    </a>
                  </td>
                </tr>
              </table>
              {{if .Expires}}<p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">This invitation expires on {{.Expires}}.</p>{{end}}
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                If you were not expecting this invitation, you can safely ignore this email.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
