package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

// templateData is what the confirmation and reset templates see.
type templateData struct {
	Name            string
	SiteName        string
	ConfirmationURL string
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
    <h2>Confirm your signup</h2>
    <p>Hello {{ .Name }},</p>
    <p>Thanks for signing up to {{ .SiteName }}. Follow this link to confirm your email address:</p>
    <p><a href="{{ .ConfirmationURL }}">Confirm your email</a></p>
    <p style="color: #666; font-size: 12px;">If you did not create an account, you can ignore this email.</p>
  </div>
</body>
</html>`))

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f4f4f4; padding: 20px;">
  <div style="max-width: 600px; margin: 0 auto; background-color: white; padding: 30px; border-radius: 10px;">
    <h2>Reset your password</h2>
    <p>Hello {{ .Name }},</p>
    <p>Follow this link to choose a new password for your {{ .SiteName }} account:</p>
    <p><a href="{{ .ConfirmationURL }}">Reset password</a></p>
    <p style="color: #666; font-size: 12px;">If you did not request a password reset, you can ignore this email.</p>
  </div>
</body>
</html>`))

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
