package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"

	"github.com/arklim/petclub-iam/internal/core/port"
)

const (
	resetSubject       = "Pet Club: reset your password"
	credentialsSubject = "Pet Club: your account is ready"
)

var (
	resetText = texttemplate.Must(texttemplate.New("reset").Parse(
		`Hello {{.Name}},

We received a request to reset your Pet Club password.
Open the link below within {{.Validity}} to choose a new one:

{{.Link}}

If you did not ask for this, you can ignore this message.
`))

	resetHTML = htmltemplate.Must(htmltemplate.New("reset").Parse(
		`<p>Hello {{.Name}},</p>
<p>We received a request to reset your Pet Club password.
Open the link below within {{.Validity}} to choose a new one:</p>
<p><a href="{{.Link}}">Reset my password</a></p>
<p>If you did not ask for this, you can ignore this message.</p>
`))

	credentialsText = texttemplate.Must(texttemplate.New("credentials").Parse(
		`Hello {{.Name}},

An account with role {{.Role}} was created for you on Pet Club.

Email: {{.Email}}
Password: {{.Password}}

Please sign in and change your password.
`))

	credentialsHTML = htmltemplate.Must(htmltemplate.New("credentials").Parse(
		`<p>Hello {{.Name}},</p>
<p>An account with role <strong>{{.Role}}</strong> was created for you on Pet Club.</p>
<ul><li>Email: {{.Email}}</li><li>Password: {{.Password}}</li></ul>
<p>Please sign in and change your password.</p>
`))
)

// ResetLink appends email and token as query parameters to base.
func ResetLink(base, email, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse reset link base: %w", err)
	}
	q := u.Query()
	q.Set("email", email)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type resetData struct {
	Name     string
	Link     string
	Validity string
}

// ResetPasswordMessage renders the password reset email.
func ResetPasswordMessage(to, name, link, validity string) (port.MailMessage, error) {
	data := resetData{Name: name, Link: link, Validity: validity}
	return render(to, resetSubject, resetText, resetHTML, data)
}

type credentialsData struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// CredentialsMessage renders the email sent when an administrator creates an account.
func CredentialsMessage(to, name, password, role string) (port.MailMessage, error) {
	data := credentialsData{Name: name, Email: to, Password: password, Role: role}
	return render(to, credentialsSubject, credentialsText, credentialsHTML, data)
}

func render(to, subject string, text *texttemplate.Template, html *htmltemplate.Template, data any) (port.MailMessage, error) {
	var textBuf, htmlBuf bytes.Buffer
	if err := text.Execute(&textBuf, data); err != nil {
		return port.MailMessage{}, fmt.Errorf("render %s text: %w", text.Name(), err)
	}
	if err := html.Execute(&htmlBuf, data); err != nil {
		return port.MailMessage{}, fmt.Errorf("render %s html: %w", html.Name(), err)
	}
	return port.MailMessage{
		To:       to,
		Subject:  subject,
		TextBody: textBuf.String(),
		HTMLBody: htmlBuf.String(),
	}, nil
}
