package mail

import (
	"bytes"
	"fmt"
	"html/template"

	"failboard/internal/models"
)

type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[models.EmailTemplate]emailTemplate{
	models.TemplateWelcome: parse("welcome",
		`Welcome to FailBoard, {{.name}}!`,
		`<h2>Welcome, {{.name}}!</h2>
<p>FailBoard is where people share the things that went wrong, and what they learned.</p>
<p>Post your first story at <a href="{{.appURL}}">{{.appURL}}</a>. Anonymous posts are always an option.</p>`),

	models.TemplateNotification: parse("notification",
		`{{.message}}`,
		`<p>{{.message}}</p>
{{if .storyText}}<blockquote>{{.storyText}}</blockquote>{{end}}
<p><a href="{{.appURL}}">Open FailBoard</a></p>
<p style="font-size:12px;color:#888">You can turn these e-mails off in your profile settings.</p>`),

	models.TemplateDigest: parse("digest",
		`Your FailBoard weekly digest`,
		`<h2>This week on FailBoard</h2>
<p>{{.newStories}} new stories, {{.totalVotes}} votes, {{.newUsers}} new members.</p>
<ol>
{{range .stories}}<li><strong>{{.author}}</strong>: {{.text}} ({{.votes}} votes)</li>
{{end}}</ol>
<p><a href="{{.appURL}}">Read more</a></p>`),
}

func parse(name, subject, body string) emailTemplate {
	return emailTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name).Parse(body)),
	}
}

// Render returns the subject and HTML body for tpl.
func Render(tpl models.EmailTemplate, vars map[string]any) (string, string, error) {
	t, ok := templates[tpl]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", tpl)
	}
	var subject, body bytes.Buffer
	if err := t.subject.Execute(&subject, vars); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", tpl, err)
	}
	if err := t.body.Execute(&body, vars); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", tpl, err)
	}
	return subject.String(), body.String(), nil
}
