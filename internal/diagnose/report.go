package diagnose

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"
)

// WriteText prints one line per check.
func (r Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", strings.ToUpper(string(res.Status)), res.Name, res.Detail)
	}
	return tw.Flush()
}

var guideTemplate = template.Must(template.New("guide").Funcs(template.FuncMap{
	"upper":    func(s Status) string { return strings.ToUpper(string(s)) },
	"sqlquote": func(s string) string { return "'" + strings.ReplaceAll(s, "'", "''") + "'" },
}).Parse(`# sparkclean auth and email guide

Generated {{ .GeneratedAt.Format "2006-01-02 15:04 MST" }}.

| Check | Status | Detail |
|---|---|---|
{{- range .Results }}
| {{ .Name }} | {{ upper .Status }} | {{ .Detail }} |
{{- end }}
{{ range .Results }}{{ if .Fix }}
## {{ .Name }}

{{ .Fix }}
{{ end }}{{ end }}
{{- if .Unconfirmed }}
## Unconfirmed accounts

{{ range .Unconfirmed }}- {{ .Email }} (signed up {{ .CreatedAt.Format "2006-01-02" }})
{{ end }}
To confirm one account by hand:

` + "```sql" + `
UPDATE users SET email_confirmed = TRUE WHERE email = {{ sqlquote (index .Unconfirmed 0).Email }};
` + "```" + `

To confirm every account at once:

` + "```sql" + `
UPDATE users SET email_confirmed = TRUE WHERE email_confirmed = FALSE;
` + "```" + `
{{ end }}`))

// WriteGuide renders a Markdown guide with the failing checks, their fixes
// and SQL for confirming accounts by hand.
func (r Report) WriteGuide(w io.Writer) error {
	return guideTemplate.Execute(w, r)
}
