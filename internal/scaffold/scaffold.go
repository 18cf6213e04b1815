// Package scaffold renders new migration unit descriptors from a
// template. The default template produces a minimal descriptor pointing
// at the two companion script files; callers may substitute their own
// template file carrying the same placeholders.
package scaffold

import (
	"bytes"
	"io/ioutil"
	"text/template"

	"github.com/pkg/errors"
)

const defaultTemplate = `# Migration unit. Edit the referenced scripts, not this file.
up: {{.Up}}
down: {{.Down}}
`

// Data carries the placeholder values: paths of the forward and reverse
// scripts, relative to the migrations folder.
type Data struct {
	Key  string
	Up   string
	Down string
}

// Render produces the descriptor contents. An empty templatePath selects
// the built-in template.
func Render(templatePath string, data Data) (string, error) {
	text := defaultTemplate

	if templatePath != "" {
		b, err := ioutil.ReadFile(templatePath)
		if err != nil {
			return "", errors.Wrapf(err, "could not read template [%s]", templatePath)
		}
		text = string(b)
	}

	tpl, err := template.New("unit").Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "could not parse template [%s]", templatePath)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "could not render migration unit template")
	}

	return buf.String(), nil
}
