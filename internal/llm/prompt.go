package llm

import (
	"fmt"
	"strings"
	"text/template"
)

// Prompt is a system/user template pair rendered with a struct of variables.
type Prompt struct {
	Name   string
	system *template.Template
	user   *template.Template
}

func MustPrompt(name, system, user string) *Prompt {
	return &Prompt{
		Name:   name,
		system: template.Must(template.New(name + ".system").Option("missingkey=error").Parse(system)),
		user:   template.Must(template.New(name + ".user").Option("missingkey=error").Parse(user)),
	}
}

// Render builds a Request for vars with the given params and optional schema.
func (p *Prompt) Render(vars any, params Params, schema *Schema) (Request, error) {
	system, err := execute(p.system, vars)
	if err != nil {
		return Request{}, fmt.Errorf("render %s system prompt: %w", p.Name, err)
	}
	user, err := execute(p.user, vars)
	if err != nil {
		return Request{}, fmt.Errorf("render %s user prompt: %w", p.Name, err)
	}
	return Request{
		Operation: p.Name,
		System:    system,
		User:      user,
		Params:    params,
		Schema:    schema,
	}, nil
}

func execute(t *template.Template, vars any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", err
	}
	return b.String(), nil
}
