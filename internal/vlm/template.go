package vlm

import (
	"fmt"
	"strings"
	"text/template"

	"medgate/internal/gateway"
)

// ChatMLTemplate wraps each message as <|im_start|>{role}\n{content}<|im_end|>\n
// and, for generation, appends an open assistant block.
const ChatMLTemplate = `{{range .Messages}}<|im_start|>{{.Role}}
{{.Content}}<|im_end|>
{{end}}{{if .AddGenerationPrompt}}<|im_start|>assistant
{{end}}`

var funcMap = template.FuncMap{
	"trim": strings.TrimSpace,
}

type templateData struct {
	Messages            []gateway.Message
	AddGenerationPrompt bool
	EosToken            string
}

// Template renders chat messages with a Go text/template.
type Template struct {
	tmpl         *template.Template
	systemPrompt string
	eosToken     string
}

// NewTemplate parses src (ChatMLTemplate when empty). A non-empty systemPrompt
// is prepended as a system message unless the caller supplies one.
func NewTemplate(src, systemPrompt, eosToken string) (*Template, error) {
	if strings.TrimSpace(src) == "" {
		src = ChatMLTemplate
	}
	t, err := template.New("chat").Funcs(funcMap).Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse chat template: %w", err)
	}
	return &Template{tmpl: t, systemPrompt: systemPrompt, eosToken: eosToken}, nil
}

// Apply implements gateway.ChatTemplate.
func (t *Template) Apply(messages []gateway.Message, addGenerationPrompt bool) (string, error) {
	msgs := messages
	if t.systemPrompt != "" && (len(messages) == 0 || messages[0].Role != "system") {
		msgs = make([]gateway.Message, 0, len(messages)+1)
		msgs = append(msgs, gateway.Message{Role: "system", Content: t.systemPrompt})
		msgs = append(msgs, messages...)
	}
	var b strings.Builder
	err := t.tmpl.Execute(&b, templateData{
		Messages:            msgs,
		AddGenerationPrompt: addGenerationPrompt,
		EosToken:            t.eosToken,
	})
	if err != nil {
		return "", fmt.Errorf("render chat template: %w", err)
	}
	return b.String(), nil
}
