package email

import (
	"fmt"
	"html/template"
	"strings"
	"sync"
)

const (
	TemplateNotification = "notification"
	TemplateDigest       = "digest"
)

const notificationHTML = `<h2>{{.Title}}</h2>
<p>{{.Message}}</p>
{{if .ActionURL}}<p><a href="{{.ActionURL}}">Voir sur EcosystIA</a></p>{{end}}`

const digestHTML = `<h2>{{.Title}}</h2>
<p>Bonjour {{.Name}},</p>
<p>Vous avez {{.Unread}} notification(s) non lue(s) depuis {{.Period}}.</p>
<ul>{{range .Items}}<li><strong>{{.Title}}</strong> : {{.Message}}</li>{{end}}</ul>`

// TemplateManager holds parsed mail templates.
type TemplateManager struct {
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateManager returns a manager preloaded with the built-in templates.
func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{templates: make(map[string]*template.Template)}
	_ = tm.AddTemplate(TemplateNotification, notificationHTML)
	_ = tm.AddTemplate(TemplateDigest, digestHTML)
	return tm
}

func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()
	return nil
}
