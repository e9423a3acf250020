package deploy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"steward/internal/api"
	"steward/internal/command"
)

// RenderContext is the data every configuration template is executed with.
type RenderContext struct {
	Kind         api.ResourceKind
	ID           string
	Name         string
	Host         string
	Platform     api.Platform
	Groups       []string
	ServiceName  string
	InstanceDir  string
	InstanceHome string
	Properties   map[string]string
}

// NewRenderContext builds the template data for res.
func NewRenderContext(res api.Resource) RenderContext {
	props := make(map[string]string, len(res.Properties))
	for k, v := range res.Properties {
		props[k] = v
	}
	return RenderContext{
		Kind:         res.Ref.Kind,
		ID:           res.Ref.ID,
		Name:         res.Name,
		Host:         res.Host,
		Platform:     res.PlatformOrDefault(),
		Groups:       append([]string(nil), res.Groups...),
		ServiceName:  res.Service(),
		InstanceDir:  res.InstanceDir,
		InstanceHome: command.InstanceHome(res),
		Properties:   props,
	}
}

// Renderer produces the text of a named template for a resource.
type Renderer interface {
	Render(name string, data RenderContext) (string, error)
}

// TemplateRenderer renders files below a template directory with
// text/template and the sprig function library. Missing keys are errors.
type TemplateRenderer struct {
	dir string
}

// NewTemplateRenderer creates a renderer reading templates from dir.
func NewTemplateRenderer(dir string) *TemplateRenderer {
	return &TemplateRenderer{dir: dir}
}

// Render executes the template stored at dir/name.
func (r *TemplateRenderer) Render(name string, data RenderContext) (string, error) {
	raw, err := os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return RenderString(name, string(raw), data)
}

// RenderString executes text as a template named name.
func RenderString(name, text string, data RenderContext) (string, error) {
	tmpl, err := template.New(name).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// toCRLF converts line endings to CRLF, leaving existing CRLF pairs alone.
func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// launcherText applies the line ending convention of the launcher's name.
func launcherText(name, content string) string {
	if strings.EqualFold(filepath.Ext(name), ".bat") {
		return toCRLF(content)
	}
	return content
}
