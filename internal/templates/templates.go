// Package templates renders markdown documents for specifications.
//
// Templates are embedded at build time so the binary has no runtime file
// dependencies.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/omjikush09/aggroso/internal/specs"
)

//go:embed files/*.md.tmpl
var files embed.FS

// Template names.
const (
	Export = "export.md.tmpl"
)

// Renderer renders the embedded templates.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(files, "files/*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data any) (string, error) {
	if r.tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

// ExportData feeds the Export template.
type ExportData struct {
	Stories []specs.Story
	Groups  []TaskGroup
}

// TaskGroup is one "### Group" section of the export.
type TaskGroup struct {
	Name  string
	Title string
	Tasks []specs.Task
}

// NewExportData groups tasks by label in order of first appearance.
// A blank label is exported as "ungrouped".
func NewExportData(spec specs.Specification) ExportData {
	var groups []TaskGroup
	index := map[string]int{}
	for _, task := range spec.Output.Tasks {
		key := task.Group
		if key == "" {
			key = specs.GroupUngrouped
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, TaskGroup{Name: key, Title: capitalize(key)})
		}
		groups[i].Tasks = append(groups[i].Tasks, task)
	}
	return ExportData{Stories: spec.Output.Stories, Groups: groups}
}

// Markdown renders spec with the Export template.
func (r *Renderer) Markdown(spec specs.Specification) (string, error) {
	return r.Render(Export, NewExportData(spec))
}

func capitalize(s string) string {
	first, size := utf8.DecodeRuneInString(s)
	if first == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(first)) + s[size:]
}
