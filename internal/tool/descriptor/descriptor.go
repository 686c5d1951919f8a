package descriptor

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const fileMode os.FileMode = 0o644

//go:embed jnlp.tmpl
var defaultTemplate string

// Data is the template context.
type Data struct {
	Spec           string
	Codebase       string
	Href           string
	MainClass      string
	J2SEVersion    string
	AllPermissions bool
	OfflineAllowed bool
	Information    []Information
	Jars           []Jar
	Arguments      []string
}

// Information is one information block.
type Information struct {
	Title       string
	Vendor      string
	Homepage    string
	Description string
	Locale      string
	Icons       []Icon
}

// Icon references a staged image relative to the codebase.
type Icon struct {
	Href   string
	Kind   string
	Width  int
	Height int
}

// Jar is a staged jar; Main marks the one holding the entry point.
type Jar struct {
	Href string
	Main bool
}

// Generator renders descriptors from a parsed template.
type Generator struct {
	tmpl *template.Template
}

// New parses the template at path, or the embedded one when path is empty.
func New(path string) (*Generator, error) {
	text := defaultTemplate
	name := "jnlp"

	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read descriptor template: %w", err)
		}

		text = string(contents)
		name = filepath.Base(path)
	}

	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{"xml": escape}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse descriptor template: %w", err)
	}

	return &Generator{tmpl: tmpl}, nil
}

// Generate renders data to outPath. The file is only rewritten when its
// contents change, so an unchanged descriptor keeps its timestamp.
func (g *Generator) Generate(ctx context.Context, data *Data, outPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return false, fmt.Errorf("render descriptor: %w", err)
	}

	current, err := os.ReadFile(filepath.Clean(outPath))

	switch {
	case err == nil && bytes.Equal(current, buf.Bytes()):
		return false, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("read descriptor: %w", err)
	}

	if err = os.WriteFile(outPath, buf.Bytes(), fileMode); err != nil {
		return false, fmt.Errorf("write descriptor: %w", err)
	}

	return true, nil
}

func escape(value any) (string, error) {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(fmt.Sprint(value))); err != nil {
		return "", err
	}

	return b.String(), nil
}
