// Package scaffold lays out a working directory for usersd: an empty user
// document plus sample configuration.
package scaffold

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"text/template"

	"github.com/spf13/afero"

	"github.com/brattlof/usersdb/internal/store"
)

type Options struct {
	Name     string
	Dir      string
	DataPath string
	Port     int
	Force    bool
}

type templateData struct {
	Name     string
	Port     int
	DataPath string
	DataDir  string
}

var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-_]*$`)

func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if len(name) > 100 {
		return fmt.Errorf("name too long (max 100 characters)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("name must be lowercase alphanumeric, dashes, or underscores (e.g., my-users)")
	}
	return nil
}

// Init writes the project files into opts.Dir and returns the paths it
// wrote. Unless Force is set, nothing is written when any target exists.
func Init(fsys afero.Fs, opts Options) ([]string, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if opts.Name == "" {
		opts.Name = "usersd"
	}
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.DataPath == "" {
		opts.DataPath = "data/db.json"
	}
	if opts.Port == 0 {
		opts.Port = 3001
	}

	data := templateData{
		Name:     opts.Name,
		Port:     opts.Port,
		DataPath: filepath.ToSlash(opts.DataPath),
		DataDir:  filepath.ToSlash(filepath.Dir(opts.DataPath)),
	}

	files := make(map[string][]byte, len(projectFiles)+1)
	order := make([]string, 0, len(projectFiles)+1)

	doc, err := store.Encode(&store.Document{})
	if err != nil {
		return nil, err
	}
	docPath := filepath.Join(opts.Dir, opts.DataPath)
	files[docPath] = doc
	order = append(order, docPath)

	for _, f := range projectFiles {
		content, err := render(f.template, data)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", f.target, err)
		}
		target := filepath.Join(opts.Dir, f.target)
		files[target] = content
		order = append(order, target)
	}

	if !opts.Force {
		for _, p := range order {
			exists, err := afero.Exists(fsys, p)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, fmt.Errorf("%s already exists (use --force to overwrite)", p)
			}
		}
	}

	for _, p := range order {
		if err := fsys.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", p, err)
		}
		if err := afero.WriteFile(fsys, p, files[p], 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", p, err)
		}
	}

	return order, nil
}

func render(name string, data templateData) ([]byte, error) {
	content, err := templatesFS.ReadFile(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(filepath.Base(name)).Parse(string(content))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
