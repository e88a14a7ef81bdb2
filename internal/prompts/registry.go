package prompts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Template is a named prompt with {placeholder} substitution slots.
type Template struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Text        string `yaml:"text"`
}

// Render substitutes the given variables into the template text.
// Placeholders use {name} syntax; unknown placeholders are left untouched so
// literal braces in prompt bodies (JSON examples and the like) survive.
func (t *Template) Render(vars map[string]string) string {
	out := t.Text
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// Registry holds prompt templates by name. Built-in defaults are always
// present; an optional overlay directory replaces templates by name.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	logger    *zap.Logger
}

// NewRegistry creates a registry seeded with the built-in templates.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		templates: make(map[string]*Template),
		logger:    logger,
	}
	for _, tpl := range builtinTemplates() {
		r.templates[tpl.Name] = tpl
	}
	return r
}

// LoadDirectory scans a directory for *.yaml templates and overlays them by
// name. A missing directory is skipped silently (overlays are optional).
func (r *Registry) LoadDirectory(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat prompts directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || (filepath.Ext(path) != ".yaml" && filepath.Ext(path) != ".yml") {
			return nil
		}
		return r.loadFile(path)
	})
}

func (r *Registry) loadFile(path string) error {
	tpl, err := LoadTemplateFromFile(path)
	if err != nil {
		return err
	}
	if tpl.Name == "" {
		return fmt.Errorf("template %s has no name", path)
	}
	if tpl.Text == "" {
		return fmt.Errorf("template %s (%s) has empty text", tpl.Name, path)
	}

	r.mu.Lock()
	r.templates[tpl.Name] = tpl
	r.mu.Unlock()

	r.logger.Debug("Loaded prompt template",
		zap.String("name", tpl.Name),
		zap.String("path", path),
	)
	return nil
}

// Get returns the template with the given name.
func (r *Registry) Get(name string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("prompt template %q not found", name)
	}
	return tpl, nil
}

// Render looks up a template and substitutes vars into it.
func (r *Registry) Render(name string, vars map[string]string) (string, error) {
	tpl, err := r.Get(name)
	if err != nil {
		return "", err
	}
	return tpl.Render(vars), nil
}

// MustHave verifies that every named template is present. Called once at
// startup so a missing template is a configuration error, never a per-query
// surprise.
func (r *Registry) MustHave(names ...string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []string
	for _, name := range names {
		if _, ok := r.templates[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing prompt templates: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Names returns the sorted names of all registered templates.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
