package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"
)

// Names of the built-in templates.
const (
	RouterSystem     = "router_system"
	RouterUser       = "router_user"
	RefinerSystem    = "refiner_system"
	RefinerUser      = "refiner_user"
	ExtractorSystem  = "extractor_system"
	ExtractorUser    = "extractor_user"
	SuggesterSystem  = "suggester_system"
	SuggesterUser    = "suggester_user"
	ItinerarySystem  = "itinerary_system"
	ItineraryUser    = "itinerary_user"
	DescriberSystem  = "describer_system"
	DescriberUser    = "describer_user"
	GroundingSystem  = "grounding_system"
	GroundingHeader  = "grounding_header"
	GroundingRules   = "grounding_rules"
	templateFileExt  = ".tmpl"
	templateFilesDir = "templates"
)

//go:embed templates/*.tmpl
var builtin embed.FS

// Template represents a prompt template with variables
type Template struct {
	Name     string
	Content  string
	template *template.Template
}

// NewTemplate creates a new prompt template
func NewTemplate(name, content string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return &Template{
		Name:     name,
		Content:  content,
		template: tmpl,
	}, nil
}

// Render renders the template with the given data (a map or a struct).
func (t *Template) Render(data any) (string, error) {
	var buf strings.Builder
	if err := t.template.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", t.Name, err)
	}
	return buf.String(), nil
}

// Manager manages prompt templates
// All operations are thread-safe using RWMutex protection
type Manager struct {
	mu        sync.RWMutex // Protects templates map
	templates map[string]*Template
}

// NewManager creates a new prompt manager
func NewManager() *Manager {
	return &Manager{
		templates: make(map[string]*Template),
	}
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process-wide manager holding the built-in templates.
func Default() *Manager {
	defaultOnce.Do(func() {
		m := NewManager()
		if err := m.LoadFS(builtin, templateFilesDir); err != nil {
			panic(fmt.Sprintf("prompt: load built-in templates: %v", err))
		}
		defaultManager = m
	})
	return defaultManager
}

// LoadFS registers every *.tmpl file in dir, named after the file without
// its extension. A single trailing newline is dropped from each file.
func (m *Manager) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read template dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != templateFileExt {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), templateFileExt)
		if err := m.RegisterString(name, strings.TrimSuffix(string(raw), "\n")); err != nil {
			return err
		}
	}
	return nil
}

// Register adds a template to the manager
func (m *Manager) Register(tmpl *Template) error {
	if tmpl.Name == "" {
		return fmt.Errorf("template name cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.templates[tmpl.Name]; exists {
		return fmt.Errorf("template %s already registered", tmpl.Name)
	}
	m.templates[tmpl.Name] = tmpl
	return nil
}

// RegisterString registers a template from string content
func (m *Manager) RegisterString(name, content string) error {
	tmpl, err := NewTemplate(name, content)
	if err != nil {
		return err
	}
	return m.Register(tmpl)
}

// Get retrieves a template by name
func (m *Manager) Get(name string) (*Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tmpl, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}
	return tmpl, nil
}

// Render renders a template by name with the given data
func (m *Manager) Render(name string, data any) (string, error) {
	tmpl, err := m.Get(name)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// MustRender is Render for the built-in templates, whose data shapes are
// fixed at compile time. It panics on error.
func (m *Manager) MustRender(name string, data any) string {
	out, err := m.Render(name, data)
	if err != nil {
		panic(err)
	}
	return out
}

// List returns all registered template names, sorted
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.templates))
	for name := range m.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Builder assembles a prompt from parts.
type Builder struct {
	parts []string
}

// NewBuilder creates a new prompt builder
func NewBuilder() *Builder {
	return &Builder{
		parts: make([]string, 0),
	}
}

// Add adds a part to the prompt
func (b *Builder) Add(part string) *Builder {
	b.parts = append(b.parts, part)
	return b
}

// AddFormat adds a formatted part to the prompt
func (b *Builder) AddFormat(format string, args ...any) *Builder {
	b.parts = append(b.parts, fmt.Sprintf(format, args...))
	return b
}

// AddIf adds part only when cond holds.
func (b *Builder) AddIf(cond bool, part string) *Builder {
	if cond {
		b.parts = append(b.parts, part)
	}
	return b
}

// Len reports the number of parts.
func (b *Builder) Len() int {
	return len(b.parts)
}

// Build joins the parts with sep.
func (b *Builder) Build(sep string) string {
	return strings.Join(b.parts, sep)
}

// Reset clears all parts
func (b *Builder) Reset() *Builder {
	b.parts = b.parts[:0]
	return b
}
