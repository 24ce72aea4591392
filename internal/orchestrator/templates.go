package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"briefdesk/internal/logging"

	"gopkg.in/yaml.v3"
)

// Template shapes the prompt for one source. Loaded from
// .briefdesk/templates/<name>.yaml, falling back to a built-in default.
type Template struct {
	Source       string `yaml:"source"`
	Role         string `yaml:"role"`         // system-side persona line
	Instructions string `yaml:"instructions"` // task framing shown before the payload
}

// defaultTemplate covers any source without a file of its own.
var defaultTemplate = Template{
	Source:       "default",
	Role:         "You are an assistant that writes operator-ready digests of workplace activity.",
	Instructions: "Summarize the following activity records. Call out anything that needs a reply or a decision.",
}

// TemplateRegistry holds the per-source templates and supports reload.
type TemplateRegistry struct {
	mu        sync.RWMutex
	dir       string
	templates map[string]Template
}

// NewTemplateRegistry loads templates from dir. A missing directory is
// fine; every source then uses the built-in default.
func NewTemplateRegistry(dir string) *TemplateRegistry {
	r := &TemplateRegistry{
		dir:       dir,
		templates: make(map[string]Template),
	}
	if err := r.Reload(); err != nil {
		logging.Get(logging.CategoryTemplates).Warn("initial template load failed: %v", err)
	}
	return r
}

// Get returns the template for a source, falling back to the default.
func (r *TemplateRegistry) Get(source string) Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.templates[source]; ok {
		return t
	}
	return defaultTemplate
}

// Put registers a template in memory. Used by tests and by callers that
// assemble templates programmatically.
func (r *TemplateRegistry) Put(t Template) {
	if t.Source == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.Source] = t
}

// Reload re-reads every *.yaml file in the template directory. The
// registry swap is atomic: readers see either the old or the new set.
func (r *TemplateRegistry) Reload() error {
	if r.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read template dir: %w", err)
	}

	loaded := make(map[string]Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Get(logging.CategoryTemplates).Warn("skipping unreadable template %s: %v", path, err)
			continue
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			logging.Get(logging.CategoryTemplates).Warn("skipping unparseable template %s: %v", path, err)
			continue
		}
		if t.Source == "" {
			t.Source = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		loaded[t.Source] = t
	}

	r.mu.Lock()
	r.templates = loaded
	r.mu.Unlock()

	logging.Templates("loaded %d prompt templates from %s", len(loaded), r.dir)
	return nil
}
