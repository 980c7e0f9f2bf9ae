package catalog

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/swms-manager/internal/swms"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var builtin []byte

var ErrTemplateNotFound = errors.New("template not found")

type file struct {
	Templates       []swms.Template     `yaml:"templates"`
	CompanyDefaults swms.CompanyDetails `yaml:"companyDefaults"`
}

type Category struct {
	Name      string          `json:"name"`
	Templates []swms.Template `json:"templates"`
}

// Catalog is the read-only set of job step templates. Reload swaps the whole
// set at once; readers never see a partially loaded catalog.
type Catalog struct {
	mu        sync.RWMutex
	templates []swms.Template
	byKey     map[string]swms.Template
	defaults  swms.CompanyDetails
	logger    *zap.Logger
}

// New loads the built-in catalog.
func New(logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{logger: logger.With(zap.String("component", "catalog"))}
	if err := c.load(builtin); err != nil {
		return nil, fmt.Errorf("failed to load built-in catalog: %w", err)
	}
	return c, nil
}

// NewFromFile loads an override catalog from disk.
func NewFromFile(path string, logger *zap.Logger) (*Catalog, error) {
	c := &Catalog{logger: logger.With(zap.String("component", "catalog"))}
	if err := c.ReloadFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) ReloadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}
	if err := c.load(data); err != nil {
		return fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	return nil
}

func (c *Catalog) load(data []byte) error {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	if len(f.Templates) == 0 {
		return errors.New("catalog has no templates")
	}

	byKey := make(map[string]swms.Template, len(f.Templates))
	for _, t := range f.Templates {
		if t.Key == "" {
			return fmt.Errorf("template %q has no key", t.Name)
		}
		if _, dup := byKey[t.Key]; dup {
			return fmt.Errorf("duplicate template key %q", t.Key)
		}
		byKey[t.Key] = t
	}

	c.mu.Lock()
	c.templates = f.Templates
	c.byKey = byKey
	c.defaults = f.CompanyDefaults
	c.mu.Unlock()

	c.logger.Info("Template catalog loaded", zap.Int("templates", len(f.Templates)))
	return nil
}

func (c *Catalog) Get(key string) (swms.Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byKey[key]
	if !ok {
		return swms.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	return t, nil
}

// Lookup resolves several keys, failing on the first unknown one.
func (c *Catalog) Lookup(keys []string) ([]swms.Template, error) {
	out := make([]swms.Template, 0, len(keys))
	for _, k := range keys {
		t, err := c.Get(k)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Catalog) List() []swms.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]swms.Template(nil), c.templates...)
}

// Categories groups templates in the order categories first appear.
func (c *Catalog) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	index := map[string]int{}
	var out []Category
	for _, t := range c.templates {
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, Category{Name: t.Category})
		}
		out[i].Templates = append(out[i].Templates, t)
	}
	return out
}

func (c *Catalog) CompanyDefaults() swms.CompanyDetails {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.defaults
}

// Watch reloads the catalog whenever path is written or replaced. A file that
// fails to parse is logged and the previous catalog stays in place. Watch
// blocks until ctx is done.
func (c *Catalog) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that rename-and-replace are still seen.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.ReloadFile(path); err != nil {
				c.logger.Warn("Catalog reload failed, keeping previous templates", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("Catalog watcher error", zap.Error(err))
		}
	}
}
