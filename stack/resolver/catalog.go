package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/acksell/gqlstack"
)

type templateKey struct {
	typ   gqlstack.OperationType
	field string
	kind  gqlstack.TemplateKind
}

// Catalog holds every mapping template found under a resolver directory,
// keyed by (type, field, kind). It is loaded once before binding starts.
type Catalog struct {
	dir       string
	templates map[templateKey]string
}

// NewCatalog returns an empty catalog rooted at dir. dir is only used to
// report convention paths in errors.
func NewCatalog(dir string) *Catalog {
	return &Catalog{dir: dir, templates: make(map[templateKey]string)}
}

// LoadCatalog scans dir in fsys for files named {Type}.{field}.{req|res}.vtl.
// Other files are ignored. A missing directory yields an empty catalog, so the
// lookups themselves report which template is absent.
func LoadCatalog(fsys fs.FS, dir string) (*Catalog, error) {
	c := NewCatalog(dir)
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("reading resolver templates: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		key, ok := parseTemplateName(e.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading resolver template %s: %w", e.Name(), err)
		}
		c.templates[key] = string(data)
	}
	return c, nil
}

// Add registers a template body, replacing any previous one.
func (c *Catalog) Add(typ gqlstack.OperationType, field string, kind gqlstack.TemplateKind, body string) {
	c.templates[templateKey{typ, field, kind}] = body
}

// Lookup returns the template for the field or a TemplateNotFoundError.
func (c *Catalog) Lookup(typ gqlstack.OperationType, field string, kind gqlstack.TemplateKind) (string, error) {
	body, ok := c.templates[templateKey{typ, field, kind}]
	if !ok {
		return "", gqlstack.TemplateNotFoundError{
			Type:  typ,
			Field: field,
			Kind:  kind,
			Path:  path.Join(c.dir, gqlstack.TemplateFileName(typ, field, kind)),
		}
	}
	return body, nil
}

func (c *Catalog) Len() int {
	return len(c.templates)
}

func parseTemplateName(name string) (templateKey, bool) {
	base, ok := strings.CutSuffix(name, ".vtl")
	if !ok {
		return templateKey{}, false
	}
	parts := strings.Split(base, ".")
	if len(parts) != 3 || parts[1] == "" {
		return templateKey{}, false
	}
	typ, err := gqlstack.ParseOperationType(parts[0])
	if err != nil {
		return templateKey{}, false
	}
	kind := gqlstack.TemplateKind(parts[2])
	if kind != gqlstack.RequestTemplate && kind != gqlstack.ResponseTemplate {
		return templateKey{}, false
	}
	return templateKey{typ: typ, field: parts[1], kind: kind}, true
}
