// Package templates holds the immutable workflow template definitions and
// resolves user selections to templates.
package templates

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sahilm/fuzzy"

	"github.com/pressflow/pressflow/pkg/models"
)

// ErrTemplateNotFound is returned when no template matches a lookup
var ErrTemplateNotFound = errors.New("workflow template not found")

// Registry is an immutable lookup table of workflow templates. Build it
// once at startup; it is safe for concurrent readers.
type Registry struct {
	byID    map[models.TemplateID]*models.WorkflowTemplate
	ordered []*models.WorkflowTemplate
	names   []string
}

// NewRegistry builds a registry from the given templates, validating each
func NewRegistry(templates ...*models.WorkflowTemplate) (*Registry, error) {
	r := &Registry{
		byID: make(map[models.TemplateID]*models.WorkflowTemplate, len(templates)),
	}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid workflow template")
		}
		if _, exists := r.byID[t.ID]; exists {
			return nil, errors.Errorf("duplicate template id %q", t.ID)
		}
		r.byID[t.ID] = t
		r.ordered = append(r.ordered, t)
		r.names = append(r.names, t.Name)
	}
	return r, nil
}

// Get returns a template by its stable identifier
func (r *Registry) Get(id models.TemplateID) (*models.WorkflowTemplate, error) {
	t, ok := r.byID[id]
	if !ok {
		return nil, errors.Wrapf(ErrTemplateNotFound, "id %q", id)
	}
	return t, nil
}

// List returns all templates in registration order
func (r *Registry) List() []*models.WorkflowTemplate {
	out := make([]*models.WorkflowTemplate, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns the registered template names in registration order
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Resolve maps a free-text selection to a template. Matching is exact
// (case-insensitive) first, then substring in either direction, then fuzzy.
// Returns ErrTemplateNotFound when nothing plausible matches.
func (r *Registry) Resolve(selection string) (*models.WorkflowTemplate, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return nil, errors.Wrap(ErrTemplateNotFound, "empty selection")
	}

	lower := strings.ToLower(selection)
	for _, t := range r.ordered {
		if strings.ToLower(t.Name) == lower {
			return t, nil
		}
	}

	for _, t := range r.ordered {
		name := strings.ToLower(t.Name)
		if strings.Contains(name, lower) || strings.Contains(lower, name) {
			return t, nil
		}
	}

	matches := fuzzy.Find(selection, r.names)
	if len(matches) > 0 {
		return r.ordered[matches[0].Index], nil
	}

	return nil, errors.Wrapf(ErrTemplateNotFound, "selection %q", selection)
}
