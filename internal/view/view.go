package view

import (
	"fmt"
	"sort"
	"sync"
)

// Row is one emitted index entry, shaped like a row of a database view
// response.
type Row struct {
	// ID is the _id of the document that emitted the row.
	ID    Value `json:"id,omitempty"`
	Key   any   `json:"key"`
	Value any   `json:"value"`
}

// Emitter receives the key/value pairs a view emits for one document.
type Emitter func(key, value any)

// View is a named map function.
//
// Map must be pure: it reads doc, may call emit any number of times, and
// keeps no state between calls. Implementations are safe for concurrent use.
type View interface {
	Name() string
	Map(doc *Document, emit Emitter)
}

// TypeFilter is implemented by views that only ever emit for one document
// type. Callers may skip decoding documents of any other type.
type TypeFilter interface {
	DocType() string
}

// MapFunc adapts a plain function into a View.
type MapFunc struct {
	ViewName string
	Fn       func(doc *Document, emit Emitter)
}

// Name implements View.
func (f MapFunc) Name() string { return f.ViewName }

// Map implements View.
func (f MapFunc) Map(doc *Document, emit Emitter) { f.Fn(doc, emit) }

// Collect runs v over doc and returns the emitted rows, stamped with the
// document's _id.
func Collect(v View, doc *Document) []Row {
	var rows []Row
	v.Map(doc, func(key, value any) {
		rows = append(rows, Row{ID: doc.DocID, Key: key, Value: value})
	})
	return rows
}

// Registry holds views by name.
type Registry struct {
	mu    sync.RWMutex
	views map[string]View
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[string]View)}
}

// Default returns a registry holding every view shipped with this package.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(JobsByStatusWorkflow{})
	return r
}

// Register adds v. Names must be unique and non-empty.
func (r *Registry) Register(v View) error {
	if v == nil || v.Name() == "" {
		return fmt.Errorf("view must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.views[v.Name()]; exists {
		return fmt.Errorf("view %q already registered", v.Name())
	}
	r.views[v.Name()] = v
	return nil
}

// Lookup returns the view registered under name.
func (r *Registry) Lookup(name string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[name]
	return v, ok
}

// Names returns the registered view names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.views))
	for name := range r.views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
