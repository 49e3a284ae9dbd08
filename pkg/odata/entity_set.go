// Package odata exposes tenant-scoped entity sets through OData-style query
// options ($filter, $select, $orderby, $top, $skip, $count).
package odata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

type FieldType int

const (
	String FieldType = iota
	Int
	Bool
	Timestamp
	UUID
)

func (t FieldType) declType() *expr.Type {
	switch t {
	case Int:
		return filtering.TypeInt
	case Bool:
		return filtering.TypeBool
	case Timestamp:
		return filtering.TypeTimestamp
	default:
		return filtering.TypeString
	}
}

// Field maps a public name to a SQL expression. Hidden fields can be filtered
// and sorted but never selected.
type Field struct {
	Name       string
	Column     string
	Type       FieldType
	Hidden     bool
	NoFilter   bool
	NoSort     bool
	ExportName string
}

func (f Field) Label() string {
	if f.ExportName != "" {
		return f.ExportName
	}
	return f.Name
}

// Scope returns the mandatory WHERE fragments for a request, typically the
// tenant restriction. Placeholders must start at $1.
type Scope func(ctx context.Context) (where []string, args []any, err error)

type EntitySet struct {
	Name         string
	From         string
	Fields       []Field
	Scope        Scope
	DefaultOrder string
	// Resource is the permission required to read the set; empty means any
	// authenticated user.
	Resource string
	// Superadmin sets are global and only served to superadmins.
	Superadmin bool
	// Feature, when set, must be enabled for the caller's tenant.
	Feature string

	once    sync.Once
	decls   *filtering.Declarations
	declErr error
	byName  map[string]Field
}

func (s *EntitySet) init() {
	s.once.Do(func() {
		s.byName = make(map[string]Field, len(s.Fields))
		opts := []filtering.DeclarationOption{
			filtering.DeclareStandardFunctions(),
			// Juxtaposed terms ("a b") are treated as AND.
			filtering.DeclareFunction(filtering.FunctionFuzzyAnd,
				filtering.NewFunctionOverload(filtering.FunctionFuzzyAnd+"_bool", filtering.TypeBool, filtering.TypeBool, filtering.TypeBool)),
			filtering.DeclareIdent("true", filtering.TypeBool),
			filtering.DeclareIdent("false", filtering.TypeBool),
		}
		for _, f := range s.Fields {
			s.byName[f.Name] = f
			if !f.NoFilter {
				opts = append(opts, filtering.DeclareIdent(f.Name, f.Type.declType()))
			}
		}
		s.decls, s.declErr = filtering.NewDeclarations(opts...)
	})
}

func (s *EntitySet) Field(name string) (Field, bool) {
	s.init()
	f, ok := s.byName[name]
	return f, ok
}

func (s *EntitySet) declarations() (*filtering.Declarations, error) {
	s.init()
	return s.decls, s.declErr
}

// Visible returns the selectable fields in declaration order.
func (s *EntitySet) Visible() []Field {
	out := make([]Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.Hidden {
			out = append(out, f)
		}
	}
	return out
}

type Registry struct {
	mu   sync.RWMutex
	sets map[string]*EntitySet
}

func NewRegistry() *Registry {
	return &Registry{sets: make(map[string]*EntitySet)}
}

func (r *Registry) Register(sets ...*EntitySet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sets {
		if _, exists := r.sets[s.Name]; exists {
			panic(fmt.Sprintf("odata: entity set %q already registered", s.Name))
		}
		r.sets[s.Name] = s
	}
}

func (r *Registry) Get(name string) (*EntitySet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sets[name]
	return s, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for n := range r.sets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
