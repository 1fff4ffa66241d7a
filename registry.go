package gdr

import (
	"reflect"
	"sync"
)

// =====================================
// Entity Metadata Registry
// =====================================

// Registry holds the entity descriptors of an application. It has a
// two-phase lifecycle: a single-threaded registration phase, closed by
// Freeze, after which the registry is immutable and safe for
// concurrent lookups. Registering after the freeze is a programming
// error, reported as a configuration error rather than raced.
type Registry struct {
	mu     sync.RWMutex
	frozen bool
	byName map[string]*EntityDescriptor
	byType map[reflect.Type]*EntityDescriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*EntityDescriptor),
		byType: make(map[reflect.Type]*EntityDescriptor),
	}
}

// Register inspects the prototype's type and records its descriptor.
// Registering the same type again is a no-op as long as the derived
// descriptor is identical; a conflicting re-registration and any
// mapping problem (missing or ambiguous identifier, unmappable field
// type) are configuration errors the application must treat as fatal.
//
// Relationship targets are validated when the registry is frozen, not
// here, so mutually-referencing entities can register in any order.
func (r *Registry) Register(prototype interface{}) (*EntityDescriptor, error) {
	desc, err := describeEntity(reflect.TypeOf(prototype))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[desc.Name]; ok {
		if existing.equal(desc) {
			return existing, nil
		}
		return nil, NewErrorf(ErrorKindConfiguration,
			"conflicting registration for entity %s", desc.Name)
	}
	if r.frozen {
		return nil, NewErrorf(ErrorKindConfiguration,
			"cannot register entity %s: registry is frozen", desc.Name)
	}

	r.byName[desc.Name] = desc
	r.byType[desc.GoType] = desc
	return desc, nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level registration in application startup code.
func (r *Registry) MustRegister(prototype interface{}) *EntityDescriptor {
	desc, err := r.Register(prototype)
	if err != nil {
		panic(err)
	}
	return desc
}

// Resolve looks up a descriptor by entity name.
func (r *Registry) Resolve(name string) (*EntityDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if desc, ok := r.byName[name]; ok {
		return desc, nil
	}
	return nil, NewErrorf(ErrorKindNotFound, "entity %s is not registered", name)
}

// ResolveType looks up a descriptor by Go type.
func (r *Registry) ResolveType(t reflect.Type) (*EntityDescriptor, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if desc, ok := r.byType[t]; ok {
		return desc, nil
	}
	return nil, NewErrorf(ErrorKindNotFound, "entity type %s is not registered", t)
}

// Freeze closes the registration phase. It validates that every
// relationship points at a registered entity, fills in defaulted
// reference columns, and rejects all further registration. Freezing
// an already-frozen registry is a no-op. Repository construction
// freezes the registry implicitly.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return nil
	}
	for _, desc := range r.byName {
		for i := range desc.Relations {
			rel := &desc.Relations[i]
			target, ok := r.byName[rel.Target]
			if !ok {
				return NewErrorf(ErrorKindUnsupportedFieldType,
					"field %s.%s references entity %s which is not registered",
					desc.Name, rel.Name, rel.Target)
			}
			if rel.References == "" {
				switch rel.Kind {
				case RelationOneToMany, RelationManyToMany:
					rel.References = desc.Identifier().Column
				default:
					rel.References = target.Identifier().Column
				}
			}
		}
	}
	r.frozen = true
	return nil
}

// Frozen reports whether the registration phase has ended.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Descriptors returns all registered descriptors, for diagnostics.
func (r *Registry) Descriptors() []*EntityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*EntityDescriptor, 0, len(r.byName))
	for _, desc := range r.byName {
		out = append(out, desc)
	}
	return out
}

// =====================================
// Default Registry
// =====================================

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry instance.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register registers a prototype with the default registry.
func Register(prototype interface{}) (*EntityDescriptor, error) {
	return DefaultRegistry().Register(prototype)
}

// MustRegister registers a prototype with the default registry,
// panicking on error.
func MustRegister(prototype interface{}) *EntityDescriptor {
	return DefaultRegistry().MustRegister(prototype)
}

// Resolve looks up a descriptor by name in the default registry.
func Resolve(name string) (*EntityDescriptor, error) {
	return DefaultRegistry().Resolve(name)
}
