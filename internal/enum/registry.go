// Package enum keeps a per-type registry of named, ordinal-keyed values.
//
// Domain enumerations are closed Go types declared with iota. The registry backs
// their name/ordinal lookups and text encoding, and refuses a second value with
// an ordinal or name already taken for the same type.
package enum

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrDuplicateOrdinal = errors.New("duplicate enum ordinal")
	ErrDuplicateName    = errors.New("duplicate enum name")
	ErrNotFound         = errors.New("enum value not found")
)

// RegistrationError describes a rejected registration.
type RegistrationError struct {
	Kind    string
	Ordinal int
	Name    string
	Err     error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: %v (ordinal=%d, name=%q)", e.Kind, e.Err, e.Ordinal, e.Name)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

type entry[T any] struct {
	ordinal int
	name    string
	value   T
}

// Registry maps ordinals and upper-cased names to the values of one enum type.
type Registry[T any] struct {
	kind      string
	mu        sync.RWMutex
	byOrdinal map[int]*entry[T]
	byName    map[string]*entry[T]
}

func NewRegistry[T any](kind string) *Registry[T] {
	return &Registry[T]{
		kind:      kind,
		byOrdinal: make(map[int]*entry[T]),
		byName:    make(map[string]*entry[T]),
	}
}

func (r *Registry[T]) Kind() string {
	return r.kind
}

// Register adds value under ordinal and name. Names are compared case-insensitively.
func (r *Registry[T]) Register(ordinal int, name string, value T) error {
	key := strings.ToUpper(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byOrdinal[ordinal]; ok {
		return &RegistrationError{Kind: r.kind, Ordinal: ordinal, Name: name, Err: ErrDuplicateOrdinal}
	}
	if _, ok := r.byName[key]; ok {
		return &RegistrationError{Kind: r.kind, Ordinal: ordinal, Name: name, Err: ErrDuplicateName}
	}

	e := &entry[T]{ordinal: ordinal, name: key, value: value}
	r.byOrdinal[ordinal] = e
	r.byName[key] = e
	return nil
}

// MustRegister is Register for package initialization; a duplicate panics.
func (r *Registry[T]) MustRegister(ordinal int, name string, value T) T {
	if err := r.Register(ordinal, name, value); err != nil {
		panic(err)
	}
	return value
}

func (r *Registry[T]) ByOrdinal(ordinal int) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byOrdinal[ordinal]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s ordinal %d: %w", r.kind, ordinal, ErrNotFound)
	}
	return e.value, nil
}

func (r *Registry[T]) ByName(name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[strings.ToUpper(name)]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s name %q: %w", r.kind, name, ErrNotFound)
	}
	return e.value, nil
}

// NameOf returns the registered name for ordinal, or "" when unknown.
func (r *Registry[T]) NameOf(ordinal int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.byOrdinal[ordinal]; ok {
		return e.name
	}
	return ""
}

// Values returns every registered value in ordinal order.
func (r *Registry[T]) Values() []T {
	r.mu.RLock()
	entries := make([]*entry[T], 0, len(r.byOrdinal))
	for _, e := range r.byOrdinal {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].ordinal < entries[j].ordinal })

	values := make([]T, len(entries))
	for i, e := range entries {
		values[i] = e.value
	}
	return values
}
