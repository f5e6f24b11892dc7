// Package fields resolves human-readable contact field names to the numeric
// identifiers the CallHub API expects. The account's field schema is fetched
// lazily, at most once per session, and replaced wholesale on refresh.
package fields

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Field is one contact field as reported by the fields endpoint.
type Field struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Schema is an immutable snapshot of the account's contact fields, keyed by
// exact field name. Lookups are case-sensitive; "First Name" and "first name"
// are different fields.
type Schema struct {
	byName    map[string]Field
	fetchedAt time.Time
}

// NewSchema builds a snapshot from a field list. Later duplicates of a name
// win, matching the order the endpoint reports them in.
func NewSchema(fields []Field, fetchedAt time.Time) *Schema {
	byName := make(map[string]Field, len(fields))
	for _, field := range fields {
		byName[field.Name] = field
	}
	return &Schema{byName: byName, fetchedAt: fetchedAt}
}

// Lookup returns the field registered under the exact name.
func (s *Schema) Lookup(name string) (Field, bool) {
	field, ok := s.byName[name]
	return field, ok
}

// Len returns the number of fields in the snapshot.
func (s *Schema) Len() int {
	return len(s.byName)
}

// Fields returns all fields sorted by name.
func (s *Schema) Fields() []Field {
	fields := make([]Field, 0, len(s.byName))
	for _, field := range s.byName {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

// FetchedAt returns when the snapshot was taken from the remote.
func (s *Schema) FetchedAt() time.Time {
	return s.fetchedAt
}

// Resolve maps every requested name to its field. Names missing from the
// schema are collected and reported together in one *UnknownFieldError, so a
// caller sees the full extent of a mismatch instead of the first instance.
func (s *Schema) Resolve(names []string) (map[string]Field, error) {
	resolved := make(map[string]Field, len(names))
	var unknown []string
	for _, name := range names {
		field, ok := s.byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		resolved[name] = field
	}
	if len(unknown) > 0 {
		return nil, NewUnknownFieldError(unknown)
	}
	return resolved, nil
}

// UnknownFieldError reports every requested field name the account's schema
// does not contain.
type UnknownFieldError struct {
	// Names holds the unknown names, sorted and deduplicated.
	Names []string
}

// NewUnknownFieldError builds the error from the raw unknown names.
func NewUnknownFieldError(names []string) *UnknownFieldError {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	sort.Strings(unique)
	return &UnknownFieldError{Names: unique}
}

// Error implements the error interface.
func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown contact fields: %s", strings.Join(e.Names, ", "))
}
