package config

import (
	"fmt"
	"sort"
	"strings"
)

// Expansion is the initial state of a newly materialized group.
type Expansion string

const (
	// Expanded groups show their children.
	Expanded Expansion = "expanded"
	// Collapsed groups hide their children.
	Collapsed Expansion = "collapsed"
)

// Settings is a snapshot of the explorer settings. Mutating it does not
// modify the configuration.
type Settings struct {
	// GroupByName splits type groups into name-prefix subgroups.
	GroupByName bool

	// Separator divides a task name's prefix from the rest. An empty
	// separator disables name grouping.
	Separator string

	// ExcludeTypes are task types hidden from the tree.
	ExcludeTypes []string

	// Expansion is the default state of new groups.
	Expansion Expansion

	// Icons overrides the icon shown for a task type.
	Icons map[string]string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		GroupByName: true,
		Separator:   "_",
		Expansion:   Expanded,
		Icons:       map[string]string{},
	}
}

// Excluded reports whether tasks of typ are hidden.
func (s Settings) Excluded(typ string) bool {
	for _, t := range s.ExcludeTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// Icon returns the configured icon override for typ.
func (s Settings) Icon(typ string) (string, bool) {
	icon, ok := s.Icons[typ]
	if !ok || icon == "" {
		return "", false
	}
	return icon, true
}

func defaultConfig() map[string]any {
	d := Defaults()
	return map[string]any{
		"explorer": map[string]any{
			"groupByName":  d.GroupByName,
			"separator":    d.Separator,
			"excludeTypes": []any{},
			"expansion":    string(d.Expansion),
		},
		"icons": map[string]any{},
	}
}

// resolver turns layered raw maps into typed settings, recording every
// value it had to reject.
type resolver struct {
	layers   []layer
	problems []Problem
}

type found struct {
	value  any
	source string
}

// lookup returns the value from the highest-priority layer defining path.
func (r *resolver) lookup(path string) (found, bool) {
	for i := len(r.layers) - 1; i >= 0; i-- {
		if v, ok := getPath(r.layers[i].data, path); ok {
			return found{value: v, source: r.layers[i].name}, true
		}
	}
	return found{}, false
}

func (r *resolver) problem(path, source string, err error) {
	r.problems = append(r.problems, Problem{Path: path, Source: source, Err: err})
}

func (r *resolver) settings() Settings {
	d := Defaults()
	return Settings{
		GroupByName:  r.boolOr("explorer.groupByName", d.GroupByName),
		Separator:    r.stringOr("explorer.separator", d.Separator),
		ExcludeTypes: r.stringSliceOr("explorer.excludeTypes", nil),
		Expansion:    r.expansionOr("explorer.expansion", d.Expansion),
		Icons:        r.stringMap("icons"),
	}
}

func (r *resolver) boolOr(path string, def bool) bool {
	v, ok := r.lookup(path)
	if !ok {
		return def
	}
	b, ok := v.value.(bool)
	if !ok {
		r.problem(path, v.source, fmt.Errorf("%w: want bool, got %s", ErrInvalidValue, typeName(v.value)))
		return def
	}
	return b
}

func (r *resolver) stringOr(path string, def string) string {
	v, ok := r.lookup(path)
	if !ok {
		return def
	}
	s, ok := v.value.(string)
	if !ok {
		r.problem(path, v.source, fmt.Errorf("%w: want string, got %s", ErrInvalidValue, typeName(v.value)))
		return def
	}
	return s
}

func (r *resolver) stringSliceOr(path string, def []string) []string {
	v, ok := r.lookup(path)
	if !ok {
		return def
	}
	switch val := v.value.(type) {
	case []string:
		return append([]string(nil), val...)
	case string:
		return splitList(val)
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				r.problem(fmt.Sprintf("%s[%d]", path, i), v.source,
					fmt.Errorf("%w: want string, got %s", ErrInvalidValue, typeName(item)))
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		r.problem(path, v.source, fmt.Errorf("%w: want list of strings, got %s", ErrInvalidValue, typeName(v.value)))
		return def
	}
}

func (r *resolver) expansionOr(path string, def Expansion) Expansion {
	v, ok := r.lookup(path)
	if !ok {
		return def
	}
	s, ok := v.value.(string)
	if !ok {
		r.problem(path, v.source, fmt.Errorf("%w: want string, got %s", ErrInvalidValue, typeName(v.value)))
		return def
	}
	switch e := Expansion(strings.ToLower(s)); e {
	case Expanded, Collapsed:
		return e
	default:
		r.problem(path, v.source, fmt.Errorf("%w: %q is not expanded or collapsed", ErrInvalidValue, s))
		return def
	}
}

// stringMap merges the table at path across every layer, higher layers
// overriding individual keys.
func (r *resolver) stringMap(path string) map[string]string {
	out := make(map[string]string)
	for _, l := range r.layers {
		v, ok := getPath(l.data, path)
		if !ok {
			continue
		}
		m, ok := v.(map[string]any)
		if !ok {
			r.problem(path, l.name, fmt.Errorf("%w: want table, got %s", ErrInvalidValue, typeName(v)))
			continue
		}

		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			s, ok := m[k].(string)
			if !ok {
				r.problem(path+"."+k, l.name, fmt.Errorf("%w: want string, got %s", ErrInvalidValue, typeName(m[k])))
				continue
			}
			out[k] = s
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// typeName returns the type name for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "bool"
	case string:
		return "string"
	case int64, int:
		return "integer"
	case float64:
		return "float"
	case []any:
		return "array"
	case map[string]any:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}
