// Package template finds and renders variable references in node parameters.
// A reference is written {{name}} or {{producer:name}}.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dukex/flowplan/pkg/models"
)

var ErrUnresolvedReference = errors.New("unresolved variable reference")

var referencePattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]*:?[A-Za-z0-9_.\-]+)\s*\}\}`)

// Reference is a parsed variable reference.
type Reference struct {
	Raw        string
	ProducerID string
	Name       string
	Qualified  bool
}

// Key returns the lookup key for the reference: the qualified form when a
// producer was given, the bare name otherwise.
func (r Reference) Key() string {
	if r.Qualified {
		return models.MakeVariableRef(r.ProducerID, r.Name)
	}

	return r.Name
}

func parse(raw, expr string) Reference {
	producer, name, qualified := models.ParseVariableRef(expr)

	return Reference{Raw: raw, ProducerID: producer, Name: name, Qualified: qualified}
}

// References returns every reference found in value, walking nested maps and slices.
func References(value any) []Reference {
	var refs []Reference

	walkStrings(value, func(s string) {
		for _, m := range referencePattern.FindAllStringSubmatch(s, -1) {
			refs = append(refs, parse(m[0], m[1]))
		}
	})

	return refs
}

// WholeReference reports whether value is a string made of exactly one reference.
func WholeReference(value any) (Reference, bool) {
	s, ok := value.(string)
	if !ok {
		return Reference{}, false
	}

	s = strings.TrimSpace(s)

	loc := referencePattern.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return Reference{}, false
	}

	return parse(s, s[loc[2]:loc[3]]), true
}

// Render substitutes references in value using inputs. A string that is a whole
// reference is replaced by the raw value; embedded references are formatted.
func Render(value any, inputs map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return renderString(v, inputs)
	case map[string]any:
		out := make(map[string]any, len(v))

		for k, item := range v {
			rendered, err := Render(item, inputs)
			if err != nil {
				return nil, err
			}

			out[k] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, item := range v {
			rendered, err := Render(item, inputs)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

// RenderParameters renders every parameter of a node against an input snapshot.
func RenderParameters(params map[string]any, inputs map[string]any) (map[string]any, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make(map[string]any, len(params))

	for _, k := range keys {
		rendered, err := Render(params[k], inputs)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}

		out[k] = rendered
	}

	return out, nil
}

func renderString(s string, inputs map[string]any) (any, error) {
	if ref, ok := WholeReference(s); ok {
		value, found := inputs[ref.Key()]
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, ref.Raw)
		}

		return value, nil
	}

	var missing error

	rendered := referencePattern.ReplaceAllStringFunc(s, func(raw string) string {
		m := referencePattern.FindStringSubmatch(raw)
		ref := parse(raw, m[1])

		value, found := inputs[ref.Key()]
		if !found {
			missing = fmt.Errorf("%w: %s", ErrUnresolvedReference, raw)

			return raw
		}

		return fmt.Sprint(value)
	})

	if missing != nil {
		return nil, missing
	}

	return rendered, nil
}

func walkStrings(value any, fn func(string)) {
	switch v := value.(type) {
	case string:
		fn(v)
	case map[string]any:
		for _, item := range v {
			walkStrings(item, fn)
		}
	case []any:
		for _, item := range v {
			walkStrings(item, fn)
		}
	}
}
