package citation

import (
	"errors"
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

// ErrConflict is returned when a key holds a list on one side and a scalar
// or mapping on the other.
var ErrConflict = errors.New("citation: conflicting values")

// ConflictError names the key that could not be merged.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("citation: key %q mixes a list with a single value", e.Key)
}

// Is makes errors.Is(err, ErrConflict) true.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Update is a parsed maintainer edit.
type Update struct {
	Fields map[string]any
	// Whole is set when the edit was a single mapping, usually a copy of the
	// pending block. Its lists replace the pending ones instead of being
	// unioned with them.
	Whole bool
}

// Apply returns base with the edit applied.
func (u Update) Apply(base map[string]any) (map[string]any, error) {
	if u.Whole {
		return Overwrite(base, u.Fields)
	}
	return Merge(base, u.Fields)
}

// ParseFragments decodes a maintainer edit. It accepts a mapping or a list of
// mapping fragments and folds the fragments in order.
func ParseFragments(text string) (Update, error) {
	var doc any
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return Update{}, fmt.Errorf("failed to parse citation update: %w", err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return Update{Fields: v, Whole: true}, nil
	case []any:
		folded := map[string]any{}
		for i, item := range v {
			fragment, ok := item.(map[string]any)
			if !ok {
				return Update{}, fmt.Errorf("citation update item %d is not a mapping", i+1)
			}
			var err error
			if folded, err = Merge(folded, fragment); err != nil {
				return Update{}, err
			}
		}
		return Update{Fields: folded}, nil
	case nil:
		return Update{Fields: map[string]any{}}, nil
	default:
		return Update{}, fmt.Errorf("citation update must be a mapping, got %T", doc)
	}
}

// Merge applies update onto base and returns a new mapping. Scalars and
// mappings from update replace those in base and null values leave base
// alone. Lists are unioned, keeping the order of base followed by unseen
// items from update.
func Merge(base, update map[string]any) (map[string]any, error) {
	return apply(base, update, union)
}

// Overwrite is Merge with lists from update replacing those in base.
func Overwrite(base, update map[string]any) (map[string]any, error) {
	return apply(base, update, func(_, b []any) []any { return b })
}

func apply(base, update map[string]any, lists func(a, b []any) []any) (map[string]any, error) {
	out := make(map[string]any, len(base)+len(update))
	for k, v := range base {
		out[k] = v
	}

	for k, v := range update {
		if v == nil {
			continue
		}
		existing, ok := out[k]
		if !ok || existing == nil {
			out[k] = v
			continue
		}

		baseList, baseIsList := existing.([]any)
		updateList, updateIsList := v.([]any)
		switch {
		case baseIsList && updateIsList:
			out[k] = lists(baseList, updateList)
		case !baseIsList && !updateIsList:
			out[k] = v
		default:
			return nil, &ConflictError{Key: k}
		}
	}
	return out, nil
}

func union(a, b []any) []any {
	out := append([]any(nil), a...)
	for _, item := range b {
		seen := false
		for _, have := range out {
			if reflect.DeepEqual(have, item) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, item)
		}
	}
	return out
}
