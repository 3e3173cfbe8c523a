package storage

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidPath is returned when a path walks through a non-object value
var ErrInvalidPath = errors.New("storage: path does not address an object")

// TransformFn receives the current value at a path (nil if absent) and
// returns the value to store. Returning nil deletes the entry.
type TransformFn func(old any) any

// Store defines the interface for hierarchical key-value storage.
// Values are JSON-shaped: map[string]any, []any, float64, string, bool.
// An empty path addresses the whole store.
type Store interface {
	// Get returns the value at path, or nil if nothing is stored there
	Get(path []string) (any, error)
	// Update replaces the value at path with transform(old)
	Update(path []string, transform TransformFn) error
	// Delete removes the value at path and prunes empty parents
	Delete(path []string) error
}

// normalize converts any Go value into its JSON-shaped equivalent so that
// every backend hands back identical types (numbers are always float64).
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode value: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return out, nil
}

// deepCopy copies a JSON-shaped tree so callers never alias stored data
func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

// getValueFromPath walks tree along path
func getValueFromPath(tree any, path []string) any {
	current := tree
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = obj[key]
		if !ok {
			return nil
		}
	}
	return current
}

// updateNestedValue applies transform at path inside tree, creating
// intermediate objects as needed, and returns the new root.
func updateNestedValue(tree any, path []string, transform TransformFn) (any, error) {
	if len(path) == 0 {
		return normalize(transform(deepCopy(tree)))
	}

	root, ok := tree.(map[string]any)
	if !ok {
		root = make(map[string]any)
	}

	parents := make([]map[string]any, 0, len(path))
	current := root
	for _, key := range path[:len(path)-1] {
		parents = append(parents, current)
		next, exists := current[key]
		if !exists {
			child := make(map[string]any)
			current[key] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, key)
		}
		current = child
	}
	parents = append(parents, current)

	last := path[len(path)-1]
	value, err := normalize(transform(deepCopy(current[last])))
	if err != nil {
		return nil, err
	}
	if value == nil {
		delete(current, last)
		pruneEmpty(parents, path)
	} else {
		current[last] = value
	}
	return root, nil
}

// deleteNestedValue removes the value at path and prunes empty parents
func deleteNestedValue(tree any, path []string) any {
	if len(path) == 0 {
		return nil
	}
	root, ok := tree.(map[string]any)
	if !ok {
		return tree
	}

	parents := make([]map[string]any, 0, len(path))
	current := root
	for _, key := range path[:len(path)-1] {
		parents = append(parents, current)
		child, ok := current[key].(map[string]any)
		if !ok {
			return root
		}
		current = child
	}
	parents = append(parents, current)
	delete(current, path[len(path)-1])
	pruneEmpty(parents, path)
	return root
}

// pruneEmpty removes objects left empty after a deletion, bottom-up.
// parents[i] is the object addressed by path[:i].
func pruneEmpty(parents []map[string]any, path []string) {
	for i := len(parents) - 1; i > 0; i-- {
		if len(parents[i]) > 0 {
			return
		}
		delete(parents[i-1], path[i-1])
	}
}
