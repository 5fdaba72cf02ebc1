package docstore

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Change kinds, matching the structural-diff records the editor produces:
// N adds a value, E edits one in place, D deletes one, and A wraps an
// element-level change of an array (Item carries the inner change, Index
// the position).
const (
	KindNew    = "N"
	KindEdit   = "E"
	KindDelete = "D"
	KindArray  = "A"
)

// Change is one structural edit addressed by path from the document root.
// Path elements are object keys (strings) or array indices (numbers).
type Change struct {
	Kind  string  `json:"kind"`
	Path  []any   `json:"path,omitempty"`
	LHS   any     `json:"lhs,omitempty"`
	RHS   any     `json:"rhs,omitempty"`
	Index int     `json:"index,omitempty"`
	Item  *Change `json:"item,omitempty"`
}

// deleteMarker signals that a path target should be removed from its parent
// container.
type deleteMarker struct{ removed bool }

var deleteSentinel = &deleteMarker{removed: true}

// Apply applies one change to doc and returns the (possibly replaced) root.
// Missing intermediate containers are created, so a change stream can build
// a document from the empty object.
func Apply(doc map[string]any, c Change) (map[string]any, error) {
	if len(c.Path) == 0 && c.Kind != KindArray {
		return doc, errors.New("docstore: change with empty path")
	}
	out, err := applyPath(doc, c.Path, func(cur any) (any, error) {
		return applyLeaf(cur, c)
	})
	if err != nil {
		return doc, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return doc, errors.New("docstore: change replaced the document root")
	}
	return m, nil
}

func applyLeaf(cur any, c Change) (any, error) {
	switch c.Kind {
	case KindNew, KindEdit:
		return c.RHS, nil
	case KindDelete:
		return deleteSentinel, nil
	case KindArray:
		if c.Item == nil {
			return nil, errors.New("docstore: array change without item")
		}
		arr, ok := cur.([]any)
		if cur == nil {
			arr, ok = []any{}, true
		}
		if !ok {
			return nil, fmt.Errorf("docstore: array change targets %T", cur)
		}
		switch c.Item.Kind {
		case KindNew, KindEdit:
			for len(arr) <= c.Index {
				arr = append(arr, nil)
			}
			arr[c.Index] = c.Item.RHS
			return arr, nil
		case KindDelete:
			if c.Index >= 0 && c.Index < len(arr) {
				arr = append(arr[:c.Index], arr[c.Index+1:]...)
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("docstore: unknown array item kind %q", c.Item.Kind)
		}
	default:
		return nil, fmt.Errorf("docstore: unknown change kind %q", c.Kind)
	}
}

// applyPath walks node along path and applies set at the leaf. Containers
// are created on demand; returning deleteSentinel from set removes the leaf
// from its parent.
func applyPath(node any, path []any, set func(any) (any, error)) (any, error) {
	if len(path) == 0 {
		return set(node)
	}
	switch step := path[0].(type) {
	case string:
		m, ok := node.(map[string]any)
		if node == nil {
			m, ok = map[string]any{}, true
		}
		if !ok {
			return nil, fmt.Errorf("docstore: path step %q into %T", step, node)
		}
		child, err := applyPath(m[step], path[1:], set)
		if err != nil {
			return nil, err
		}
		if isDelete(child) {
			delete(m, step)
		} else {
			m[step] = child
		}
		return m, nil
	default:
		idx, ok := pathIndex(step)
		if !ok {
			return nil, fmt.Errorf("docstore: unsupported path step %T", step)
		}
		arr, ok := node.([]any)
		if node == nil {
			arr, ok = []any{}, true
		}
		if !ok {
			return nil, fmt.Errorf("docstore: path step %d into %T", idx, node)
		}
		for len(arr) <= idx {
			arr = append(arr, nil)
		}
		child, err := applyPath(arr[idx], path[1:], set)
		if err != nil {
			return nil, err
		}
		if isDelete(child) {
			arr = append(arr[:idx], arr[idx+1:]...)
		} else {
			arr[idx] = child
		}
		return arr, nil
	}
}

func isDelete(v any) bool {
	p, ok := v.(*deleteMarker)
	return ok && p == deleteSentinel
}

// pathIndex accepts the numeric forms a path element can arrive in
// (JSON decodes numbers as float64; in-process callers may pass int).
func pathIndex(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// Diff computes the structural changes that transform lhs into rhs, in the
// same record shape Apply consumes. Map keys are visited in sorted order so
// the derived event stream is deterministic.
func Diff(lhs, rhs map[string]any) []Change {
	var out []Change
	diffAny(nil, lhs, rhs, &out)
	return out
}

func diffAny(path []any, l, r any, out *[]Change) {
	lm, lIsMap := l.(map[string]any)
	rm, rIsMap := r.(map[string]any)
	if lIsMap && rIsMap {
		diffMaps(path, lm, rm, out)
		return
	}
	la, lIsArr := l.([]any)
	ra, rIsArr := r.([]any)
	if lIsArr && rIsArr {
		diffArrays(path, la, ra, out)
		return
	}
	if l == nil && r != nil {
		*out = append(*out, Change{Kind: KindNew, Path: clonePath(path), RHS: r})
		return
	}
	if l != nil && r == nil {
		*out = append(*out, Change{Kind: KindDelete, Path: clonePath(path), LHS: l})
		return
	}
	if !reflect.DeepEqual(l, r) {
		*out = append(*out, Change{Kind: KindEdit, Path: clonePath(path), LHS: l, RHS: r})
	}
}

func diffMaps(path []any, l, r map[string]any, out *[]Change) {
	keySet := make(map[string]struct{}, len(l)+len(r))
	for k := range l {
		keySet[k] = struct{}{}
	}
	for k := range r {
		keySet[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keySet))
	for k := range keySet {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	for _, k := range sorted {
		lv, inL := l[k]
		rv, inR := r[k]
		child := append(path, k)
		switch {
		case inL && !inR:
			*out = append(*out, Change{Kind: KindDelete, Path: clonePath(child), LHS: lv})
		case !inL && inR:
			*out = append(*out, Change{Kind: KindNew, Path: clonePath(child), RHS: rv})
		default:
			diffAny(child, lv, rv, out)
		}
	}
}

func diffArrays(path []any, l, r []any, out *[]Change) {
	common := len(l)
	if len(r) < common {
		common = len(r)
	}
	for i := 0; i < common; i++ {
		diffAny(append(path, i), l[i], r[i], out)
	}
	for i := common; i < len(r); i++ {
		*out = append(*out, Change{
			Kind:  KindArray,
			Path:  clonePath(path),
			Index: i,
			Item:  &Change{Kind: KindNew, RHS: r[i]},
		})
	}
	// record removals highest-index first so applying them in order splices
	// correctly
	for i := len(l) - 1; i >= common; i-- {
		*out = append(*out, Change{
			Kind:  KindArray,
			Path:  clonePath(path),
			Index: i,
			Item:  &Change{Kind: KindDelete, LHS: l[i]},
		})
	}
}

func clonePath(path []any) []any {
	if len(path) == 0 {
		return nil
	}
	return append([]any(nil), path...)
}
