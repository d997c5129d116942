package reconcile

import (
	"strconv"
	"strings"
)

// Extract reads the value at a dotted path from a best-effort value tree.
// Object members are addressed by key and array elements by decimal index,
// so "files.0.name" reads the name of the first file. It returns def when
// the tree is nil or the path is absent; a present null yields nil. An empty
// path addresses the tree itself.
func Extract(tree any, path string, def any) any {
	if tree == nil {
		return def
	}
	cur := tree
	if path != "" {
		for _, seg := range strings.Split(path, ".") {
			next, ok := child(cur, seg)
			if !ok {
				return def
			}
			cur = next
		}
	}
	return cur
}

func child(node any, seg string) (any, bool) {
	switch v := node.(type) {
	case map[string]any:
		next, ok := v[seg]
		return next, ok
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(v) {
			return nil, false
		}
		return v[i], true
	default:
		return nil, false
	}
}

// ExtractFragments reads the item collection addressed by schema out of tree
// and returns one fragment per position.
//
// open is the dotted path of a string value that was still being streamed
// when the tree was produced (see ParseResult.Open). The trailing element of
// a partial document contributes every field already present in the tree,
// with one exception: a name or id that is still open is withheld, so an
// item is never identified by a half-streamed value. Open content is kept;
// it only grows as more text arrives.
func ExtractFragments(tree any, open string, schema Schema) []ItemFragment {
	coll, ok := Extract(tree, schema.CollectionPath, nil).([]any)
	if !ok || len(coll) == 0 {
		return nil
	}
	frags := make([]ItemFragment, len(coll))
	for i, el := range coll {
		frags[i] = fragmentAt(i, el, open, schema)
	}
	return frags
}

func fragmentAt(i int, el any, open string, schema Schema) ItemFragment {
	f := ItemFragment{Index: i}
	obj, ok := el.(map[string]any)
	if !ok {
		return f
	}
	f.Valid = true
	prefix := schema.CollectionPath + "." + strconv.Itoa(i) + "."
	if name, ok := obj[schema.NameKey].(string); ok && open != prefix+schema.NameKey {
		f.Name, f.HasName = name, true
	}
	if content, ok := obj[schema.ContentKey].(string); ok {
		f.Content, f.HasContent = content, true
	}
	if schema.IDKey != "" {
		if id, ok := obj[schema.IDKey].(string); ok && open != prefix+schema.IDKey {
			f.ID = id
		}
	}
	return f
}
