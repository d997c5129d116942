package json

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/fwojciec/reconcile"
	"github.com/tidwall/gjson"
)

// Interface compliance check.
var _ reconcile.Parser = Parser{}

// Parser is an optimistic JSON parser for documents that are still being
// streamed. It tries a strict parse first; when that fails it repairs the
// text by closing an open string, dropping incomplete members, and appending
// the missing closers, then parses the repaired text. It never fails.
type Parser struct{}

// Parse implements [reconcile.Parser].
func (Parser) Parse(text string) reconcile.ParseResult {
	return Parse(text)
}

// Parse parses text optimistically. See [Parser].
func Parse(text string) reconcile.ParseResult {
	if strings.TrimSpace(text) == "" {
		return reconcile.ParseResult{}
	}
	if gjson.Valid(text) {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err == nil {
			return reconcile.ParseResult{
				Value:     v,
				Complete:  true,
				Extracted: Flatten(v),
			}
		}
	}

	r := repair(text)
	if r.text != "" {
		var v any
		if err := json.Unmarshal([]byte(r.text), &v); err == nil {
			return reconcile.ParseResult{
				Value:     v,
				Extracted: Flatten(v),
				Open:      r.open,
			}
		}
	}
	// The repaired text is still invalid, e.g. because a closed string holds
	// raw control characters. Fall back to the deepest cut that keeps only
	// complete members so already-finished items stay visible.
	for _, fb := range r.fallbacks {
		var v any
		if err := json.Unmarshal([]byte(fb), &v); err == nil {
			return reconcile.ParseResult{Extracted: Flatten(v)}
		}
	}
	return reconcile.ParseResult{}
}

// Flatten maps every dotted path in v to the value found there. Containers
// are included as well as leaves; the root itself is not.
func Flatten(v any) map[string]any {
	out := make(map[string]any)
	flatten(v, "", out)
	return out
}

func flatten(v any, prefix string, out map[string]any) {
	switch v := v.(type) {
	case map[string]any:
		for k, child := range v {
			p := join(prefix, k)
			out[p] = child
			flatten(child, p, out)
		}
	case []any:
		for i, child := range v {
			p := join(prefix, strconv.Itoa(i))
			out[p] = child
			flatten(child, p, out)
		}
	}
}

func join(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}
