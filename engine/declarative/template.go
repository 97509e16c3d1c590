package declarative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plexuslabs/plexus/engine/graph"
)

// templateContext is the binding environment a template string resolves
// against: the adapter's own input fields, the current for_each loop
// variable (if any), and the ambient adapter_id/context_id (section 4.5).
type templateContext struct {
	input     map[string]any
	loopVar   string
	loopValue any
	adapterID string
	contextID string
	bindings  map[string]any
}

func newTemplateContext(input map[string]any, adapterID, contextID string) *templateContext {
	return &templateContext{input: input, adapterID: adapterID, contextID: contextID, bindings: map[string]any{}}
}

func (tc *templateContext) withLoop(name string, value any) *templateContext {
	child := *tc
	child.loopVar = name
	child.loopValue = value
	return &child
}

// resolve interpolates every `{path}` placeholder in s, applying any
// pipe-separated filters (section 4.5: "Filters: lowercase, slug, sort,
// join, default").
func (tc *templateContext) resolve(s string) (string, error) {
	var out strings.Builder
	rest := s
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			out.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			return "", fmt.Errorf("declarative: unterminated template placeholder in %q", s)
		}
		end += start
		out.WriteString(rest[:start])

		expr := rest[start+1 : end]
		val, err := tc.evalExpr(expr)
		if err != nil {
			return "", err
		}
		out.WriteString(val)
		rest = rest[end+1:]
	}
	return out.String(), nil
}

// evalExpr resolves one placeholder body: a dotted path followed by zero
// or more `|filter` stages.
func (tc *templateContext) evalExpr(expr string) (string, error) {
	parts := strings.Split(expr, "|")
	val, err := tc.lookup(strings.TrimSpace(parts[0]))
	if err != nil {
		return "", err
	}
	for _, filter := range parts[1:] {
		val = applyFilter(strings.TrimSpace(filter), val)
	}
	return fmt.Sprintf("%v", val), nil
}

func (tc *templateContext) lookup(path string) (any, error) {
	segments := strings.Split(path, ".")
	if len(segments) == 0 {
		return nil, fmt.Errorf("declarative: empty template path")
	}

	switch segments[0] {
	case "adapter_id":
		return tc.adapterID, nil
	case "context_id":
		return tc.contextID, nil
	case "input":
		return lookupPath(tc.input, segments[1:])
	case tc.loopVar:
		if tc.loopVar == "" {
			break
		}
		return lookupPath(tc.loopValue, segments[1:])
	}
	if bound, ok := tc.bindings[segments[0]]; ok {
		return lookupPath(bound, segments[1:])
	}
	return nil, fmt.Errorf("declarative: unknown template root %q", segments[0])
}

// lookupPath walks segments into v. A missing field resolves to nil rather
// than erroring, so the `default` filter can supply a fallback; a genuinely
// malformed path (indexing into a non-object) still errors.
func lookupPath(v any, segments []string) (any, error) {
	cur := v
	for _, seg := range segments {
		if cur == nil {
			return nil, nil
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("declarative: cannot index %q into non-object value", seg)
		}
		next, ok := m[seg]
		if !ok {
			return nil, nil
		}
		cur = next
	}
	return cur, nil
}

func applyFilter(name string, val any) any {
	switch {
	case name == "lowercase":
		return strings.ToLower(fmt.Sprintf("%v", val))
	case name == "slug":
		return graph.NormalizeTag(fmt.Sprintf("%v", val))
	case name == "sort":
		return sortedStrings(val)
	case name == "join":
		return joinAny(val, ",")
	case strings.HasPrefix(name, "join("):
		sep := strings.TrimSuffix(strings.TrimPrefix(name, "join("), ")")
		sep = strings.Trim(sep, `"'`)
		return joinAny(val, sep)
	case strings.HasPrefix(name, "default("):
		if val != nil && fmt.Sprintf("%v", val) != "" {
			return val
		}
		return strings.Trim(strings.TrimSuffix(strings.TrimPrefix(name, "default("), ")"), `"'`)
	default:
		return val
	}
}

func sortedStrings(val any) []string {
	items := toStringSlice(val)
	sort.Strings(items)
	return items
}

func joinAny(val any, sep string) string {
	return strings.Join(toStringSlice(val), sep)
}

func toStringSlice(val any) []string {
	switch v := val.(type) {
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	default:
		return []string{fmt.Sprintf("%v", val)}
	}
}
