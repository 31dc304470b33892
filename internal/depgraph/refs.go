package depgraph

import (
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// Reference is a traversal reduced to its name steps, e.g.
// aws_instance.web[0].id becomes [aws_instance web id].
type Reference []string

func (r Reference) String() string { return strings.Join(r, ".") }

// Root returns the first step.
func (r Reference) Root() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

var fallbackRefPattern = regexp.MustCompile(`\b[a-z][a-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_-]*){1,3}`)

// ExtractReferences returns the references in an expression's source text,
// de-duplicated and sorted. Text that does not parse as an expression is
// scanned with a pattern instead.
func ExtractReferences(src string) []Reference {
	seen := map[string]bool{}
	var out []Reference
	add := func(r Reference) {
		if len(r) == 0 || seen[r.String()] {
			return
		}
		seen[r.String()] = true
		out = append(out, r)
	}

	expr, diags := hclsyntax.ParseExpression([]byte(src), "expr.tf", hcl.InitialPos)
	if diags.HasErrors() {
		for _, m := range fallbackRefPattern.FindAllString(src, -1) {
			add(Reference(strings.Split(m, ".")))
		}
	} else {
		for _, t := range expr.Variables() {
			add(traversalNames(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func traversalNames(t hcl.Traversal) Reference {
	var r Reference
	for _, step := range t {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			r = append(r, s.Name)
		case hcl.TraverseAttr:
			r = append(r, s.Name)
		}
	}
	return r
}

// ConditionVariables returns the input variables read by the predicate of any
// conditional expression in src.
func ConditionVariables(src string) []string {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "expr.tf", hcl.InitialPos)
	if diags.HasErrors() {
		return nil
	}
	set := map[string]bool{}
	hclsyntax.VisitAll(expr, func(n hclsyntax.Node) hcl.Diagnostics {
		cond, ok := n.(*hclsyntax.ConditionalExpr)
		if !ok {
			return nil
		}
		for _, t := range cond.Condition.Variables() {
			r := traversalNames(t)
			if r.Root() == "var" && len(r) > 1 {
				set[r[1]] = true
			}
		}
		return nil
	})
	return sortedKeys(set)
}

// IsStructuredExpr reports whether src builds or passes an object, collection
// or whole resource rather than a single scalar attribute.
func IsStructuredExpr(src string) bool {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "expr.tf", hcl.InitialPos)
	if diags.HasErrors() {
		return false
	}
	switch e := expr.(type) {
	case *hclsyntax.ObjectConsExpr, *hclsyntax.TupleConsExpr, *hclsyntax.ForExpr, *hclsyntax.SplatExpr:
		return true
	case *hclsyntax.FunctionCallExpr:
		switch e.Name {
		case "merge", "tomap", "toset", "tolist", "concat", "flatten", "zipmap", "jsondecode", "yamldecode":
			return true
		}
	case *hclsyntax.ScopeTraversalExpr:
		r := traversalNames(e.Traversal)
		switch r.Root() {
		case "var", "local", "each", "count", "path", "terraform", "self":
			return false
		case "module":
			return len(r) == 2
		case "data":
			return len(r) == 3
		}
		return len(r) == 2 && strings.Contains(r.Root(), "_")
	}
	return false
}

// IsStructuredType reports whether a variable type expression is a
// collection or structural type.
func IsStructuredType(typ string) bool {
	t := strings.TrimSpace(typ)
	for _, prefix := range []string{"object", "map", "list", "set", "tuple", "any"} {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
