package tfmodel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

var moduleMetaArgs = map[string]bool{
	"source":     true,
	"version":    true,
	"count":      true,
	"for_each":   true,
	"providers":  true,
	"depends_on": true,
}

// ParseFiles parses in-memory .tf files as the module at modulePath. Files
// are processed in name order. Syntax errors from every file are collected;
// the returned module holds whatever parsed cleanly.
func ParseFiles(modulePath string, files map[string][]byte) (*Module, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	m := &Module{Path: modulePath, Locals: map[string]string{}}
	p := hclparse.NewParser()
	var errs *multierror.Error
	for _, name := range names {
		src := files[name]
		f, diags := p.ParseHCL(src, name)
		if diags.HasErrors() {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, diags))
			continue
		}
		body, ok := f.Body.(*hclsyntax.Body)
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("%s: unsupported body type", name))
			continue
		}
		fp := fileParser{module: m, src: src, file: name}
		for _, block := range body.Blocks {
			if err := fp.block(block); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return m, errs.ErrorOrNil()
}

type fileParser struct {
	module *Module
	src    []byte
	file   string
}

func (fp *fileParser) text(expr hclsyntax.Expression) string {
	return strings.TrimSpace(string(expr.Range().SliceBytes(fp.src)))
}

func (fp *fileParser) block(b *hclsyntax.Block) error {
	switch b.Type {
	case "resource", "data":
		if len(b.Labels) != 2 {
			return fmt.Errorf("%s:%d: %s block needs type and name labels", fp.file, b.TypeRange.Start.Line, b.Type)
		}
		fp.resource(b)
	case "variable":
		if len(b.Labels) != 1 {
			return fmt.Errorf("%s:%d: variable block needs a name label", fp.file, b.TypeRange.Start.Line)
		}
		fp.variable(b)
	case "output":
		if len(b.Labels) != 1 {
			return fmt.Errorf("%s:%d: output block needs a name label", fp.file, b.TypeRange.Start.Line)
		}
		fp.output(b)
	case "module":
		if len(b.Labels) != 1 {
			return fmt.Errorf("%s:%d: module block needs a name label", fp.file, b.TypeRange.Start.Line)
		}
		return fp.moduleCall(b)
	case "locals":
		for name, attr := range b.Body.Attributes {
			fp.module.Locals[name] = fp.text(attr.Expr)
		}
	case "terraform":
		fp.terraform(b)
	}
	return nil
}

func (fp *fileParser) resource(b *hclsyntax.Block) {
	r := Resource{
		Mode:       ModeManaged,
		Type:       b.Labels[0],
		Name:       b.Labels[1],
		Module:     fp.module.Path,
		Attributes: map[string]string{},
		File:       fp.file,
		Line:       b.TypeRange.Start.Line,
	}
	if b.Type == "data" {
		r.Mode = ModeData
	}
	for name, attr := range b.Body.Attributes {
		switch name {
		case "depends_on":
			r.DependsOn = traversalList(attr.Expr)
		case "provider":
			r.Provider = fp.text(attr.Expr)
		default:
			r.Attributes[name] = fp.text(attr.Expr)
		}
	}
	fp.nested(&r, "", b.Body.Blocks)
	sort.Strings(r.DependsOn)
	sort.Strings(r.Iterators)
	fp.module.Resources = append(fp.module.Resources, r)
}

// nested flattens nested blocks into dotted attribute keys. A repeated block
// type gets an index suffix from its second occurrence ("ingress[1].port").
// Lifecycle settings other than replace_triggered_by name attributes rather
// than objects and are skipped. Each dynamic block's iterator name is
// recorded on r.
func (fp *fileParser) nested(r *Resource, prefix string, blocks hclsyntax.Blocks) {
	attrs := r.Attributes
	seen := map[string]int{}
	for _, nb := range blocks {
		if nb.Type == "dynamic" && len(nb.Labels) == 1 {
			r.addIterator(dynamicIterator(nb))
		}
		key := prefix + nb.Type
		for _, l := range nb.Labels {
			key += "." + l
		}
		if n := seen[key]; n > 0 {
			seen[key] = n + 1
			key = fmt.Sprintf("%s[%d]", key, n)
		} else {
			seen[key] = 1
		}
		if nb.Type == "lifecycle" && prefix == "" {
			if attr, ok := nb.Body.Attributes["replace_triggered_by"]; ok {
				attrs[key+".replace_triggered_by"] = fp.text(attr.Expr)
			}
			continue
		}
		for name, attr := range nb.Body.Attributes {
			attrs[key+"."+name] = fp.text(attr.Expr)
		}
		fp.nested(r, key+".", nb.Body.Blocks)
	}
}

// dynamicIterator returns the name a dynamic block binds for its elements:
// the iterator argument when set, the block label otherwise.
func dynamicIterator(b *hclsyntax.Block) string {
	if attr, ok := b.Body.Attributes["iterator"]; ok {
		if name := hcl.ExprAsKeyword(attr.Expr); name != "" {
			return name
		}
	}
	return b.Labels[0]
}

func (fp *fileParser) variable(b *hclsyntax.Block) {
	v := Variable{Name: b.Labels[0]}
	for name, attr := range b.Body.Attributes {
		switch name {
		case "type":
			v.Type = fp.text(attr.Expr)
		case "description":
			v.Description, _ = literalString(attr.Expr)
		case "default":
			v.HasDefault = true
		case "sensitive":
			v.Sensitive = literalBool(attr.Expr)
		}
	}
	fp.module.Variables = append(fp.module.Variables, v)
}

func (fp *fileParser) output(b *hclsyntax.Block) {
	o := Output{Name: b.Labels[0]}
	for name, attr := range b.Body.Attributes {
		switch name {
		case "value":
			o.Value = fp.text(attr.Expr)
		case "description":
			o.Description, _ = literalString(attr.Expr)
		case "sensitive":
			o.Sensitive = literalBool(attr.Expr)
		}
	}
	fp.module.Outputs = append(fp.module.Outputs, o)
}

func (fp *fileParser) moduleCall(b *hclsyntax.Block) error {
	mc := ModuleCall{Name: b.Labels[0], Inputs: map[string]string{}, Meta: map[string]string{}}
	for name, attr := range b.Body.Attributes {
		switch {
		case name == "source":
			s, ok := literalString(attr.Expr)
			if !ok {
				return fmt.Errorf("%s:%d: module %q source must be a literal string", fp.file, attr.SrcRange.Start.Line, mc.Name)
			}
			mc.Source = s
		case name == "version":
			mc.Version, _ = literalString(attr.Expr)
		case moduleMetaArgs[name]:
			mc.Meta[name] = fp.text(attr.Expr)
		default:
			mc.Inputs[name] = fp.text(attr.Expr)
		}
	}
	if mc.Source == "" {
		return fmt.Errorf("%s:%d: module %q has no source", fp.file, b.TypeRange.Start.Line, mc.Name)
	}
	mc.SourceInfo = ParseModuleSource(mc.Source)
	fp.module.ModuleCalls = append(fp.module.ModuleCalls, mc)
	return nil
}

func (fp *fileParser) terraform(b *hclsyntax.Block) {
	for _, nb := range b.Body.Blocks {
		switch nb.Type {
		case "backend", "cloud":
			be := Backend{Type: nb.Type, Config: map[string]string{}}
			if nb.Type == "backend" && len(nb.Labels) == 1 {
				be.Type = nb.Labels[0]
			}
			for name, attr := range nb.Body.Attributes {
				be.Config[name] = fp.text(attr.Expr)
			}
			for _, wb := range nb.Body.Blocks {
				for name, attr := range wb.Body.Attributes {
					be.Config[wb.Type+"."+name] = fp.text(attr.Expr)
				}
			}
			fp.module.Backends = append(fp.module.Backends, be)
		case "required_providers":
			for name, attr := range nb.Body.Attributes {
				fp.module.addRequirement(requirementFromExpr(name, attr.Expr))
			}
		}
	}
}

// requirementFromExpr accepts both the object form
// { source = "...", version = "..." } and the legacy bare constraint string.
func requirementFromExpr(name string, expr hclsyntax.Expression) ProviderRequirement {
	req := ProviderRequirement{Name: name}
	if s, ok := literalString(expr); ok {
		req.Constraints = splitConstraints(s)
		return req
	}
	pairs, diags := hcl.ExprMap(expr)
	if diags.HasErrors() {
		return req
	}
	for _, kv := range pairs {
		key := hcl.ExprAsKeyword(kv.Key)
		if key == "" {
			key, _ = literalString(kv.Key)
		}
		switch key {
		case "source":
			req.Source, _ = literalString(kv.Value)
		case "version":
			if s, ok := literalString(kv.Value); ok {
				req.Constraints = splitConstraints(s)
			}
		}
	}
	return req
}

func splitConstraints(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// addRequirement merges req into the module, keeping known fields.
func (m *Module) addRequirement(req ProviderRequirement) {
	for i := range m.RequiredProviders {
		existing := &m.RequiredProviders[i]
		if existing.Name != req.Name {
			continue
		}
		if existing.Source == "" {
			existing.Source = req.Source
		}
		for _, c := range req.Constraints {
			if !contains(existing.Constraints, c) {
				existing.Constraints = append(existing.Constraints, c)
			}
		}
		return
	}
	m.RequiredProviders = append(m.RequiredProviders, req)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func literalString(expr hcl.Expression) (string, bool) {
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.IsNull() || !v.IsKnown() || v.Type() != cty.String {
		return "", false
	}
	return v.AsString(), true
}

func literalBool(expr hcl.Expression) bool {
	v, diags := expr.Value(nil)
	if diags.HasErrors() || v.IsNull() || !v.IsKnown() || v.Type() != cty.Bool {
		return false
	}
	return v.True()
}

// traversalList renders each element of a list of references, such as a
// depends_on value, as a dotted address. Index steps are dropped.
func traversalList(expr hcl.Expression) []string {
	exprs, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil
	}
	var out []string
	for _, e := range exprs {
		t, diags := hcl.AbsTraversalForExpr(e)
		if diags.HasErrors() {
			continue
		}
		out = append(out, TraversalString(t))
	}
	return out
}

// TraversalString renders the name steps of t joined by dots.
func TraversalString(t hcl.Traversal) string {
	var sb strings.Builder
	for _, step := range t {
		switch s := step.(type) {
		case hcl.TraverseRoot:
			sb.WriteString(s.Name)
		case hcl.TraverseAttr:
			sb.WriteString(".")
			sb.WriteString(s.Name)
		}
	}
	return sb.String()
}
