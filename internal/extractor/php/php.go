// Package php extracts vertices and edges from PHP source using
// tree-sitter, implementing every numbered rule in spec.md §4.4: file and
// namespace vertices, per-symbol FQN resolution honoring use-aliases and
// self/static/parent, class/interface/trait member edges, inheritance and
// trait-use edges (with Unresolved placeholders for forward references),
// and best-effort CALLS/INSTANTIATES edges from method and function bodies.
package php

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

// Extractor implements extractor.Extractor for PHP source files.
type Extractor struct{}

// New returns a ready-to-use PHP extractor.
func New() *Extractor { return &Extractor{} }

func (e *Extractor) SupportedExtensions() []string { return []string{".php"} }

func (e *Extractor) LanguageTag() schema.LanguageTag { return schema.LangPHP }

// state accumulates one file's extraction output while walking the tree;
// collecting into a single struct keeps every recursive helper's
// signature small, the same shape the teacher's parseResult plays in
// internal/pipeline/pipeline.go.
type state struct {
	filePath string
	src      []byte
	scope    *fileScope
	result   extractor.ParseResult
}

func (st *state) addDiag(sev extractor.Severity, msg string, line int) {
	st.result.Diagnostics = append(st.result.Diagnostics, extractor.Diagnostic{
		Severity: sev, Message: msg, FilePath: st.filePath, Line: line,
	})
}

func (e *Extractor) ParseFile(ctx context.Context, path string, src []byte) extractor.ParseResult {
	st := &state{filePath: path, src: src, scope: newFileScope()}
	st.result.FilePath = path

	fileVertex := schema.NewFile(path, basename(path), schema.LangPHP)
	st.result.Vertices = append(st.result.Vertices, fileVertex)

	tree, err := parse(src)
	if err != nil {
		st.addDiag(extractor.SeverityFatal, err.Error(), 0)
		return st.result
	}
	defer tree.Close()

	root := tree.RootNode()
	st.processStatements(root, fileVertex.ID)
	return st.result
}

// processStatements walks a sequence of top-level-or-namespace-body
// statements, recursing into bracketed namespace bodies and handling
// unbracketed `namespace X;` declarations that extend to the next one.
func (st *state) processStatements(block *tree_sitter.Node, fileID schema.ID) {
	if block == nil {
		return
	}
	for i := uint(0); i < block.ChildCount(); i++ {
		n := block.Child(i)
		if n == nil {
			continue
		}
		switch n.Kind() {
		case "namespace_definition":
			st.handleNamespace(n, fileID)
		case "namespace_use_declaration", "use_declaration":
			st.handleTopLevelUse(n, fileID)
		case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
			st.handleClassLike(n, fileID)
		case "function_definition":
			st.handleFunction(n, fileID)
		case "const_declaration":
			st.handleTopLevelConst(n, fileID)
		}
	}
}

func (st *state) handleNamespace(n *tree_sitter.Node, fileID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, st.src)
	prevNS := st.scope.namespace
	st.scope.namespace = strings.TrimPrefix(name, "\\")

	nsVertex := schema.NewNamespace(st.scope.namespace, lastSegment(st.scope.namespace), schema.LangPHP)
	st.result.Vertices = append(st.result.Vertices, nsVertex)

	body := n.ChildByFieldName("body")
	if body == nil {
		body = firstChildOfKind(n, "compound_statement")
	}
	if body != nil {
		st.processStatements(body, fileID)
		st.scope.namespace = prevNS
	}
	// If no body, the namespace applies to subsequent siblings at this
	// level, so the scope deliberately stays set for the caller's loop.
}

// handleTopLevelUse builds the file's alias map for later FQN resolution
// and, per spec.md §4.4 rule 11, emits an IMPORTS edge from the File to
// the symbol id derived from each imported FQN.
func (st *state) handleTopLevelUse(n *tree_sitter.Node, fileID schema.ID) {
	clauses := childrenOfKind(n, "namespace_use_clause")
	if len(clauses) == 0 {
		clauses = childrenOfKind(n, "namespace_use_group_clause")
	}
	for _, c := range clauses {
		nameNode := c.ChildByFieldName("name")
		fqn := strings.TrimPrefix(nodeText(nameNode, st.src), "\\")
		if fqn == "" {
			continue
		}
		alias := lastSegment(fqn)
		if aliasNode := c.ChildByFieldName("alias"); aliasNode != nil {
			alias = nodeText(aliasNode, st.src)
		}
		st.scope.addImport(alias, fqn)

		targetID := schema.NewSymbolID(schema.LangPHP, fqn)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeImports, Source: fileID, Target: targetID})
		st.ensurePlaceholder(targetID, "Class", fqn)
	}
}

func (st *state) handleClassLike(n *tree_sitter.Node, fileID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		// Anonymous classes have no name field; skip per spec.md §4.4 tie-break.
		return
	}
	shortName := nodeText(nameNode, st.src)
	// A declaration's own name is never alias-resolved (use-imports only
	// apply to references), so it's namespaced directly rather than
	// through scope.resolve.
	classFQN := shortName
	if st.scope.namespace != "" {
		classFQN = st.scope.namespace + "\\" + shortName
	}

	var label schema.Label
	switch n.Kind() {
	case "interface_declaration":
		label = schema.LabelInterface
	case "trait_declaration":
		label = schema.LabelTrait
	default:
		label = schema.LabelClass
	}

	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
	classVertex := schema.Vertex{
		ID: schema.NewSymbolID(schema.LangPHP, classFQN), Label: label, Language: schema.LangPHP,
		Name: shortName, QualifiedName: classFQN, Location: loc, Attributes: map[string]any{},
	}
	st.result.Vertices = append(st.result.Vertices, classVertex)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: classVertex.ID, Target: fileID})

	extendsFQN := ""
	if base := firstChildOfKind(n, "base_clause"); base != nil {
		for _, nm := range childrenOfKind(base, "name") {
			st.emitExtends(classVertex.ID, nm)
			if extendsFQN == "" {
				extendsFQN = st.scope.resolve(nodeText(nm, st.src))
			}
		}
		// Fallback: base_clause sometimes holds qualified_name nodes instead.
		if len(childrenOfKind(base, "name")) == 0 {
			for _, nm := range childrenOfKind(base, "qualified_name") {
				st.emitExtends(classVertex.ID, nm)
				if extendsFQN == "" {
					extendsFQN = st.scope.resolve(nodeText(nm, st.src))
				}
			}
		}
	}
	if iface := firstChildOfKind(n, "class_interface_clause"); iface != nil {
		for _, nm := range append(childrenOfKind(iface, "name"), childrenOfKind(iface, "qualified_name")...) {
			st.emitImplements(classVertex.ID, nm)
		}
	}

	st.scope.pushClass(classFQN, extendsFQN)
	defer st.scope.popClass()

	body := n.ChildByFieldName("body")
	if body == nil {
		body = firstChildOfKind(n, "declaration_list")
	}
	st.processClassBody(body, classVertex.ID, classFQN, fileID)
}

func (st *state) emitExtends(sourceID schema.ID, nameNode *tree_sitter.Node) {
	raw := nodeText(nameNode, st.src)
	resolved := st.scope.resolve(raw)
	targetID := schema.NewSymbolID(schema.LangPHP, resolved)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeExtends, Source: sourceID, Target: targetID})
	st.ensurePlaceholder(targetID, "Class", resolved)
}

func (st *state) emitImplements(sourceID schema.ID, nameNode *tree_sitter.Node) {
	raw := nodeText(nameNode, st.src)
	resolved := st.scope.resolve(raw)
	targetID := schema.NewSymbolID(schema.LangPHP, resolved)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeImplements, Source: sourceID, Target: targetID})
	st.ensurePlaceholder(targetID, "Interface", resolved)
}

// ensurePlaceholder emits an Unresolved vertex for a forward reference; if
// the real definition is indexed later (same file or another), it merges
// by id (spec.md §3.3, §4.8 pass 1).
func (st *state) ensurePlaceholder(id schema.ID, kind, fqn string) {
	st.result.Vertices = append(st.result.Vertices, schema.Vertex{
		ID: id, Label: schema.LabelUnresolved, Language: schema.LangPHP,
		Name: lastSegment(fqn), QualifiedName: fqn, Attributes: map[string]any{"unresolved_kind": kind},
	})
}

func (st *state) processClassBody(body *tree_sitter.Node, classID schema.ID, classFQN string, fileID schema.ID) {
	if body == nil {
		return
	}
	for i := uint(0); i < body.ChildCount(); i++ {
		n := body.Child(i)
		if n == nil {
			continue
		}
		switch n.Kind() {
		case "method_declaration":
			st.handleMethod(n, classID, classFQN, fileID)
		case "property_declaration":
			st.handleProperty(n, classID, classFQN)
		case "const_declaration":
			st.handleClassConst(n, classID, classFQN)
		case "use_declaration":
			st.handleTraitUse(n, classID)
		}
	}
}

func (st *state) handleTraitUse(n *tree_sitter.Node, classID schema.ID) {
	names := append(childrenOfKind(n, "name"), childrenOfKind(n, "qualified_name")...)
	for _, nm := range names {
		raw := nodeText(nm, st.src)
		resolved := st.scope.resolve(raw)
		targetID := schema.NewSymbolID(schema.LangPHP, resolved)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeUsesTrait, Source: classID, Target: targetID})
		st.ensurePlaceholder(targetID, "Trait", resolved)
	}
}

func (st *state) handleMethod(n *tree_sitter.Node, classID schema.ID, classFQN string, fileID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, st.src)
	if name == "" {
		return
	}
	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
	m := schema.NewMethod(schema.LangPHP, classFQN, name, loc)
	st.result.Vertices = append(st.result.Vertices, m)
	st.result.Edges = append(st.result.Edges,
		schema.Edge{Type: schema.EdgeHasMethod, Source: classID, Target: m.ID},
		schema.Edge{Type: schema.EdgeDefinedIn, Source: m.ID, Target: fileID},
	)

	if body := n.ChildByFieldName("body"); body != nil {
		st.scanBodyForCallsAndNews(body, m.ID)
	}
}

func (st *state) handleProperty(n *tree_sitter.Node, classID schema.ID, classFQN string) {
	for _, el := range childrenOfKind(n, "property_element") {
		nameNode := el.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = firstChildOfKind(el, "variable_name")
		}
		name := strings.TrimPrefix(nodeText(nameNode, st.src), "$")
		if name == "" {
			continue
		}
		loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
		p := schema.NewProperty(schema.LangPHP, classFQN, name, loc)
		st.result.Vertices = append(st.result.Vertices, p)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeHasProperty, Source: classID, Target: p.ID})
	}
}

func (st *state) handleClassConst(n *tree_sitter.Node, classID schema.ID, classFQN string) {
	for _, el := range childrenOfKind(n, "const_element") {
		nameNode := el.ChildByFieldName("name")
		name := nodeText(nameNode, st.src)
		if name == "" {
			continue
		}
		loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
		c := schema.NewConstant(schema.LangPHP, classFQN, name, loc)
		st.result.Vertices = append(st.result.Vertices, c)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeHasConstant, Source: classID, Target: c.ID})
	}
}

func (st *state) handleTopLevelConst(n *tree_sitter.Node, fileID schema.ID) {
	for _, el := range childrenOfKind(n, "const_element") {
		nameNode := el.ChildByFieldName("name")
		name := nodeText(nameNode, st.src)
		if name == "" {
			continue
		}
		fqn := name
		if st.scope.namespace != "" {
			fqn = st.scope.namespace + "\\" + name
		}
		loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
		c := schema.NewConstantSym(schema.LangPHP, fqn, name, loc)
		st.result.Vertices = append(st.result.Vertices, c)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: c.ID, Target: fileID})
	}
}

func (st *state) handleFunction(n *tree_sitter.Node, fileID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, st.src)
	if name == "" {
		return
	}
	fqn := name
	if st.scope.namespace != "" {
		fqn = st.scope.namespace + "\\" + name
	}
	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
	f := schema.NewFunction(schema.LangPHP, fqn, name, loc)
	st.result.Vertices = append(st.result.Vertices, f)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: f.ID, Target: fileID})

	if body := n.ChildByFieldName("body"); body != nil {
		st.scanBodyForCallsAndNews(body, f.ID)
	}
}

// scanBodyForCallsAndNews walks a method/function body recursively
// looking for `new X(...)` and call expressions, emitting best-effort
// CALLS/INSTANTIATES edges per spec.md §4.4 rules 9-10.
func (st *state) scanBodyForCallsAndNews(body *tree_sitter.Node, containerID schema.ID) {
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "object_creation_expression":
			st.handleInstantiation(n, containerID)
		case "member_call_expression":
			st.handleMemberCall(n, containerID)
		case "scoped_call_expression":
			st.handleScopedCall(n, containerID)
		case "function_call_expression":
			st.handleFunctionCall(n, containerID)
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
}

func (st *state) handleInstantiation(n *tree_sitter.Node, containerID schema.ID) {
	classNode := n.ChildByFieldName("class")
	if classNode == nil {
		classNode = firstChildOfKind(n, "name")
	}
	if classNode == nil {
		classNode = firstChildOfKind(n, "qualified_name")
	}
	if classNode == nil {
		return // dynamic `new $class(...)` — not statically resolvable.
	}
	raw := nodeText(classNode, st.src)
	resolved := st.scope.resolve(raw)
	targetID := schema.NewSymbolID(schema.LangPHP, resolved)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeInstantiates, Source: containerID, Target: targetID})
	st.ensurePlaceholder(targetID, "Class", resolved)
}

func (st *state) handleMemberCall(n *tree_sitter.Node, containerID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	method := nodeText(nameNode, st.src)
	if method == "" {
		return
	}
	obj := n.ChildByFieldName("object")
	var targetFQN string
	if obj != nil && nodeText(obj, st.src) == "$this" {
		if cc, ok := st.scope.currentClass(); ok {
			targetFQN = cc.fqn + "::" + method
		}
	}
	if targetFQN == "" {
		// Static target not determinable from $this; best-effort by
		// method name only, per spec.md §4.4 rule 10.
		targetFQN = "method::" + method
	}
	targetID := schema.NewSymbolID(schema.LangPHP, targetFQN)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeCalls, Source: containerID, Target: targetID})
	st.ensurePlaceholder(targetID, "Method", targetFQN)
}

func (st *state) handleScopedCall(n *tree_sitter.Node, containerID schema.ID) {
	classNode := n.ChildByFieldName("class")
	nameNode := n.ChildByFieldName("name")
	method := nodeText(nameNode, st.src)
	if method == "" {
		return
	}
	raw := nodeText(classNode, st.src)
	resolved := st.scope.resolve(raw)
	targetFQN := resolved + "::" + method
	targetID := schema.NewSymbolID(schema.LangPHP, targetFQN)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeCalls, Source: containerID, Target: targetID})
	st.ensurePlaceholder(targetID, "Method", targetFQN)
}

func (st *state) handleFunctionCall(n *tree_sitter.Node, containerID schema.ID) {
	fnNode := n.ChildByFieldName("function")
	if fnNode == nil {
		fnNode = firstChildOfKind(n, "name")
	}
	name := nodeText(fnNode, st.src)
	if name == "" || strings.Contains(name, "(") {
		return
	}
	resolved := st.scope.resolve(name)
	targetID := schema.NewSymbolID(schema.LangPHP, resolved)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeCalls, Source: containerID, Target: targetID})
	st.ensurePlaceholder(targetID, "Function", resolved)
}

func basename(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
