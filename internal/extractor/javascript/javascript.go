// Package javascript extracts vertices and edges from JavaScript source,
// implementing spec.md §4.5 points 1-6: ES6/CommonJS/AMD/Backbone-style
// module systems, class/function/method vertices, IMPORTS/INSTANTIATES
// edges, and API-call-site recognition (fetch/$.ajax/axios/framework
// Ajax helpers) producing CALLS_API edges to Endpoint vertices.
package javascript

import (
	"context"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

// Extractor implements extractor.Extractor for JavaScript source files.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

func (e *Extractor) SupportedExtensions() []string { return []string{".js", ".jsx"} }

func (e *Extractor) LanguageTag() schema.LanguageTag { return schema.LangJavaScript }

type state struct {
	filePath  string
	src       []byte
	result    extractor.ParseResult
	moduleID  schema.ID
	importMap map[string]string // local identifier -> module spec, for INSTANTIATES source resolution
}

func (st *state) addDiag(sev extractor.Severity, msg string, line int) {
	st.result.Diagnostics = append(st.result.Diagnostics, extractor.Diagnostic{
		Severity: sev, Message: msg, FilePath: st.filePath, Line: line,
	})
}

func (e *Extractor) ParseFile(ctx context.Context, path string, src []byte) extractor.ParseResult {
	st := &state{filePath: path, src: src, importMap: map[string]string{}}
	st.result.FilePath = path

	fileVertex := schema.NewFile(path, basename(path), schema.LangJavaScript)
	moduleVertex := schema.NewModule(path, basename(path))
	st.moduleID = moduleVertex.ID
	st.result.Vertices = append(st.result.Vertices, fileVertex, moduleVertex)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: moduleVertex.ID, Target: fileVertex.ID})

	tree, err := parse(src)
	if err != nil {
		st.addDiag(extractor.SeverityFatal, err.Error(), 0)
		return st.result
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := uint(0); i < root.ChildCount(); i++ {
		st.processTopLevel(root.Child(i), fileVertex.ID)
	}
	return st.result
}

func (st *state) processTopLevel(n *tree_sitter.Node, fileID schema.ID) {
	if n == nil {
		return
	}
	switch n.Kind() {
	case "import_statement":
		st.handleImportStatement(n)
	case "lexical_declaration", "variable_declaration":
		st.handleTopLevelDeclaration(n, fileID)
	case "export_statement":
		if decl := n.ChildByFieldName("declaration"); decl != nil {
			st.processTopLevel(decl, fileID)
		} else {
			st.scanExpressionStatementForRequireOrAMD(n, fileID)
		}
	case "class_declaration":
		st.handleClass(n, fileID)
	case "function_declaration":
		st.handleFunctionDeclaration(n, fileID)
	case "expression_statement":
		st.scanExpressionStatementForRequireOrAMD(n, fileID)
	}
}

func (st *state) handleImportStatement(n *tree_sitter.Node) {
	sourceNode := n.ChildByFieldName("source")
	spec := unquote(nodeText(sourceNode, st.src))
	if spec == "" {
		return
	}
	depModule := schema.NewModule(spec, lastPathSegment(spec))
	st.result.Vertices = append(st.result.Vertices, depModule)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeImports, Source: st.moduleID, Target: depModule.ID})

	// Track default/namespace import bindings for later INSTANTIATES scoping.
	if clause := firstChildOfKind(n, "import_clause"); clause != nil {
		for i := uint(0); i < clause.ChildCount(); i++ {
			c := clause.Child(i)
			if c == nil {
				continue
			}
			switch c.Kind() {
			case "identifier":
				st.importMap[nodeText(c, st.src)] = spec
			case "namespace_import":
				if id := firstChildOfKind(c, "identifier"); id != nil {
					st.importMap[nodeText(id, st.src)] = spec
				}
			}
		}
	}
}

// handleTopLevelDeclaration covers `const X = require('m')`, `const X = class
// ... { }`, `const f = () => {}`, and Backbone's `const Dog = Animal.extend({...})`.
func (st *state) handleTopLevelDeclaration(n *tree_sitter.Node, fileID schema.ID) {
	for _, d := range childrenOfKind(n, "variable_declarator") {
		nameNode := d.ChildByFieldName("name")
		name := nodeText(nameNode, st.src)
		valueNode := d.ChildByFieldName("value")
		if name == "" || valueNode == nil {
			continue
		}
		switch valueNode.Kind() {
		case "call_expression":
			fn := valueNode.ChildByFieldName("function")
			callee := nodeText(fn, st.src)
			if callee == "require" {
				st.handleRequireAssignment(valueNode, name)
				continue
			}
			if strings.HasSuffix(callee, ".extend") {
				st.handleBackboneExtend(valueNode, callee, name, fileID)
				continue
			}
		case "arrow_function", "function_expression":
			st.handleFunctionLike(valueNode, name, fileID)
		case "class":
			st.handleClassExpression(valueNode, name, fileID)
		}
	}
}

func (st *state) handleRequireAssignment(call *tree_sitter.Node, localName string) {
	args := call.ChildByFieldName("arguments")
	specNode := firstStringArg(args)
	spec := unquote(nodeText(specNode, st.src))
	if spec == "" {
		return
	}
	st.importMap[localName] = spec
	depModule := schema.NewModule(spec, lastPathSegment(spec))
	st.result.Vertices = append(st.result.Vertices, depModule)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeImports, Source: st.moduleID, Target: depModule.ID})
}

// handleBackboneExtend treats `Parent.extend({...})` as a class declaration
// whose EXTENDS target is the identifier left of `.extend` (spec.md §4.5).
func (st *state) handleBackboneExtend(call *tree_sitter.Node, callee, name string, fileID schema.ID) {
	parent := strings.TrimSuffix(callee, ".extend")
	fqn := fileScoped(st.filePath, name)
	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(call), EndLine: endLineOf(call)}
	classVertex := schema.Vertex{
		ID: schema.NewSymbolID(schema.LangJavaScript, fqn), Label: schema.LabelClass, Language: schema.LangJavaScript,
		Name: name, QualifiedName: fqn, Location: loc, Attributes: map[string]any{"style": "backbone"},
	}
	st.result.Vertices = append(st.result.Vertices, classVertex)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: classVertex.ID, Target: fileID})

	parentFQN := st.resolveIdentifierFQN(parent)
	targetID := schema.NewSymbolID(schema.LangJavaScript, parentFQN)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeExtends, Source: classVertex.ID, Target: targetID})
	st.ensurePlaceholder("Class", parentFQN)

	if obj := firstChildOfKind(call.ChildByFieldName("arguments"), "object"); obj != nil {
		st.handleObjectMethods(obj, classVertex.ID, fqn)
	}
}

func (st *state) handleFunctionLike(fn *tree_sitter.Node, name string, fileID schema.ID) {
	fqn := fileScoped(st.filePath, name)
	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(fn), EndLine: endLineOf(fn)}
	f := schema.NewFunction(schema.LangJavaScript, fqn, name, loc)
	st.result.Vertices = append(st.result.Vertices, f)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: f.ID, Target: fileID})
	if body := fn.ChildByFieldName("body"); body != nil {
		st.scanBodyForAPICallsAndNews(body, f.ID)
	}
}

func (st *state) handleFunctionDeclaration(n *tree_sitter.Node, fileID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, st.src)
	if name == "" {
		return
	}
	st.handleFunctionLike(n, name, fileID)
}

func (st *state) handleClass(n *tree_sitter.Node, fileID schema.ID) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, st.src)
	if name == "" {
		return
	}
	st.emitClass(n, name, fileID)
}

func (st *state) handleClassExpression(n *tree_sitter.Node, name string, fileID schema.ID) {
	st.emitClass(n, name, fileID)
}

func (st *state) emitClass(n *tree_sitter.Node, name string, fileID schema.ID) {
	fqn := fileScoped(st.filePath, name)
	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
	classVertex := schema.Vertex{
		ID: schema.NewSymbolID(schema.LangJavaScript, fqn), Label: schema.LabelClass, Language: schema.LangJavaScript,
		Name: name, QualifiedName: fqn, Location: loc, Attributes: map[string]any{},
	}
	st.result.Vertices = append(st.result.Vertices, classVertex)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: classVertex.ID, Target: fileID})

	if heritage := firstChildOfKind(n, "class_heritage"); heritage != nil {
		superNode := n.ChildByFieldName("superclass")
		if superNode == nil {
			for i := uint(0); i < heritage.ChildCount(); i++ {
				c := heritage.Child(i)
				if c != nil && (c.Kind() == "identifier" || c.Kind() == "member_expression") {
					superNode = c
					break
				}
			}
		}
		if superNode != nil {
			raw := nodeText(superNode, st.src)
			parentFQN := st.resolveIdentifierFQN(raw)
			targetID := schema.NewSymbolID(schema.LangJavaScript, parentFQN)
			st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeExtends, Source: classVertex.ID, Target: targetID})
			st.ensurePlaceholder("Class", parentFQN)
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			c := body.Child(i)
			if c != nil && c.Kind() == "method_definition" {
				st.handleMethod(c, classVertex.ID, fqn)
			}
		}
	}
}

func (st *state) handleObjectMethods(obj *tree_sitter.Node, classID schema.ID, classFQN string) {
	for i := uint(0); i < obj.ChildCount(); i++ {
		c := obj.Child(i)
		if c == nil || c.Kind() != "pair" {
			continue
		}
		keyNode := c.ChildByFieldName("key")
		valueNode := c.ChildByFieldName("value")
		if valueNode == nil || (valueNode.Kind() != "function_expression" && valueNode.Kind() != "arrow_function") {
			continue
		}
		name := nodeText(keyNode, st.src)
		loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(c), EndLine: endLineOf(c)}
		m := schema.NewMethod(schema.LangJavaScript, classFQN, name, loc)
		st.result.Vertices = append(st.result.Vertices, m)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeHasMethod, Source: classID, Target: m.ID})
		if body := valueNode.ChildByFieldName("body"); body != nil {
			st.scanBodyForAPICallsAndNews(body, m.ID)
		}
	}
}

func (st *state) handleMethod(n *tree_sitter.Node, classID schema.ID, classFQN string) {
	nameNode := n.ChildByFieldName("name")
	name := nodeText(nameNode, st.src)
	if name == "" {
		return
	}
	loc := &schema.Location{FilePath: st.filePath, StartLine: lineOf(n), EndLine: endLineOf(n)}
	m := schema.NewMethod(schema.LangJavaScript, classFQN, name, loc)
	st.result.Vertices = append(st.result.Vertices, m)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeHasMethod, Source: classID, Target: m.ID})
	if body := n.ChildByFieldName("body"); body != nil {
		st.scanBodyForAPICallsAndNews(body, m.ID)
	}
}

// scanExpressionStatementForRequireOrAMD handles bare `define([...], function
// (a, b) {...})` AMD modules and bare `require('m')` calls (an IMPORTS edge
// to the module), none of which bind a variable_declarator. CommonJS
// `module.exports = ...` / `exports.x = ...` assignments produce no
// vertices or edges of their own; only the calls inside them are examined.
// It also dispatches bare top-level API-call sites (`fetch(...)`,
// `$.ajax({...})`, `axios.METHOD(...)`, ...) through the same recognition
// used inside function bodies, since a call expression with no enclosing
// function/method/arrow still needs a CALLS_API source: the File vertex
// (spec.md §4.5 point 6, container-detection fallback).
func (st *state) scanExpressionStatementForRequireOrAMD(n *tree_sitter.Node, fileID schema.ID) {
	var walk func(*tree_sitter.Node)
	walk = func(c *tree_sitter.Node) {
		if c == nil {
			return
		}
		if c.Kind() == "call_expression" {
			fn := c.ChildByFieldName("function")
			callee := nodeText(fn, st.src)
			if callee == "define" {
				st.handleAMDDefine(c, fileID)
			} else if callee == "require" {
				if spec := unquote(nodeText(firstStringArg(c.ChildByFieldName("arguments")), st.src)); spec != "" {
					dep := schema.NewModule(spec, lastPathSegment(spec))
					st.result.Vertices = append(st.result.Vertices, dep)
					st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeImports, Source: st.moduleID, Target: dep.ID})
				}
			} else {
				st.handleCallExpression(c, fileID)
			}
		}
		for i := uint(0); i < c.ChildCount(); i++ {
			walk(c.Child(i))
		}
	}
	walk(n)
}

// handleAMDDefine records each string in the dependency array as an
// IMPORTS edge from a synthetic AMD module vertex, per spec.md §4.5.
func (st *state) handleAMDDefine(call *tree_sitter.Node, fileID schema.ID) {
	args := call.ChildByFieldName("arguments")
	arr := firstChildOfKind(args, "array")
	if arr == nil {
		return
	}
	amdFQN := fileScoped(st.filePath, "amd")
	amdVertex := schema.Vertex{
		ID: schema.NewModuleID(st.filePath + "#amd"), Label: schema.LabelModule, Language: schema.LangJavaScript,
		Name: "amd", QualifiedName: amdFQN, Attributes: map[string]any{},
	}
	st.result.Vertices = append(st.result.Vertices, amdVertex)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeDefinedIn, Source: amdVertex.ID, Target: fileID})

	for i := uint(0); i < arr.ChildCount(); i++ {
		c := arr.Child(i)
		if c == nil || c.Kind() != "string" {
			continue
		}
		spec := unquote(nodeText(c, st.src))
		depModule := schema.NewModule(spec, lastPathSegment(spec))
		st.result.Vertices = append(st.result.Vertices, depModule)
		st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeImports, Source: amdVertex.ID, Target: depModule.ID})
	}
}

// scanBodyForAPICallsAndNews walks a function/method body for `new
// Ident(...)` and recognized API-call patterns (spec.md §4.5 points 5-6).
func (st *state) scanBodyForAPICallsAndNews(body *tree_sitter.Node, containerID schema.ID) {
	var walk func(*tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		switch n.Kind() {
		case "new_expression":
			st.handleNewExpression(n, containerID)
		case "call_expression":
			st.handleCallExpression(n, containerID)
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
}

func (st *state) handleNewExpression(n *tree_sitter.Node, containerID schema.ID) {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil {
		ctor = firstChildOfKind(n, "identifier")
	}
	if ctor == nil {
		return
	}
	name := nodeText(ctor, st.src)
	fqn := st.resolveIdentifierFQN(name)
	targetID := schema.NewSymbolID(schema.LangJavaScript, fqn)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeInstantiates, Source: containerID, Target: targetID})
	st.ensurePlaceholder("Class", fqn)
}

// handleCallExpression recognizes fetch/$.ajax/axios.METHOD/Foo.Ajax.METHODRequest
// call shapes and emits a CALLS_API edge to the derived Endpoint vertex.
func (st *state) handleCallExpression(n *tree_sitter.Node, containerID schema.ID) {
	fn := n.ChildByFieldName("function")
	callee := nodeText(fn, st.src)
	args := n.ChildByFieldName("arguments")

	var method, url string
	var ok bool
	switch {
	case callee == "fetch":
		method, url, ok = "GET", st.firstArgURL(args), true
		if opts := secondArgObject(args); opts != nil {
			if m := objectStringProp(opts, st.src, "method"); m != "" {
				method = strings.ToUpper(m)
			}
		}
	case callee == "$.ajax":
		if opts := firstArgObject(args); opts != nil {
			url = objectStringProp(opts, st.src, "url")
			method = objectStringProp(opts, st.src, "method")
			if method == "" {
				method = objectStringProp(opts, st.src, "type")
			}
			if method == "" {
				method = "GET"
			}
			ok = url != ""
		}
	case strings.HasPrefix(callee, "axios."):
		verb := strings.TrimPrefix(callee, "axios.")
		if isHTTPVerb(verb) {
			method, url, ok = strings.ToUpper(verb), st.firstArgURL(args), true
		}
	default:
		if idx := strings.LastIndex(callee, "."); idx > 0 && strings.HasSuffix(callee, "Request") {
			// Foo.Ajax.METHODRequest(url, ...)
			verb := strings.TrimSuffix(callee[idx+1:], "Request")
			if isHTTPVerb(verb) {
				method, url, ok = strings.ToUpper(verb), st.firstArgURL(args), true
			}
		}
	}
	if !ok {
		return
	}
	if url == "" {
		st.addDiag(extractor.SeverityWarning, "API call with fully dynamic URL skipped: "+callee, lineOf(n))
		return
	}
	endpoint := schema.NewEndpoint(method, url)
	st.result.Vertices = append(st.result.Vertices, endpoint)
	st.result.Edges = append(st.result.Edges, schema.Edge{Type: schema.EdgeCallsAPI, Source: containerID, Target: endpoint.ID})
}

// firstArgURL extracts a static URL from the first call argument: a plain
// string, or a template literal whose static prefix is identifiable (a
// trailing substitution becomes a "{id}" placeholder per spec.md §4.5).
func (st *state) firstArgURL(args *tree_sitter.Node) string {
	if args == nil || args.ChildCount() == 0 {
		return ""
	}
	for i := uint(0); i < args.ChildCount(); i++ {
		a := args.Child(i)
		if a == nil || !a.IsNamed() {
			continue
		}
		switch a.Kind() {
		case "string":
			return unquote(nodeText(a, st.src))
		case "template_string":
			return st.staticTemplatePrefix(a)
		}
		return ""
	}
	return ""
}

func (st *state) staticTemplatePrefix(tpl *tree_sitter.Node) string {
	var sb strings.Builder
	sawSubstitution := false
	for i := uint(0); i < tpl.ChildCount(); i++ {
		c := tpl.Child(i)
		if c == nil {
			continue
		}
		switch c.Kind() {
		case "string_fragment":
			sb.WriteString(nodeText(c, st.src))
		case "template_substitution":
			sawSubstitution = true
			sb.WriteString("{id}")
		}
	}
	text := strings.Trim(sb.String(), "`")
	if !sawSubstitution && text == "" {
		return ""
	}
	return text
}

func firstArgObject(args *tree_sitter.Node) *tree_sitter.Node {
	return firstChildOfKind(args, "object")
}

func secondArgObject(args *tree_sitter.Node) *tree_sitter.Node {
	if args == nil {
		return nil
	}
	count := 0
	for i := uint(0); i < args.ChildCount(); i++ {
		c := args.Child(i)
		if c == nil || !c.IsNamed() {
			continue
		}
		count++
		if count == 2 {
			if c.Kind() == "object" {
				return c
			}
			return nil
		}
	}
	return nil
}

func firstStringArg(args *tree_sitter.Node) *tree_sitter.Node {
	if args == nil {
		return nil
	}
	for i := uint(0); i < args.ChildCount(); i++ {
		c := args.Child(i)
		if c != nil && c.Kind() == "string" {
			return c
		}
	}
	return nil
}

func objectStringProp(obj *tree_sitter.Node, src []byte, key string) string {
	for i := uint(0); i < obj.ChildCount(); i++ {
		c := obj.Child(i)
		if c == nil || c.Kind() != "pair" {
			continue
		}
		keyNode := c.ChildByFieldName("key")
		if nodeText(keyNode, src) != key {
			continue
		}
		valueNode := c.ChildByFieldName("value")
		if valueNode != nil && valueNode.Kind() == "string" {
			return unquote(nodeText(valueNode, src))
		}
	}
	return ""
}

func isHTTPVerb(s string) bool {
	switch strings.ToLower(s) {
	case "get", "post", "put", "delete", "patch", "head", "options":
		return true
	}
	return false
}

func (st *state) ensurePlaceholder(kind, fqn string) {
	st.result.Vertices = append(st.result.Vertices, schema.NewUnresolved(kind, fqn, schema.LangJavaScript))
}

// resolveIdentifierFQN keys an identifier by file scope unless it was
// imported from a module, in which case it's keyed by module + name
// (spec.md §4.5 point 5).
func (st *state) resolveIdentifierFQN(name string) string {
	if mod, ok := st.importMap[name]; ok {
		return mod + "::" + name
	}
	return fileScoped(st.filePath, name)
}

func childrenOfKind(n *tree_sitter.Node, kind string) []*tree_sitter.Node {
	var out []*tree_sitter.Node
	if n == nil {
		return out
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		c := n.Child(i)
		if c != nil && c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

func fileScoped(filePath, name string) string {
	return filePath + "::" + name
}

func lastPathSegment(p string) string {
	p = strings.TrimSuffix(p, "/")
	if idx := strings.LastIndexByte(p, '/'); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

func basename(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}
