package javascript

import (
	"context"
	"testing"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

func parseSource(t *testing.T, src string) extractor.ParseResult {
	t.Helper()
	e := New()
	return e.ParseFile(context.Background(), "src/app.js", []byte(src))
}

func TestExtensionsAndLanguageTag(t *testing.T) {
	e := New()
	exts := e.SupportedExtensions()
	if len(exts) != 2 || exts[0] != ".js" || exts[1] != ".jsx" {
		t.Fatalf("unexpected extensions: %v", exts)
	}
	if e.LanguageTag() != schema.LangJavaScript {
		t.Fatalf("unexpected language tag: %s", e.LanguageTag())
	}
}

func TestFileAndModuleDualVertex(t *testing.T) {
	res := parseSource(t, `const x = 1;`)
	var sawFile, sawModule bool
	var fileID, moduleID schema.ID
	for _, v := range res.Vertices {
		if v.Label == schema.LabelFile {
			sawFile, fileID = true, v.ID
		}
		if v.Label == schema.LabelModule && v.QualifiedName == "src/app.js" {
			sawModule, moduleID = true, v.ID
		}
	}
	if !sawFile || !sawModule {
		t.Fatal("expected both a File and a Module vertex for the same path")
	}
	found := false
	for _, e := range res.Edges {
		if e.Type == schema.EdgeDefinedIn && e.Source == moduleID && e.Target == fileID {
			found = true
		}
	}
	if !found {
		t.Error("expected a DEFINED_IN edge from the module vertex to the file vertex")
	}
}

func TestES6ImportProducesImportsEdge(t *testing.T) {
	res := parseSource(t, `import { foo } from './lib/foo';`)
	var sawImports bool
	for _, e := range res.Edges {
		if e.Type != schema.EdgeImports {
			continue
		}
		for _, v := range res.Vertices {
			if v.ID == e.Target && v.QualifiedName == "./lib/foo" {
				sawImports = true
			}
		}
	}
	if !sawImports {
		t.Error("expected an IMPORTS edge to a module vertex qualified './lib/foo'")
	}
}

func TestClassWithExtends(t *testing.T) {
	src := `
class Dog extends Animal {
    bark() {
        return this.speak();
    }
}
`
	res := parseSource(t, src)
	var classVertex *schema.Vertex
	for i := range res.Vertices {
		if res.Vertices[i].Label == schema.LabelClass && res.Vertices[i].Name == "Dog" {
			classVertex = &res.Vertices[i]
		}
	}
	if classVertex == nil {
		t.Fatal("expected a Class vertex named Dog")
	}
	var sawExtends, sawMethod bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeExtends && e.Source == classVertex.ID {
			sawExtends = true
		}
		if e.Type == schema.EdgeHasMethod && e.Source == classVertex.ID {
			sawMethod = true
		}
	}
	if !sawExtends {
		t.Error("expected an EXTENDS edge from Dog")
	}
	if !sawMethod {
		t.Error("expected a HAS_METHOD edge for bark")
	}
}

func TestBackboneExtendStyle(t *testing.T) {
	src := `const Dog = Animal.extend({
    bark: function () {
        return 1;
    }
});`
	res := parseSource(t, src)
	var classVertex *schema.Vertex
	for i := range res.Vertices {
		if res.Vertices[i].Label == schema.LabelClass && res.Vertices[i].Name == "Dog" {
			classVertex = &res.Vertices[i]
		}
	}
	if classVertex == nil {
		t.Fatal("expected a Class vertex named Dog from Animal.extend({...})")
	}
	var sawExtends, sawMethod bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeExtends && e.Source == classVertex.ID {
			sawExtends = true
		}
		if e.Type == schema.EdgeHasMethod && e.Source == classVertex.ID {
			sawMethod = true
		}
	}
	if !sawExtends {
		t.Error("expected an EXTENDS edge inferred from Animal.extend")
	}
	if !sawMethod {
		t.Error("expected a HAS_METHOD edge for bark on the Backbone-style class")
	}
}

func TestNewExpressionProducesInstantiates(t *testing.T) {
	src := `
function build() {
    return new Widget();
}
`
	res := parseSource(t, src)
	var sawInstantiates bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeInstantiates {
			sawInstantiates = true
		}
	}
	if !sawInstantiates {
		t.Error("expected an INSTANTIATES edge for new Widget()")
	}
}

func TestFetchCallProducesCallsAPIEdge(t *testing.T) {
	src := `
function load() {
    fetch('/api/users');
}
`
	res := parseSource(t, src)
	var endpoint *schema.Vertex
	for i := range res.Vertices {
		if res.Vertices[i].Label == schema.LabelEndpoint {
			endpoint = &res.Vertices[i]
		}
	}
	if endpoint == nil {
		t.Fatal("expected an Endpoint vertex for the fetch call")
	}
	if endpoint.Attributes["path"] != "/api/users" {
		t.Errorf("expected endpoint path /api/users, got %v", endpoint.Attributes["path"])
	}
	if endpoint.Attributes["method"] != "GET" {
		t.Errorf("expected default method GET, got %v", endpoint.Attributes["method"])
	}
	var sawCallsAPI bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeCallsAPI && e.Target == endpoint.ID {
			sawCallsAPI = true
		}
	}
	if !sawCallsAPI {
		t.Error("expected a CALLS_API edge to the fetch endpoint")
	}
}

func TestTopLevelFetchCallUsesFileVertexAsSource(t *testing.T) {
	src := `fetch('/api/users');`
	res := parseSource(t, src)

	var fileVertex, endpoint *schema.Vertex
	for i := range res.Vertices {
		switch res.Vertices[i].Label {
		case schema.LabelFile:
			fileVertex = &res.Vertices[i]
		case schema.LabelEndpoint:
			endpoint = &res.Vertices[i]
		}
	}
	if fileVertex == nil {
		t.Fatal("expected a File vertex")
	}
	if endpoint == nil {
		t.Fatal("expected an Endpoint vertex for the top-level fetch call")
	}

	var sawCallsAPI bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeCallsAPI && e.Source == fileVertex.ID && e.Target == endpoint.ID {
			sawCallsAPI = true
		}
	}
	if !sawCallsAPI {
		t.Error("expected a CALLS_API edge from the File vertex to the fetch endpoint")
	}
}

func TestAxiosCallWithTemplateLiteral(t *testing.T) {
	src := "function load(id) {\n    axios.get(`/api/users/${id}`);\n}\n"
	res := parseSource(t, src)
	var endpoint *schema.Vertex
	for i := range res.Vertices {
		if res.Vertices[i].Label == schema.LabelEndpoint {
			endpoint = &res.Vertices[i]
		}
	}
	if endpoint == nil {
		t.Fatal("expected an Endpoint vertex for the axios.get call")
	}
	if endpoint.Attributes["path"] != "/api/users/{id}" {
		t.Errorf("expected static template prefix normalized with {id} placeholder, got %v", endpoint.Attributes["path"])
	}
}

func TestDynamicURLSkippedWithDiagnostic(t *testing.T) {
	src := `
function load(url) {
    fetch(url);
}
`
	res := parseSource(t, src)
	for _, v := range res.Vertices {
		if v.Label == schema.LabelEndpoint {
			t.Fatal("expected no Endpoint vertex for a fully dynamic fetch(url) call")
		}
	}
	var sawWarning bool
	for _, d := range res.Diagnostics {
		if d.Severity == extractor.SeverityWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Error("expected a warning diagnostic for the skipped dynamic URL call")
	}
}

func TestAMDDefineProducesImports(t *testing.T) {
	src := `define(['jquery', './util'], function ($, util) {
    return {};
});`
	res := parseSource(t, src)
	var sawJquery, sawUtil bool
	for _, e := range res.Edges {
		if e.Type != schema.EdgeImports {
			continue
		}
		for _, v := range res.Vertices {
			if v.ID != e.Target {
				continue
			}
			if v.QualifiedName == "jquery" {
				sawJquery = true
			}
			if v.QualifiedName == "./util" {
				sawUtil = true
			}
		}
	}
	if !sawJquery || !sawUtil {
		t.Error("expected IMPORTS edges for both AMD dependencies")
	}
}
