package php

import (
	"context"
	"testing"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

func parseSource(t *testing.T, src string) extractor.ParseResult {
	t.Helper()
	e := New()
	return e.ParseFile(context.Background(), "app/Foo.php", []byte(src))
}

func TestExtensionsAndLanguageTag(t *testing.T) {
	e := New()
	exts := e.SupportedExtensions()
	if len(exts) != 1 || exts[0] != ".php" {
		t.Fatalf("unexpected extensions: %v", exts)
	}
	if e.LanguageTag() != schema.LangPHP {
		t.Fatalf("unexpected language tag: %s", e.LanguageTag())
	}
}

func TestSimpleClassWithInheritance(t *testing.T) {
	src := `<?php
namespace App;

class Dog extends Animal implements Speaks {
    public function bark() {
        $this->log();
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
	if classVertex.QualifiedName != "App\\Dog" {
		t.Errorf("expected FQN App\\Dog, got %s", classVertex.QualifiedName)
	}

	var sawExtends, sawImplements bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeExtends && e.Source == classVertex.ID {
			sawExtends = true
		}
		if e.Type == schema.EdgeImplements && e.Source == classVertex.ID {
			sawImplements = true
		}
	}
	if !sawExtends {
		t.Error("expected an EXTENDS edge from Dog")
	}
	if !sawImplements {
		t.Error("expected an IMPLEMENTS edge from Dog")
	}
}

func TestUseAliasResolution(t *testing.T) {
	src := `<?php
namespace App;

use App\Animals\Base as Base;

class Dog extends Base {
}
`
	res := parseSource(t, src)
	for _, e := range res.Edges {
		if e.Type == schema.EdgeExtends {
			found := false
			for _, v := range res.Vertices {
				if v.ID == e.Target && v.QualifiedName == "App\\Animals\\Base" {
					found = true
				}
			}
			if !found {
				t.Errorf("expected EXTENDS target resolved to App\\Animals\\Base via use-alias")
			}
		}
	}
}

func TestTopLevelUseEmitsImportsEdge(t *testing.T) {
	src := `<?php
namespace App;

use App\Animals\Base;

class Dog extends Base {
}
`
	res := parseSource(t, src)

	var fileVertex *schema.Vertex
	for i := range res.Vertices {
		if res.Vertices[i].Label == schema.LabelFile {
			fileVertex = &res.Vertices[i]
		}
	}
	if fileVertex == nil {
		t.Fatal("expected a File vertex")
	}

	wantTarget := schema.NewSymbolID(schema.LangPHP, "App\\Animals\\Base")
	found := false
	for _, e := range res.Edges {
		if e.Type == schema.EdgeImports && e.Source == fileVertex.ID && e.Target == wantTarget {
			found = true
		}
	}
	if !found {
		t.Error("expected an IMPORTS edge from the File to App\\Animals\\Base")
	}
}

func TestAnonymousClassSkipped(t *testing.T) {
	src := `<?php
$x = new class {
    public function foo() {}
};
`
	res := parseSource(t, src)
	for _, v := range res.Vertices {
		if v.Label == schema.LabelMethod {
			t.Errorf("anonymous class members should not produce vertices, found %s", v.Name)
		}
	}
}
