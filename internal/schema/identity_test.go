package schema

import "testing"

func TestMakeIDDeterministic(t *testing.T) {
	id1 := MakeID("sym:php:", "Espo\\Core\\Container")
	id2 := MakeID("sym:php:", "Espo\\Core\\Container")
	if id1 != id2 {
		t.Fatalf("MakeID not deterministic: %q vs %q", id1, id2)
	}
}

func TestMakeIDDistinctInputs(t *testing.T) {
	a := NewSymbolID(LangPHP, "X\\A")
	b := NewSymbolID(LangPHP, "Y\\A")
	if a == b {
		t.Fatalf("expected distinct ids for distinct FQNs, got %q for both", a)
	}
}

func TestUnresolvedMergesWithConcreteID(t *testing.T) {
	placeholder := NewUnresolved("Class", "X\\B", LangPHP)
	concrete := NewClass(LangPHP, "X\\B", "B", nil)
	if placeholder.ID != concrete.ID {
		t.Fatalf("placeholder id %q should equal concrete id %q so they merge by id", placeholder.ID, concrete.ID)
	}
}

func TestNormalizeEndpointPath(t *testing.T) {
	cases := map[string]string{
		"/api//v1///Lead/": "/api/v1/Lead",
		"":                  "/",
		"/":                 "/",
		"api/v1/Lead":       "/api/v1/Lead",
		"/api/v1/Lead/{id}": "/api/v1/Lead/{id}",
		"/api/v1/Lead/:id":  "/api/v1/Lead/:id",
	}
	for in, want := range cases {
		if got := NormalizeEndpointPath(in); got != want {
			t.Errorf("NormalizeEndpointPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEndpointQualifiedNameFormat(t *testing.T) {
	v := NewEndpoint("get", "/api/v1/Lead")
	want := "GET /api/v1/Lead"
	if v.QualifiedName != want {
		t.Errorf("qualified_name = %q, want %q", v.QualifiedName, want)
	}
}

func TestEndpointIDStableAcrossMethodCase(t *testing.T) {
	a := NewEndpoint("get", "/x")
	b := NewEndpoint("GET", "/x")
	if a.ID != b.ID {
		t.Fatalf("endpoint id should be case-insensitive on method: %q vs %q", a.ID, b.ID)
	}
}
