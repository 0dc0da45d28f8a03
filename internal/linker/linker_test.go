package linker

import (
	"testing"

	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMergePlaceholdersReconcilesMismatchedID(t *testing.T) {
	st := newTestStore(t)

	concrete := schema.NewClass(schema.LangPHP, `Espo\Services\Lead`, "Lead", nil)
	// A placeholder produced under a different language tag, so its id
	// differs from the concrete vertex's even though qualified_name agrees.
	stale := schema.NewUnresolved("Class", `Espo\Services\Lead`, schema.LangFramework)

	other := schema.NewClass(schema.LangPHP, "Unrelated", "Unrelated", nil)
	edge := schema.Edge{Type: schema.EdgeInstantiates, Source: other.ID, Target: stale.ID}

	if _, _, err := st.WriteBatch([]schema.Vertex{concrete, other}, nil, schema.LangPHP); err != nil {
		t.Fatal(err)
	}
	if _, _, err := st.WriteBatch([]schema.Vertex{stale}, []schema.Edge{edge}, schema.LangFramework); err != nil {
		t.Fatal(err)
	}

	l := New(st)
	merged, err := l.mergePlaceholders()
	if err != nil {
		t.Fatal(err)
	}
	if merged != 1 {
		t.Fatalf("expected 1 placeholder merged, got %d", merged)
	}

	staleRow, err := st.FindVertexByID(stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if staleRow != nil {
		t.Error("expected the stale placeholder row to be removed")
	}

	edges, err := st.FindEdgesBySource(other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 1 || edges[0].Target != concrete.ID {
		t.Errorf("expected the INSTANTIATES edge to now target the concrete class, got %+v", edges)
	}
}

func TestResolveInheritanceAnnotatesResolvedAndUnresolved(t *testing.T) {
	st := newTestStore(t)

	base := schema.NewClass(schema.LangPHP, "Base", "Base", nil)
	derived := schema.NewClass(schema.LangPHP, "Derived", "Derived", nil)
	resolvedEdge := schema.Edge{Type: schema.EdgeExtends, Source: derived.ID, Target: base.ID}

	ghost := schema.NewUnresolved("Class", "GhostParent", schema.LangPHP)
	danglingEdge := schema.Edge{Type: schema.EdgeExtends, Source: derived.ID, Target: ghost.ID}

	if _, _, err := st.WriteBatch([]schema.Vertex{base, derived, ghost}, []schema.Edge{resolvedEdge, danglingEdge}, schema.LangPHP); err != nil {
		t.Fatal(err)
	}

	l := New(st)
	annotated, err := l.resolveInheritance()
	if err != nil {
		t.Fatal(err)
	}
	if annotated != 2 {
		t.Fatalf("expected 2 EXTENDS edges annotated, got %d", annotated)
	}

	edges, err := st.FindEdgesBySource(derived.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range edges {
		resolved, _ := e.Attributes["resolved"].(bool)
		if e.Target == base.ID && !resolved {
			t.Error("expected the edge to the concrete base class to be resolved=true")
		}
		if e.Target == ghost.ID && resolved {
			t.Error("expected the edge to the still-unresolved ghost parent to be resolved=false")
		}
	}
}

func TestLinkAPIToEndpointsCreatesDanglingEndpoint(t *testing.T) {
	st := newTestStore(t)

	caller := schema.NewFunction(schema.LangJavaScript, "callSite", "callSite", nil)
	missingEndpoint := schema.NewEndpoint("GET", "/api/v1/never-indexed")
	edge := schema.Edge{Type: schema.EdgeCallsAPI, Source: caller.ID, Target: missingEndpoint.ID}

	// Write the endpoint and edge together so the edge commits, then drop
	// the endpoint row directly to simulate a CALLS_API target that never
	// got materialized (e.g. the extractor that should have produced it
	// crashed, or ran in an earlier, now-pruned batch).
	if _, _, err := st.WriteBatch([]schema.Vertex{caller, missingEndpoint}, []schema.Edge{edge}, schema.LangJavaScript); err != nil {
		t.Fatal(err)
	}
	if _, err := st.DB().Exec("DELETE FROM vertices WHERE id = ?", string(missingEndpoint.ID)); err != nil {
		t.Fatal(err)
	}

	l := New(st)
	created, err := l.linkAPIToEndpoints()
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("expected 1 dangling endpoint created, got %d", created)
	}

	v, err := st.FindVertexByID(missingEndpoint.ID)
	if err != nil {
		t.Fatal(err)
	}
	if v == nil {
		t.Fatal("expected the dangling endpoint vertex to now exist")
	}
	if v.Attributes["inferred_from"] != "javascript" {
		t.Errorf("expected inferred_from=javascript, got %v", v.Attributes["inferred_from"])
	}
}

func TestLinkEndpointsToHandlersResolvesActionConvention(t *testing.T) {
	st := newTestStore(t)

	classFQN := `Espo\Controllers\Lead`
	class := schema.NewClass(schema.LangPHP, classFQN, "Lead", nil)
	method := schema.NewMethod(schema.LangPHP, classFQN, "actionList", nil)

	endpoint := schema.NewEndpoint("GET", "/api/v1/Lead")
	endpoint.Attributes["action"] = "list"
	handlesClassEdge := schema.Edge{Type: schema.EdgeHandles, Source: endpoint.ID, Target: class.ID}

	if _, _, err := st.WriteBatch(
		[]schema.Vertex{class, method, endpoint},
		[]schema.Edge{handlesClassEdge},
		schema.LangPHP,
	); err != nil {
		t.Fatal(err)
	}

	l := New(st)
	linked, _, err := l.linkEndpointsToHandlers()
	if err != nil {
		t.Fatal(err)
	}
	if linked != 1 {
		t.Fatalf("expected 1 endpoint linked to its handler method, got %d", linked)
	}

	edges, err := st.FindEdgesBySource(endpoint.ID)
	if err != nil {
		t.Fatal(err)
	}
	var sawMethodEdge bool
	for _, e := range edges {
		if e.Type == schema.EdgeHandles && e.Target == method.ID {
			sawMethodEdge = true
		}
	}
	if !sawMethodEdge {
		t.Error("expected a HANDLES edge from the endpoint to Espo\\Controllers\\Lead::actionList")
	}
}

func TestLinkEndpointsToHandlersIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	classFQN := "Orders\\Controller"
	class := schema.NewClass(schema.LangPHP, classFQN, "Controller", nil)
	method := schema.NewMethod(schema.LangPHP, classFQN, "actionIndex", nil)
	endpoint := schema.NewEndpoint("GET", "/orders")
	endpoint.Attributes["action"] = "index"
	edge := schema.Edge{Type: schema.EdgeHandles, Source: endpoint.ID, Target: class.ID}

	if _, _, err := st.WriteBatch([]schema.Vertex{class, method, endpoint}, []schema.Edge{edge}, schema.LangPHP); err != nil {
		t.Fatal(err)
	}

	l := New(st)
	if _, _, err := l.linkEndpointsToHandlers(); err != nil {
		t.Fatal(err)
	}
	secondRun, _, err := l.linkEndpointsToHandlers()
	if err != nil {
		t.Fatal(err)
	}
	if secondRun != 0 {
		t.Errorf("expected the second run to link 0 new edges (already resolved), got %d", secondRun)
	}
}

func TestLinkEndpointsToHandlersRecordsDiagnosticWhenNoMethodMatches(t *testing.T) {
	st := newTestStore(t)

	classFQN := `Espo\Controllers\Lead`
	class := schema.NewClass(schema.LangPHP, classFQN, "Lead", nil)

	endpoint := schema.NewEndpoint("GET", "/api/v1/Lead")
	endpoint.Attributes["action"] = "archive"
	handlesClassEdge := schema.Edge{Type: schema.EdgeHandles, Source: endpoint.ID, Target: class.ID}

	if _, _, err := st.WriteBatch(
		[]schema.Vertex{class, endpoint},
		[]schema.Edge{handlesClassEdge},
		schema.LangPHP,
	); err != nil {
		t.Fatal(err)
	}

	l := New(st)
	linked, diags, err := l.linkEndpointsToHandlers()
	if err != nil {
		t.Fatal(err)
	}
	if linked != 0 {
		t.Fatalf("expected no endpoint to be linked (no actionArchive method exists), got %d", linked)
	}
	if len(diags) != 1 {
		t.Fatalf("expected exactly 1 diagnostic for the unresolved naming-convention lookup, got %d", len(diags))
	}
}
