package store

import (
	"strconv"
	"testing"

	"github.com/ckgraph/ckg/internal/schema"
)

func TestOpenMemory(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	s.Close()
}

func TestWriteBatchVertexUpsert(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	v := schema.NewFunction(schema.LangPHP, "App\\Foo", "Foo", &schema.Location{FilePath: "app/Foo.php", StartLine: 1, EndLine: 10})
	n, _, err := s.WriteBatch([]schema.Vertex{v}, nil, schema.LangPHP)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 vertex written, got %d", n)
	}

	found, err := s.FindVertexByID(v.ID)
	if err != nil {
		t.Fatalf("FindVertexByID: %v", err)
	}
	if found == nil {
		t.Fatal("expected vertex, got nil")
	}
	if found.QualifiedName != "App\\Foo" {
		t.Errorf("expected App\\Foo, got %s", found.QualifiedName)
	}

	// Re-write with a different location — should update in place, not duplicate.
	v2 := v
	v2.Location = &schema.Location{FilePath: "app/Foo.php", StartLine: 5, EndLine: 15}
	if _, _, err := s.WriteBatch([]schema.Vertex{v2}, nil, schema.LangPHP); err != nil {
		t.Fatalf("WriteBatch update: %v", err)
	}
	count, err := s.CountVertices()
	if err != nil {
		t.Fatalf("CountVertices: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 vertex after re-write, got %d", count)
	}
}

func TestWriteBatchDeferredEdgeMaterializesPlaceholder(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	caller := schema.NewFunction(schema.LangPHP, "App\\Caller", "Caller", &schema.Location{FilePath: "a.php"})
	missingTarget := schema.NewUnresolved("Function", "App\\Missing", schema.LangPHP)

	edges := []schema.Edge{{Type: schema.EdgeCalls, Source: caller.ID, Target: missingTarget.ID}}
	n, e, err := s.WriteBatch([]schema.Vertex{caller}, edges, schema.LangPHP)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if n != 1 || e != 1 {
		t.Fatalf("expected 1 vertex and 1 edge written, got %d/%d", n, e)
	}

	placeholder, err := s.FindVertexByID(missingTarget.ID)
	if err != nil {
		t.Fatalf("FindVertexByID: %v", err)
	}
	if placeholder == nil {
		t.Fatal("expected a materialized Unresolved placeholder")
	}
	if placeholder.Label != schema.LabelUnresolved {
		t.Errorf("expected Unresolved label, got %s", placeholder.Label)
	}
}

func TestRelabelVertexMergesPlaceholder(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	placeholder := schema.NewUnresolved("Function", "App\\Foo", schema.LangPHP)
	if _, _, err := s.WriteBatch([]schema.Vertex{placeholder}, nil, schema.LangPHP); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	concrete := schema.NewFunction(schema.LangPHP, "App\\Foo", "Foo", &schema.Location{FilePath: "app/Foo.php"})
	if concrete.ID != placeholder.ID {
		t.Fatalf("placeholder and concrete vertex ids should match: %s != %s", placeholder.ID, concrete.ID)
	}

	if err := s.RelabelVertex(concrete.ID, concrete.Label, concrete.Language, concrete.Attributes); err != nil {
		t.Fatalf("RelabelVertex: %v", err)
	}
	found, err := s.FindVertexByID(concrete.ID)
	if err != nil {
		t.Fatalf("FindVertexByID: %v", err)
	}
	if found.Label != schema.LabelFunction {
		t.Errorf("expected relabel to Function, got %s", found.Label)
	}
}

func TestEdgeCRUD(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	a := schema.NewFunction(schema.LangPHP, "A", "A", &schema.Location{FilePath: "a.php"})
	b := schema.NewFunction(schema.LangPHP, "B", "B", &schema.Location{FilePath: "b.php"})
	edges := []schema.Edge{{Type: schema.EdgeCalls, Source: a.ID, Target: b.ID}}

	if _, _, err := s.WriteBatch([]schema.Vertex{a, b}, edges, schema.LangPHP); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	found, err := s.FindEdgesBySource(a.ID)
	if err != nil {
		t.Fatalf("FindEdgesBySource: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(found))
	}
	if found[0].Type != schema.EdgeCalls {
		t.Errorf("expected CALLS, got %s", found[0].Type)
	}

	count, err := s.CountEdges()
	if err != nil {
		t.Fatalf("CountEdges: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1, got %d", count)
	}
}

func TestGetStatistics(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	a := schema.NewFunction(schema.LangPHP, "A", "A", &schema.Location{FilePath: "a.php"})
	b := schema.NewClass(schema.LangJavaScript, "B", "B", &schema.Location{FilePath: "b.js"})
	edges := []schema.Edge{{Type: schema.EdgeCalls, Source: a.ID, Target: b.ID}}
	if _, _, err := s.WriteBatch([]schema.Vertex{a, b}, edges, ""); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	stats, err := s.GetStatistics()
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.TotalVertices != 2 {
		t.Errorf("expected 2 vertices, got %d", stats.TotalVertices)
	}
	if stats.VertexCountsByLabel[string(schema.LabelFunction)] != 1 {
		t.Errorf("expected 1 Function, got %d", stats.VertexCountsByLabel[string(schema.LabelFunction)])
	}
	if stats.EdgeCountsByType[string(schema.EdgeCalls)] != 1 {
		t.Errorf("expected 1 CALLS edge, got %d", stats.EdgeCountsByType[string(schema.EdgeCalls)])
	}
	if stats.LanguageCounts[string(schema.LangJavaScript)] != 1 {
		t.Errorf("expected 1 javascript vertex, got %d", stats.LanguageCounts[string(schema.LangJavaScript)])
	}
}

func TestFileHashRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	if err := s.SetFileHash("a.php", "abc123"); err != nil {
		t.Fatalf("SetFileHash: %v", err)
	}
	hash, err := s.FileHash("a.php")
	if err != nil {
		t.Fatalf("FileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected abc123, got %s", hash)
	}

	if err := s.SetFileHash("a.php", "def456"); err != nil {
		t.Fatalf("SetFileHash update: %v", err)
	}
	hash, _ = s.FileHash("a.php")
	if hash != "def456" {
		t.Errorf("expected def456, got %s", hash)
	}

	if err := s.DeleteFileHash("a.php"); err != nil {
		t.Fatalf("DeleteFileHash: %v", err)
	}
	hash, _ = s.FileHash("a.php")
	if hash != "" {
		t.Errorf("expected empty hash after delete, got %s", hash)
	}
}

func TestClearAll(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	a := schema.NewFunction(schema.LangPHP, "A", "A", &schema.Location{FilePath: "a.php"})
	b := schema.NewFunction(schema.LangPHP, "B", "B", &schema.Location{FilePath: "b.php"})
	edges := []schema.Edge{{Type: schema.EdgeCalls, Source: a.ID, Target: b.ID}}
	if _, _, err := s.WriteBatch([]schema.Vertex{a, b}, edges, schema.LangPHP); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}

	if err := s.Clear(ClearScope{All: true}); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	vCount, _ := s.CountVertices()
	eCount, _ := s.CountEdges()
	if vCount != 0 || eCount != 0 {
		t.Errorf("expected empty graph after Clear(All), got %d vertices, %d edges", vCount, eCount)
	}
}

func TestBatchSizeSafety(t *testing.T) {
	if vertexCols*vertexBatchSize >= 999 {
		t.Errorf("vertex batch exceeds limit: %d cols * %d rows = %d (max 998)",
			vertexCols, vertexBatchSize, vertexCols*vertexBatchSize)
	}
	if edgeCols*edgeBatchSize >= 999 {
		t.Errorf("edge batch exceeds limit: %d cols * %d rows = %d (max 998)",
			edgeCols, edgeBatchSize, edgeCols*edgeBatchSize)
	}
}

// TestWriteBatchCoalescesThousandsOfVertices exercises spec.md §4.2's
// performance contract directly: a single WriteBatch call carrying well
// over 1,000 vertices (here, more than ten times vertexBatchSize) must
// commit as one batch, not as per-vertex statements.
func TestWriteBatchCoalescesThousandsOfVertices(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	const total = 1200
	vertices := make([]schema.Vertex, 0, total)
	for i := 0; i < total; i++ {
		name := "Fn" + strconv.Itoa(i)
		vertices = append(vertices, schema.NewFunction(schema.LangPHP, name, name, &schema.Location{FilePath: "big.php"}))
	}

	n, _, err := s.WriteBatch(vertices, nil, schema.LangPHP)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if n != total {
		t.Errorf("expected %d vertices written, got %d", total, n)
	}

	count, err := s.CountVertices()
	if err != nil {
		t.Fatalf("CountVertices: %v", err)
	}
	if count != total {
		t.Errorf("expected %d vertices in store, got %d", total, count)
	}
}
