package route

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

func TestJSONTableSourceEspoScenario(t *testing.T) {
	dir := t.TempDir()
	table := `[{"method": "GET", "path": "/api/v1/Lead", "controller": "Lead", "action": "list"}]`
	if err := os.WriteFile(filepath.Join(dir, "routes.json"), []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}

	src := &JSONTableSource{RelPath: "routes.json", ClassTemplate: `Espo\Controllers\%s`}
	e := New(src)
	res := e.Run(context.Background(), dir)

	var endpoint *schema.Vertex
	for i := range res.Vertices {
		if res.Vertices[i].Label == schema.LabelEndpoint {
			endpoint = &res.Vertices[i]
		}
	}
	if endpoint == nil {
		t.Fatal("expected an Endpoint vertex")
	}
	if endpoint.QualifiedName != "GET /api/v1/Lead" {
		t.Errorf("expected qualified_name 'GET /api/v1/Lead', got %q", endpoint.QualifiedName)
	}
	if endpoint.Attributes["action"] != "list" {
		t.Errorf("expected action attribute 'list', got %v", endpoint.Attributes["action"])
	}

	var sawHandles bool
	expectedTarget := schema.NewSymbolID(schema.LangPHP, `Espo\Controllers\Lead`)
	for _, e := range res.Edges {
		if e.Type == schema.EdgeHandles && e.Source == endpoint.ID && e.Target == expectedTarget {
			sawHandles = true
		}
	}
	if !sawHandles {
		t.Error("expected a HANDLES edge from the endpoint to the class-only handler placeholder")
	}
}

func TestJSONTableSourceMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	src := &JSONTableSource{RelPath: "does-not-exist.json"}
	entries, diags, err := src.Discover(context.Background(), dir)
	if err != nil {
		t.Fatalf("expected no error for a missing route table, got %v", err)
	}
	if len(entries) != 0 || len(diags) != 0 {
		t.Errorf("expected no entries/diagnostics, got %d/%d", len(entries), len(diags))
	}
}

func TestJSONTableSourceMalformedProducesDiagnostic(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "routes.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := &JSONTableSource{RelPath: "routes.json"}
	_, diags, err := src.Discover(context.Background(), dir)
	if err != nil {
		t.Fatalf("expected no hard error, got %v", err)
	}
	if len(diags) != 1 || diags[0].Severity != extractor.SeverityError {
		t.Fatalf("expected one error diagnostic for malformed JSON, got %+v", diags)
	}
}

func TestScanLaravelHandlerArray(t *testing.T) {
	src := `Route::get('/orders', [OrderController::class, 'index']);`
	entries := scanLaravel(src)
	if len(entries) != 1 {
		t.Fatalf("expected 1 route, got %d", len(entries))
	}
	e := entries[0]
	if e.Method != "GET" || e.Path != "/orders" {
		t.Errorf("unexpected method/path: %s %s", e.Method, e.Path)
	}
	if e.HandlerMethodFQN != "OrderController::index" {
		t.Errorf("expected handler OrderController::index, got %s", e.HandlerMethodFQN)
	}
}

func TestScanLaravelHandlerAtNotation(t *testing.T) {
	src := `Route::post('/orders', 'OrderController@store');`
	entries := scanLaravel(src)
	if len(entries) != 1 {
		t.Fatalf("expected 1 route, got %d", len(entries))
	}
	if entries[0].HandlerMethodFQN != "OrderController::store" {
		t.Errorf("expected OrderController::store, got %s", entries[0].HandlerMethodFQN)
	}
}

func TestScanLaravelBareRouteNoDuplicate(t *testing.T) {
	src := `Route::get('/ping', [PingController::class, 'handle']);`
	entries := scanLaravel(src)
	if len(entries) != 1 {
		t.Fatalf("expected the bare scan to not duplicate the handler-resolved route, got %d entries", len(entries))
	}
}

func TestScanSpringMapping(t *testing.T) {
	src := `@GetMapping("/users")
public List<User> list() { return null; }`
	entries := scanSpring(src)
	if len(entries) != 1 || entries[0].Method != "GET" || entries[0].Path != "/users" {
		t.Fatalf("unexpected spring scan result: %+v", entries)
	}
}

func TestScanExpressRoute(t *testing.T) {
	src := `app.get('/widgets', widgetsController.list);`
	entries := scanExpress(src)
	if len(entries) != 1 {
		t.Fatalf("expected 1 route, got %d", len(entries))
	}
	if entries[0].HandlerMethodFQN != "widgetsController.list" {
		t.Errorf("expected handler widgetsController.list, got %s", entries[0].HandlerMethodFQN)
	}
}

func TestSourceScannerWalksAndSkipsVendor(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "routes.php"), `Route::get('/ok', [FooController::class, 'index']);`)
	vendorDir := filepath.Join(dir, "vendor")
	if err := os.MkdirAll(vendorDir, 0o755); err != nil {
		t.Fatal(err)
	}
	mustWrite(t, filepath.Join(vendorDir, "ignored.php"), `Route::get('/vendor-route', [X::class, 'y']);`)

	scanner := NewSourceScanner()
	entries, _, err := scanner.Discover(context.Background(), dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 route (vendor/ should be skipped), got %d: %+v", len(entries), entries)
	}
	if entries[0].Path != "/ok" {
		t.Errorf("expected /ok, got %s", entries[0].Path)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
