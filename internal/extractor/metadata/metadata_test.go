package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ckgraph/ckg/internal/schema"
)

func TestScanFileProducesConfigFileAndRegisteredIn(t *testing.T) {
	dir := t.TempDir()
	metaDir := filepath.Join(dir, "custom", "Metadata")
	if err := os.MkdirAll(metaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := `{
  "services": {
    "lead": "Espo\\Services\\Lead"
  },
  "unrelated": "not-an-fqn"
}`
	if err := os.WriteFile(filepath.Join(metaDir, "services.json"), []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	e := New("custom/Metadata")
	res := e.Run(context.Background(), dir)

	var sawConfigFile bool
	var configFileID schema.ID
	for _, v := range res.Vertices {
		if v.Label == schema.LabelConfigFile {
			sawConfigFile, configFileID = true, v.ID
		}
	}
	if !sawConfigFile {
		t.Fatal("expected a ConfigFile vertex")
	}

	expectedClassID := schema.NewSymbolID(schema.LangPHP, `Espo\Services\Lead`)
	var sawEdge bool
	for _, e := range res.Edges {
		if e.Type == schema.EdgeRegisteredIn && e.Source == expectedClassID && e.Target == configFileID {
			sawEdge = true
			keys, _ := e.Attributes["keys"].([]string)
			if len(keys) != 1 || keys[0] != "lead" {
				t.Errorf("expected keys=[lead], got %v", e.Attributes["keys"])
			}
		}
	}
	if !sawEdge {
		t.Error("expected a REGISTERED_IN edge from the Espo\\Services\\Lead class to the ConfigFile")
	}
}

func TestNonFQNStringsIgnored(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "plain.json"), []byte(`{"name": "just a string"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e := New(".")
	res := e.Run(context.Background(), dir)
	for _, v := range res.Vertices {
		if v.Label == schema.LabelConfigFile {
			t.Error("expected no ConfigFile vertex when no FQN-shaped strings are present")
		}
	}
}

func TestEmptyRootsDisablesScan(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.json"), []byte(`{"a": "Espo\\Services\\Lead"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	e := &Extractor{}
	res := e.Run(context.Background(), dir)
	if len(res.Vertices) != 0 {
		t.Error("expected no vertices when Roots is empty")
	}
}
