package extractor

import (
	"context"
	"testing"

	"github.com/ckgraph/ckg/internal/schema"
)

type stubExtractor struct {
	exts []string
	lang schema.LanguageTag
}

func (s stubExtractor) SupportedExtensions() []string    { return s.exts }
func (s stubExtractor) LanguageTag() schema.LanguageTag   { return s.lang }
func (s stubExtractor) ParseFile(_ context.Context, path string, _ []byte) ParseResult {
	return ParseResult{FilePath: path}
}

func TestRegistryDispatchByExtension(t *testing.T) {
	php := stubExtractor{exts: []string{".php"}, lang: schema.LangPHP}
	js := stubExtractor{exts: []string{".js", ".jsx"}, lang: schema.LangJavaScript}
	r := NewRegistry(php, js)

	if r.ForExtension(".php") == nil {
		t.Fatal("expected .php to resolve")
	}
	if r.ForExtension(".jsx").LanguageTag() != schema.LangJavaScript {
		t.Fatal("expected .jsx to resolve to the javascript extractor")
	}
	if r.ForExtension(".rb") != nil {
		t.Fatal("expected unregistered extension to return nil")
	}

	exts := r.Extensions()
	if len(exts) != 3 {
		t.Fatalf("expected 3 registered extensions, got %d", len(exts))
	}
}
