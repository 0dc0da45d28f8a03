// Package metadata implements the optional metadata enricher of
// spec.md §6.2: a scan of UTF-8 JSON files under configurable roots for
// string values that look like fully-qualified class names, producing
// ConfigFile vertices and REGISTERED_IN edges (spec.md §3.4) so runtime
// registration systems (DI containers, metadata-driven frameworks) show
// up in the graph alongside statically-parsed code.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

// fqnPattern is spec.md §6.2's exact FQN-in-metadata pattern: an
// uppercase-initial segment, a `\`-separated namespace path, ending in
// another segment — e.g. "Espo\Services\Lead".
var fqnPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_\\]+\\[A-Za-z0-9_\\]+$`)

// Extractor scans JSON metadata files for FQN-shaped string values.
type Extractor struct {
	// Roots are paths, relative to the repository root, under which
	// metadata JSON files are discovered. An empty Roots list disables
	// the scan entirely (the feature is optional per spec.md §6.2).
	Roots []string
	// Language tags the owning Class symbol these FQNs are assumed to
	// resolve against. Defaults to schema.LangPHP, matching the
	// namespace-path FQN shape the pattern requires.
	Language schema.LanguageTag
}

func New(roots ...string) *Extractor {
	return &Extractor{Roots: roots, Language: schema.LangPHP}
}

// Run scans every configured root under repoRoot and returns the
// resulting ConfigFile vertices, REGISTERED_IN edges, and diagnostics.
func (e *Extractor) Run(ctx context.Context, repoRoot string) extractor.ParseResult {
	var result extractor.ParseResult
	result.FilePath = repoRoot
	lang := e.Language
	if lang == "" {
		lang = schema.LangPHP
	}

	for _, root := range e.Roots {
		absRoot := filepath.Join(repoRoot, root)
		walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if filepath.Ext(path) != ".json" {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			e.scanFile(&result, path, lang)
			return nil
		})
		if walkErr != nil && walkErr != filepath.SkipDir {
			result.Diagnostics = append(result.Diagnostics, extractor.Diagnostic{
				Severity: extractor.SeverityWarning,
				Message:  fmt.Sprintf("metadata: walk %s: %v", absRoot, walkErr),
				FilePath: absRoot,
			})
		}
	}
	return result
}

func (e *Extractor) scanFile(result *extractor.ParseResult, path string, lang schema.LanguageTag) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		result.Diagnostics = append(result.Diagnostics, extractor.Diagnostic{
			Severity: extractor.SeverityWarning,
			Message:  "metadata: malformed JSON: " + err.Error(),
			FilePath: path,
		})
		return
	}

	matches := map[string][]string{} // fqn -> keys it was found under
	walkJSON(doc, "", func(key string, value string) {
		if fqnPattern.MatchString(value) {
			matches[value] = append(matches[value], key)
		}
	})
	if len(matches) == 0 {
		return
	}

	configFile := schema.NewConfigFile(path)
	result.Vertices = append(result.Vertices, configFile)

	for fqn, keys := range matches {
		classID := schema.NewSymbolID(lang, fqn)
		result.Vertices = append(result.Vertices, schema.NewUnresolved("Class", fqn, lang))
		result.Edges = append(result.Edges, schema.Edge{
			Type:       schema.EdgeRegisteredIn,
			Source:     classID,
			Target:     configFile.ID,
			Attributes: map[string]any{"keys": keys},
		})
	}
}

// walkJSON recursively visits every string value in a decoded JSON
// document, reporting the key (object field name, or the parent field
// name for array elements) each string was found under.
func walkJSON(v any, key string, visit func(key, value string)) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			walkJSON(child, k, visit)
		}
	case []any:
		for _, child := range t {
			walkJSON(child, key, visit)
		}
	case string:
		visit(key, t)
	}
}
