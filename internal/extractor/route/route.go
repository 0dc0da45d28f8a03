// Package route discovers HTTP route/endpoint registrations across a
// repository: a JSON route-table reader plus a regex-based scanner for
// common framework route-declaration idioms. Unlike the per-file
// extractors, discovery is repository-scoped (spec.md §4.6), so sources
// implement RouteSource rather than extractor.Extractor.
package route

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
)

// RouteEntry is one discovered endpoint registration, with as much of the
// handler binding resolved as the source can determine statically.
type RouteEntry struct {
	Method string
	Path   string

	// HandlerMethodFQN is set only when both the handler class and the
	// exact method name are known at extraction time (e.g. Laravel's
	// Route::get(path, [FooController::class, 'index'])) — produces a
	// resolved HANDLES edge directly.
	HandlerMethodFQN string

	// HandlerClassFQN is set whenever the handler's class is known even
	// if the exact method is not; Action carries the raw controller
	// action for the linker's naming-convention resolution pass
	// ("list" -> "actionList", spec.md §4.6, §4.8 pass 4).
	HandlerClassFQN string
	Action          string

	// Language is the producing language of HandlerClassFQN/HandlerMethodFQN,
	// so the placeholder shares an id scheme with the extractor that will
	// eventually define the real vertex. Defaults to schema.LangPHP when
	// unset, since every concrete handler source this package's sources
	// ground on (Laravel, Espo route tables) is PHP.
	Language schema.LanguageTag

	Protocol string
}

// RouteSource discovers route registrations from a repository root.
type RouteSource interface {
	Discover(ctx context.Context, root string) ([]RouteEntry, []extractor.Diagnostic, error)
}

// Extractor adapts one or more RouteSources into Endpoint vertices and
// (where resolvable) HANDLES edges. It is driven directly by
// internal/driver rather than through extractor.Registry's per-extension
// dispatch, since route discovery has no single owning file.
type Extractor struct {
	sources []RouteSource
}

// New builds a route Extractor from zero or more sources. A typical
// wiring is New(&JSONTableSource{...}, NewSourceScanner()).
func New(sources ...RouteSource) *Extractor {
	return &Extractor{sources: sources}
}

// Run discovers routes from every configured source and returns the
// resulting Endpoint vertices, HANDLES/Unresolved-class edges, and
// diagnostics.
func (e *Extractor) Run(ctx context.Context, root string) extractor.ParseResult {
	var result extractor.ParseResult
	result.FilePath = root
	for _, src := range e.sources {
		entries, diags, err := src.Discover(ctx, root)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if err != nil {
			result.Diagnostics = append(result.Diagnostics, extractor.Diagnostic{
				Severity: extractor.SeverityError, Message: err.Error(), FilePath: root,
			})
			continue
		}
		for _, entry := range entries {
			emitRoute(&result, entry)
		}
	}
	return result
}

func emitRoute(result *extractor.ParseResult, entry RouteEntry) {
	if entry.Method == "" || entry.Path == "" {
		return
	}
	endpoint := schema.NewEndpoint(entry.Method, entry.Path)
	if entry.Protocol != "" {
		endpoint.Attributes["protocol"] = entry.Protocol
	}
	if entry.Action != "" {
		endpoint.Attributes["action"] = entry.Action
	}
	result.Vertices = append(result.Vertices, endpoint)

	lang := entry.Language
	if lang == "" {
		lang = schema.LangPHP
	}
	switch {
	case entry.HandlerMethodFQN != "":
		targetID := schema.NewSymbolID(lang, entry.HandlerMethodFQN)
		result.Edges = append(result.Edges, schema.Edge{Type: schema.EdgeHandles, Source: endpoint.ID, Target: targetID})
		result.Vertices = append(result.Vertices, schema.NewUnresolved("Method", entry.HandlerMethodFQN, lang))
	case entry.HandlerClassFQN != "":
		// Class known, method not: point HANDLES at the class itself so
		// the linker's convention-resolution pass (§4.8 pass 4) can walk
		// from there to the right Method using entry.Action.
		targetID := schema.NewSymbolID(lang, entry.HandlerClassFQN)
		result.Edges = append(result.Edges, schema.Edge{Type: schema.EdgeHandles, Source: endpoint.ID, Target: targetID})
		result.Vertices = append(result.Vertices, schema.NewUnresolved("Class", entry.HandlerClassFQN, lang))
	}
}

// JSONTableEntry is one row of a JSON route table (spec.md §8 scenario 3).
type JSONTableEntry struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	Controller string `json:"controller"`
	Action     string `json:"action"`
}

// JSONTableSource reads a route table file containing a JSON array of
// {method, path, controller, action} objects.
type JSONTableSource struct {
	// RelPath is the table file's path relative to the repository root,
	// e.g. "config/routes.json".
	RelPath string
	// ClassTemplate maps a controller name to its fully-qualified handler
	// class, with "%s" substituted for the controller field. Defaults to
	// "%s" (the bare controller name) when empty; a caller indexing an
	// Espo-style repo would set this to "Espo\\Controllers\\%s".
	ClassTemplate string
}

func (s *JSONTableSource) Discover(_ context.Context, root string) ([]RouteEntry, []extractor.Diagnostic, error) {
	path := filepath.Join(root, s.RelPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("route: read table %s: %w", path, err)
	}

	var raw []JSONTableEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, []extractor.Diagnostic{{
			Severity: extractor.SeverityError,
			Message:  "route: malformed route table: " + err.Error(),
			FilePath: path,
		}}, nil
	}

	template := s.ClassTemplate
	if template == "" {
		template = "%s"
	}
	entries := make([]RouteEntry, 0, len(raw))
	for _, r := range raw {
		if r.Method == "" || r.Path == "" {
			continue
		}
		entries = append(entries, RouteEntry{
			Method:          r.Method,
			Path:            r.Path,
			HandlerClassFQN: fmt.Sprintf(template, r.Controller),
			Action:          r.Action,
		})
	}
	return entries, nil, nil
}

// regex patterns for framework route discovery, ported from the same
// family of per-framework regexes the teacher's internal/httplink/
// httplink.go uses for route-declaration scanning.
var (
	laravelHandlerArrayRe = regexp.MustCompile(`Route::(get|post|put|delete|patch)\(\s*["']([^"']+)["']\s*,\s*\[(\w+)::class\s*,\s*["'](\w+)["']\]`)
	laravelHandlerAtRe    = regexp.MustCompile(`Route::(get|post|put|delete|patch)\(\s*["']([^"']+)["']\s*,\s*["'](\w+)@(\w+)["']`)
	laravelRouteRe        = regexp.MustCompile(`Route::(get|post|put|delete|patch)\(\s*["']([^"']+)["']`)

	springMappingRe = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Request)Mapping\(\s*(?:value\s*=\s*)?["']([^"']+)["']`)

	expressHandlerRe = regexp.MustCompile(`(?:app|router|server|api|routes|express|route)\.(get|post|put|delete|patch)\(\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]\s*(?:,\s*[\w.]+)*,\s*([\w.]+)\s*\)`)
	expressRouteRe   = regexp.MustCompile(`(?:app|router|server|api|routes|express|route)\.(get|post|put|delete|patch)\(\s*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`)

	goRouteHandlerRe = regexp.MustCompile(`\.(GET|POST|PUT|DELETE|PATCH|Get|Post|Put|Delete|Patch)\s*\(\s*"([^"]*)"\s*(?:,\s*[\w.]+)*,\s*([\w.]+)\s*\)`)
	goRouteRe        = regexp.MustCompile(`\.(GET|POST|PUT|DELETE|PATCH|Get|Post|Put|Delete|Patch)\(\s*["']([^"']*)["']`)

	actixRouteRe = regexp.MustCompile(`#\[(get|post|put|delete|patch)\(\s*"([^"]+)"`)

	aspnetRouteRe = regexp.MustCompile(`\[(Http(?:Get|Post|Put|Delete|Patch))\(\s*"([^"]+)"`)

	ktorRouteRe = regexp.MustCompile(`\b(get|post|put|delete|patch)\(\s*"([^"]+)"\s*\)\s*\{`)
)

var skipDirNames = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true,
	"build": true, ".idea": true, ".vscode": true, "target": true,
}

var scannersByExt = map[string]func(string) []RouteEntry{
	".php":  scanLaravel,
	".java": scanSpring,
	".js":   scanExpress,
	".jsx":  scanExpress,
	".ts":   scanExpress,
	".go":   scanGo,
	".rs":   scanActix,
	".cs":   scanASPNet,
	".kt":   scanKtor,
}

// SourceScanner walks a repository and applies framework route regexes
// keyed by file extension.
type SourceScanner struct{}

func NewSourceScanner() *SourceScanner { return &SourceScanner{} }

func (s *SourceScanner) Discover(ctx context.Context, root string) ([]RouteEntry, []extractor.Diagnostic, error) {
	var entries []RouteEntry
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirNames[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		scanFn, ok := scannersByExt[filepath.Ext(path)]
		if !ok {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		entries = append(entries, scanFn(string(data))...)
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		return entries, nil, walkErr
	}
	return entries, nil, nil
}

func scanLaravel(src string) []RouteEntry {
	var out []RouteEntry
	resolved := map[string]bool{}

	for _, m := range laravelHandlerArrayRe.FindAllStringSubmatch(src, -1) {
		method, path, class, action := strings.ToUpper(m[1]), m[2], m[3], m[4]
		out = append(out, RouteEntry{Method: method, Path: path, HandlerClassFQN: class, HandlerMethodFQN: class + "::" + action, Language: schema.LangPHP})
		resolved[method+" "+path] = true
	}
	for _, m := range laravelHandlerAtRe.FindAllStringSubmatch(src, -1) {
		method, path, class, action := strings.ToUpper(m[1]), m[2], m[3], m[4]
		key := method + " " + path
		if resolved[key] {
			continue
		}
		out = append(out, RouteEntry{Method: method, Path: path, HandlerClassFQN: class, HandlerMethodFQN: class + "::" + action, Language: schema.LangPHP})
		resolved[key] = true
	}
	for _, m := range laravelRouteRe.FindAllStringSubmatch(src, -1) {
		method, path := strings.ToUpper(m[1]), m[2]
		if resolved[method+" "+path] {
			continue
		}
		out = append(out, RouteEntry{Method: method, Path: path})
	}
	return out
}

func scanSpring(src string) []RouteEntry {
	var out []RouteEntry
	for _, m := range springMappingRe.FindAllStringSubmatch(src, -1) {
		verb := m[1]
		method := "GET"
		if verb != "Request" {
			method = strings.ToUpper(verb)
		}
		out = append(out, RouteEntry{Method: method, Path: m[2]})
	}
	return out
}

func scanExpress(src string) []RouteEntry {
	var out []RouteEntry
	resolved := map[string]bool{}
	for _, m := range expressHandlerRe.FindAllStringSubmatch(src, -1) {
		method, path, handler := strings.ToUpper(m[1]), m[2], m[3]
		out = append(out, RouteEntry{Method: method, Path: path, HandlerMethodFQN: handler, Language: schema.LangJavaScript})
		resolved[method+" "+path] = true
	}
	for _, m := range expressRouteRe.FindAllStringSubmatch(src, -1) {
		method, path := strings.ToUpper(m[1]), m[2]
		if resolved[method+" "+path] {
			continue
		}
		out = append(out, RouteEntry{Method: method, Path: path})
	}
	return out
}

func scanGo(src string) []RouteEntry {
	var out []RouteEntry
	resolved := map[string]bool{}
	for _, m := range goRouteHandlerRe.FindAllStringSubmatch(src, -1) {
		method, path, handler := strings.ToUpper(m[1]), m[2], m[3]
		out = append(out, RouteEntry{Method: method, Path: path, HandlerMethodFQN: handler, Language: schema.LangFramework})
		resolved[method+" "+path] = true
	}
	for _, m := range goRouteRe.FindAllStringSubmatch(src, -1) {
		method, path := strings.ToUpper(m[1]), m[2]
		if resolved[method+" "+path] {
			continue
		}
		out = append(out, RouteEntry{Method: method, Path: path})
	}
	return out
}

func scanActix(src string) []RouteEntry {
	var out []RouteEntry
	for _, m := range actixRouteRe.FindAllStringSubmatch(src, -1) {
		out = append(out, RouteEntry{Method: strings.ToUpper(m[1]), Path: m[2]})
	}
	return out
}

func scanASPNet(src string) []RouteEntry {
	var out []RouteEntry
	for _, m := range aspnetRouteRe.FindAllStringSubmatch(src, -1) {
		method := strings.ToUpper(strings.TrimPrefix(m[1], "Http"))
		out = append(out, RouteEntry{Method: method, Path: m[2]})
	}
	return out
}

func scanKtor(src string) []RouteEntry {
	var out []RouteEntry
	for _, m := range ktorRouteRe.FindAllStringSubmatch(src, -1) {
		out = append(out, RouteEntry{Method: strings.ToUpper(m[1]), Path: m[2]})
	}
	return out
}
