// Package linker implements the Cross-Language Linker: four idempotent
// bulk passes that run once after ingestion to reconcile Unresolved
// placeholders, annotate inheritance-edge resolution status, backstop
// CALLS_API targets, and bind endpoints to their handler methods by
// naming convention. Each pass is a pure function of current store
// state — no extractor-side mutation — so re-running the linker always
// yields the same resolved edge set, the same shape as the teacher's
// internal/pipeline passes (passImplements, et al.) that scan accumulated
// store state rather than AST state.
package linker

import (
	"fmt"
	"strings"

	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
)

// LinkError reports a single pass's resolution failure without aborting
// the remaining passes — per spec.md §7, linker failures are recoverable
// diagnostics, not fatal errors.
type LinkError struct {
	Pass string
	Err  error
}

func (e *LinkError) Error() string { return fmt.Sprintf("linker: pass %s: %v", e.Pass, e.Err) }
func (e *LinkError) Unwrap() error  { return e.Err }

// Report summarizes one Link run across all four passes. Diagnostics
// records non-fatal per-item resolution failures (e.g. an endpoint whose
// naming-convention handler lookup found nothing) that don't abort a pass
// but are still surfaced to the caller rather than silently dropped
// (spec.md §4.6, §7).
type Report struct {
	PlaceholdersMerged   int
	InheritanceAnnotated int
	APIEndpointsCreated  int
	HandlersLinked       int
	Errors               []*LinkError
	Diagnostics          []extractor.Diagnostic
}

// Linker runs the four bulk passes over a Store.
type Linker struct {
	store *store.Store
}

func New(st *store.Store) *Linker {
	return &Linker{store: st}
}

// Link runs all four passes in order and returns a combined report. A
// failure in one pass is recorded in Report.Errors and does not prevent
// the remaining passes from running.
func (l *Linker) Link() Report {
	var report Report

	merged, err := l.mergePlaceholders()
	report.PlaceholdersMerged = merged
	if err != nil {
		report.Errors = append(report.Errors, &LinkError{Pass: "mergePlaceholders", Err: err})
	}

	annotated, err := l.resolveInheritance()
	report.InheritanceAnnotated = annotated
	if err != nil {
		report.Errors = append(report.Errors, &LinkError{Pass: "resolveInheritance", Err: err})
	}

	created, err := l.linkAPIToEndpoints()
	report.APIEndpointsCreated = created
	if err != nil {
		report.Errors = append(report.Errors, &LinkError{Pass: "linkAPIToEndpoints", Err: err})
	}

	linked, diags, err := l.linkEndpointsToHandlers()
	report.HandlersLinked = linked
	report.Diagnostics = append(report.Diagnostics, diags...)
	if err != nil {
		report.Errors = append(report.Errors, &LinkError{Pass: "linkEndpointsToHandlers", Err: err})
	}

	return report
}

// mergePlaceholders matches remaining Unresolved vertices against
// concrete Class|Interface|Trait|Method|Function vertices by
// qualified_name (spec.md §4.8 pass 1). The overwhelmingly common case —
// placeholder and concrete definition sharing the same id — already
// merges for free in WriteBatch's upsert (same primary key: a concrete
// row replaces a placeholder, and a placeholder never replaces a
// concrete row). This pass exists for the
// residual case: a placeholder and its eventual definition computed
// under different ids (a language-tag mismatch between the producer that
// first referenced the symbol and the one that defines it), which
// WriteBatch's id-keyed upsert can never reconcile on its own. Dangling
// placeholders (store.materializePlaceholdersAndInsert's fallback, whose
// qualified_name is the opaque id itself) never match anything here and
// are correctly left as explicit holes in the graph.
func (l *Linker) mergePlaceholders() (int, error) {
	unresolved, err := l.store.FindVerticesByLabel(schema.LabelUnresolved)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, u := range unresolved {
		if kind, _ := u.Attributes["unresolved_kind"].(string); kind == "" || kind == "dangling" {
			continue
		}
		concrete, err := l.store.FindVertexByQualifiedName(u.QualifiedName)
		if err != nil {
			return merged, err
		}
		if concrete == nil || concrete.ID == u.ID {
			continue
		}
		if err := l.store.MergeVertex(u.ID, concrete.ID); err != nil {
			return merged, err
		}
		merged++
	}
	return merged, nil
}

// inheritanceEdgeTypes are the structural edges whose resolution status
// the linker annotates (spec.md §4.8 pass 2).
var inheritanceEdgeTypes = []schema.EdgeType{schema.EdgeExtends, schema.EdgeImplements, schema.EdgeUsesTrait}

// resolveInheritance walks every EXTENDS/IMPLEMENTS/USES_TRAIT edge and
// annotates it with a resolved=true/false attribute depending on whether
// its target is now a concrete vertex or still Unresolved. Dangling
// references are intentionally kept — the annotation records the fact,
// it never deletes the edge (spec.md §4.8 pass 2, "Failure semantics").
func (l *Linker) resolveInheritance() (int, error) {
	annotated := 0
	for _, edgeType := range inheritanceEdgeTypes {
		edges, err := l.store.FindEdgesByType(edgeType)
		if err != nil {
			return annotated, err
		}
		for _, e := range edges {
			target, err := l.store.FindVertexByID(e.Target)
			if err != nil {
				return annotated, err
			}
			resolved := target != nil && target.Label != schema.LabelUnresolved
			if err := l.store.SetEdgeAttribute(e.Source, e.Target, e.Type, "resolved", resolved); err != nil {
				return annotated, err
			}
			annotated++
		}
	}
	return annotated, nil
}

// linkAPIToEndpoints verifies every CALLS_API edge's target endpoint
// exists; any missing one is materialized as a dangling Endpoint vertex
// tagged inferred_from=javascript so the hole is visible and queryable
// rather than silently absent (spec.md §4.8 pass 3).
func (l *Linker) linkAPIToEndpoints() (int, error) {
	edges, err := l.store.FindEdgesByType(schema.EdgeCallsAPI)
	if err != nil {
		return 0, err
	}

	created := 0
	seen := map[schema.ID]bool{}
	for _, e := range edges {
		if seen[e.Target] {
			continue
		}
		existing, err := l.store.FindVertexByID(e.Target)
		if err != nil {
			return created, err
		}
		if existing != nil {
			seen[e.Target] = true
			continue
		}
		placeholder := schema.Vertex{
			ID:            e.Target,
			Label:         schema.LabelEndpoint,
			Language:      schema.LangAPI,
			Name:          string(e.Target),
			QualifiedName: string(e.Target),
			Attributes:    map[string]any{"inferred_from": "javascript"},
		}
		if _, _, err := l.store.WriteBatch([]schema.Vertex{placeholder}, nil, schema.LangAPI); err != nil {
			return created, err
		}
		seen[e.Target] = true
		created++
	}
	return created, nil
}

// linkEndpointsToHandlers derives a handler method from an endpoint's
// controller/action attributes using the §4.6 naming convention: action
// "list" binds to method "actionList" on the controller class. Applies
// only to endpoints whose HANDLES edge currently targets a Class (the
// route extractor's partially-resolved case); endpoints already pointing
// at a concrete Method are left untouched. When the naming convention
// finds no matching method, the endpoint is left unbound and a
// diagnostic is recorded rather than silently skipped (spec.md §4.6,
// §4.8 pass 4: "otherwise the linker emits a diagnostic").
func (l *Linker) linkEndpointsToHandlers() (int, []extractor.Diagnostic, error) {
	endpoints, err := l.store.FindVerticesByLabel(schema.LabelEndpoint)
	if err != nil {
		return 0, nil, err
	}

	linked := 0
	var diags []extractor.Diagnostic
	for _, endpoint := range endpoints {
		action, _ := endpoint.Attributes["action"].(string)
		if action == "" {
			continue
		}

		handles, err := l.store.FindEdgesBySource(endpoint.ID)
		if err != nil {
			return linked, diags, err
		}
		var classTarget *store.StoredVertex
		alreadyHasMethod := false
		for _, e := range handles {
			if e.Type != schema.EdgeHandles {
				continue
			}
			target, err := l.store.FindVertexByID(e.Target)
			if err != nil {
				return linked, diags, err
			}
			if target == nil {
				continue
			}
			if target.Label == schema.LabelMethod {
				alreadyHasMethod = true
				break
			}
			if target.Label == schema.LabelClass || (target.Label == schema.LabelUnresolved && classLikeKind(target)) {
				classTarget = target
			}
		}
		if alreadyHasMethod || classTarget == nil {
			continue
		}

		methodName := "action" + capitalize(action)
		methodFQN := classTarget.QualifiedName + "::" + methodName
		method, err := l.store.FindVertexByQualifiedName(methodFQN)
		if err != nil {
			return linked, diags, err
		}
		if method == nil || method.Label != schema.LabelMethod {
			diags = append(diags, extractor.Diagnostic{
				Severity: extractor.SeverityWarning,
				Message:  fmt.Sprintf("no handler method %s found by naming convention for endpoint %s", methodFQN, endpoint.QualifiedName),
			})
			continue
		}

		edge := schema.Edge{Type: schema.EdgeHandles, Source: endpoint.ID, Target: method.ID}
		if _, _, err := l.store.WriteBatch(nil, []schema.Edge{edge}, schema.LangUnknown); err != nil {
			return linked, diags, err
		}
		linked++
	}
	return linked, diags, nil
}

func classLikeKind(v *store.StoredVertex) bool {
	kind, _ := v.Attributes["unresolved_kind"].(string)
	return kind == "Class"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
