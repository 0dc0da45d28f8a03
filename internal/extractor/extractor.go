// Package extractor defines the pure ParseFile contract every
// language/framework extractor implements — no extractor writes to the
// store directly, so extractors stay independently testable and the
// pipeline can schedule them onto a worker pool without synchronization.
package extractor

import (
	"context"

	"github.com/ckgraph/ckg/internal/schema"
)

// Severity classifies a Diagnostic, mirroring the teacher's own
// info/warning/error split for per-file parse problems plus a Fatal tier
// for a file whose parse failed outright, leaving an empty ParseResult;
// the run itself goes on with the next file (spec.md §7).
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic reports a per-file problem without aborting extraction for
// other files — a malformed class in one PHP file should never prevent
// the rest of the tree from being indexed (spec.md §4.3, §7).
type Diagnostic struct {
	Severity Severity
	Message  string
	FilePath string
	Line     int
}

// ParseResult is everything a single ParseFile call produces. Extractors
// never talk to the store directly; the walker/assembler merges results
// from many files and hands them to the Store Gateway in batches.
type ParseResult struct {
	FilePath    string
	Vertices    []schema.Vertex
	Edges       []schema.Edge
	Diagnostics []Diagnostic
}

// Extractor is the contract every language or framework extractor
// implements. ParseFile must be a pure function of (path, src): same
// bytes in, same vertices/edges out, so re-running it on an unchanged
// file is always safe and its output is directly comparable across runs.
type Extractor interface {
	// SupportedExtensions lists the file extensions this extractor
	// claims, including the leading dot (e.g. ".php").
	SupportedExtensions() []string
	// LanguageTag identifies the producing language/domain for vertices
	// this extractor emits when it doesn't set one explicitly.
	LanguageTag() schema.LanguageTag
	// ParseFile extracts vertices/edges/diagnostics from a single file.
	// src is the file's full content; path is the absolute path used to
	// derive vertex ids and locations.
	ParseFile(ctx context.Context, path string, src []byte) ParseResult
}

// Registry maps file extensions to the extractor that claims them.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry builds a Registry from a set of extractors, indexing each
// by every extension it declares support for.
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{byExt: map[string]Extractor{}}
	for _, e := range extractors {
		for _, ext := range e.SupportedExtensions() {
			r.byExt[ext] = e
		}
	}
	return r
}

// ForExtension returns the extractor registered for ext, or nil.
func (r *Registry) ForExtension(ext string) Extractor {
	return r.byExt[ext]
}

// Extensions returns every extension the registry recognizes.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}
