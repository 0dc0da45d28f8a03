// Package driver wires the Filesystem Walker & Assembler, the
// Cross-Language Linker, and the Cypher query executor behind the single
// external surface spec.md §6.4 describes: Index, Clear, Link, Query,
// Statistics, plus the supplemented Watch mode of §9. cmd/ckg never
// reaches into internal/walker, internal/linker or internal/cypher
// directly (it uses internal/store and internal/csvexport only to open
// the store and to export/import it), the same "one façade in
// front of many passes" shape as the teacher's internal/pipeline.Pipeline
// sitting in front of its individual pass files.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ckgraph/ckg/internal/cypher"
	"github.com/ckgraph/ckg/internal/extractor"
	"github.com/ckgraph/ckg/internal/extractor/javascript"
	"github.com/ckgraph/ckg/internal/extractor/metadata"
	"github.com/ckgraph/ckg/internal/extractor/php"
	"github.com/ckgraph/ckg/internal/extractor/route"
	"github.com/ckgraph/ckg/internal/linker"
	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
	"github.com/ckgraph/ckg/internal/walker"
)

// RouteTable configures one JSON route-table source (spec.md §6.2
// scenario 3), mirroring route.JSONTableSource's fields so driver.Options
// never has to import route's exported type into a config file by hand.
type RouteTable struct {
	RelPath       string
	ClassTemplate string
}

// Options configures a single Index call. The zero value is a reasonable
// default: every extractor enabled, no route tables, no metadata roots,
// no ignore globs beyond the walker's built-in defaults, non-incremental.
type Options struct {
	// IgnoreGlobs are doublestar patterns matched against each file's
	// path relative to Root.
	IgnoreGlobs []string
	// BatchSize and WorkerCount bound the walker's write-batch size and
	// concurrent parse pool; zero means the walker's own defaults.
	BatchSize   int
	WorkerCount int
	// FileTimeout bounds a single file's parse; zero means 30s.
	FileTimeout time.Duration
	// Incremental enables the xxh3 content-hash fast re-index path.
	Incremental bool

	// Languages allow-lists which per-file extractors run, keyed by the
	// extractor's LanguageTag ("php", "javascript"). A nil or empty map
	// enables every extractor driver.New registered.
	Languages map[string]bool

	// EnableRouteScanner turns on the regex-based framework route
	// scanner (Laravel/Spring/Express/Go/Actix/ASP.NET/Ktor idioms).
	EnableRouteScanner bool
	// RouteTables lists JSON route-table files to read in addition to
	// (or instead of) the scanner.
	RouteTables []RouteTable

	// MetadataRoots enables the optional metadata enricher (spec.md
	// §6.2) under the given repo-relative roots. Empty disables it.
	MetadataRoots []string
}

// IndexReport summarizes one Index call, generalizing walker.Report with
// the unresolved-placeholder count operators care about after a run.
type IndexReport struct {
	FilesVisited int
	FilesSkipped int
	Vertices     int
	Edges        int
	Unresolved   int
	Diagnostics  []extractor.Diagnostic
}

// Driver is the sole entry point cmd/ckg and any embedding caller use.
type Driver struct {
	store    *store.Store
	registry *extractor.Registry
}

// New builds a Driver around an already-open Store, registering every
// per-file extractor this module ships.
func New(st *store.Store) *Driver {
	return &Driver{
		store:    st,
		registry: extractor.NewRegistry(php.New(), javascript.New()),
	}
}

// Store exposes the underlying Store Gateway for callers that need it
// directly (e.g. cmd/ckg closing the store, and its export/import
// subcommands passing it to internal/csvexport).
func (d *Driver) Store() *store.Store { return d.store }

// Index walks root, dispatches repo-scoped route/metadata discovery, and
// writes the combined result to the store. It does not run the linker —
// callers run Link separately (spec.md §4.8's passes are a distinct step
// from ingestion so a caller can re-run linking alone after an external
// graph edit).
func (d *Driver) Index(ctx context.Context, root string, opts Options) (IndexReport, error) {
	registry := d.registry
	if len(opts.Languages) > 0 {
		var enabled []extractor.Extractor
		for _, ext := range []extractor.Extractor{php.New(), javascript.New()} {
			if opts.Languages[string(ext.LanguageTag())] {
				enabled = append(enabled, ext)
			}
		}
		registry = extractor.NewRegistry(enabled...)
	}

	w := walker.New(registry, d.store)
	wreport, err := w.Walk(ctx, walker.Options{
		Root:        root,
		IgnoreGlobs: opts.IgnoreGlobs,
		BatchSize:   opts.BatchSize,
		WorkerCount: opts.WorkerCount,
		FileTimeout: opts.FileTimeout,
		Incremental: opts.Incremental,
	})
	report := IndexReport{
		FilesVisited: wreport.FilesVisited,
		FilesSkipped: wreport.FilesSkipped,
		Vertices:     wreport.Vertices,
		Edges:        wreport.Edges,
		Diagnostics:  wreport.Diagnostics,
	}
	if err != nil {
		return report, fmt.Errorf("driver: index: %w", err)
	}

	if rr, rerr := d.runRouteExtractor(ctx, root, opts); rerr != nil {
		report.Diagnostics = append(report.Diagnostics, extractor.Diagnostic{
			Severity: extractor.SeverityError, Message: rerr.Error(), FilePath: root,
		})
	} else if rr != nil {
		report.Diagnostics = append(report.Diagnostics, rr.Diagnostics...)
		n, e, werr := d.store.WriteBatch(rr.Vertices, rr.Edges, schema.LangFramework)
		if werr != nil {
			return report, fmt.Errorf("driver: write routes: %w", werr)
		}
		report.Vertices += n
		report.Edges += e
	}

	if len(opts.MetadataRoots) > 0 {
		mr := metadata.New(opts.MetadataRoots...).Run(ctx, root)
		report.Diagnostics = append(report.Diagnostics, mr.Diagnostics...)
		n, e, werr := d.store.WriteBatch(mr.Vertices, mr.Edges, schema.LangPHP)
		if werr != nil {
			return report, fmt.Errorf("driver: write metadata: %w", werr)
		}
		report.Vertices += n
		report.Edges += e
	}

	unresolved, uerr := d.store.FindVerticesByLabel(schema.LabelUnresolved)
	if uerr == nil {
		report.Unresolved = len(unresolved)
	}

	slog.Info("driver.index", "root", root, "files", report.FilesVisited, "skipped", report.FilesSkipped,
		"vertices", report.Vertices, "edges", report.Edges, "unresolved", report.Unresolved)
	return report, nil
}

func (d *Driver) runRouteExtractor(ctx context.Context, root string, opts Options) (*extractor.ParseResult, error) {
	var sources []route.RouteSource
	for _, rt := range opts.RouteTables {
		sources = append(sources, &route.JSONTableSource{RelPath: rt.RelPath, ClassTemplate: rt.ClassTemplate})
	}
	if opts.EnableRouteScanner {
		sources = append(sources, route.NewSourceScanner())
	}
	if len(sources) == 0 {
		return nil, nil
	}
	result := route.New(sources...).Run(ctx, root)
	return &result, nil
}

// Clear removes all indexed state, or only a single language's, per
// spec.md §4.2.
func (d *Driver) Clear(all bool, language string) error {
	return d.store.Clear(store.ClearScope{All: all, Language: language})
}

// Link runs the Cross-Language Linker's four passes over the current
// store state.
func (d *Driver) Link() linker.Report {
	return linker.New(d.store).Link()
}

// Query executes a Cypher-like read query (spec.md §4.2's
// query(query_text, parameters) -> rows contract).
func (d *Driver) Query(text string, params map[string]any) (*cypher.Result, error) {
	return cypher.NewExecutor(d.store).Execute(text, params)
}

// Statistics returns the current graph's aggregate counts.
func (d *Driver) Statistics() (*store.Statistics, error) {
	return d.store.GetStatistics()
}
