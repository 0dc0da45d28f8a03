// Command ckg is a thin CLI over internal/driver: index, clear, link,
// query, stats and watch subcommands, each a handful of lines calling
// straight into the Driver, plus export and import subcommands that hand
// the Driver's store to internal/csvexport — all the real logic lives in
// internal/driver and the packages it wires together.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/ckgraph/ckg/internal/csvexport"
	"github.com/ckgraph/ckg/internal/driver"
	"github.com/ckgraph/ckg/internal/store"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--version":
		fmt.Println("ckg", version)
	case "index":
		runIndex(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "link":
		runLink(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ckg <index|clear|link|query|stats|export|import|watch> [flags]")
}

func openDriver(dbPath string) *driver.Driver {
	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatalf("ckg: open store: %v", err)
	}
	return driver.New(st)
}

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	root := fs.String("root", ".", "repository root to index")
	incremental := fs.Bool("incremental", false, "skip unchanged files via content hash")
	fs.Parse(args)

	cfg, err := driver.LoadConfig(*root)
	if err != nil {
		log.Fatalf("ckg: load config: %v", err)
	}
	opts := cfg.Options()
	opts.Incremental = opts.Incremental || *incremental

	d := openDriver(*db)
	defer d.Store().Close()

	report, err := d.Index(context.Background(), *root, opts)
	if err != nil {
		log.Fatalf("ckg: index: %v", err)
	}
	printJSON(report)
}

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	language := fs.String("language", "", "clear only this language's vertices/edges")
	fs.Parse(args)

	d := openDriver(*db)
	defer d.Store().Close()

	if err := d.Clear(*language == "", *language); err != nil {
		log.Fatalf("ckg: clear: %v", err)
	}
}

func runLink(args []string) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	fs.Parse(args)

	d := openDriver(*db)
	defer d.Store().Close()

	report := d.Link()
	for _, e := range report.Errors {
		slog.Warn("ckg.link", "err", e)
	}
	printJSON(report)
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	paramsJSON := fs.String("params", "", "JSON object of query parameters")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("ckg: query: missing query text")
	}

	var params map[string]any
	if *paramsJSON != "" {
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			log.Fatalf("ckg: query: bad --params JSON: %v", err)
		}
	}

	d := openDriver(*db)
	defer d.Store().Close()

	res, err := d.Query(fs.Arg(0), params)
	if err != nil {
		log.Fatalf("ckg: query: %v", err)
	}
	printJSON(res)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	fs.Parse(args)

	d := openDriver(*db)
	defer d.Store().Close()

	stats, err := d.Statistics()
	if err != nil {
		log.Fatalf("ckg: stats: %v", err)
	}
	printJSON(stats)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	dir := fs.String("dir", "ckg-export", "directory to write CSVs into")
	fs.Parse(args)

	d := openDriver(*db)
	defer d.Store().Close()

	if err := csvexport.Export(d.Store(), *dir); err != nil {
		log.Fatalf("ckg: export: %v", err)
	}
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	dir := fs.String("dir", "ckg-export", "directory to read CSVs from")
	fs.Parse(args)

	d := openDriver(*db)
	defer d.Store().Close()

	nv, ne, err := csvexport.Import(d.Store(), *dir)
	if err != nil {
		log.Fatalf("ckg: import: %v", err)
	}
	fmt.Printf("imported %d vertices, %d edges\n", nv, ne)
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	db := fs.String("db", "ckg.db", "path to the graph store")
	root := fs.String("root", ".", "repository root to watch")
	fs.Parse(args)

	cfg, err := driver.LoadConfig(*root)
	if err != nil {
		log.Fatalf("ckg: load config: %v", err)
	}

	d := openDriver(*db)
	defer d.Store().Close()

	err = d.Watch(context.Background(), *root, cfg.Options(), func(report driver.IndexReport, err error) {
		if err != nil {
			slog.Warn("ckg.watch", "err", err)
			return
		}
		slog.Info("ckg.watch", "files", report.FilesVisited, "skipped", report.FilesSkipped, "vertices", report.Vertices)
	})
	if err != nil {
		log.Fatalf("ckg: watch: %v", err)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("ckg: encode output: %v", err)
	}
}
