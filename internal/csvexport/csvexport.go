// Package csvexport implements the optional bulk export/import format of
// spec.md §6.2: one CSV per vertex label (id:ID, <properties...>, :LABEL)
// and one per edge type (:START_ID, :END_ID, <properties...>, :TYPE),
// the same shape a Neo4j-admin-style bulk loader expects. There is no
// CSV library anywhere in the example corpus, so this is written
// directly against encoding/csv — the one package in this module with no
// third-party grounding, justified in DESIGN.md.
package csvexport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
)

var allLabels = []schema.Label{
	schema.LabelDirectory, schema.LabelFile, schema.LabelNamespace, schema.LabelClass,
	schema.LabelInterface, schema.LabelTrait, schema.LabelMethod, schema.LabelProperty,
	schema.LabelConstant, schema.LabelFunction, schema.LabelModule, schema.LabelEndpoint,
	schema.LabelUnresolved, schema.LabelConfigFile,
}

var allEdgeTypes = []schema.EdgeType{
	schema.EdgeContains, schema.EdgeInDirectory, schema.EdgeDefinedIn, schema.EdgeExtends,
	schema.EdgeImplements, schema.EdgeUsesTrait, schema.EdgeHasMethod, schema.EdgeHasProperty,
	schema.EdgeHasConstant, schema.EdgeCalls, schema.EdgeInstantiates, schema.EdgeImports,
	schema.EdgeCallsAPI, schema.EdgeHandles, schema.EdgeRegisteredIn,
}

var vertexHeader = []string{
	"id:ID", "language", "name", "qualified_name", "file_path",
	"start_line", "start_col", "end_line", "end_col", "attributes", ":LABEL",
}

var edgeHeader = []string{":START_ID", ":END_ID", "line", "col", "attributes", ":TYPE"}

// Export writes one vertices-<label>.csv and one edges-<type>.csv per
// non-empty label/type under dir, skipping labels and edge types with no
// rows so an export of a small graph doesn't litter the directory with
// empty files.
func Export(st *store.Store, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("csvexport: mkdir %s: %w", dir, err)
	}

	for _, label := range allLabels {
		vertices, err := st.FindVerticesByLabel(label)
		if err != nil {
			return fmt.Errorf("csvexport: list %s: %w", label, err)
		}
		if len(vertices) == 0 {
			continue
		}
		if err := writeVertexCSV(filepath.Join(dir, "vertices-"+string(label)+".csv"), vertices); err != nil {
			return err
		}
	}

	for _, edgeType := range allEdgeTypes {
		edges, err := st.FindEdgesByType(edgeType)
		if err != nil {
			return fmt.Errorf("csvexport: list %s: %w", edgeType, err)
		}
		if len(edges) == 0 {
			continue
		}
		if err := writeEdgeCSV(filepath.Join(dir, "edges-"+string(edgeType)+".csv"), edges); err != nil {
			return err
		}
	}
	return nil
}

func writeVertexCSV(path string, vertices []*store.StoredVertex) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvexport: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(vertexHeader); err != nil {
		return err
	}
	for _, v := range vertices {
		attrs, err := json.Marshal(v.Attributes)
		if err != nil {
			return fmt.Errorf("csvexport: marshal attributes for %s: %w", v.ID, err)
		}
		row := []string{
			string(v.ID), string(v.Language), v.Name, v.QualifiedName, v.FilePath,
			strconv.Itoa(v.StartLine), strconv.Itoa(v.StartCol), strconv.Itoa(v.EndLine), strconv.Itoa(v.EndCol),
			string(attrs), string(v.Label),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csvexport: write row for %s: %w", v.ID, err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeEdgeCSV(path string, edges []*store.StoredEdge) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvexport: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(edgeHeader); err != nil {
		return err
	}
	for _, e := range edges {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return fmt.Errorf("csvexport: marshal attributes for edge %s->%s: %w", e.Source, e.Target, err)
		}
		row := []string{
			string(e.Source), string(e.Target), strconv.Itoa(e.Line), strconv.Itoa(e.Col),
			string(attrs), string(e.Type),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("csvexport: write edge row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// Import reads every vertices-*.csv and edges-*.csv under dir (in that
// order, so edge endpoints already exist when edges are written) and
// writes them to st via the normal Store Gateway batch path.
func Import(st *store.Store, dir string) (int, int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "vertices-*.csv"))
	if err != nil {
		return 0, 0, err
	}
	var totalV, totalE int
	for _, path := range matches {
		vertices, err := readVertexCSV(path)
		if err != nil {
			return totalV, totalE, err
		}
		n, _, err := st.WriteBatch(vertices, nil, schema.LangUnknown)
		if err != nil {
			return totalV, totalE, fmt.Errorf("csvexport: write vertices from %s: %w", path, err)
		}
		totalV += n
	}

	edgeMatches, err := filepath.Glob(filepath.Join(dir, "edges-*.csv"))
	if err != nil {
		return totalV, totalE, err
	}
	for _, path := range edgeMatches {
		edges, err := readEdgeCSV(path)
		if err != nil {
			return totalV, totalE, err
		}
		_, n, err := st.WriteBatch(nil, edges, schema.LangUnknown)
		if err != nil {
			return totalV, totalE, fmt.Errorf("csvexport: write edges from %s: %w", path, err)
		}
		totalE += n
	}
	return totalV, totalE, nil
}

func readVertexCSV(path string) ([]schema.Vertex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvexport: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvexport: read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	vertices := make([]schema.Vertex, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(vertexHeader) {
			return nil, fmt.Errorf("csvexport: %s: expected %d columns, got %d", path, len(vertexHeader), len(row))
		}
		var attrs map[string]any
		if row[9] != "" {
			if err := json.Unmarshal([]byte(row[9]), &attrs); err != nil {
				return nil, fmt.Errorf("csvexport: %s: bad attributes JSON: %w", path, err)
			}
		}
		startLine, _ := strconv.Atoi(row[5])
		startCol, _ := strconv.Atoi(row[6])
		endLine, _ := strconv.Atoi(row[7])
		endCol, _ := strconv.Atoi(row[8])
		vertices = append(vertices, schema.Vertex{
			ID:            schema.ID(row[0]),
			Label:         schema.Label(row[10]),
			Language:      schema.LanguageTag(row[1]),
			Name:          row[2],
			QualifiedName: row[3],
			Location: &schema.Location{
				FilePath: row[4], StartLine: startLine, StartCol: startCol, EndLine: endLine, EndCol: endCol,
			},
			Attributes: attrs,
		})
	}
	return vertices, nil
}

func readEdgeCSV(path string) ([]schema.Edge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvexport: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvexport: read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	edges := make([]schema.Edge, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(edgeHeader) {
			return nil, fmt.Errorf("csvexport: %s: expected %d columns, got %d", path, len(edgeHeader), len(row))
		}
		var attrs map[string]any
		if row[4] != "" {
			if err := json.Unmarshal([]byte(row[4]), &attrs); err != nil {
				return nil, fmt.Errorf("csvexport: %s: bad attributes JSON: %w", path, err)
			}
		}
		line, _ := strconv.Atoi(row[2])
		col, _ := strconv.Atoi(row[3])
		edges = append(edges, schema.Edge{
			Source:     schema.ID(row[0]),
			Target:     schema.ID(row[1]),
			Line:       line,
			Col:        col,
			Attributes: attrs,
			Type:       schema.EdgeType(row[5]),
		})
	}
	return edges, nil
}
