package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/ckgraph/ckg/internal/schema"
)

// StoredVertex is the row shape returned by read queries.
type StoredVertex struct {
	ID            schema.ID
	Label         schema.Label
	Language      schema.LanguageTag
	Name          string
	QualifiedName string
	FilePath      string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
	Attributes    map[string]any
}

const vertexCols_ = "id, label, language, name, qualified_name, file_path, start_line, start_col, end_line, end_col, attributes"

func scanVertex(row interface{ Scan(dest ...any) error }) (*StoredVertex, error) {
	var v StoredVertex
	var attrs string
	var label, lang string
	if err := row.Scan(&v.ID, &label, &lang, &v.Name, &v.QualifiedName, &v.FilePath, &v.StartLine, &v.StartCol, &v.EndLine, &v.EndCol, &attrs); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	v.Label = schema.Label(label)
	v.Language = schema.LanguageTag(lang)
	v.Attributes = unmarshalAttrs(attrs)
	return &v, nil
}

func scanVertices(rows *sql.Rows) ([]*StoredVertex, error) {
	var out []*StoredVertex
	for rows.Next() {
		v, err := scanVertex(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FindVertexByID returns a single vertex, or nil if not found.
func (s *Store) FindVertexByID(id schema.ID) (*StoredVertex, error) {
	row := s.q.QueryRow("SELECT "+vertexCols_+" FROM vertices WHERE id=?", string(id))
	return scanVertex(row)
}

// FindVertexByQualifiedName looks up a vertex by its qualified_name, the
// key the linker uses to merge Unresolved placeholders with their
// concrete definitions (spec.md §4.8 pass 1).
func (s *Store) FindVertexByQualifiedName(qn string) (*StoredVertex, error) {
	row := s.q.QueryRow("SELECT "+vertexCols_+" FROM vertices WHERE qualified_name=? AND label != 'Unresolved' LIMIT 1", qn)
	return scanVertex(row)
}

// FindVerticesByLabel returns all vertices with the given label.
func (s *Store) FindVerticesByLabel(label schema.Label) ([]*StoredVertex, error) {
	rows, err := s.q.Query("SELECT "+vertexCols_+" FROM vertices WHERE label=?", string(label))
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	return scanVertices(rows)
}

// AllVertices returns every vertex in the graph, used by the cypher
// executor's node scan when a MATCH pattern carries no label filter.
func (s *Store) AllVertices() ([]*StoredVertex, error) {
	rows, err := s.q.Query("SELECT " + vertexCols_ + " FROM vertices")
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	return scanVertices(rows)
}

// FindUnresolvedByQualifiedName returns the Unresolved placeholder (if
// any) for a qualified name.
func (s *Store) FindUnresolvedByQualifiedName(qn string) (*StoredVertex, error) {
	row := s.q.QueryRow("SELECT "+vertexCols_+" FROM vertices WHERE qualified_name=? AND label='Unresolved' LIMIT 1", qn)
	return scanVertex(row)
}

// RelabelVertex adopts a concrete label/language/attributes onto an
// existing vertex id — used by the linker's placeholder-merge pass, which
// is really just a relabeling since id equality already makes the
// placeholder and the concrete definition the same vertex (spec.md §4.8).
func (s *Store) RelabelVertex(id schema.ID, label schema.Label, language schema.LanguageTag, attrs map[string]any) error {
	_, err := s.q.Exec("UPDATE vertices SET label=?, language=?, attributes=? WHERE id=?",
		string(label), string(language), marshalAttrs(attrs), string(id))
	return err
}

// SetAttribute merges one key into a vertex's existing attribute bag.
func (s *Store) SetAttribute(id schema.ID, key string, value any) error {
	v, err := s.FindVertexByID(id)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("vertex %s not found", id)
	}
	if v.Attributes == nil {
		v.Attributes = map[string]any{}
	}
	v.Attributes[key] = value
	_, err = s.q.Exec("UPDATE vertices SET attributes=? WHERE id=?", marshalAttrs(v.Attributes), string(id))
	return err
}

// MergeVertex folds staleID into canonicalID: every edge endpoint pointing
// at staleID is rewritten to canonicalID and the staleID row is dropped.
// Used by the linker's placeholder-merge pass for the rare case where an
// Unresolved placeholder and its concrete definition ended up under
// different ids (e.g. a cross-language qualified_name collision that the
// id scheme's language tag didn't account for) — the common case, where
// ids already agree, merges for free via WriteBatch's upsert and never
// reaches this method.
func (s *Store) MergeVertex(staleID, canonicalID schema.ID) error {
	if staleID == canonicalID {
		return nil
	}
	if _, err := s.q.Exec("UPDATE OR IGNORE edges SET source_id=? WHERE source_id=?", string(canonicalID), string(staleID)); err != nil {
		return err
	}
	if _, err := s.q.Exec("UPDATE OR IGNORE edges SET target_id=? WHERE target_id=?", string(canonicalID), string(staleID)); err != nil {
		return err
	}
	if _, err := s.q.Exec("DELETE FROM edges WHERE source_id=? OR target_id=?", string(staleID), string(staleID)); err != nil {
		return err
	}
	_, err := s.q.Exec("DELETE FROM vertices WHERE id=?", string(staleID))
	return err
}

// CountVertices returns the total vertex count.
func (s *Store) CountVertices() (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM vertices").Scan(&n)
	return n, err
}

// FindVerticesByIDs batches an IN() lookup respecting SQLite's bind limit.
func (s *Store) FindVerticesByIDs(ids []schema.ID) (map[schema.ID]*StoredVertex, error) {
	result := make(map[schema.ID]*StoredVertex, len(ids))
	const chunk = 900
	for i := 0; i < len(ids); i += chunk {
		end := i + chunk
		if end > len(ids) {
			end = len(ids)
		}
		part := ids[i:end]
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")
		args := make([]any, len(part))
		for j, id := range part {
			args[j] = string(id)
		}
		rows, err := s.q.Query("SELECT "+vertexCols_+" FROM vertices WHERE id IN ("+placeholders+")", args...)
		if err != nil {
			return nil, &QueryError{Err: err}
		}
		vs, err := scanVertices(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}
		for _, v := range vs {
			result[v.ID] = v
		}
	}
	return result, nil
}
