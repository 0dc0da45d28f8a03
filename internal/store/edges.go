package store

import (
	"database/sql"

	"github.com/ckgraph/ckg/internal/schema"
)

// StoredEdge is the row shape returned by read queries.
type StoredEdge struct {
	Source     schema.ID
	Target     schema.ID
	Type       schema.EdgeType
	Line       int
	Col        int
	Attributes map[string]any
}

const edgeCols_ = "source_id, target_id, type, line, col, attributes"

func scanEdges(rows *sql.Rows) ([]*StoredEdge, error) {
	var out []*StoredEdge
	for rows.Next() {
		var e StoredEdge
		var src, tgt, typ, attrs string
		if err := rows.Scan(&src, &tgt, &typ, &e.Line, &e.Col, &attrs); err != nil {
			return nil, err
		}
		e.Source, e.Target, e.Type = schema.ID(src), schema.ID(tgt), schema.EdgeType(typ)
		e.Attributes = unmarshalAttrs(attrs)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// FindEdgesByType returns all edges of a given type.
func (s *Store) FindEdgesByType(t schema.EdgeType) ([]*StoredEdge, error) {
	rows, err := s.q.Query("SELECT "+edgeCols_+" FROM edges WHERE type=?", string(t))
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesBySource returns all edges originating at source.
func (s *Store) FindEdgesBySource(source schema.ID) ([]*StoredEdge, error) {
	rows, err := s.q.Query("SELECT "+edgeCols_+" FROM edges WHERE source_id=?", string(source))
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTarget returns all edges pointing at target.
func (s *Store) FindEdgesByTarget(target schema.ID) ([]*StoredEdge, error) {
	rows, err := s.q.Query("SELECT "+edgeCols_+" FROM edges WHERE target_id=?", string(target))
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FindEdgesByTargetAndType returns edges pointing at target with the given type.
func (s *Store) FindEdgesByTargetAndType(target schema.ID, t schema.EdgeType) ([]*StoredEdge, error) {
	rows, err := s.q.Query("SELECT "+edgeCols_+" FROM edges WHERE target_id=? AND type=?", string(target), string(t))
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

// SetEdgeAttribute merges one key into an edge's attribute bag, keyed by
// (source, target, type) since edges have no surrogate id exposed here.
func (s *Store) SetEdgeAttribute(source, target schema.ID, t schema.EdgeType, key string, value any) error {
	row := s.q.QueryRow("SELECT attributes FROM edges WHERE source_id=? AND target_id=? AND type=?", string(source), string(target), string(t))
	var attrs string
	if err := row.Scan(&attrs); err != nil {
		return err
	}
	m := unmarshalAttrs(attrs)
	m[key] = value
	_, err := s.q.Exec("UPDATE edges SET attributes=? WHERE source_id=? AND target_id=? AND type=?",
		marshalAttrs(m), string(source), string(target), string(t))
	return err
}

// CountEdges returns the total edge count.
func (s *Store) CountEdges() (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges").Scan(&n)
	return n, err
}

// CountEdgesByType returns the count of edges of a given type.
func (s *Store) CountEdgesByType(t schema.EdgeType) (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM edges WHERE type=?", string(t)).Scan(&n)
	return n, err
}
