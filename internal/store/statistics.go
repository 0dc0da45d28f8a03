package store

import (
	"database/sql"
	"errors"
)

// Statistics is the aggregate shape returned by GetStatistics, matching
// spec.md §4.2's {node_counts_by_label, edge_counts_by_type,
// language_counts} contract — generalized from the teacher's GetSchema,
// which returns node-label counts, edge-type counts and relationship
// patterns for a single project's graph.
type Statistics struct {
	VertexCountsByLabel map[string]int
	EdgeCountsByType    map[string]int
	LanguageCounts      map[string]int
	TotalVertices       int
	TotalEdges          int
}

// GetStatistics summarizes the current graph for driver.Statistics and
// operator-facing reporting.
func (s *Store) GetStatistics() (*Statistics, error) {
	stats := &Statistics{
		VertexCountsByLabel: map[string]int{},
		EdgeCountsByType:    map[string]int{},
		LanguageCounts:      map[string]int{},
	}

	rows, err := s.q.Query("SELECT label, COUNT(*) FROM vertices GROUP BY label")
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			rows.Close()
			return nil, &QueryError{Err: err}
		}
		stats.VertexCountsByLabel[label] = n
		stats.TotalVertices += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}

	rows, err = s.q.Query("SELECT type, COUNT(*) FROM edges GROUP BY type")
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			rows.Close()
			return nil, &QueryError{Err: err}
		}
		stats.EdgeCountsByType[typ] = n
		stats.TotalEdges += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}

	rows, err = s.q.Query("SELECT language, COUNT(*) FROM vertices GROUP BY language")
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			rows.Close()
			return nil, &QueryError{Err: err}
		}
		stats.LanguageCounts[lang] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}

	return stats, nil
}

// FileHash returns the cached content hash for a file, empty string if absent.
func (s *Store) FileHash(path string) (string, error) {
	var hash string
	row := s.q.QueryRow("SELECT hash FROM file_hashes WHERE file_path=?", path)
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return hash, nil
}

// SetFileHash records the content hash last indexed for a file, the
// fast-path cache the incremental re-index pass consults before
// re-parsing (spec.md §9, grounded on the teacher's file_hashes table).
func (s *Store) SetFileHash(path, hash string) error {
	_, err := s.q.Exec(`INSERT INTO file_hashes (file_path, hash) VALUES (?, ?)
		ON CONFLICT(file_path) DO UPDATE SET hash=excluded.hash`, path, hash)
	return err
}

// DeleteFileHash removes a file's cached hash, used when a file is deleted
// from the tree so a future re-add is treated as new rather than unchanged.
func (s *Store) DeleteFileHash(path string) error {
	_, err := s.q.Exec("DELETE FROM file_hashes WHERE file_path=?", path)
	return err
}

// AllFileHashes returns the full file_path -> hash map, used to detect
// deletions by diffing against the current filesystem walk.
func (s *Store) AllFileHashes() (map[string]string, error) {
	rows, err := s.q.Query("SELECT file_path, hash FROM file_hashes")
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, &QueryError{Err: err}
		}
		out[path] = hash
	}
	return out, rows.Err()
}

// DeleteVerticesByFile removes all vertices (and their incident edges)
// defined in a file, used when a file is removed or before re-indexing a
// changed file so stale entities don't linger.
func (s *Store) DeleteVerticesByFile(path string) error {
	rows, err := s.q.Query("SELECT id FROM vertices WHERE file_path=?", path)
	if err != nil {
		return &QueryError{Err: err}
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return &QueryError{Err: err}
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return &QueryError{Err: err}
	}
	for _, id := range ids {
		if _, err := s.q.Exec("DELETE FROM edges WHERE source_id=? OR target_id=?", id, id); err != nil {
			return err
		}
		if _, err := s.q.Exec("DELETE FROM vertices WHERE id=?", id); err != nil {
			return err
		}
	}
	return nil
}
