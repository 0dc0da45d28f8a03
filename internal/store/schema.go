package store

import "fmt"

// EnsureSchema idempotently creates the property-graph tables, the
// uniqueness constraint on vertex id, and the secondary indexes spec.md
// §4.2 requires: (Symbol, name), (Symbol, qualified_name), (File, path),
// (Endpoint, qualified_name). "Symbol" and "File" aren't first-class
// tables here — both vertex kinds live in one `vertices` table — so those
// indexes are expressed as composite indexes on (label, name) and
// (label, qualified_name) plus a plain index on file_path.
func (s *Store) EnsureSchema() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS vertices (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		language TEXT NOT NULL DEFAULT 'unknown',
		name TEXT NOT NULL,
		qualified_name TEXT NOT NULL,
		file_path TEXT DEFAULT '',
		start_line INTEGER DEFAULT 0,
		start_col INTEGER DEFAULT 0,
		end_line INTEGER DEFAULT 0,
		end_col INTEGER DEFAULT 0,
		attributes TEXT DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_vertices_label_name ON vertices(label, name);
	CREATE INDEX IF NOT EXISTS idx_vertices_label_qn ON vertices(label, qualified_name);
	CREATE INDEX IF NOT EXISTS idx_vertices_file ON vertices(file_path);
	CREATE INDEX IF NOT EXISTS idx_vertices_language ON vertices(language);

	CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		type TEXT NOT NULL,
		line INTEGER DEFAULT 0,
		col INTEGER DEFAULT 0,
		attributes TEXT DEFAULT '{}',
		UNIQUE(source_id, target_id, type)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id, type);
	CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);

	CREATE TABLE IF NOT EXISTS file_hashes (
		file_path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ClearScope selects what Clear removes.
type ClearScope struct {
	All      bool
	Language string // e.g. "php" — ignored when All is true
}

// Clear deletes all vertices/edges matching scope, in bounded batches so a
// very large graph doesn't blow up backend memory on delete (spec.md §4.2).
func (s *Store) Clear(scope ClearScope) error {
	const batch = 5000
	del := func(query string, args ...any) error {
		for {
			res, err := s.db.Exec(query, args...)
			if err != nil {
				return err
			}
			n, _ := res.RowsAffected()
			if n < batch {
				return nil
			}
		}
	}

	if scope.All {
		if err := del(fmt.Sprintf("DELETE FROM edges WHERE id IN (SELECT id FROM edges LIMIT %d)", batch)); err != nil {
			return fmt.Errorf("clear edges: %w", err)
		}
		if err := del(fmt.Sprintf("DELETE FROM vertices WHERE id IN (SELECT id FROM vertices LIMIT %d)", batch)); err != nil {
			return fmt.Errorf("clear vertices: %w", err)
		}
		_, _ = s.db.Exec("DELETE FROM file_hashes")
		return nil
	}

	lang := scope.Language
	edgeQ := fmt.Sprintf(`DELETE FROM edges WHERE id IN (
		SELECT e.id FROM edges e
		JOIN vertices v ON e.source_id = v.id
		WHERE v.language = ? LIMIT %d)`, batch)
	if err := del(edgeQ, lang); err != nil {
		return fmt.Errorf("clear edges by language: %w", err)
	}
	vertQ := fmt.Sprintf("DELETE FROM vertices WHERE id IN (SELECT id FROM vertices WHERE language = ? LIMIT %d)", batch)
	if err := del(vertQ, lang); err != nil {
		return fmt.Errorf("clear vertices by language: %w", err)
	}
	return nil
}
