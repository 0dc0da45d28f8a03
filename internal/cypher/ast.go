// Package cypher implements a Cypher-like read-query language over the
// Store Gateway, satisfying spec.md §4.2's `query(query_text, parameters)
// -> rows` contract and §6.4's `Driver.Query`. The grammar is a deliberate
// subset of the teacher's own internal/cypher package (MATCH pattern,
// WHERE filter, RETURN projection, ORDER BY/LIMIT/DISTINCT) narrowed to a
// single-graph store: the teacher's package carries a project dimension
// this spec's graph doesn't have.
package cypher

// Query is a parsed Cypher-like query.
type Query struct {
	Match  *MatchClause
	Where  *WhereClause
	Return *ReturnClause
}

// MatchClause holds the MATCH pattern.
type MatchClause struct {
	Pattern *Pattern
}

// Pattern is a sequence of alternating node and relationship elements,
// always starting and ending on a NodePattern.
type Pattern struct {
	Elements []PatternElement
}

// PatternElement is either a *NodePattern or a *RelPattern.
type PatternElement interface {
	patternElement()
}

// NodePattern matches a vertex with an optional label and inline property
// filters, e.g. (c:Class {name: "Container"}).
type NodePattern struct {
	Variable string
	Label    string
	Props    map[string]Value
}

func (*NodePattern) patternElement() {}

// RelPattern matches an edge with an optional type list, direction, and
// hop range, e.g. -[:CALLS*1..3]->.
type RelPattern struct {
	Variable  string
	Types     []string
	Direction string // "outbound" | "inbound" | "any"
	MinHops   int
	MaxHops   int // 0 means unbounded, capped by maxTraversalHops
}

func (*RelPattern) patternElement() {}

// WhereClause holds filter conditions joined uniformly by AND or OR.
type WhereClause struct {
	Conditions []Condition
	Operator   string // "AND" or "OR"
}

// Condition is a single property comparison, e.g. f.name CONTAINS "Lead".
type Condition struct {
	Variable string
	Property string
	Operator string // "=", "=~", "CONTAINS", "STARTS WITH", ">", "<", ">=", "<="
	Value    Value
}

// Value is either a literal or a reference to a named query parameter
// ($name), resolved against the Parameters map passed to Execute.
type Value struct {
	Literal string
	Param   string // non-empty means "look this up in parameters"
}

// ReturnClause specifies the projected columns.
type ReturnClause struct {
	Items    []ReturnItem
	OrderBy  string
	OrderDir string // "ASC" or "DESC"
	Limit    int    // 0 means no limit
	Distinct bool
}

// ReturnItem is a single projected column.
type ReturnItem struct {
	Variable string
	Property string // empty means "the whole vertex"
	Alias    string
	Func     string // "COUNT", or empty
}
