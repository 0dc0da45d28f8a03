package cypher

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
)

// maxTraversalHops bounds an unbounded variable-length relationship
// (e.g. -[:CALLS*]->) so a query over a large graph can't run away; the
// teacher's own executor caps result rows instead, this package caps the
// traversal that produces them.
const maxTraversalHops = 8

// maxResultRows caps the rows returned from a single query, mirroring the
// teacher's own maxResultRows ceiling on Cypher executor output.
const maxResultRows = 1000

// Result is the tabular output of a query, the `rows` spec.md §4.2's
// `query` operation returns.
type Result struct {
	Columns []string
	Rows    []map[string]any
}

// Executor runs parsed queries against a Store.
type Executor struct {
	Store      *store.Store
	regexCache map[string]*regexp.Regexp
}

// NewExecutor builds an Executor over st.
func NewExecutor(st *store.Store) *Executor {
	return &Executor{Store: st, regexCache: map[string]*regexp.Regexp{}}
}

// binding maps pattern variables to the vertex they're currently bound to.
type binding map[string]*store.StoredVertex

func cloneBinding(b binding) binding {
	nb := make(binding, len(b)+1)
	for k, v := range b {
		nb[k] = v
	}
	return nb
}

// Execute parses, plans, and runs text against e.Store, substituting any
// $name references against params.
func (e *Executor) Execute(text string, params map[string]any) (*Result, error) {
	q, err := Parse(text)
	if err != nil {
		return nil, &store.QueryError{Err: err}
	}
	if params == nil {
		params = map[string]any{}
	}

	bindings, err := e.evalPattern(q.Match.Pattern, params)
	if err != nil {
		return nil, &store.QueryError{Err: err}
	}

	if q.Where != nil {
		bindings = e.filterBindings(bindings, q.Where, params)
	}

	return e.project(bindings, q.Return)
}

func (e *Executor) evalPattern(pat *Pattern, params map[string]any) ([]binding, error) {
	if len(pat.Elements) == 0 {
		return nil, nil
	}
	first := pat.Elements[0].(*NodePattern)
	nodes, err := e.scanNodes(first, params)
	if err != nil {
		return nil, err
	}

	firstVar := first.Variable
	if firstVar == "" {
		firstVar = "_n0"
	}
	bindings := make([]binding, 0, len(nodes))
	for _, n := range nodes {
		bindings = append(bindings, binding{firstVar: n})
	}

	for i := 1; i+1 < len(pat.Elements); i += 2 {
		rel := pat.Elements[i].(*RelPattern)
		toNode := pat.Elements[i+1].(*NodePattern)
		fromNode := pat.Elements[i-1].(*NodePattern)
		fromVar := fromNode.Variable
		if fromVar == "" {
			fromVar = firstVar
		}
		var err error
		bindings, err = e.expand(bindings, fromVar, rel, toNode, params)
		if err != nil {
			return nil, err
		}
		if len(bindings) > maxResultRows*4 {
			bindings = bindings[:maxResultRows*4]
		}
	}

	return bindings, nil
}

func (e *Executor) scanNodes(np *NodePattern, params map[string]any) ([]*store.StoredVertex, error) {
	var vs []*store.StoredVertex
	var err error
	if np.Label != "" {
		vs, err = e.Store.FindVerticesByLabel(schema.Label(np.Label))
	} else {
		vs, err = e.Store.AllVertices()
	}
	if err != nil {
		return nil, err
	}
	if len(np.Props) == 0 {
		return vs, nil
	}
	out := vs[:0:0]
	for _, v := range vs {
		if vertexMatchesProps(v, np.Props, params) {
			out = append(out, v)
		}
	}
	return out, nil
}

func vertexMatchesProps(v *store.StoredVertex, props map[string]Value, params map[string]any) bool {
	for key, val := range props {
		want := resolveValue(val, params)
		if fmt.Sprintf("%v", vertexProperty(v, key)) != want {
			return false
		}
	}
	return true
}

// expand walks outward from each binding's fromVar, following edges of
// the requested type(s)/direction for between rel.MinHops and rel.MaxHops
// hops (BFS, since the graph has no edge weights), and binds toNode for
// every reached vertex matching its label/property filter.
func (e *Executor) expand(bindings []binding, fromVar string, rel *RelPattern, toNode *NodePattern, params map[string]any) ([]binding, error) {
	minHops := rel.MinHops
	if minHops < 1 {
		minHops = 1
	}
	maxHops := rel.MaxHops
	if maxHops <= 0 || maxHops > maxTraversalHops {
		maxHops = maxTraversalHops
	}

	toVar := toNode.Variable

	var out []binding
	for _, b := range bindings {
		start := b[fromVar]
		if start == nil {
			continue
		}

		visited := map[schema.ID]bool{start.ID: true}
		frontier := []schema.ID{start.ID}
		reached := map[schema.ID]bool{}

		for hop := 1; hop <= maxHops && len(frontier) > 0; hop++ {
			var next []schema.ID
			for _, id := range frontier {
				ids, err := e.neighborIDs(id, rel)
				if err != nil {
					return nil, err
				}
				for _, nid := range ids {
					if visited[nid] {
						continue
					}
					visited[nid] = true
					if hop >= minHops {
						reached[nid] = true
					}
					next = append(next, nid)
				}
			}
			frontier = next
		}

		ids := make([]schema.ID, 0, len(reached))
		for id := range reached {
			ids = append(ids, id)
		}
		vmap, err := e.Store.FindVerticesByIDs(ids)
		if err != nil {
			return nil, err
		}
		// Deterministic order for reproducible row ordering.
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			v := vmap[id]
			if v == nil {
				continue
			}
			if toNode.Label != "" && string(v.Label) != toNode.Label {
				continue
			}
			if !vertexMatchesProps(v, toNode.Props, params) {
				continue
			}
			nb := cloneBinding(b)
			if toVar != "" {
				nb[toVar] = v
			}
			out = append(out, nb)
		}
	}
	return out, nil
}

func (e *Executor) neighborIDs(id schema.ID, rel *RelPattern) ([]schema.ID, error) {
	typeAllowed := func(t schema.EdgeType) bool {
		if len(rel.Types) == 0 {
			return true
		}
		for _, want := range rel.Types {
			if string(t) == want {
				return true
			}
		}
		return false
	}

	var ids []schema.ID
	if rel.Direction == "outbound" || rel.Direction == "any" || rel.Direction == "" {
		edges, err := e.Store.FindEdgesBySource(id)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if typeAllowed(edge.Type) {
				ids = append(ids, edge.Target)
			}
		}
	}
	if rel.Direction == "inbound" || rel.Direction == "any" {
		edges, err := e.Store.FindEdgesByTarget(id)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if typeAllowed(edge.Type) {
				ids = append(ids, edge.Source)
			}
		}
	}
	return ids, nil
}

func (e *Executor) filterBindings(bindings []binding, where *WhereClause, params map[string]any) []binding {
	var out []binding
	for _, b := range bindings {
		if e.evalWhere(b, where, params) {
			out = append(out, b)
		}
	}
	return out
}

func (e *Executor) evalWhere(b binding, where *WhereClause, params map[string]any) bool {
	if where.Operator == "OR" {
		for _, c := range where.Conditions {
			if e.evalCondition(b, c, params) {
				return true
			}
		}
		return len(where.Conditions) == 0
	}
	for _, c := range where.Conditions {
		if !e.evalCondition(b, c, params) {
			return false
		}
	}
	return true
}

func (e *Executor) evalCondition(b binding, c Condition, params map[string]any) bool {
	v := b[c.Variable]
	if v == nil {
		return false
	}
	actual := fmt.Sprintf("%v", vertexProperty(v, c.Property))
	want := resolveValue(c.Value, params)

	switch c.Operator {
	case "=":
		return actual == want
	case "CONTAINS":
		return strings.Contains(actual, want)
	case "STARTS WITH":
		return strings.HasPrefix(actual, want)
	case "=~":
		re := e.regexCache[want]
		if re == nil {
			compiled, err := regexp.Compile(want)
			if err != nil {
				return false
			}
			re = compiled
			e.regexCache[want] = re
		}
		return re.MatchString(actual)
	case ">", "<", ">=", "<=":
		af, aerr := strconv.ParseFloat(actual, 64)
		wf, werr := strconv.ParseFloat(want, 64)
		if aerr == nil && werr == nil {
			switch c.Operator {
			case ">":
				return af > wf
			case "<":
				return af < wf
			case ">=":
				return af >= wf
			case "<=":
				return af <= wf
			}
		}
		switch c.Operator {
		case ">":
			return actual > want
		case "<":
			return actual < want
		case ">=":
			return actual >= want
		case "<=":
			return actual <= want
		}
	}
	return false
}

func resolveValue(val Value, params map[string]any) string {
	if val.Param != "" {
		if v, ok := params[val.Param]; ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	}
	return val.Literal
}

// vertexProperty resolves a dotted property name against a vertex's
// first-class columns, falling back to its attribute bag.
func vertexProperty(v *store.StoredVertex, prop string) any {
	switch prop {
	case "id":
		return string(v.ID)
	case "label":
		return string(v.Label)
	case "language":
		return string(v.Language)
	case "name":
		return v.Name
	case "qualified_name":
		return v.QualifiedName
	case "file_path":
		return v.FilePath
	case "start_line":
		return v.StartLine
	case "start_col":
		return v.StartCol
	case "end_line":
		return v.EndLine
	case "end_col":
		return v.EndCol
	default:
		if v.Attributes == nil {
			return nil
		}
		return v.Attributes[prop]
	}
}

func vertexToMap(v *store.StoredVertex) map[string]any {
	m := map[string]any{}
	for k, val := range v.Attributes {
		m[k] = val
	}
	m["id"] = string(v.ID)
	m["label"] = string(v.Label)
	m["language"] = string(v.Language)
	m["name"] = v.Name
	m["qualified_name"] = v.QualifiedName
	m["file_path"] = v.FilePath
	m["start_line"] = v.StartLine
	m["start_col"] = v.StartCol
	m["end_line"] = v.EndLine
	m["end_col"] = v.EndCol
	return m
}

func columnName(item ReturnItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	if item.Func == "COUNT" {
		return "COUNT(" + item.Variable + ")"
	}
	if item.Property != "" {
		return item.Variable + "." + item.Property
	}
	return item.Variable
}

// project turns bindings into the final tabular Result, handling plain
// per-row projection as well as a single COUNT aggregation (optionally
// grouped by the return clause's non-aggregate items).
func (e *Executor) project(bindings []binding, ret *ReturnClause) (*Result, error) {
	if ret == nil {
		ret = defaultReturn(bindings)
	}

	cols := make([]string, len(ret.Items))
	for i, item := range ret.Items {
		cols[i] = columnName(item)
	}

	hasCount := false
	for _, item := range ret.Items {
		if item.Func == "COUNT" {
			hasCount = true
		}
	}

	var rows []map[string]any
	if hasCount {
		rows = e.projectAggregate(bindings, ret, cols)
	} else {
		for _, b := range bindings {
			row := map[string]any{}
			for i, item := range ret.Items {
				row[cols[i]] = projectItem(b, item)
			}
			rows = append(rows, row)
		}
	}

	if ret.Distinct {
		rows = dedupeRows(rows, cols)
	}
	if ret.OrderBy != "" {
		sortRows(rows, ret.OrderBy, ret.OrderDir)
	}
	limit := ret.Limit
	if limit == 0 || limit > maxResultRows {
		limit = maxResultRows
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}

	return &Result{Columns: cols, Rows: rows}, nil
}

func defaultReturn(bindings []binding) *ReturnClause {
	seen := map[string]bool{}
	var vars []string
	for _, b := range bindings {
		for k := range b {
			if !seen[k] {
				seen[k] = true
				vars = append(vars, k)
			}
		}
	}
	sort.Strings(vars)
	r := &ReturnClause{OrderDir: "ASC"}
	for _, v := range vars {
		r.Items = append(r.Items, ReturnItem{Variable: v})
	}
	return r
}

func projectItem(b binding, item ReturnItem) any {
	v := b[item.Variable]
	if v == nil {
		return nil
	}
	if item.Property == "" {
		return vertexToMap(v)
	}
	return vertexProperty(v, item.Property)
}

func (e *Executor) projectAggregate(bindings []binding, ret *ReturnClause, cols []string) []map[string]any {
	var groupItems []ReturnItem
	var groupCols []string
	countCol := ""
	for i, item := range ret.Items {
		if item.Func == "COUNT" {
			countCol = cols[i]
			continue
		}
		groupItems = append(groupItems, item)
		groupCols = append(groupCols, cols[i])
	}

	type group struct {
		row   map[string]any
		count int
	}
	groups := map[string]*group{}
	var order []string

	for _, b := range bindings {
		keyParts := make([]string, len(groupItems))
		row := map[string]any{}
		for i, item := range groupItems {
			val := projectItem(b, item)
			keyParts[i] = fmt.Sprintf("%v", val)
			row[groupCols[i]] = val
		}
		key := strings.Join(keyParts, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{row: row}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
	}

	rows := make([]map[string]any, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.row[countCol] = g.count
		rows = append(rows, g.row)
	}
	return rows
}

func dedupeRows(rows []map[string]any, cols []string) []map[string]any {
	seen := map[string]bool{}
	out := rows[:0:0]
	for _, r := range rows {
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = fmt.Sprintf("%v", r[c])
		}
		key := strings.Join(parts, "\x1f")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func sortRows(rows []map[string]any, field, dir string) {
	sort.SliceStable(rows, func(i, j int) bool {
		vi := fmt.Sprintf("%v", rows[i][field])
		vj := fmt.Sprintf("%v", rows[j][field])
		if dir == "DESC" {
			return vi > vj
		}
		return vi < vj
	})
}
