package cypher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
)

func seedGraph(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a := schema.NewClass(schema.LangPHP, `X\A`, "A", nil)
	b := schema.NewClass(schema.LangPHP, `X\B`, "B", nil)
	c := schema.NewClass(schema.LangPHP, `X\C`, "C", nil)
	mList := schema.NewMethod(schema.LangPHP, `X\A`, "actionList", nil)

	vertices := []schema.Vertex{a, b, c, mList}
	edges := []schema.Edge{
		{Type: schema.EdgeExtends, Source: a.ID, Target: b.ID},
		{Type: schema.EdgeExtends, Source: b.ID, Target: c.ID},
		{Type: schema.EdgeHasMethod, Source: a.ID, Target: mList.ID},
	}

	_, _, err = st.WriteBatch(vertices, edges, schema.LangPHP)
	require.NoError(t, err)
	return st
}

func TestExecuteSimpleMatchReturn(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (c:Class) RETURN c.qualified_name AS qn ORDER BY qn`, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"qn"}, res.Columns)
	require.Len(t, res.Rows, 3)
	require.Equal(t, `X\A`, res.Rows[0]["qn"])
	require.Equal(t, `X\B`, res.Rows[1]["qn"])
	require.Equal(t, `X\C`, res.Rows[2]["qn"])
}

func TestExecuteWhereCondition(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (c:Class) WHERE c.name = "A" RETURN c.name AS n`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "A", res.Rows[0]["n"])
}

func TestExecuteParameterizedWhere(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (c:Class) WHERE c.name = $target RETURN c.name AS n`, map[string]any{"target": "B"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "B", res.Rows[0]["n"])
}

func TestExecuteOneHopTraversal(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (a:Class {name: "A"})-[:EXTENDS]->(p:Class) RETURN p.name AS n`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "B", res.Rows[0]["n"])
}

func TestExecuteVariableLengthTraversal(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (a:Class {name: "A"})-[:EXTENDS*1..2]->(p:Class) RETURN p.name AS n ORDER BY n`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	require.Equal(t, "B", res.Rows[0]["n"])
	require.Equal(t, "C", res.Rows[1]["n"])
}

func TestExecuteCountAggregate(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (c:Class) RETURN COUNT(c) AS total`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, 3, res.Rows[0]["total"])
}

func TestExecuteHasMethodChain(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	res, err := ex.Execute(`MATCH (c:Class {name: "A"})-[:HAS_METHOD]->(m:Method) RETURN m.name AS n`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "actionList", res.Rows[0]["n"])
}

func TestExecuteInvalidQueryReturnsQueryError(t *testing.T) {
	st := seedGraph(t)
	ex := NewExecutor(st)

	_, err := ex.Execute(`NOT CYPHER`, nil)
	require.Error(t, err)
	var qerr *store.QueryError
	require.ErrorAs(t, err, &qerr)
}
