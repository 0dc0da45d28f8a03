package csvexport

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckgraph/ckg/internal/schema"
	"github.com/ckgraph/ckg/internal/store"
)

func TestExportImportRoundTrip(t *testing.T) {
	src, err := store.OpenMemory()
	require.NoError(t, err)
	defer src.Close()

	a := schema.NewClass(schema.LangPHP, `X\A`, "A", nil)
	b := schema.NewClass(schema.LangPHP, `X\B`, "B", nil)
	edges := []schema.Edge{{Type: schema.EdgeExtends, Source: a.ID, Target: b.ID}}
	_, _, err = src.WriteBatch([]schema.Vertex{a, b}, edges, schema.LangPHP)
	require.NoError(t, err)

	wantStats, err := src.GetStatistics()
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, Export(src, dir))

	dst, err := store.OpenMemory()
	require.NoError(t, err)
	defer dst.Close()

	nv, ne, err := Import(dst, dir)
	require.NoError(t, err)
	require.Equal(t, 2, nv)
	require.Equal(t, 1, ne)

	gotStats, err := dst.GetStatistics()
	require.NoError(t, err)
	require.Equal(t, wantStats.TotalVertices, gotStats.TotalVertices)
	require.Equal(t, wantStats.TotalEdges, gotStats.TotalEdges)
	require.Equal(t, wantStats.VertexCountsByLabel, gotStats.VertexCountsByLabel)
}
