package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ckgraph/ckg/internal/store"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIndexLinkQueryStatistics(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "Base.php"), "<?php class Base {}")
	mustWrite(t, filepath.Join(dir, "Child.php"), "<?php class Child extends Base {}")

	st, err := store.OpenMemory()
	require.NoError(t, err)
	defer st.Close()

	d := New(st)
	report, err := d.Index(context.Background(), dir, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, report.FilesVisited)
	require.Zero(t, report.FilesSkipped)

	linkReport := d.Link()
	require.Empty(t, linkReport.Errors)

	stats, err := d.Statistics()
	require.NoError(t, err)
	require.Equal(t, 2, stats.VertexCountsByLabel["Class"])

	res, err := d.Query(`MATCH (c:Class {name: "Child"})-[:EXTENDS]->(p:Class) RETURN p.name AS n`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "Base", res.Rows[0]["n"])

	require.NoError(t, d.Clear(true, ""))
	stats, err = d.Statistics()
	require.NoError(t, err)
	require.Zero(t, stats.TotalVertices)
}

func TestIndexWithRouteTable(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "config", "routes.json"),
		`[{"method":"GET","path":"/leads","controller":"LeadController","action":"list"}]`)
	mustWrite(t, filepath.Join(dir, "LeadController.php"),
		"<?php class LeadController { function actionList() {} }")

	st, err := store.OpenMemory()
	require.NoError(t, err)
	defer st.Close()

	d := New(st)
	_, err = d.Index(context.Background(), dir, Options{
		RouteTables: []RouteTable{{RelPath: "config/routes.json"}},
	})
	require.NoError(t, err)
	d.Link()

	res, err := d.Query(`MATCH (e:Endpoint)-[:HANDLES]->(m:Method) RETURN m.name AS n`, nil)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.Equal(t, "actionList", res.Rows[0]["n"])
}
