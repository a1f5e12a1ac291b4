package views_test

import (
	"bytes"
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisbarc/camshell/internal/routes"
	"github.com/sisbarc/camshell/internal/views"
)

func TestDeclared(t *testing.T) {
	set, err := views.New(nil)
	require.NoError(t, err)

	rs, err := views.Declared(set)
	require.NoError(t, err)
	require.Len(t, rs, 3)

	want := []struct {
		path, name string
		lazy       bool
	}{
		{"/monitor", "Monitor", false},
		{"/about", "About", true},
		{"/", "Home", false},
	}
	for i, w := range want {
		assert.Equal(t, w.path, rs[i].Path)
		assert.Equal(t, w.name, rs[i].Name)
		assert.Equal(t, w.lazy, rs[i].Lazy())
	}
}

func TestPage_Render(t *testing.T) {
	set, err := views.New(nil)
	require.NoError(t, err)
	table, err := routes.New("/cam/", mustDeclared(t, set))
	require.NoError(t, err)

	tests := []struct {
		page string
		want []string
	}{
		{views.PageHome, []string{"<title>Home · camshell</title>", `src="/api/v1/cam/capture"`}},
		{views.PageMonitor, []string{`src="/api/v1/cam/stream"`, `data-feed="/api/v1/cam/ws"`}},
		{views.PageAbout, []string{"<h1>About</h1>"}},
		{views.PageNotFound, []string{"<h1>404</h1>", "/cam/nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			p, err := set.Page(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.page, p.Name())

			var buf bytes.Buffer
			require.NoError(t, p.Render(&buf, views.PageData{
				Base:    table.Base(),
				APIBase: "/api",
				Path:    "/cam/nope",
				Nav:     views.Nav(table, "Home"),
				Version: "test",
			}))
			out := buf.String()
			assert.Contains(t, out, `<base href="/cam/">`)
			assert.Contains(t, out, `href="/cam/monitor"`)
			for _, s := range tt.want {
				assert.Contains(t, out, s)
			}
		})
	}
}

func TestNav_MarksActive(t *testing.T) {
	set, err := views.New(nil)
	require.NoError(t, err)
	table, err := routes.New("/", mustDeclared(t, set))
	require.NoError(t, err)

	links := views.Nav(table, "About")
	require.Len(t, links, 3)
	assert.False(t, links[0].Active)
	assert.True(t, links[1].Active)
	assert.Equal(t, "/about", links[1].Href)
	assert.Equal(t, "/", links[2].Href)
}

func TestLoader_ParsesOnCall(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout.html": {Data: []byte(`{{define "layout"}}[{{template "content" .}}]{{end}}`)},
	}
	set, err := views.New(fsys)
	require.NoError(t, err)

	load := set.Loader("late")

	// The page does not exist yet; a failed load must surface the error.
	_, err = load(context.Background())
	require.Error(t, err)

	fsys["templates/late.html"] = &fstest.MapFile{Data: []byte(`{{define "content"}}late{{end}}`)}
	v, err := load(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, v.Render(&buf, nil))
	assert.Equal(t, "[late]", buf.String())
}

func TestLoader_CanceledContext(t *testing.T) {
	set, err := views.New(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = set.Loader(views.PageAbout)(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func mustDeclared(t *testing.T, set *views.Set) []routes.Route {
	t.Helper()
	rs, err := views.Declared(set)
	require.NoError(t, err)
	return rs
}
