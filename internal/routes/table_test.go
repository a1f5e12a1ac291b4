package routes_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisbarc/camshell/internal/routes"
)

type stubView string

func (v stubView) Render(w io.Writer, _ any) error {
	_, err := io.WriteString(w, string(v))
	return err
}

func declared(about routes.Loader) []routes.Route {
	return []routes.Route{
		{Path: "/monitor", Name: "Monitor", Component: routes.Eager(stubView("monitor"))},
		{Path: "/about", Name: "About", Component: routes.Lazy(about)},
		{Path: "/", Name: "Home", Component: routes.Eager(stubView("home"))},
	}
}

func staticAbout(context.Context) (routes.View, error) {
	return stubView("about"), nil
}

func TestNew_RejectsDuplicates(t *testing.T) {
	home := routes.Eager(stubView("home"))

	tests := []struct {
		name   string
		routes []routes.Route
	}{
		{"duplicate path", []routes.Route{
			{Path: "/a", Name: "A", Component: home},
			{Path: "/a", Name: "B", Component: home},
		}},
		{"duplicate path differing in case and slash", []routes.Route{
			{Path: "/a", Name: "A", Component: home},
			{Path: "/A/", Name: "B", Component: home},
		}},
		{"duplicate name", []routes.Route{
			{Path: "/a", Name: "A", Component: home},
			{Path: "/b", Name: "A", Component: home},
		}},
		{"empty name", []routes.Route{{Path: "/a", Component: home}}},
		{"relative path", []routes.Route{{Path: "a", Name: "A", Component: home}}},
		{"missing component", []routes.Route{{Path: "/a", Name: "A"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := routes.New("/", tt.routes)
			var vErr *routes.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestNew_RejectsRelativeBase(t *testing.T) {
	_, err := routes.New("cam", declared(staticAbout))
	var vErr *routes.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTable_NamesAndPathsUnique(t *testing.T) {
	table, err := routes.New("/", declared(staticAbout))
	require.NoError(t, err)

	names := map[string]bool{}
	paths := map[string]bool{}
	for _, r := range table.Routes() {
		assert.False(t, names[r.Name], "duplicate name %s", r.Name)
		assert.False(t, paths[r.Path], "duplicate path %s", r.Path)
		names[r.Name] = true
		paths[r.Path] = true
	}
	assert.Len(t, names, 3)
}

func TestTable_RoutesKeepsOrder(t *testing.T) {
	table, err := routes.New("/", declared(staticAbout))
	require.NoError(t, err)

	got := table.Routes()
	require.Len(t, got, 3)
	assert.Equal(t, "Monitor", got[0].Name)
	assert.Equal(t, "About", got[1].Name)
	assert.Equal(t, "Home", got[2].Name)
	assert.True(t, got[1].Lazy())
	assert.False(t, got[0].Lazy())

	// Mutating the copy leaves the table alone.
	got[0].Name = "changed"
	assert.Equal(t, "Monitor", table.Routes()[0].Name)
}

func TestTable_Match(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		path     string
		wantName string
	}{
		{"root", "/", "/", "Home"},
		{"monitor", "/", "/monitor", "Monitor"},
		{"trailing slash", "/", "/monitor/", "Monitor"},
		{"case insensitive", "/", "/About", "About"},
		{"unknown", "/", "/settings", ""},
		{"no prefix matching", "/", "/monitor/extra", ""},
		{"base root", "/cam/", "/cam/", "Home"},
		{"base without slash", "/cam", "/cam", "Home"},
		{"base route", "/cam/", "/cam/monitor", "Monitor"},
		{"outside base", "/cam/", "/monitor", ""},
		{"base case insensitive", "/cam/", "/CAM/about", "About"},
		{"base and route case insensitive", "/cam/", "/Cam/ABOUT", "About"},
		{"base root case insensitive", "/cam/", "/CAM", "Home"},
		{"base prefix of longer segment", "/cam/", "/camera/about", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := routes.New(tt.base, declared(staticAbout))
			require.NoError(t, err)

			r, ok := table.Match(tt.path)
			if tt.wantName == "" {
				assert.False(t, ok)
				assert.Nil(t, r)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantName, r.Name)
		})
	}
}

func TestTable_Href(t *testing.T) {
	table, err := routes.New("/cam", declared(staticAbout))
	require.NoError(t, err)
	assert.Equal(t, "/cam/", table.Base())

	href, ok := table.Href("Monitor")
	require.True(t, ok)
	assert.Equal(t, "/cam/monitor", href)

	href, ok = table.Href("Home")
	require.True(t, ok)
	assert.Equal(t, "/cam/", href)

	_, ok = table.Href("Missing")
	assert.False(t, ok)
}

func TestTable_ResolveNoRoute(t *testing.T) {
	table, err := routes.New("/", declared(staticAbout))
	require.NoError(t, err)

	_, _, err = table.Resolve(context.Background(), "/nope")
	assert.ErrorIs(t, err, routes.ErrNoRoute)
}

func TestTable_ResolveEager(t *testing.T) {
	table, err := routes.New("/", declared(staticAbout))
	require.NoError(t, err)

	r, v, err := table.Resolve(context.Background(), "/monitor")
	require.NoError(t, err)
	assert.Equal(t, "Monitor", r.Name)
	assert.Equal(t, stubView("monitor"), v)
}

func TestLazy_FetchesOnce(t *testing.T) {
	var fetches atomic.Int32
	var hooked []string
	table, err := routes.New("/", declared(func(context.Context) (routes.View, error) {
		fetches.Add(1)
		return stubView("about"), nil
	}), routes.WithFetchHook(func(route string, err error) {
		assert.NoError(t, err)
		hooked = append(hooked, route)
	}))
	require.NoError(t, err)

	assert.EqualValues(t, 0, fetches.Load(), "lazy view must not load at construction")

	for i := 0; i < 3; i++ {
		_, v, err := table.Resolve(context.Background(), "/about")
		require.NoError(t, err)
		assert.Equal(t, stubView("about"), v)
	}
	assert.EqualValues(t, 1, fetches.Load())
	assert.Equal(t, []string{"About"}, hooked)
}

func TestLazy_ConcurrentFirstNavigationsShareFetch(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	table, err := routes.New("/", declared(func(context.Context) (routes.View, error) {
		fetches.Add(1)
		<-release
		return stubView("about"), nil
	}))
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := table.Resolve(context.Background(), "/about")
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, fetches.Load())
}

func TestLazy_FailureIsRetried(t *testing.T) {
	var fetches atomic.Int32
	boom := errors.New("chunk unavailable")
	var hookErrs []error
	table, err := routes.New("/", declared(func(context.Context) (routes.View, error) {
		if fetches.Add(1) == 1 {
			return nil, boom
		}
		return stubView("about"), nil
	}), routes.WithFetchHook(func(_ string, err error) {
		hookErrs = append(hookErrs, err)
	}))
	require.NoError(t, err)

	r, _, err := table.Resolve(context.Background(), "/about")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var loadErr *routes.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "About", loadErr.Route)
	require.NotNil(t, r)
	assert.Equal(t, "About", r.Name)

	_, v, err := table.Resolve(context.Background(), "/about")
	require.NoError(t, err)
	assert.Equal(t, stubView("about"), v)

	_, _, err = table.Resolve(context.Background(), "/about")
	require.NoError(t, err)

	assert.EqualValues(t, 2, fetches.Load())
	require.Len(t, hookErrs, 2)
	assert.ErrorIs(t, hookErrs[0], boom)
	assert.NoError(t, hookErrs[1])
}

func TestLazy_WaitHonoursContext(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	table, err := routes.New("/", declared(func(context.Context) (routes.View, error) {
		close(started)
		<-release
		return stubView("about"), nil
	}))
	require.NoError(t, err)

	go func() { _, _, _ = table.Resolve(context.Background(), "/about") }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = table.Resolve(ctx, "/about")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
