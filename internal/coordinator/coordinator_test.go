package coordinator

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/linkwatch/internal/projectwatch"
	"github.com/grovetools/linkwatch/pkg/host"
	"github.com/grovetools/linkwatch/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func newTestCoordinator(h host.Host) (*Coordinator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	c := New(h, Options{Watch: projectwatch.DefaultOptions()}, logrus.NewEntry(logger))
	return c, hook
}

func warnings(hook *test.Hook) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			out = append(out, e.Message)
		}
	}
	return out
}

func idents(states []ProjectState) []string {
	var out []string
	for _, s := range states {
		out = append(out, s.Ident)
	}
	return out
}

func TestWatchSymlinksRecompilesOnSharedLibraryChange(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true})
	h.AddServerContent(&testutil.FakeContent{ID: "my.project", Type: host.KindRuntime, Compiler: "server"})

	c, _ := newTestCoordinator(h)
	defer c.Close()
	c.WatchSymlinks()

	states := c.Snapshot()
	require.Len(t, states, 1)
	require.Len(t, states[0].Links, 1)
	assert.Equal(t, proj.Target, states[0].Links[0].Target)
	assert.True(t, states[0].HasServer)

	testutil.Settle()
	testutil.WriteFile(t, filepath.Join(proj.Target, "Foo.cs"), "class Foo {}")
	require.Eventually(t, func() bool { return h.Marks("server") >= 1 }, waitFor, tick)
}

func TestRescanDuringDebounceKeepsRequest(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true})
	h.AddServerContent(&testutil.FakeContent{ID: "my.project", Type: host.KindRuntime, Compiler: "server"})

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	watch := projectwatch.DefaultOptions()
	watch.Debounce = time.Hour
	c := New(h, Options{Watch: watch}, logrus.NewEntry(logger))
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))

	testutil.Settle()
	testutil.WriteFile(t, filepath.Join(proj.Target, "Foo.cs"), "class Foo {}")
	require.Eventually(t, func() bool {
		for _, e := range hook.AllEntries() {
			if e.Message == "Change in symlinked directory" {
				return true
			}
		}
		return false
	}, waitFor, tick)
	require.Zero(t, h.Marks("server"))

	// The edit is still waiting out the quiet period when the rescan
	// replaces the generation.
	require.NoError(t, c.Rescan(context.Background()))
	assert.Equal(t, 1, h.Marks("server"))
}

func TestRescanSkipsInactiveProjects(t *testing.T) {
	h := testutil.NewFakeHost()
	h.SetProjects(
		&testutil.FakeProject{ID: "on", Path: t.TempDir(), IsActive: true},
		&testutil.FakeProject{ID: "off", Path: t.TempDir(), IsActive: false},
	)

	c, _ := newTestCoordinator(h)
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))

	assert.Equal(t, []string{"on"}, idents(c.Snapshot()))
}

func TestProjectThatBecomesInactiveIsClosed(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	p := &testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}
	h := testutil.NewFakeHost()
	h.SetProjects(p)
	h.AddServerContent(&testutil.FakeContent{ID: "my.project", Type: host.KindRuntime, Compiler: "server"})

	c, _ := newTestCoordinator(h)
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))
	require.Len(t, c.Snapshot(), 1)

	h.SetProjects(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: false})
	require.NoError(t, c.Rescan(context.Background()))
	assert.Empty(t, c.Snapshot())

	testutil.WriteFile(t, filepath.Join(proj.Target, "Foo.cs"), "")
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, h.TotalMarks())
}

func TestGenerationsDoNotOverlap(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true})
	h.AddServerContent(&testutil.FakeContent{ID: "my.project", Type: host.KindRuntime, Compiler: "server"})

	c, _ := newTestCoordinator(h)
	defer c.Close()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Rescan(context.Background()))
	}
	assert.Equal(t, 3, c.Rescans())
	testutil.Settle()

	testutil.WriteFile(t, filepath.Join(proj.Target, "Foo.cs"), "class Foo {}")
	require.Eventually(t, func() bool { return h.Marks("server") >= 1 }, waitFor, tick)
	time.Sleep(200 * time.Millisecond)

	// Every mark came from the current generation's single Set
	states := c.Snapshot()
	require.Len(t, states, 1)
	assert.Equal(t, int64(h.Marks("server")), states[0].Requests)
}

func TestBrokenSymlinkDoesNotStopRescan(t *testing.T) {
	testutil.RequireSymlinks(t)
	tmp := t.TempDir()
	code := testutil.MkdirAll(t, filepath.Join(tmp, "proj"))
	gone := filepath.Join(tmp, "data", "gone")
	testutil.Symlink(t, gone, filepath.Join(code, "broken"))

	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "my.project", Path: code, IsActive: true})

	c, hook := newTestCoordinator(h)
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))

	states := c.Snapshot()
	require.Len(t, states, 1)
	assert.Empty(t, states[0].Links)

	warns := warnings(hook)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], filepath.Join(code, "broken"))
	assert.Contains(t, warns[0], gone)
}

func TestFailingProjectDoesNotStopOthers(t *testing.T) {
	testutil.RequireSymlinks(t)
	loop := t.TempDir()
	testutil.Symlink(t, filepath.Join(loop, "b"), filepath.Join(loop, "a"))
	testutil.Symlink(t, filepath.Join(loop, "a"), filepath.Join(loop, "b"))

	h := testutil.NewFakeHost()
	h.SetProjects(
		&testutil.FakeProject{ID: "loop", Path: loop, IsActive: true},
		&testutil.FakeProject{ID: "good", Path: t.TempDir(), IsActive: true},
	)

	c, hook := newTestCoordinator(h)
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))

	assert.Equal(t, []string{"good"}, idents(c.Snapshot()))
	warns := warnings(hook)
	require.Len(t, warns, 1)
	assert.True(t, strings.HasPrefix(warns[0], "loop: "), warns[0])
}

func TestPanickingHostIsContained(t *testing.T) {
	h := testutil.NewFakeHost()
	h.PanicOn = "bad"
	h.SetProjects(
		&testutil.FakeProject{ID: "bad", Path: t.TempDir(), IsActive: true},
		&testutil.FakeProject{ID: "good", Path: t.TempDir(), IsActive: true},
	)

	c, hook := newTestCoordinator(h)
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))

	assert.Equal(t, []string{"good"}, idents(c.Snapshot()))
	assert.NotEmpty(t, warnings(hook))
}

func TestDuplicateIdentifierKeepsFirst(t *testing.T) {
	first := t.TempDir()
	h := testutil.NewFakeHost()
	h.SetProjects(
		&testutil.FakeProject{ID: "twin", Path: first, IsActive: true},
		&testutil.FakeProject{ID: "twin", Path: t.TempDir(), IsActive: true},
	)

	c, hook := newTestCoordinator(h)
	defer c.Close()
	require.NoError(t, c.Rescan(context.Background()))

	assert.Equal(t, []string{"twin"}, idents(c.Snapshot()))
	warns := warnings(hook)
	require.Len(t, warns, 1)
	assert.Contains(t, warns[0], "Duplicate")
}

func TestRescanReturnsListError(t *testing.T) {
	h := testutil.NewFakeHost()
	h.ListErr = stderrors.New("host unavailable")

	c, _ := newTestCoordinator(h)
	defer c.Close()
	assert.Error(t, c.Rescan(context.Background()))
	assert.Empty(t, c.Snapshot())
}

func TestRunRescansOnTriggers(t *testing.T) {
	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "one", Path: t.TempDir(), IsActive: true})

	c, _ := newTestCoordinator(h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(c.Snapshot()) == 1 }, waitFor, tick)

	h.SetProjects(
		&testutil.FakeProject{ID: "one", Path: t.TempDir(), IsActive: true},
		&testutil.FakeProject{ID: "two", Path: t.TempDir(), IsActive: true},
	)
	c.Notify(TriggerProjectsChanged)
	require.Eventually(t, func() bool { return len(c.Snapshot()) == 2 }, waitFor, tick)

	h.SetProjects()
	c.Notify(TriggerSessionStarted)
	require.Eventually(t, func() bool { return len(c.Snapshot()) == 0 }, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunClosesEverythingOnExit(t *testing.T) {
	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "one", Path: t.TempDir(), IsActive: true})

	c, _ := newTestCoordinator(h)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(c.Snapshot()) == 1 }, waitFor, tick)
	cancel()
	<-done
	assert.Empty(t, c.Snapshot())
}

func TestCloseWithoutRescan(t *testing.T) {
	c, _ := newTestCoordinator(testutil.NewFakeHost())
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestOnRescanReceivesSnapshot(t *testing.T) {
	h := testutil.NewFakeHost()
	h.SetProjects(&testutil.FakeProject{ID: "one", Path: t.TempDir(), IsActive: true})

	c, _ := newTestCoordinator(h)
	got := make(chan []ProjectState, 4)
	triggers := make(chan Trigger, 4)
	c.OnRescan(func(tr Trigger, states []ProjectState) {
		triggers <- tr
		got <- states
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	select {
	case states := <-got:
		require.Len(t, states, 1)
		assert.Equal(t, "one", states[0].Ident)
		assert.Equal(t, TriggerStartup, <-triggers)
	case <-time.After(waitFor):
		t.Fatal("no snapshot after startup rescan")
	}

	c.Notify(TriggerManual)
	select {
	case <-got:
		assert.Equal(t, TriggerManual, <-triggers)
	case <-time.After(waitFor):
		t.Fatal("no snapshot after manual rescan")
	}
}
