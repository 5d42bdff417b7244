package projectwatch

import (
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/linkwatch/config"
	"github.com/grovetools/linkwatch/errors"
	"github.com/grovetools/linkwatch/internal/fswatch"
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

func testLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func runtimeHost(ident string) *testutil.FakeHost {
	h := testutil.NewFakeHost()
	h.AddServerContent(&testutil.FakeContent{ID: ident, Type: host.KindRuntime, Compiler: "server"})
	return h
}

func TestNewWithoutCodePath(t *testing.T) {
	h := runtimeHost("my.project")
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	assert.Equal(t, "my.project", s.Ident())
	assert.Zero(t, s.Len())
	assert.Empty(t, s.Links())

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestCloseNilSet(t *testing.T) {
	var s *Set
	assert.NoError(t, s.Close())
}

func TestSharedLibraryChangeTriggersRecompile(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := runtimeHost("my.project")
	logger, hook := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 1, s.Len())
	links := s.Links()
	require.Len(t, links, 1)
	assert.Equal(t, proj.Link, links[0].Path)
	assert.Equal(t, proj.Target, links[0].Target)
	assert.True(t, s.HasServerContent())
	assert.False(t, s.HasToolAddon())

	var watching bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel && e.Message == "my.project: Watching symlink "+proj.Link+" -> "+proj.Target {
			watching = true
		}
	}
	assert.True(t, watching, "expected a watching log line")

	testutil.Settle()
	testutil.WriteFile(t, filepath.Join(proj.Target, "Foo.cs"), "class Foo {}")

	require.Eventually(t, func() bool { return h.Marks("server") >= 1 }, waitFor, tick)
	assert.GreaterOrEqual(t, s.Requests(), int64(1))
}

func TestIrrelevantFilesDoNotTriggerRecompile(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := runtimeHost("my.project")
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()
	testutil.Settle()

	testutil.WriteFile(t, filepath.Join(proj.Target, "notes.txt"), "todo")
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, h.TotalMarks())

	testutil.WriteFile(t, filepath.Join(proj.Target, "Foo.cs"), "class Foo {}")
	require.Eventually(t, func() bool { return h.TotalMarks() >= 1 }, waitFor, tick)
}

func TestChangesInPlainDirectoriesAreIgnored(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := runtimeHost("my.project")
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()
	testutil.Settle()

	testutil.WriteFile(t, filepath.Join(proj.CodePath, "local", "Local.cs"), "")
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, h.TotalMarks())
}

func TestRequestRecompileWithoutHandlesMakesNoHostCall(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := testutil.NewFakeHost()
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	s.RequestRecompile()
	assert.Zero(t, h.CompilerCalls())
	assert.Zero(t, s.Requests())
}

func TestNonRuntimeServerContentIsNotRecompiled(t *testing.T) {
	h := testutil.NewFakeHost()
	h.AddServerContent(&testutil.FakeContent{ID: "my.project", Type: "package", Compiler: "server"})
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	s.RequestRecompile()
	assert.Zero(t, h.TotalMarks())
	assert.Zero(t, s.Requests())
}

func TestServerContentAndToolAddonAreBothMarked(t *testing.T) {
	h := runtimeHost("my.project")
	h.AddToolAddon(&testutil.FakeContent{ID: "my.project", Compiler: "addon"})
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	s.RequestRecompile()
	assert.Equal(t, 1, h.Marks("server"))
	assert.Equal(t, 1, h.Marks("addon"))
	assert.Equal(t, int64(1), s.Requests())
}

func TestToolAddonWithoutCompiler(t *testing.T) {
	h := testutil.NewFakeHost()
	h.AddToolAddon(&testutil.FakeContent{ID: "my.project"})
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	s.RequestRecompile()
	assert.Zero(t, h.TotalMarks())
}

func TestMarkFailureIsLogged(t *testing.T) {
	h := runtimeHost("my.project")
	h.MarkErr = stderrors.New("compiler busy")
	logger, hook := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	s.RequestRecompile()

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Contains(t, last.Message, "Failed to mark server")
}

func TestDebounceCoalescesBursts(t *testing.T) {
	h := runtimeHost("my.project")
	logger, _ := testLogger()
	opts := DefaultOptions()
	opts.Debounce = 100 * time.Millisecond

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, opts, logger)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 10; i++ {
		s.RequestRecompile()
	}
	assert.Zero(t, h.TotalMarks())

	require.Eventually(t, func() bool { return h.Marks("server") == 1 }, waitFor, tick)
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, 1, h.Marks("server"))

	// A later request fires again
	s.RequestRecompile()
	require.Eventually(t, func() bool { return h.Marks("server") == 2 }, waitFor, tick)
}

func TestCloseFlushesPendingDebounce(t *testing.T) {
	h := runtimeHost("my.project")
	logger, _ := testLogger()
	opts := DefaultOptions()
	opts.Debounce = time.Hour

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, opts, logger)
	require.NoError(t, err)

	s.RequestRecompile()
	assert.Zero(t, h.TotalMarks())

	require.NoError(t, s.Close())
	assert.Equal(t, 1, h.Marks("server"))
	assert.Equal(t, int64(1), s.Requests())

	// Closing again delivers nothing more.
	require.NoError(t, s.Close())
	assert.Equal(t, 1, h.Marks("server"))
}

func TestRequestAfterCloseIsDelivered(t *testing.T) {
	h := runtimeHost("my.project")
	logger, _ := testLogger()
	opts := DefaultOptions()
	opts.Debounce = time.Hour

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: t.TempDir(), IsActive: true}, h, opts, logger)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s.RequestRecompile()
	assert.Equal(t, 1, h.Marks("server"))
}

func TestWatcherErrorIsLoggedWithoutRecompile(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := runtimeHost("my.project")
	logger, hook := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()
	hook.Reset()

	s.watchError(proj.Target, stderrors.New("event queue overflow"))

	var warnings []*logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Watcher error for "+proj.Target)
	assert.Equal(t, 0, h.TotalMarks())
	assert.Zero(t, s.Requests())
}

func TestCloseStopsRecompiles(t *testing.T) {
	proj := testutil.SetupLinkedProject(t)
	h := runtimeHost("my.project")
	logger, _ := testLogger()

	s, err := New(&testutil.FakeProject{ID: "my.project", Path: proj.CodePath, IsActive: true}, h, DefaultOptions(), logger)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	testutil.WriteFile(t, filepath.Join(proj.Target, "Late.cs"), "")
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, h.TotalMarks())
}

func TestNewFailsOnUnresolvableLink(t *testing.T) {
	testutil.RequireSymlinks(t)
	code := t.TempDir()
	testutil.Symlink(t, filepath.Join(code, "b"), filepath.Join(code, "a"))
	testutil.Symlink(t, filepath.Join(code, "a"), filepath.Join(code, "b"))

	logger, _ := testLogger()
	s, err := New(&testutil.FakeProject{ID: "loop", Path: code, IsActive: true}, testutil.NewFakeHost(), DefaultOptions(), logger)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, errors.ErrCodeSymlinkUnresolved, errors.GetCode(err))
}

func TestBrokenLinkIsSkipped(t *testing.T) {
	testutil.RequireSymlinks(t)
	tmp := t.TempDir()
	code := testutil.MkdirAll(t, filepath.Join(tmp, "proj"))
	testutil.Symlink(t, filepath.Join(tmp, "data", "gone"), filepath.Join(code, "broken"))

	logger, hook := testLogger()
	s, err := New(&testutil.FakeProject{ID: "my.project", Path: code, IsActive: true}, testutil.NewFakeHost(), DefaultOptions(), logger)
	require.NoError(t, err)
	defer s.Close()

	assert.Zero(t, s.Len())
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
	assert.Contains(t, last.Message, filepath.Join(code, "broken"))
	assert.Contains(t, last.Message, filepath.Join(tmp, "data", "gone"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(config.WatchConfig{
		Filters:    []string{"*.cs"},
		Notify:     []string{"file_name", "last_write"},
		Ignore:     []string{"bin/"},
		DebounceMs: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.cs"}, opts.Filters)
	assert.Equal(t, fswatch.FileName|fswatch.LastWrite, opts.NotifyFilter)
	assert.Equal(t, []string{"bin/"}, opts.Ignore)
	assert.Equal(t, 50*time.Millisecond, opts.Debounce)

	opts, err = OptionsFromConfig(config.WatchConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	_, err = OptionsFromConfig(config.WatchConfig{Notify: []string{"bogus"}})
	assert.Error(t, err)
}
