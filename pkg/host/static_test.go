package host

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/linkwatch/config"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func newTestStatic(t *testing.T, cfg *config.Config) *Static {
	t.Helper()
	t.Setenv("LINKWATCH_HOME", t.TempDir())
	cfg.SetDefaults()
	logger, _ := test.NewNullLogger()
	return NewStatic(cfg, logrus.NewEntry(logger))
}

func TestStaticProjectsAndLookup(t *testing.T) {
	s := newTestStatic(t, &config.Config{
		Projects: []config.ProjectConfig{
			{Ident: "acme.game#local", Path: "/src/game"},
			{Ident: "acme.tools", Path: "/src/tools", Active: boolPtr(false)},
		},
		ServerContents: []config.ContentConfig{
			{Ident: "acme.game", Compiler: &config.CompilerConfig{Name: "game-server"}},
			{Ident: "acme.assets", Kind: "package"},
		},
		ToolAddons: []config.ContentConfig{
			{Ident: "Acme.Game", Compiler: &config.CompilerConfig{}},
		},
	})

	projects, err := s.LocalProjects()
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "acme.game#local", projects[0].Ident())
	assert.Equal(t, "/src/game", projects[0].CodePath())
	assert.True(t, projects[0].Active())
	assert.False(t, projects[1].Active())

	server, ok := s.FindServerContent(projects[0].Ident())
	require.True(t, ok)
	assert.Equal(t, KindRuntime, server.Kind())

	comp, ok := s.ServerCompiler(server)
	require.True(t, ok)
	assert.Equal(t, "game-server", comp.Name())

	addon, ok := s.FindToolAddon("ACME.GAME#local")
	require.True(t, ok)
	addonComp, ok := s.ToolAddonCompiler(addon)
	require.True(t, ok)
	assert.Equal(t, "Acme.Game", addonComp.Name())

	assets, ok := s.FindServerContent("acme.assets")
	require.True(t, ok)
	assert.Equal(t, ContentKind("package"), assets.Kind())
	_, ok = s.ServerCompiler(assets)
	assert.False(t, ok)

	_, ok = s.FindServerContent("acme.tools")
	assert.False(t, ok)
	_, ok = s.FindToolAddon("acme.tools")
	assert.False(t, ok)
}

func TestMarkForRecompileWritesStamp(t *testing.T) {
	stamp := filepath.Join(t.TempDir(), "stamps", "game.dirty")
	s := newTestStatic(t, &config.Config{
		ServerContents: []config.ContentConfig{
			{Ident: "acme.game", Compiler: &config.CompilerConfig{Name: "game", Stamp: stamp}},
			{Ident: "acme.other", Compiler: &config.CompilerConfig{Name: "other"}},
		},
	})

	game, _ := s.FindServerContent("acme.game")
	comp, _ := s.ServerCompiler(game)
	require.NoError(t, s.MarkForRecompile(comp))
	assert.FileExists(t, stamp)
	assert.Equal(t, 1, s.Marks("game"))

	// Default stamp lives under the state dir
	other, _ := s.FindServerContent("acme.other")
	otherComp, _ := s.ServerCompiler(other)
	require.NoError(t, s.MarkForRecompile(otherComp))
	assert.FileExists(t, filepath.Join(os.Getenv("LINKWATCH_HOME"), "state", "dirty", "other"))
}

type namedCompiler string

func (n namedCompiler) Name() string { return string(n) }

func TestMarkForRecompileByName(t *testing.T) {
	s := newTestStatic(t, &config.Config{
		ToolAddons: []config.ContentConfig{
			{Ident: "acme.tools", Compiler: &config.CompilerConfig{Name: "tools"}},
		},
	})

	require.NoError(t, s.MarkForRecompile(namedCompiler("tools")))
	assert.Equal(t, 1, s.Marks("tools"))

	assert.Error(t, s.MarkForRecompile(namedCompiler("missing")))
	assert.Error(t, s.MarkForRecompile(nil))
}

func TestMarkForRecompileCoalescesCommandRuns(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	out := filepath.Join(t.TempDir(), "runs.log")
	s := newTestStatic(t, &config.Config{
		ServerContents: []config.ContentConfig{
			{Ident: "acme.game", Compiler: &config.CompilerConfig{
				Name:    "game",
				Command: []string{"sh", "-c", "sleep 0.3; echo run >> " + out},
			}},
		},
	})

	game, _ := s.FindServerContent("acme.game")
	comp, _ := s.ServerCompiler(game)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.MarkForRecompile(comp))
		}()
	}
	wg.Wait()
	s.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	runs := strings.Count(string(data), "run\n")
	assert.GreaterOrEqual(t, runs, 1)
	assert.LessOrEqual(t, runs, 2)
	assert.Equal(t, 5, s.Marks("game"))
}

func TestStampFailureStillRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	ran := filepath.Join(dir, "ran")

	s := newTestStatic(t, &config.Config{
		ServerContents: []config.ContentConfig{
			{Ident: "acme.game", Compiler: &config.CompilerConfig{
				Name:    "game",
				Stamp:   filepath.Join(blocker, "stamp"),
				Command: []string{"sh", "-c", "echo run >> " + ran},
			}},
		},
	})
	game, _ := s.FindServerContent("acme.game")
	comp, _ := s.ServerCompiler(game)

	for i := 0; i < 2; i++ {
		assert.Error(t, s.MarkForRecompile(comp))
		done := make(chan struct{})
		go func() {
			s.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Wait blocked after a failed stamp write")
		}
	}

	data, err := os.ReadFile(ran)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "run\n"))
	assert.Equal(t, 2, s.Marks("game"))
}

func TestReloadKeepsCompilerByName(t *testing.T) {
	cfg := &config.Config{
		Projects: []config.ProjectConfig{{Ident: "acme.game", Path: "/a"}},
		ServerContents: []config.ContentConfig{
			{Ident: "acme.game", Compiler: &config.CompilerConfig{Name: "game"}},
		},
	}
	s := newTestStatic(t, cfg)
	require.NoError(t, s.MarkForRecompile(namedCompiler("game")))

	next := &config.Config{
		Projects: []config.ProjectConfig{{Ident: "acme.game", Path: "/b"}},
		ServerContents: []config.ContentConfig{
			{Ident: "acme.game", Compiler: &config.CompilerConfig{Name: "game"}},
		},
	}
	next.SetDefaults()
	s.Reload(next)

	projects, _ := s.LocalProjects()
	require.Len(t, projects, 1)
	assert.Equal(t, "/b", projects[0].CodePath())
	assert.Equal(t, 1, s.Marks("game"))
}
