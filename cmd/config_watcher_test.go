package cmd

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grovetools/linkwatch/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherCoalescesWrites(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\n")
	logger, _ := test.NewNullLogger()

	var calls atomic.Int32
	cw, err := newConfigWatcher(path, logrus.NewEntry(logger), func() { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cw.Start(ctx)
	testutil.Settle()

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("version: \"1\"\n# edit\n"), 0644))
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(2 * configDebounce)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConfigWatcherIgnoresSiblings(t *testing.T) {
	path := writeConfig(t, "version: \"1\"\n")
	logger, _ := test.NewNullLogger()

	var calls atomic.Int32
	cw, err := newConfigWatcher(path, logrus.NewEntry(logger), func() { calls.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cw.Start(ctx)
	testutil.Settle()

	testutil.WriteFile(t, filepath.Join(filepath.Dir(path), "other.yml"), "x: 1\n")
	time.Sleep(3 * configDebounce)
	assert.Zero(t, calls.Load())
}
