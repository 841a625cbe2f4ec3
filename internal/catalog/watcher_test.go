package catalog

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - key: serology\n"), 0o644))

	initial, err := Load(path)
	require.NoError(t, err)
	holder := NewHolder(initial)

	w, err := NewWatcher(path, holder, quietLogger())
	require.NoError(t, err)
	reloaded := make(chan *Catalog, 1)
	w.OnReload(func(c *Catalog) { reloaded <- c })

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-w.Done()
	}()
	w.Start(ctx)

	// An invalid document is ignored.
	require.NoError(t, os.WriteFile(path, []byte("categories: []\n"), 0o644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, initial, holder.Get())

	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - key: serology\n  - key: virology\n"), 0o644))

	select {
	case c := <-reloaded:
		assert.Len(t, c.Keys(), 2)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}
	assert.True(t, holder.Get().HasCategory("virology"))
}
