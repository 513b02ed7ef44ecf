package serv

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcherStopsOnClose(t *testing.T) {
	s1, _ := newTestService(t, "")
	s1.load().conf.ConfigPath = t.TempDir()

	errc := make(chan error, 1)
	go func() { errc <- startConfigWatcher(s1) }()

	s1.Close()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("config watcher still running after Close")
	}

	// a second Close is a no-op
	s1.Close()
}

func TestConfigWatcherReloadsOnChange(t *testing.T) {
	s1, db := newTestService(t, "")
	dir := t.TempDir()
	s1.load().conf.ConfigPath = dir

	errc := make(chan error, 1)
	go func() { errc <- startConfigWatcher(s1) }()

	_, err := db.Exec(`CREATE TABLE tag (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)

	cf := filepath.Join(dir, "dev.yml")
	assert.Eventually(t, func() bool {
		if err := os.WriteFile(cf, []byte("app_name: shop\n"), 0o600); err != nil {
			return false
		}
		return slices.Contains(s1.DB().Collections(), "tag")
	}, 10*time.Second, 200*time.Millisecond)

	s1.Close()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("config watcher still running after Close")
	}
}
