package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/keycat/internal/testutil"
)

type countingReloader struct {
	mu    sync.Mutex
	calls int
}

func (c *countingReloader) ReloadIfChanged(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return true, nil
}

func (c *countingReloader) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatch(t *testing.T, r Reloader, path string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := Watch(ctx, r, path, 50*time.Millisecond, testutil.Logger()); err != nil {
			t.Errorf("Watch: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	// Give fsnotify time to register the directory.
	time.Sleep(100 * time.Millisecond)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := testutil.CatalogFile(t, "2", "a:b")
	r := &countingReloader{}
	startWatch(t, r, path)

	if err := os.WriteFile(path, []byte("2\na:c\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return r.count() >= 1 },
		"expected a reload after writing the catalog")
}

func TestWatch_DebouncesBursts(t *testing.T) {
	path := testutil.CatalogFile(t, "2")
	r := &countingReloader{}
	startWatch(t, r, path)

	for i := 0; i < 10; i++ {
		if err := os.WriteFile(path, []byte("2\nk:v\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, 3*time.Second, 20*time.Millisecond, func() bool { return r.count() >= 1 },
		"expected a reload after the burst")
	time.Sleep(200 * time.Millisecond)
	if n := r.count(); n > 2 {
		t.Errorf("reloads = %d, want the burst coalesced", n)
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	path := testutil.CatalogFile(t, "2")
	r := &countingReloader{}
	startWatch(t, r, path)

	other := filepath.Join(filepath.Dir(path), "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if n := r.count(); n != 0 {
		t.Errorf("reloads = %d, want 0", n)
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone", "data.txt")
	err := Watch(context.Background(), &countingReloader{}, path, 0, testutil.Logger())
	if err == nil || !strings.HasPrefix(err.Error(), "watch: add ") {
		t.Errorf("err = %v, want a wrapped add error", err)
	}
}
