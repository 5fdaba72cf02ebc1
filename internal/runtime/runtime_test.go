package runtime

import (
	"context"
	"testing"

	cfgpkg "github.com/plastic-io/graph-server/internal/config"
	pebblestore "github.com/plastic-io/graph-server/internal/storage/pebble"
)

func TestOpenCheckHealthClose(t *testing.T) {
	rt, err := Open(Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeNever,
		Config:  cfgpkg.Default(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := rt.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if rt.Registry() == nil || rt.Docs() == nil || rt.Hub() == nil {
		t.Fatalf("expected services to be wired")
	}
	if err := rt.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
